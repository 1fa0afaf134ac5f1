package camera

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	// fov is the vertical field of view in degrees.
	fov    float32
	aspect float32
	near   float32
	far    float32

	controller CameraController
}

// Camera is a perspective camera driven by a CameraController. It uses a left-handed
// basis: +X right, +Y up, +Z forward, with clip depth in [0, 1].
type Camera interface {
	// Update advances the controller by one frame.
	//
	// Parameters:
	//   - dt: the frame time step in seconds
	//   - input: the input snapshot for this frame
	Update(dt float32, input Input)

	// Position returns the world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: the camera position
	Position() mgl32.Vec3

	// Forward returns the unit view direction.
	//
	// Returns:
	//   - mgl32.Vec3: the forward basis vector
	Forward() mgl32.Vec3

	// Right returns the unit right direction.
	//
	// Returns:
	//   - mgl32.Vec3: the right basis vector
	Right() mgl32.Vec3

	// Up returns the unit up direction.
	//
	// Returns:
	//   - mgl32.Vec3: the up basis vector
	Up() mgl32.Vec3

	// Yaw returns the controller yaw in radians.
	Yaw() float32

	// Pitch returns the controller pitch in radians.
	Pitch() float32

	// Fov returns the vertical field of view in degrees.
	//
	// Returns:
	//   - float32: field of view in degrees
	Fov() float32

	// TanHalfFov returns tan(fov / 2), the ray spread factor the raymarcher needs.
	//
	// Returns:
	//   - float32: the tangent of half the vertical field of view
	TanHalfFov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// SetFov sets the vertical field of view in degrees.
	//
	// Parameters:
	//   - degrees: the field of view, clamped to (1, 179)
	SetFov(degrees float32)

	// SetAspect sets the aspect ratio. Non-positive values are ignored.
	//
	// Parameters:
	//   - aspect: width / height
	SetAspect(aspect float32)

	// View returns the left-handed view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: world to view transform
	View() mgl32.Mat4

	// Projection returns the left-handed perspective projection with depth mapped to [0, 1].
	//
	// Returns:
	//   - mgl32.Mat4: view to clip transform
	Projection() mgl32.Mat4

	// Controller returns the attached controller.
	//
	// Returns:
	//   - CameraController: the controller
	Controller() CameraController
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera with a 90 degree field of view, near 0.1, far 1000 and a
// free-fly controller unless one is supplied.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		fov:    90,
		aspect: 16.0 / 9.0,
		near:   0.1,
		far:    1000,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.controller == nil {
		c.controller = NewFreeFlyController()
	}
	return c
}

func (c *cameraImpl) Update(dt float32, input Input) {
	c.controller.Update(dt, input)
}

func (c *cameraImpl) Position() mgl32.Vec3 { return c.controller.Position() }
func (c *cameraImpl) Forward() mgl32.Vec3  { return c.controller.Forward() }
func (c *cameraImpl) Right() mgl32.Vec3    { return c.controller.Right() }
func (c *cameraImpl) Up() mgl32.Vec3       { return c.controller.Up() }
func (c *cameraImpl) Yaw() float32         { return c.controller.Yaw() }
func (c *cameraImpl) Pitch() float32       { return c.controller.Pitch() }

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) TanHalfFov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return math32.Tan(mgl32.DegToRad(c.fov) * 0.5)
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) SetFov(degrees float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = mgl32.Clamp(degrees, 1, 179)
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 || math32.IsNaN(aspect) || math32.IsInf(aspect, 0) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
}

func (c *cameraImpl) View() mgl32.Mat4 {
	p := c.controller.Position()
	r := c.controller.Right()
	u := c.controller.Up()
	f := c.controller.Forward()
	return mgl32.Mat4FromRows(
		r.Vec4(-r.Dot(p)),
		u.Vec4(-u.Dot(p)),
		f.Vec4(-f.Dot(p)),
		mgl32.Vec4{0, 0, 0, 1},
	)
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()

	yScale := 1 / math32.Tan(mgl32.DegToRad(c.fov)*0.5)
	xScale := yScale / c.aspect
	depth := c.far / (c.far - c.near)
	return mgl32.Mat4FromRows(
		mgl32.Vec4{xScale, 0, 0, 0},
		mgl32.Vec4{0, yScale, 0, 0},
		mgl32.Vec4{0, 0, depth, -c.near * depth},
		mgl32.Vec4{0, 0, 1, 0},
	)
}

func (c *cameraImpl) Controller() CameraController {
	return c.controller
}
