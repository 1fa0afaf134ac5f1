package camera

import (
	"sync"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// maxPitch keeps the view direction away from the poles where yaw degenerates.
const maxPitch = math32.Pi/2 - 0.01

var worldUp = mgl32.Vec3{0, 1, 0}

// freeFlyController is the yaw/pitch implementation of CameraController.
type freeFlyController struct {
	mu *sync.Mutex

	position mgl32.Vec3
	forward  mgl32.Vec3
	right    mgl32.Vec3
	up       mgl32.Vec3

	yaw   float32
	pitch float32

	moveSpeed        float32
	sprintMultiplier float32
	mouseSensitivity float32

	lastX, lastY float64
	hasLast      bool
}

var _ CameraController = &freeFlyController{}

// NewFreeFlyController creates a free-fly controller at (0, 0, -20) looking down +Z.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the controller
func NewFreeFlyController(options ...CameraControllerOption) CameraController {
	c := &freeFlyController{
		mu:               &sync.Mutex{},
		position:         mgl32.Vec3{0, 0, -20},
		moveSpeed:        10,
		sprintMultiplier: 4,
		mouseSensitivity: 5,
	}
	for _, opt := range options {
		opt(c)
	}
	c.rebuildBasis()
	return c
}

func (c *freeFlyController) Update(dt float32, input Input) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if input == nil {
		return
	}

	x, y := input.CursorPosition()
	dx, dy := x-c.lastX, y-c.lastY
	if !c.hasLast {
		dx, dy = 0, 0
	}
	c.lastX, c.lastY, c.hasLast = x, y, true

	if !input.Focused() {
		return
	}

	if input.MouseButtonDown(common.MouseButtonRight) {
		sens := c.mouseSensitivity * 0.001
		c.yaw += float32(dx) * sens
		c.pitch = clampPitch(c.pitch + float32(dy)*sens)
	}
	c.rebuildBasis()

	speed := c.moveSpeed * dt
	if input.KeyDown(common.KeyLeftShift) || input.KeyDown(common.KeyRightShift) {
		speed *= c.sprintMultiplier
	}
	if input.KeyDown(common.KeyW) {
		c.position = c.position.Add(c.forward.Mul(speed))
	}
	if input.KeyDown(common.KeyS) {
		c.position = c.position.Sub(c.forward.Mul(speed))
	}
	if input.KeyDown(common.KeyD) {
		c.position = c.position.Add(c.right.Mul(speed))
	}
	if input.KeyDown(common.KeyA) {
		c.position = c.position.Sub(c.right.Mul(speed))
	}
	if input.KeyDown(common.KeyE) {
		c.position = c.position.Add(worldUp.Mul(speed))
	}
	if input.KeyDown(common.KeyQ) {
		c.position = c.position.Sub(worldUp.Mul(speed))
	}
}

func (c *freeFlyController) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *freeFlyController) SetPosition(p mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
}

func (c *freeFlyController) Forward() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward
}

func (c *freeFlyController) Right() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.right
}

func (c *freeFlyController) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *freeFlyController) Yaw() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.yaw
}

func (c *freeFlyController) Pitch() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pitch
}

func (c *freeFlyController) SetOrientation(yaw, pitch float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yaw = yaw
	c.pitch = clampPitch(pitch)
	c.rebuildBasis()
}

// rebuildBasis derives forward, right and up from a fresh yaw-then-pitch rotation.
// Caller must hold the mutex.
func (c *freeFlyController) rebuildBasis() {
	rotation := mgl32.Rotate3DY(c.yaw).Mul3(mgl32.Rotate3DX(c.pitch))
	c.forward = rotation.Mul3x1(mgl32.Vec3{0, 0, 1}).Normalize()
	c.right = rotation.Mul3x1(mgl32.Vec3{1, 0, 0}).Normalize()
	c.up = rotation.Mul3x1(mgl32.Vec3{0, 1, 0}).Normalize()
}

func clampPitch(pitch float32) float32 {
	return mgl32.Clamp(pitch, -maxPitch, maxPitch)
}
