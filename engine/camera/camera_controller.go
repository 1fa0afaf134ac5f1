package camera

import "github.com/go-gl/mathgl/mgl32"

// Input is the per-frame input snapshot the controller reads. Key and button codes are the
// values in package common.
type Input interface {
	// Focused reports whether the window currently has input focus.
	Focused() bool

	// KeyDown reports whether the key is held.
	KeyDown(key int) bool

	// MouseButtonDown reports whether the mouse button is held.
	MouseButtonDown(button int) bool

	// CursorPosition returns the cursor position in window pixels.
	CursorPosition() (x, y float64)
}

// CameraController owns the camera's position and orientation and advances them from input.
// The basis is rebuilt from yaw and pitch on every update, never integrated.
type CameraController interface {
	// Update applies one frame of mouse look and keyboard movement.
	// All input is ignored while the window is unfocused, but the cursor position is still
	// recorded so that regaining focus does not produce a jump.
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

	// SetPosition moves the camera without changing its orientation.
	//
	// Parameters:
	//   - p: the new world-space position
	SetPosition(p mgl32.Vec3)

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

	// Up returns the unit up direction of the camera basis.
	//
	// Returns:
	//   - mgl32.Vec3: the up basis vector
	Up() mgl32.Vec3

	// Yaw returns the rotation about world up in radians.
	Yaw() float32

	// Pitch returns the rotation about the camera's right axis in radians.
	Pitch() float32

	// SetOrientation sets yaw and pitch in radians. Pitch is clamped.
	//
	// Parameters:
	//   - yaw: rotation about world up
	//   - pitch: rotation about the right axis
	SetOrientation(yaw, pitch float32)
}
