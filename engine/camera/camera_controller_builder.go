package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraControllerOption is a functional option for configuring a freeFlyController.
type CameraControllerOption func(*freeFlyController)

// WithStartPosition sets the initial world-space position. Defaults to (0, 0, -20).
//
// Parameters:
//   - p: the start position
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithStartPosition(p mgl32.Vec3) CameraControllerOption {
	return func(c *freeFlyController) {
		c.position = p
	}
}

// WithMoveSpeed sets the movement speed in world units per second. Defaults to 10.
//
// Parameters:
//   - speed: units per second
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithMoveSpeed(speed float32) CameraControllerOption {
	return func(c *freeFlyController) {
		c.moveSpeed = speed
	}
}

// WithSprintMultiplier sets the speed factor applied while Shift is held. Defaults to 4.
//
// Parameters:
//   - multiplier: the sprint factor
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithSprintMultiplier(multiplier float32) CameraControllerOption {
	return func(c *freeFlyController) {
		c.sprintMultiplier = multiplier
	}
}

// WithMouseSensitivity sets the look sensitivity. One unit turns 0.001 radians per pixel.
// Defaults to 5.
//
// Parameters:
//   - sensitivity: the sensitivity in thousandths of a radian per pixel
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithMouseSensitivity(sensitivity float32) CameraControllerOption {
	return func(c *freeFlyController) {
		c.mouseSensitivity = sensitivity
	}
}

// WithStartOrientation sets the initial yaw and pitch in radians.
//
// Parameters:
//   - yaw: rotation about world up
//   - pitch: rotation about the right axis, clamped
//
// Returns:
//   - CameraControllerOption: option function to apply
func WithStartOrientation(yaw, pitch float32) CameraControllerOption {
	return func(c *freeFlyController) {
		c.yaw = yaw
		c.pitch = clampPitch(pitch)
	}
}
