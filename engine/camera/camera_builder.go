package camera

// CameraBuilderOption is a functional option for configuring a cameraImpl.
type CameraBuilderOption func(*cameraImpl)

// WithFov sets the vertical field of view in degrees.
//
// Parameters:
//   - degrees: the field of view
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithFov(degrees float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = degrees
	}
}

// WithAspect sets the initial aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithClipPlanes sets the near and far clipping distances.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithClipPlanes(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
		c.far = far
	}
}

// WithController attaches a controller in place of the default free-fly controller.
//
// Parameters:
//   - controller: the controller
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithController(controller CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = controller
	}
}
