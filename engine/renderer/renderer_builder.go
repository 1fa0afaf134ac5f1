package renderer

// DeviceContextBuilderOption is a functional option for configuring a deviceContext.
type DeviceContextBuilderOption func(dc *deviceContext)

// WithPresentMode sets the presentation policy applied at every surface configuration.
// Defaults to PresentModeUncapped.
//
// Parameters:
//   - mode: the present mode to use
//
// Returns:
//   - DeviceContextBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) DeviceContextBuilderOption {
	return func(dc *deviceContext) {
		dc.presentMode = mode
	}
}

// WithClearColor sets the color the frame target is cleared to at BeginFrame.
// Defaults to opaque black.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - DeviceContextBuilderOption: option function to apply
func WithClearColor(c Color) DeviceContextBuilderOption {
	return func(dc *deviceContext) {
		dc.clearColor = c
	}
}
