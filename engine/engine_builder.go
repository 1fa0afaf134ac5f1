package engine

import (
	"time"

	"github.com/Carmen-Shannon/terraforge-go/engine/panel"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables the once-per-second profiler log line.
//
// Parameters:
//   - enabled: if true, enables performance profiling output
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithWindow sets a pre-configured window rather than letting the engine create one.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithBackend sets the GPU backend, overriding the configured backend type.
//
// Parameters:
//   - b: the backend; the engine's device context takes ownership of it
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackend(b renderer.Backend) EngineBuilderOption {
	return func(e *engine) {
		e.backend = b
	}
}

// WithWidgets draws the control panel through ui instead of an imgui overlay.
//
// Parameters:
//   - ui: the widget surface
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWidgets(ui panel.Widgets) EngineBuilderOption {
	return func(e *engine) {
		e.widgets = ui
	}
}

// WithOverlay forces the imgui overlay on or off. By default it is on when the engine has a window.
//
// Parameters:
//   - enabled: whether to create the overlay
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithOverlay(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.overlayEnabled = &enabled
	}
}

// WithRenderFrameLimit sets an optional frame rate cap in frames per second.
// Pass 0 to uncap the loop (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
