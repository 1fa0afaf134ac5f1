package renderer

import (
	"fmt"
	"log"
	"sync"
)

// deviceContext is the implementation of the DeviceContext interface.
type deviceContext struct {
	mu *sync.Mutex

	backend Backend

	presentMode PresentMode
	clearColor  Color

	width  int
	height int
	ready  bool

	// size the surface was last configured to; width and height fall back to it when
	// a reconfiguration fails
	surfaceWidth  int
	surfaceHeight int

	// target and pass are non-nil only between BeginFrame and EndFrame.
	target RenderTarget
	pass   Pass
}

// DeviceContext is the sole owner of the presentation surface and the GPU backend.
//
// A frame is bracketed by BeginFrame and EndFrame. Exactly one surface view is held per
// present cycle, and OnResize always releases that view before the surface is reconfigured.
// Other components borrow the Backend through Backend() and never release it themselves.
type DeviceContext interface {
	// Initialize configures the presentation surface for the given client size.
	// On failure the context stays unusable and every frame call returns ErrNotInitialized.
	//
	// Parameters:
	//   - width: the surface width in pixels, must be positive
	//   - height: the surface height in pixels, must be positive
	//
	// Returns:
	//   - error: an error if the size is invalid or the surface could not be configured
	Initialize(width, height int) error

	// Ready reports whether Initialize succeeded.
	//
	// Returns:
	//   - bool: true once the surface is configured
	Ready() bool

	// BeginFrame acquires the surface view, begins a render pass that clears it to the clear
	// color, and sets the single full-surface viewport.
	//
	// Returns:
	//   - Pass: the pass to record draws into
	//   - error: ErrNotInitialized, ErrFrameInProgress, ErrSurfaceMinimized, or an acquisition error
	BeginFrame() (Pass, error)

	// EndFrame ends the pass, submits, presents, and releases the frame's surface view.
	//
	// Returns:
	//   - error: ErrNoFrame if no frame was begun, or the submission error
	EndFrame() error

	// OnResize releases any held surface view and then reconfigures the surface to the new size.
	// A zero dimension (minimized window) is recorded but leaves the surface untouched.
	// If reconfiguration fails, Size keeps reporting the size the surface still has.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the surface could not be reconfigured
	OnResize(width, height int) error

	// Size returns the current client size in pixels.
	//
	// Returns:
	//   - float32: width
	//   - float32: height
	Size() (float32, float32)

	// PresentMode returns the configured presentation policy.
	//
	// Returns:
	//   - PresentMode: the present mode used for every surface configuration
	PresentMode() PresentMode

	// Backend returns the borrowed GPU backend handle.
	//
	// Returns:
	//   - Backend: the backend owned by this context
	Backend() Backend

	// Release ends any open frame and releases the backend.
	Release()
}

var _ DeviceContext = &deviceContext{}

// NewDeviceContext creates a DeviceContext that owns backend.
//
// Parameters:
//   - backend: the GPU backend to drive
//   - options: functional options to configure the context
//
// Returns:
//   - DeviceContext: the context, not yet initialized
func NewDeviceContext(backend Backend, options ...DeviceContextBuilderOption) DeviceContext {
	dc := &deviceContext{
		mu:          &sync.Mutex{},
		backend:     backend,
		presentMode: PresentModeUncapped,
		clearColor:  Color{R: 0, G: 0, B: 0, A: 1},
	}
	for _, opt := range options {
		opt(dc)
	}
	return dc
}

func (dc *deviceContext) Initialize(width, height int) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.ready = false
	if dc.backend == nil {
		return fmt.Errorf("renderer: initialize: no backend")
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("renderer: initialize: invalid surface size %dx%d", width, height)
	}
	if err := dc.backend.ConfigureSurface(width, height, dc.presentMode); err != nil {
		return fmt.Errorf("renderer: initialize: configure surface: %w", err)
	}

	dc.width = width
	dc.height = height
	dc.surfaceWidth = width
	dc.surfaceHeight = height
	dc.ready = true
	return nil
}

func (dc *deviceContext) Ready() bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.ready
}

func (dc *deviceContext) BeginFrame() (Pass, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if !dc.ready {
		return nil, ErrNotInitialized
	}
	if dc.pass != nil {
		return nil, ErrFrameInProgress
	}
	if dc.width == 0 || dc.height == 0 {
		return nil, ErrSurfaceMinimized
	}

	target, err := dc.backend.AcquireTarget()
	if err != nil {
		return nil, fmt.Errorf("renderer: acquire surface view: %w", err)
	}

	viewport := Viewport{
		X:        0,
		Y:        0,
		Width:    float32(dc.width),
		Height:   float32(dc.height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	pass, err := dc.backend.BeginPass(target, dc.clearColor, viewport)
	if err != nil {
		dc.backend.ReleaseTarget(target)
		return nil, fmt.Errorf("renderer: begin pass: %w", err)
	}

	dc.target = target
	dc.pass = pass
	return pass, nil
}

func (dc *deviceContext) EndFrame() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.pass == nil {
		return ErrNoFrame
	}

	pass, target := dc.pass, dc.target
	dc.pass, dc.target = nil, nil

	if err := dc.backend.EndPass(pass); err != nil {
		dc.backend.ReleaseTarget(target)
		return fmt.Errorf("renderer: submit frame: %w", err)
	}
	dc.backend.Present(target)
	dc.backend.ReleaseTarget(target)
	return nil
}

func (dc *deviceContext) OnResize(width, height int) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	// the surface cannot be reconfigured while a view of it is alive
	dc.dropFrame()

	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	if !dc.ready || width == 0 || height == 0 {
		dc.width, dc.height = width, height
		return nil
	}
	if err := dc.backend.ConfigureSurface(width, height, dc.presentMode); err != nil {
		dc.width, dc.height = dc.surfaceWidth, dc.surfaceHeight
		return fmt.Errorf("renderer: resize to %dx%d: %w", width, height, err)
	}
	dc.width, dc.height = width, height
	dc.surfaceWidth, dc.surfaceHeight = width, height
	return nil
}

func (dc *deviceContext) Size() (float32, float32) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return float32(dc.width), float32(dc.height)
}

func (dc *deviceContext) PresentMode() PresentMode {
	return dc.presentMode
}

func (dc *deviceContext) Backend() Backend {
	return dc.backend
}

func (dc *deviceContext) Release() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.dropFrame()
	dc.ready = false
	if dc.backend != nil {
		dc.backend.Release()
	}
}

// dropFrame abandons an open frame without presenting it and releases its surface view.
// Callers must hold dc.mu.
func (dc *deviceContext) dropFrame() {
	if dc.pass != nil {
		if err := dc.backend.EndPass(dc.pass); err != nil {
			log.Printf("renderer: discard frame: %v", err)
		}
		dc.pass = nil
	}
	if dc.target != nil {
		dc.backend.ReleaseTarget(dc.target)
		dc.target = nil
	}
}
