package engine

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/Carmen-Shannon/terraforge-go/engine/camera"
	"github.com/Carmen-Shannon/terraforge-go/engine/config"
	"github.com/Carmen-Shannon/terraforge-go/engine/constants"
	"github.com/Carmen-Shannon/terraforge-go/engine/noise"
	"github.com/Carmen-Shannon/terraforge-go/engine/panel"
	"github.com/Carmen-Shannon/terraforge-go/engine/profiler"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/headless"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/terraforge-go/engine/resource"
	"github.com/Carmen-Shannon/terraforge-go/engine/shading"
	"github.com/Carmen-Shannon/terraforge-go/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoWindow is returned by Run when the engine was built without a window.
var ErrNoWindow = errors.New("engine: no window to run")

// Shader sources and entry points, relative to the configured shader directory.
const (
	noiseShaderFile  = "noise_baker.wgsl"
	noiseShaderEntry = "cs_bake"
	flatShaderFile   = "flat_sdf.wgsl"
	volumeShaderFile = "volume_sdf.wgsl"
	cloudShaderFile  = "cloud.wgsl"
	fragmentEntry    = "fs_main"
)

// engine implements the Engine interface.
type engine struct {
	mu *sync.Mutex

	cfg    config.Config
	window window.Window

	backend   renderer.Backend
	device    renderer.DeviceContext
	camera    camera.Camera
	cache     resource.Cache
	constants constants.FrameConstants
	baker     noise.Baker
	pipeline  shading.Pipeline

	panel          panel.Panel
	overlay        panel.Overlay
	widgets        panel.Widgets
	overlayEnabled *bool

	profiler         *profiler.Profiler
	profilingEnabled bool
	renderFrameLimit time.Duration

	elapsed float32
	frames  int
	heavy   bool
	quit    bool
	skipped int
}

// Engine wires the renderer components together and runs the frame loop.
//
// A frame is: camera update, Global block upload, escape check, cloud upload and re-bake when
// the panel reported a change, scene draw, panel overlay, present.
type Engine interface {
	// Run drives Step from the window's message loop until the window closes or Escape is pressed.
	// The time step is measured, not scheduled.
	//
	// Returns:
	//   - error: ErrNoWindow, or the first fatal frame error
	Run() error

	// Step runs exactly one frame with the given time step.
	// Transient GPU failures are logged and the frame is skipped.
	//
	// Parameters:
	//   - dt: the frame time step in seconds
	//
	// Returns:
	//   - error: a fatal error, currently only an uninitialized device context
	Step(dt float32) error

	// Quit asks Run to stop after the current frame.
	Quit()

	// Running reports whether Quit has not been requested.
	Running() bool

	// Frames returns the number of frames presented.
	Frames() int

	// Skipped returns the number of frames skipped because the surface was minimized or
	// could not be acquired.
	Skipped() int

	// Elapsed returns the accumulated time in seconds.
	Elapsed() float32

	Device() renderer.DeviceContext
	Camera() camera.Camera
	Constants() constants.FrameConstants
	Baker() noise.Baker
	Pipeline() shading.Pipeline
	Cache() resource.Cache
	Panel() panel.Panel

	// Release releases every GPU object and closes the window.
	Release()
}

var _ Engine = &engine{}

// NewEngine builds every component from cfg. The backend is cfg.Renderer.Backend unless one is
// supplied with WithBackend; the wgpu backend creates a window when none is supplied.
// Shader, texture and GPU resource failures are logged and degrade the affected feature.
//
// Parameters:
//   - cfg: the startup configuration
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine, ready to Run or Step
//   - error: an error if the window, backend or device context could not be initialized
func NewEngine(cfg config.Config, options ...EngineBuilderOption) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &engine{
		mu:  &sync.Mutex{},
		cfg: cfg,
	}
	for _, opt := range options {
		opt(e)
	}

	if err := e.initDevice(); err != nil {
		return nil, err
	}

	programs, noiseProgram := e.compilePrograms()

	e.cache = resource.NewCache(e.backend)
	for _, t := range cfg.Textures {
		if err := e.cache.Load(t.Name, t.Path); err != nil {
			log.Printf("engine: load texture: %v", err)
		}
	}

	e.constants = constants.NewFrameConstants(e.backend, constants.WithCloudParams(cfg.CloudParams()))

	baker, err := noise.NewBaker(e.backend, noiseProgram, noise.WithWorkers(cfg.Noise.Workers))
	if err != nil {
		e.Release()
		return nil, fmt.Errorf("engine: create noise baker: %w", err)
	}
	e.baker = baker
	if err := e.baker.Bake(); err != nil {
		log.Printf("engine: initial bake: %v", err)
	}

	e.pipeline, err = shading.NewPipeline(e.backend, programs, e.constants, e.baker, e.cache,
		shading.WithSceneMode(shading.SceneMode{
			Flat:       cfg.Scene.Flat,
			Volumetric: cfg.Scene.Volumetric,
			Cloud:      cfg.Scene.Cloud,
		}))
	if err != nil {
		e.Release()
		return nil, fmt.Errorf("engine: create shading pipeline: %w", err)
	}

	width, height := e.device.Size()
	cc := cfg.Camera
	e.camera = camera.NewCamera(
		camera.WithFov(cc.Fov),
		camera.WithClipPlanes(cc.Near, cc.Far),
		camera.WithAspect(width/height),
		camera.WithController(camera.NewFreeFlyController(
			camera.WithStartPosition(mgl32.Vec3(cc.Position)),
			camera.WithMoveSpeed(cc.MoveSpeed),
			camera.WithSprintMultiplier(cc.Sprint),
			camera.WithMouseSensitivity(cc.Sensitivity),
		)),
	)

	e.panel = panel.NewPanel(e.constants, e.pipeline, e.baker)
	e.initOverlay()

	logf := func(string, ...any) {}
	if e.profilingEnabled {
		logf = log.Printf
	}
	e.profiler = profiler.NewProfiler(profiler.WithLogger(logf))

	if e.window != nil {
		e.window.SetResizeCallback(e.onResize)
	}
	return e, nil
}

// initDevice creates the window and backend when they were not supplied and initializes the
// device context at the framebuffer size.
func (e *engine) initDevice() error {
	if e.backend == nil {
		switch renderer.BackendType(e.cfg.Renderer.Backend) {
		case renderer.BackendTypeHeadless:
			e.backend = headless.NewBackend()
		default:
			if e.window == nil {
				w, err := window.NewWindow(
					window.WithTitle(e.cfg.Window.Title),
					window.WithSize(e.cfg.Window.Width, e.cfg.Window.Height),
				)
				if err != nil {
					return err
				}
				e.window = w
			}
			backend, err := renderer.NewWGPUBackend(e.window.SurfaceDescriptor(),
				renderer.WithForceFallbackAdapter(e.cfg.Renderer.ForceFallbackAdapter))
			if err != nil {
				e.closeWindow()
				return fmt.Errorf("engine: create backend: %w", err)
			}
			e.backend = backend
		}
	}

	e.device = renderer.NewDeviceContext(e.backend,
		renderer.WithPresentMode(e.cfg.PresentMode()),
		renderer.WithClearColor(e.cfg.ClearColor()),
	)
	width, height := e.cfg.Window.Width, e.cfg.Window.Height
	if e.window != nil {
		width, height = e.window.Width(), e.window.Height()
	}
	if err := e.device.Initialize(width, height); err != nil {
		e.device.Release()
		e.closeWindow()
		return fmt.Errorf("engine: initialize device context: %w", err)
	}
	return nil
}

// compilePrograms compiles every shader. A failed program is logged and left nil.
func (e *engine) compilePrograms() (shading.Programs, shader.Program) {
	compiler := shader.NewCompiler()
	compile := func(file, entry string) shader.Program {
		path := filepath.Join(e.cfg.Shaders.Dir, file)
		p, err := compiler.Compile(path, entry, e.cfg.Shaders.Profile)
		if err != nil {
			log.Printf("engine: %v", err)
			return nil
		}
		return p
	}

	programs := shading.Programs{
		Flat:       compile(flatShaderFile, fragmentEntry),
		Volumetric: compile(volumeShaderFile, fragmentEntry),
		Cloud:      compile(cloudShaderFile, fragmentEntry),
	}
	return programs, compile(noiseShaderFile, noiseShaderEntry)
}

// initOverlay creates the imgui overlay unless widgets were supplied or it was disabled.
// It is on by default only when there is a window to show it in.
func (e *engine) initOverlay() {
	enabled := e.window != nil
	if e.overlayEnabled != nil {
		enabled = *e.overlayEnabled
	}
	if e.widgets != nil || !enabled {
		return
	}

	overlay, err := panel.NewOverlay(e.backend, e.cache)
	if err != nil {
		log.Printf("engine: overlay disabled: %v", err)
		return
	}
	if tex := e.baker.Texture(); tex != nil {
		if err := e.backend.SetOverlayTexture(renderer.OverlayNoiseTexture, tex); err != nil {
			log.Printf("engine: register noise preview: %v", err)
		}
	}
	e.overlay = overlay
	e.widgets = panel.ImGuiWidgets{}
}

func (e *engine) onResize(width, height int) {
	if err := e.device.OnResize(width, height); err != nil {
		log.Printf("engine: %v", err)
	}
	if width > 0 && height > 0 {
		e.camera.SetAspect(float32(width) / float32(height))
	}
}

func (e *engine) Run() error {
	if e.window == nil {
		return ErrNoWindow
	}

	var runErr error
	last := time.Now()
	e.window.SetUpdateCallback(func() {
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		if err := e.Step(dt); err != nil {
			runErr = err
			e.Quit()
		}
		if !e.Running() {
			e.window.RequestClose()
			return
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	})
	e.window.ProcessMessages()
	e.window.SetUpdateCallback(nil)
	return runErr
}

func (e *engine) Step(dt float32) error {
	if !e.Running() {
		return nil
	}
	e.elapsed += dt

	input := e.input()
	if e.overlay != nil && e.overlay.WantsMouse() {
		input = uiCapturedInput{Input: input}
	}
	e.camera.Update(dt, input)

	width, height := e.device.Size()
	e.constants.UpdateGlobal(e.camera, e.elapsed, dt, width, height)

	if input.Focused() && input.KeyDown(common.KeyEsc) {
		e.Quit()
		return nil
	}

	e.applyPanelChanges()

	pass, err := e.device.BeginFrame()
	switch {
	case errors.Is(err, renderer.ErrNotInitialized):
		return err
	case errors.Is(err, renderer.ErrSurfaceMinimized):
		e.skipped++
		return nil
	case err != nil:
		log.Printf("engine: begin frame: %v", err)
		e.skipped++
		return nil
	}

	set := e.pipeline.Prepare()
	e.constants.Bind(pass)
	e.pipeline.Render(pass, set)

	e.drawPanel(pass, dt)

	if err := e.device.EndFrame(); err != nil {
		log.Printf("engine: end frame: %v", err)
		return nil
	}
	e.frames++
	e.profiler.Tick()
	return nil
}

// applyPanelChanges uploads the cloud block and re-bakes after the panel reported a change,
// and re-bakes on an explicit request.
func (e *engine) applyPanelChanges() {
	rebake := e.panel.RebakeRequested()
	if e.heavy {
		e.constants.UpdateCloud()
		e.heavy = false
		rebake = true
	}
	if rebake {
		if err := e.baker.Bake(); err != nil {
			log.Printf("engine: re-bake: %v", err)
		}
	}
}

func (e *engine) drawPanel(pass renderer.Pass, dt float32) {
	if e.widgets == nil {
		return
	}
	stats := panel.Stats{
		Time:      e.elapsed,
		FPS:       e.profiler.FPS(),
		CameraPos: e.camera.Position(),
		Bakes:     e.baker.Bakes(),
	}

	if e.overlay == nil {
		e.heavy = e.panel.Draw(e.widgets, stats) || e.heavy
		return
	}

	e.overlay.NewFrame(e.overlayInput(dt))
	e.heavy = e.panel.Draw(e.widgets, stats) || e.heavy
	if frame := e.overlay.Render(); !frame.Empty() {
		if err := pass.DrawOverlay(frame); err != nil {
			log.Printf("engine: draw overlay: %v", err)
		}
	}
}

func (e *engine) input() camera.Input {
	if e.window == nil {
		return idleInput{}
	}
	return e.window.Input()
}

func (e *engine) overlayInput(dt float32) panel.Input {
	fbWidth, fbHeight := e.device.Size()
	in := panel.Input{
		DisplaySize:     [2]float32{fbWidth, fbHeight},
		FramebufferSize: [2]float32{fbWidth, fbHeight},
		Delta:           dt,
	}
	if e.window == nil {
		return in
	}
	cw, ch := e.window.ClientSize()
	if cw > 0 && ch > 0 {
		in.DisplaySize = [2]float32{cw, ch}
	}
	raw := e.window.Input()
	x, y := raw.CursorPosition()
	in.Cursor = [2]float32{float32(x), float32(y)}
	in.Buttons = [3]bool{
		raw.MouseButtonDown(common.MouseButtonLeft),
		raw.MouseButtonDown(common.MouseButtonRight),
		raw.MouseButtonDown(common.MouseButtonMiddle),
	}
	in.Wheel = e.window.TakeScroll()
	return in
}

func (e *engine) Quit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quit = true
}

func (e *engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.quit
}

func (e *engine) Frames() int                         { return e.frames }
func (e *engine) Skipped() int                        { return e.skipped }
func (e *engine) Elapsed() float32                    { return e.elapsed }
func (e *engine) Device() renderer.DeviceContext      { return e.device }
func (e *engine) Camera() camera.Camera               { return e.camera }
func (e *engine) Constants() constants.FrameConstants { return e.constants }
func (e *engine) Baker() noise.Baker                  { return e.baker }
func (e *engine) Pipeline() shading.Pipeline          { return e.pipeline }
func (e *engine) Cache() resource.Cache               { return e.cache }
func (e *engine) Panel() panel.Panel                  { return e.panel }

func (e *engine) Release() {
	if e.overlay != nil {
		e.overlay.Release()
		e.overlay = nil
	}
	if e.pipeline != nil {
		e.pipeline.Release()
	}
	if e.baker != nil {
		e.baker.Release()
	}
	if e.constants != nil {
		e.constants.Release()
	}
	if e.cache != nil {
		e.cache.Release()
	}
	if e.device != nil {
		e.device.Release()
	}
	e.closeWindow()
}

func (e *engine) closeWindow() {
	if e.window == nil {
		return
	}
	if err := e.window.Close(); err != nil {
		log.Printf("engine: close window: %v", err)
	}
	e.window = nil
}

// idleInput is the input of an engine without a window.
type idleInput struct{}

func (idleInput) Focused() bool                      { return false }
func (idleInput) KeyDown(int) bool                   { return false }
func (idleInput) MouseButtonDown(int) bool           { return false }
func (idleInput) CursorPosition() (float64, float64) { return 0, 0 }

// uiCapturedInput hides mouse buttons from the camera while the overlay owns the mouse.
type uiCapturedInput struct {
	camera.Input
}

func (uiCapturedInput) MouseButtonDown(int) bool { return false }
