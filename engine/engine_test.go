package engine

import (
	"testing"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/Carmen-Shannon/terraforge-go/engine/camera"
	"github.com/Carmen-Shannon/terraforge-go/engine/config"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/headless"
	"github.com/Carmen-Shannon/terraforge-go/engine/shading"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInput struct {
	focused bool
	keys    map[int]bool
	buttons map[int]bool
	x, y    float64
}

func (f *fakeInput) Focused() bool                      { return f.focused }
func (f *fakeInput) KeyDown(key int) bool               { return f.keys[key] }
func (f *fakeInput) MouseButtonDown(button int) bool    { return f.buttons[button] }
func (f *fakeInput) CursorPosition() (float64, float64) { return f.x, f.y }

type fakeWindow struct {
	width, height int
	input         *fakeInput
	update        func()
	resize        func(width, height int)
	running       bool
	closed        bool
	maxIterations int
	onIteration   func(i int)
}

func newFakeWindow(width, height int) *fakeWindow {
	return &fakeWindow{
		width:   width,
		height:  height,
		running: true,
		input: &fakeInput{
			focused: true,
			keys:    make(map[int]bool),
			buttons: make(map[int]bool),
		},
		maxIterations: 100,
	}
}

func (w *fakeWindow) SetUpdateCallback(callback func())                  { w.update = callback }
func (w *fakeWindow) SetResizeCallback(callback func(width, height int)) { w.resize = callback }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor         { return nil }
func (w *fakeWindow) Input() camera.Input                                { return w.input }
func (w *fakeWindow) TakeScroll() float32                                { return 0 }
func (w *fakeWindow) IsRunning() bool                                    { return w.running }
func (w *fakeWindow) RequestClose()                                      { w.running = false }
func (w *fakeWindow) Width() int                                         { return w.width }
func (w *fakeWindow) Height() int                                        { return w.height }
func (w *fakeWindow) ClientSize() (float32, float32) {
	return float32(w.width), float32(w.height)
}

func (w *fakeWindow) Close() error {
	w.closed = true
	w.running = false
	return nil
}

func (w *fakeWindow) ProcessMessages() {
	for i := 0; w.running && i < w.maxIterations; i++ {
		if w.onIteration != nil {
			w.onIteration(i)
		}
		if w.update != nil {
			w.update()
		}
	}
}

func (w *fakeWindow) fireResize(width, height int) {
	w.width, w.height = width, height
	w.resize(width, height)
}

// scriptedWidgets applies each scripted edit or click once.
type scriptedWidgets struct {
	floats map[string]float32
	clicks map[string]bool
}

func newScriptedWidgets() *scriptedWidgets {
	return &scriptedWidgets{
		floats: make(map[string]float32),
		clicks: make(map[string]bool),
	}
}

func (s *scriptedWidgets) Begin(string) bool                   { return true }
func (s *scriptedWidgets) End()                                {}
func (s *scriptedWidgets) Header(string, bool) bool            { return true }
func (s *scriptedWidgets) Separator()                          {}
func (s *scriptedWidgets) Text(string, ...any)                 {}
func (s *scriptedWidgets) Checkbox(string, *bool) bool         { return false }
func (s *scriptedWidgets) ColorEdit3(string, *[3]float32) bool { return false }

func (s *scriptedWidgets) Image(renderer.OverlayTextureID, float32, float32) {}

func (s *scriptedWidgets) SliderFloat(label string, v *float32, min, max float32) bool {
	x, ok := s.floats[label]
	if !ok {
		return false
	}
	delete(s.floats, label)
	*v = x
	return true
}

func (s *scriptedWidgets) SliderFloat3(string, *[3]float32, float32, float32) bool {
	return false
}

func (s *scriptedWidgets) Button(label string) bool {
	c := s.clicks[label]
	delete(s.clicks, label)
	return c
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Renderer.Backend = string(renderer.BackendTypeHeadless)
	cfg.Shaders.Dir = "../assets/shaders"
	cfg.Textures = []config.TextureConfig{{Name: "BlueNoise", Path: "../assets/textures/blue_noise.png"}}
	return cfg
}

type fixture struct {
	engine  Engine
	backend headless.Backend
	window  *fakeWindow
	widgets *scriptedWidgets
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	f := &fixture{
		backend: headless.NewBackend(),
		window:  newFakeWindow(cfg.Window.Width, cfg.Window.Height),
		widgets: newScriptedWidgets(),
	}
	e, err := NewEngine(cfg, WithBackend(f.backend), WithWindow(f.window), WithWidgets(f.widgets))
	require.NoError(t, err)
	t.Cleanup(e.Release)
	f.engine = e
	return f
}

func TestNewEngineReportsExactClientSize(t *testing.T) {
	f := newFixture(t, testConfig())

	w, h := f.engine.Device().Size()
	assert.Equal(t, float32(1280), w)
	assert.Equal(t, float32(720), h)
	require.NotEmpty(t, f.backend.Configurations())
	assert.Equal(t, headless.SurfaceConfig{Width: 1280, Height: 720, PresentMode: "uncapped"}, f.backend.Configurations()[0])

	assert.Equal(t, 1, f.engine.Baker().Bakes(), "the atlas is baked once at startup")
	assert.NotNil(t, f.engine.Cache().Get("BlueNoise"))
	assert.InDelta(t, 1280.0/720.0, f.engine.Camera().Aspect(), 1e-6)
}

func TestStepDrawsAndPresents(t *testing.T) {
	f := newFixture(t, testConfig())

	require.NoError(t, f.engine.Step(0.016))
	require.NoError(t, f.engine.Step(0.016))

	assert.Equal(t, 2, f.engine.Frames())
	assert.Equal(t, 2, f.backend.Presents())
	assert.Empty(t, f.backend.LiveTargets())
	draws := f.backend.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, "../assets/shaders/cloud.wgsl", draws[1].Pipeline)
	assert.Equal(t, map[uint32]string{0: "Frame Constants", 1: "Cloud Resources"}, draws[1].Groups)
	assert.Equal(t, 1, f.engine.Baker().Bakes(), "no re-bake without a request")
	assert.InDelta(t, 0.032, f.engine.Elapsed(), 1e-6)
}

func TestGlobalBlockFollowsCamera(t *testing.T) {
	f := newFixture(t, testConfig())
	f.window.input.keys[common.KeyW] = true

	require.NoError(t, f.engine.Step(0.5))

	cam := f.engine.Camera()
	global := f.engine.Constants().Global()
	assert.Equal(t, cam.Position(), global.CameraPos)
	assert.Equal(t, cam.Forward(), global.CameraForward)
	assert.Equal(t, float32(0.5), global.Time)
	assert.InDelta(t, -15, global.CameraPos.Z(), 1e-4, "moved forward at 10 units per second")
	assert.Equal(t, [2]float32{1280, 720}, [2]float32(global.Resolution))
}

func TestHeavyChangeUploadsAndRebakes(t *testing.T) {
	f := newFixture(t, testConfig())
	f.widgets.floats["Step Size"] = 0.3

	require.NoError(t, f.engine.Step(0.016))
	assert.Equal(t, float32(0.3), f.engine.Constants().Cloud().StepSize)
	assert.NotEqual(t, float32(0.3), f.engine.Constants().CloudBlock().StepSize, "uploaded on the next frame")
	assert.Equal(t, 1, f.engine.Baker().Bakes())

	require.NoError(t, f.engine.Step(0.016))
	assert.Equal(t, float32(0.3), f.engine.Constants().CloudBlock().StepSize)
	assert.Equal(t, 2, f.engine.Baker().Bakes())

	require.NoError(t, f.engine.Step(0.016))
	assert.Equal(t, 2, f.engine.Baker().Bakes(), "no change, no bake")
}

func TestRebakeButton(t *testing.T) {
	f := newFixture(t, testConfig())
	f.widgets.clicks["Re-Bake"] = true

	require.NoError(t, f.engine.Step(0.016))
	require.NoError(t, f.engine.Step(0.016))
	assert.Equal(t, 2, f.engine.Baker().Bakes())
	assert.Len(t, f.backend.Dispatches(), 2)
}

func TestEscapeQuits(t *testing.T) {
	f := newFixture(t, testConfig())
	require.NoError(t, f.engine.Step(0.016))

	f.window.input.keys[common.KeyEsc] = true
	require.NoError(t, f.engine.Step(0.016))
	assert.False(t, f.engine.Running())
	assert.Equal(t, 1, f.engine.Frames(), "the escape frame is not drawn")

	require.NoError(t, f.engine.Step(0.016))
	assert.Equal(t, 1, f.engine.Frames())
}

func TestEscapeIgnoredWhenUnfocused(t *testing.T) {
	f := newFixture(t, testConfig())
	f.window.input.focused = false
	f.window.input.keys[common.KeyEsc] = true

	require.NoError(t, f.engine.Step(0.016))
	assert.True(t, f.engine.Running())
}

func TestRunStopsOnEscape(t *testing.T) {
	f := newFixture(t, testConfig())
	f.window.maxIterations = 10
	f.window.onIteration = func(i int) {
		if i == 3 {
			f.window.input.keys[common.KeyEsc] = true
		}
	}

	require.NoError(t, f.engine.Run())
	assert.Equal(t, 3, f.engine.Frames())
	assert.False(t, f.window.running)
	assert.Nil(t, f.window.update, "the loop callback is cleared on exit")
}

func TestResize(t *testing.T) {
	f := newFixture(t, testConfig())

	for _, size := range [][2]int{{800, 600}, {1024, 768}, {640, 480}} {
		f.window.fireResize(size[0], size[1])
	}
	require.NoError(t, f.engine.Step(0.016))

	w, h := f.engine.Device().Size()
	assert.Equal(t, [2]float32{640, 480}, [2]float32{w, h})
	configs := f.backend.Configurations()
	assert.Equal(t, headless.SurfaceConfig{Width: 640, Height: 480, PresentMode: "uncapped"}, configs[len(configs)-1])
	assert.InDelta(t, 640.0/480.0, f.engine.Camera().Aspect(), 1e-6)
	assert.Equal(t, [2]float32{640, 480}, [2]float32(f.engine.Constants().Global().Resolution))
	assert.Empty(t, f.backend.LiveTargets())
}

func TestMinimizedSkipsFrames(t *testing.T) {
	f := newFixture(t, testConfig())
	f.window.fireResize(0, 0)

	require.NoError(t, f.engine.Step(0.016))
	assert.Equal(t, 0, f.engine.Frames())
	assert.Equal(t, 1, f.engine.Skipped())

	f.window.fireResize(320, 200)
	require.NoError(t, f.engine.Step(0.016))
	assert.Equal(t, 1, f.engine.Frames())
}

func TestSceneConfigSelectsVariant(t *testing.T) {
	cfg := testConfig()
	cfg.Scene = config.SceneConfig{Flat: true, Volumetric: true}
	f := newFixture(t, cfg)

	assert.Equal(t, shading.VariantVolumetric, f.engine.Pipeline().Mode().Variant())
	require.NoError(t, f.engine.Step(0.016))
	draws := f.backend.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "../assets/shaders/volume_sdf.wgsl", draws[0].Pipeline)
}

func TestMissingShadersDegrade(t *testing.T) {
	cfg := testConfig()
	cfg.Shaders.Dir = t.TempDir()
	f := newFixture(t, cfg)

	assert.Equal(t, 0, f.engine.Baker().Bakes())
	require.NoError(t, f.engine.Step(0.016))
	assert.Equal(t, 1, f.engine.Frames(), "the frame still clears and presents")
	assert.Empty(t, f.backend.Draws())
}

func TestNewEngineErrors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Renderer.PresentMode = "mailbox"
		_, err := NewEngine(cfg, WithBackend(headless.NewBackend()))
		assert.ErrorIs(t, err, config.ErrInvalid)
	})

	t.Run("surface configuration fails", func(t *testing.T) {
		backend := headless.NewBackend()
		backend.Fail(headless.OpConfigureSurface, assert.AnError)
		w := newFakeWindow(1280, 720)
		_, err := NewEngine(testConfig(), WithBackend(backend), WithWindow(w))
		assert.ErrorIs(t, err, assert.AnError)
		assert.True(t, w.closed)
		assert.True(t, backend.Released())
	})
}

func TestRunWithoutWindow(t *testing.T) {
	e, err := NewEngine(testConfig())
	require.NoError(t, err)
	defer e.Release()

	assert.ErrorIs(t, e.Run(), ErrNoWindow)
	require.NoError(t, e.Step(0.016))
	assert.Equal(t, 1, e.Frames())
}

func TestReleaseClosesWindow(t *testing.T) {
	backend := headless.NewBackend()
	w := newFakeWindow(640, 480)
	e, err := NewEngine(testConfig(), WithBackend(backend), WithWindow(w), WithWidgets(newScriptedWidgets()))
	require.NoError(t, err)

	e.Release()
	assert.True(t, w.closed)
	assert.True(t, backend.Released())
	assert.Zero(t, backend.LiveBindGroups())
}
