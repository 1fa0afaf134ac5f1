package panel

import (
	"testing"

	"github.com/Carmen-Shannon/terraforge-go/engine/constants"
	"github.com/Carmen-Shannon/terraforge-go/engine/noise"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/headless"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/terraforge-go/engine/resource"
	"github.com/Carmen-Shannon/terraforge-go/engine/shading"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWidgets applies scripted edits to the widgets whose labels it knows and records every label drawn.
type fakeWidgets struct {
	closed      map[string]bool
	defaultOpen map[string]bool
	edits       map[string]func(v any)
	clicks      map[string]bool

	labels []string
	images []renderer.OverlayTextureID
	begins int
	ends   int
}

func newFakeWidgets() *fakeWidgets {
	return &fakeWidgets{
		closed:      make(map[string]bool),
		defaultOpen: make(map[string]bool),
		edits:       make(map[string]func(v any)),
		clicks:      make(map[string]bool),
	}
}

func (f *fakeWidgets) edit(label string, v any) bool {
	f.labels = append(f.labels, label)
	if e, ok := f.edits[label]; ok {
		e(v)
		return true
	}
	return false
}

func (f *fakeWidgets) Begin(title string) bool {
	f.begins++
	f.labels = append(f.labels, title)
	return !f.closed[title]
}
func (f *fakeWidgets) End() { f.ends++ }
func (f *fakeWidgets) Header(label string, defaultOpen bool) bool {
	f.labels = append(f.labels, label)
	f.defaultOpen[label] = defaultOpen
	return !f.closed[label]
}
func (f *fakeWidgets) Separator()                      {}
func (f *fakeWidgets) Text(format string, args ...any) {}
func (f *fakeWidgets) Checkbox(label string, v *bool) bool {
	return f.edit(label, v)
}
func (f *fakeWidgets) SliderFloat(label string, v *float32, min, max float32) bool {
	return f.edit(label, v)
}
func (f *fakeWidgets) SliderFloat3(label string, v *[3]float32, min, max float32) bool {
	return f.edit(label, v)
}
func (f *fakeWidgets) ColorEdit3(label string, v *[3]float32) bool {
	return f.edit(label, v)
}
func (f *fakeWidgets) Image(id renderer.OverlayTextureID, width, height float32) {
	f.images = append(f.images, id)
}
func (f *fakeWidgets) Button(label string) bool {
	f.labels = append(f.labels, label)
	return f.clicks[label]
}

type fakePipeline struct {
	mode shading.SceneMode
}

func (p *fakePipeline) Mode() *shading.SceneMode                   { return &p.mode }
func (p *fakePipeline) Prepare() shading.FrameBindSet              { return shading.FrameBindSet{} }
func (p *fakePipeline) Render(renderer.Pass, shading.FrameBindSet) {}
func (p *fakePipeline) Available(shading.Variant) bool             { return true }
func (p *fakePipeline) Release()                                   {}

type fixture struct {
	constants constants.FrameConstants
	pipeline  *fakePipeline
	baker     noise.Baker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := headless.NewBackend()
	program, err := shader.Compile("../../assets/shaders/noise_baker.wgsl", "cs_bake", shader.ProfileWGSL)
	require.NoError(t, err)
	baker, err := noise.NewBaker(backend, program, noise.WithSize(8))
	require.NoError(t, err)
	t.Cleanup(baker.Release)

	return &fixture{
		constants: constants.NewFrameConstants(backend),
		pipeline:  &fakePipeline{},
		baker:     baker,
	}
}

func (f *fixture) panel(options ...PanelBuilderOption) Panel {
	return NewPanel(f.constants, f.pipeline, f.baker, options...)
}

func setFloat(x float32) func(v any) {
	return func(v any) { *v.(*float32) = x }
}

func setVec(x [3]float32) func(v any) {
	return func(v any) { *v.(*[3]float32) = x }
}

func TestDrawWithoutEditsIsNotHeavy(t *testing.T) {
	f := newFixture(t)
	ui := newFakeWidgets()
	before := *f.constants.Cloud()

	assert.False(t, f.panel().Draw(ui, Stats{FPS: 60}))
	assert.Equal(t, before, *f.constants.Cloud())
	assert.Equal(t, ui.begins, ui.ends)
	assert.Equal(t, 2, ui.begins)
	assert.Equal(t, []renderer.OverlayTextureID{renderer.OverlayNoiseTexture}, ui.images)
	for _, label := range []string{
		"TerraForge", "Scene", "Step Size", "Cloud Scale", "Coverage", "Shape Strength",
		"Detail Strength", "Density", "Sun Direction", "Sun Intensity", "Sun Color",
		"Absorption", "Fog Density", "Fog Color", "Noise Preview", "Re-Bake",
	} {
		assert.Contains(t, ui.labels, label)
	}
}

func TestHeavyEdits(t *testing.T) {
	tests := []struct {
		name  string
		label string
		edit  func(v any)
		check func(t *testing.T, c *constants.CloudParams)
	}{
		{"step size", "Step Size", setFloat(0.25), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(0.25), c.StepSize) }},
		{"cloud scale", "Cloud Scale", setFloat(3), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(3), c.CloudScale) }},
		{"coverage", "Coverage", setFloat(0.6), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(0.6), c.Coverage) }},
		{"shape", "Shape Strength", setFloat(1.5), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(1.5), c.ShapeStrength) }},
		{"detail", "Detail Strength", setFloat(0.8), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(0.8), c.DetailStrength) }},
		{"density", "Density", setFloat(2), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(2), c.DensityMultiplier) }},
		{"sun intensity", "Sun Intensity", setFloat(7), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(7), c.SunIntensity) }},
		{"absorption", "Absorption", setFloat(0.9), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(0.9), c.Absorption) }},
		{"fog density", "Fog Density", setFloat(0.2), func(t *testing.T, c *constants.CloudParams) { assert.Equal(t, float32(0.2), c.FogDensity) }},
		{"sun color", "Sun Color", setVec([3]float32{1, 0, 0}), func(t *testing.T, c *constants.CloudParams) {
			assert.Equal(t, mgl32.Vec3{1, 0, 0}, c.SunColor)
		}},
		{"fog color", "Fog Color", setVec([3]float32{0, 0, 1}), func(t *testing.T, c *constants.CloudParams) {
			assert.Equal(t, mgl32.Vec3{0, 0, 1}, c.FogColor)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ui := newFakeWidgets()
			ui.edits[tt.label] = tt.edit

			assert.True(t, f.panel().Draw(ui, Stats{}))
			tt.check(t, f.constants.Cloud())
		})
	}
}

func TestLaterWidgetsDrawnAfterChange(t *testing.T) {
	f := newFixture(t)
	ui := newFakeWidgets()
	ui.edits["Step Size"] = setFloat(0.2)
	ui.edits["Fog Density"] = setFloat(0.3)

	assert.True(t, f.panel().Draw(ui, Stats{}))
	assert.Equal(t, float32(0.2), f.constants.Cloud().StepSize)
	assert.Equal(t, float32(0.3), f.constants.Cloud().FogDensity)
}

func TestSunDirectionRenormalized(t *testing.T) {
	tests := []struct {
		name string
		raw  [3]float32
		want mgl32.Vec3
	}{
		{"axis", [3]float32{0, -1, 0}, mgl32.Vec3{0, -1, 0}},
		{"scaled", [3]float32{0.3, 0, 0.4}, mgl32.Vec3{0.6, 0, 0.8}},
		{"zero falls back", [3]float32{0, 0, 0}, constants.DefaultSunDir.Normalize()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ui := newFakeWidgets()
			ui.edits["Sun Direction"] = setVec(tt.raw)

			assert.True(t, f.panel().Draw(ui, Stats{}))
			got := f.constants.Cloud().SunDir
			assert.InDelta(t, 1, got.Len(), 1e-5)
			assert.True(t, got.ApproxEqualThreshold(tt.want, 1e-5), "got %v want %v", got, tt.want)

			f.constants.UpdateCloud()
			assert.InDelta(t, 1, f.constants.CloudBlock().SunDir.Len(), 1e-5)
		})
	}
}

func TestSceneFlagsAreNotHeavy(t *testing.T) {
	f := newFixture(t)
	ui := newFakeWidgets()
	ui.edits["Flat SDF"] = func(v any) { *v.(*bool) = true }
	ui.edits["Volumetric SDF"] = func(v any) { *v.(*bool) = true }

	assert.False(t, f.panel().Draw(ui, Stats{}))
	assert.True(t, f.pipeline.mode.Flat)
	assert.True(t, f.pipeline.mode.Volumetric)
	assert.Equal(t, shading.VariantVolumetric, f.pipeline.mode.Variant())
}

func TestHeadersDefaultOpen(t *testing.T) {
	f := newFixture(t)
	ui := newFakeWidgets()
	f.panel().Draw(ui, Stats{})

	tests := []struct {
		header string
		open   bool
	}{
		{header: "Scene", open: false},
		{header: "Cloud & Atmosphere", open: true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			open, drawn := ui.defaultOpen[tt.header]
			require.True(t, drawn)
			assert.Equal(t, tt.open, open)
		})
	}
}

func TestClosedSectionsEditNothing(t *testing.T) {
	f := newFixture(t)
	ui := newFakeWidgets()
	ui.closed["Cloud & Atmosphere"] = true
	ui.edits["Step Size"] = setFloat(0.4)

	assert.False(t, f.panel().Draw(ui, Stats{}))
	assert.NotContains(t, ui.labels, "Step Size")
	assert.Equal(t, constants.DefaultCloudParams().StepSize, f.constants.Cloud().StepSize)
}

func TestClosedWindowStillEnded(t *testing.T) {
	f := newFixture(t)
	ui := newFakeWidgets()
	ui.closed["Settings"] = true
	ui.edits["Step Size"] = setFloat(0.4)

	assert.False(t, f.panel(WithTitle("Settings")).Draw(ui, Stats{}))
	assert.Equal(t, ui.begins, ui.ends)
	assert.NotContains(t, ui.labels, "Step Size")
}

func TestRebakeLatched(t *testing.T) {
	f := newFixture(t)
	p := f.panel()
	ui := newFakeWidgets()

	assert.False(t, p.Draw(ui, Stats{}))
	assert.False(t, p.RebakeRequested())

	ui.clicks["Re-Bake"] = true
	assert.False(t, p.Draw(ui, Stats{}), "re-bake is not a parameter change")
	ui.clicks["Re-Bake"] = false
	assert.False(t, p.Draw(ui, Stats{}))

	assert.True(t, p.RebakeRequested())
	assert.False(t, p.RebakeRequested())
}

func TestNilCollaborators(t *testing.T) {
	ui := newFakeWidgets()
	p := NewPanel(nil, nil, nil)

	assert.NotPanics(t, func() { assert.False(t, p.Draw(ui, Stats{})) })
	assert.Equal(t, 1, ui.begins)
	assert.Equal(t, 1, ui.ends)
	assert.Empty(t, ui.images)
}

func TestRepackVertices(t *testing.T) {
	// 24-byte source vertices: color first, then 4 bytes padding, then uv, then position.
	src := make([]byte, 48)
	for i := range 2 {
		v := src[i*24:]
		copy(v[0:4], []byte{1, 2, 3, byte(i)})
		for j := range 8 {
			v[8+j] = byte(10 + j)
			v[16+j] = byte(20 + j)
		}
	}

	out := repackVertices(src, 24, 16, 8, 0)
	require.Len(t, out, 2*renderer.OverlayVertexStride)
	second := out[renderer.OverlayVertexStride:]
	assert.Equal(t, []byte{20, 21, 22, 23, 24, 25, 26, 27}, second[0:8])
	assert.Equal(t, []byte{10, 11, 12, 13, 14, 15, 16, 17}, second[8:16])
	assert.Equal(t, []byte{1, 2, 3, 1}, second[16:20])
	assert.Nil(t, repackVertices(src, 0, 0, 0, 0))
}

func TestOverlayProducesFontFrame(t *testing.T) {
	backend := headless.NewBackend()
	cache := resource.NewCache(backend)
	o, err := NewOverlay(backend, cache)
	require.NoError(t, err)
	defer o.Release()

	assert.NotNil(t, cache.Get(FontTextureName))
	assert.NotNil(t, backend.OverlayTexture(renderer.OverlayFontTexture))

	o.NewFrame(Input{
		DisplaySize:     [2]float32{640, 480},
		FramebufferSize: [2]float32{1280, 960},
		Delta:           1.0 / 60,
	})
	ui := ImGuiWidgets{}
	ui.Begin("Test")
	ui.Text("Hello %d", 42)
	ui.End()
	frame := o.Render()

	assert.Equal(t, [2]float32{640, 480}, frame.DisplaySize)
	assert.Equal(t, [2]float32{2, 2}, frame.FramebufferScale)
	assert.Contains(t, []int{2, 4}, frame.IndexSize)
	require.False(t, frame.Empty())
	for _, list := range frame.Lists {
		assert.Zero(t, len(list.Vertices)%renderer.OverlayVertexStride)
		var total uint32
		for _, cmd := range list.Commands {
			assert.Equal(t, renderer.OverlayFontTexture, cmd.Texture)
			assert.Equal(t, total, cmd.IndexOffset)
			total += cmd.ElementCount
		}
		assert.Equal(t, int(total)*frame.IndexSize, len(list.Indices))
	}
}
