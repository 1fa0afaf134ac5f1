// Package panel is the live parameter editing surface drawn over the scene.
package panel

import (
	"sync"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/Carmen-Shannon/terraforge-go/engine/constants"
	"github.com/Carmen-Shannon/terraforge-go/engine/noise"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/shading"
	"github.com/go-gl/mathgl/mgl32"
)

// Stats are the read-only figures shown at the top of the panel.
type Stats struct {
	Time      float32
	FPS       float32
	CameraPos mgl32.Vec3
	Bakes     int
}

type panel struct {
	mu *sync.Mutex

	constants constants.FrameConstants
	pipeline  shading.Pipeline
	baker     noise.Baker

	title        string
	previewTitle string
	previewSize  float32

	rebake bool
}

// Panel edits the cloud parameters and scene flags in place.
type Panel interface {
	// Draw draws the settings and noise preview windows.
	//
	// Parameters:
	//   - ui: the widget surface
	//   - stats: the figures shown in the stats section
	//
	// Returns:
	//   - bool: true when any cloud parameter changed this frame
	Draw(ui Widgets, stats Stats) bool

	// RebakeRequested reports whether Re-Bake was clicked since the last call, and clears the request.
	//
	// Returns:
	//   - bool: true if a re-bake is pending
	RebakeRequested() bool
}

var _ Panel = &panel{}

// NewPanel creates a panel over the given components. Any of them may be nil; the sections
// editing a nil component are skipped.
//
// Parameters:
//   - fc: the frame constants whose cloud parameters are edited
//   - pipeline: the shading pipeline whose scene flags are edited
//   - baker: the noise baker shown in the preview
//   - options: functional options to configure the panel
//
// Returns:
//   - Panel: the panel
func NewPanel(fc constants.FrameConstants, pipeline shading.Pipeline, baker noise.Baker, options ...PanelBuilderOption) Panel {
	p := &panel{
		mu:           &sync.Mutex{},
		constants:    fc,
		pipeline:     pipeline,
		baker:        baker,
		title:        "TerraForge",
		previewTitle: "Noise Preview",
		previewSize:  float32(noise.Size),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *panel) Draw(ui Widgets, stats Stats) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	heavy := false
	if ui.Begin(p.title) {
		ui.Text("Time: %.2f s", stats.Time)
		ui.Text("Average FPS: %.1f", stats.FPS)
		if stats.FPS > 0 {
			ui.Text("Frame Time: %.3f ms/frame", 1000/stats.FPS)
		}
		ui.Text("Camera: %.1f, %.1f, %.1f", stats.CameraPos.X(), stats.CameraPos.Y(), stats.CameraPos.Z())
		ui.Text("Noise Bakes: %d", stats.Bakes)

		if p.pipeline != nil && ui.Header("Scene", false) {
			mode := p.pipeline.Mode()
			ui.Checkbox("Flat SDF", &mode.Flat)
			ui.Checkbox("Volumetric SDF", &mode.Volumetric)
			ui.Checkbox("Cloud", &mode.Cloud)
		}

		if p.constants != nil && ui.Header("Cloud & Atmosphere", true) {
			heavy = p.drawCloud(ui)
		}
	}
	ui.End()

	if p.baker != nil && p.baker.Texture() != nil {
		if ui.Begin(p.previewTitle) {
			ui.Image(renderer.OverlayNoiseTexture, p.previewSize, p.previewSize)
			if ui.Button("Re-Bake") {
				p.rebake = true
			}
		}
		ui.End()
	}
	return heavy
}

// drawCloud draws every cloud tunable. Each widget is drawn even after an earlier one changed.
func (p *panel) drawCloud(ui Widgets) bool {
	c := p.constants.Cloud()
	changed := false

	ui.Text("Performance")
	changed = ui.SliderFloat("Step Size", &c.StepSize, 0.01, 0.5) || changed
	ui.Separator()

	ui.Text("Cloud Shape")
	changed = ui.SliderFloat("Cloud Scale", &c.CloudScale, 0.1, 5) || changed
	changed = ui.SliderFloat("Coverage", &c.Coverage, 0, 1) || changed
	changed = ui.SliderFloat("Shape Strength", &c.ShapeStrength, 0, 2) || changed
	changed = ui.SliderFloat("Detail Strength", &c.DetailStrength, 0, 2) || changed
	changed = ui.SliderFloat("Density", &c.DensityMultiplier, 0, 4) || changed
	ui.Separator()

	ui.Text("Sun Lighting")
	if ui.SliderFloat3("Sun Direction", (*[3]float32)(&c.SunDir), -1, 1) {
		c.SunDir = common.NormalizeOr(c.SunDir, constants.DefaultSunDir)
		changed = true
	}
	changed = ui.SliderFloat("Sun Intensity", &c.SunIntensity, 0, 10) || changed
	changed = ui.ColorEdit3("Sun Color", (*[3]float32)(&c.SunColor)) || changed
	changed = ui.SliderFloat("Absorption", &c.Absorption, 0, 1) || changed
	ui.Separator()

	ui.Text("Atmosphere")
	changed = ui.SliderFloat("Fog Density", &c.FogDensity, 0, 0.5) || changed
	changed = ui.ColorEdit3("Fog Color", (*[3]float32)(&c.FogColor)) || changed
	return changed
}

func (p *panel) RebakeRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.rebake
	p.rebake = false
	return r
}
