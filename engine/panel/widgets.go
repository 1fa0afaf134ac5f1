package panel

import (
	"fmt"

	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/mmp/imgui-go/v4"
)

// Widgets is the immediate-mode widget surface the panel draws through. Every editing widget
// writes through its pointer and reports whether the value changed this frame.
type Widgets interface {
	// Begin opens a window. End must be called whatever Begin returns.
	Begin(title string) bool
	End()

	// Header draws a collapsible section header and reports whether it is open. A defaultOpen
	// header starts expanded the first time it is drawn.
	Header(label string, defaultOpen bool) bool

	Separator()
	Text(format string, args ...any)
	Checkbox(label string, v *bool) bool
	SliderFloat(label string, v *float32, min, max float32) bool
	SliderFloat3(label string, v *[3]float32, min, max float32) bool
	ColorEdit3(label string, v *[3]float32) bool

	// Image draws an overlay texture at the given size in logical pixels.
	Image(id renderer.OverlayTextureID, width, height float32)

	Button(label string) bool
}

// ImGuiWidgets draws through the current imgui context.
type ImGuiWidgets struct{}

var _ Widgets = ImGuiWidgets{}

func (ImGuiWidgets) Begin(title string) bool { return imgui.Begin(title) }
func (ImGuiWidgets) End()                    { imgui.End() }
func (ImGuiWidgets) Header(label string, defaultOpen bool) bool {
	var flags imgui.TreeNodeFlags
	if defaultOpen {
		flags |= imgui.TreeNodeFlagsDefaultOpen
	}
	return imgui.CollapsingHeaderV(label, flags)
}
func (ImGuiWidgets) Separator() { imgui.Separator() }

func (ImGuiWidgets) Text(format string, args ...any) {
	imgui.Text(fmt.Sprintf(format, args...))
}

func (ImGuiWidgets) Checkbox(label string, v *bool) bool {
	return imgui.Checkbox(label, v)
}

func (ImGuiWidgets) SliderFloat(label string, v *float32, min, max float32) bool {
	return imgui.SliderFloat(label, v, min, max)
}

func (ImGuiWidgets) SliderFloat3(label string, v *[3]float32, min, max float32) bool {
	return imgui.SliderFloat3(label, v, min, max)
}

func (ImGuiWidgets) ColorEdit3(label string, v *[3]float32) bool {
	return imgui.ColorEdit3(label, v)
}

func (ImGuiWidgets) Image(id renderer.OverlayTextureID, width, height float32) {
	imgui.Image(imgui.TextureID(id), imgui.Vec2{X: width, Y: height})
}

func (ImGuiWidgets) Button(label string) bool {
	return imgui.Button(label)
}
