package panel

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/resource"
	"github.com/mmp/imgui-go/v4"
)

// FontTextureName is the resource cache name of the imgui font atlas.
const FontTextureName = "ImGuiFont"

// Input is the window state fed to imgui at the start of a frame.
type Input struct {
	// DisplaySize is the window client size in logical pixels.
	DisplaySize [2]float32

	// FramebufferSize is the surface size in pixels.
	FramebufferSize [2]float32

	Delta  float32
	Cursor [2]float32

	// Buttons holds left, right and middle mouse button state.
	Buttons [3]bool
	Wheel   float32
}

type overlay struct {
	context *imgui.Context
	io      imgui.IO
	display [2]float32
	scale   [2]float32
}

// Overlay owns the imgui context and turns its draw data into renderer overlay frames.
type Overlay interface {
	// NewFrame starts an imgui frame with the given window state.
	//
	// Parameters:
	//   - in: the window state for this frame
	NewFrame(in Input)

	// Render finishes the imgui frame and converts its draw data.
	//
	// Returns:
	//   - renderer.OverlayFrame: the overlay to draw, empty when imgui produced nothing
	Render() renderer.OverlayFrame

	// WantsMouse reports whether imgui is using the mouse, so the camera should ignore it.
	//
	// Returns:
	//   - bool: true when the cursor is over a UI window or a widget is active
	WantsMouse() bool

	// Release destroys the imgui context.
	Release()
}

var _ Overlay = &overlay{}

// NewOverlay creates the imgui context, uploads its font atlas through cache and registers it
// with the backend as renderer.OverlayFontTexture.
//
// Parameters:
//   - backend: the backend overlay textures are registered with
//   - cache: the cache the font atlas is loaded into
//
// Returns:
//   - Overlay: the overlay
//   - error: an error if the font atlas could not be uploaded
func NewOverlay(backend renderer.Backend, cache resource.Cache) (Overlay, error) {
	ctx := imgui.CreateContext(nil)
	io := imgui.CurrentIO()
	io.SetIniFilename("")

	fonts := io.Fonts()
	atlas := fonts.TextureDataRGBA32()
	size := atlas.Width * atlas.Height * 4
	img := &image.RGBA{
		Pix:    append([]byte(nil), unsafe.Slice((*byte)(atlas.Pixels), size)...),
		Stride: atlas.Width * 4,
		Rect:   image.Rect(0, 0, atlas.Width, atlas.Height),
	}
	if err := cache.LoadImage(FontTextureName, img); err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("panel: upload font atlas: %w", err)
	}
	if err := backend.SetOverlayTexture(renderer.OverlayFontTexture, cache.Get(FontTextureName)); err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("panel: register font atlas: %w", err)
	}
	fonts.SetTextureID(imgui.TextureID(renderer.OverlayFontTexture))

	return &overlay{
		context: ctx,
		io:      io,
		scale:   [2]float32{1, 1},
	}, nil
}

func (o *overlay) NewFrame(in Input) {
	o.display = in.DisplaySize
	o.io.SetDisplaySize(imgui.Vec2{X: in.DisplaySize[0], Y: in.DisplaySize[1]})
	o.scale = [2]float32{1, 1}
	if in.DisplaySize[0] > 0 && in.DisplaySize[1] > 0 {
		o.scale = [2]float32{
			in.FramebufferSize[0] / in.DisplaySize[0],
			in.FramebufferSize[1] / in.DisplaySize[1],
		}
	}
	if in.Delta > 0 {
		o.io.SetDeltaTime(in.Delta)
	}
	o.io.SetMousePosition(imgui.Vec2{X: in.Cursor[0], Y: in.Cursor[1]})
	for i, down := range in.Buttons {
		o.io.SetMouseButtonDown(i, down)
	}
	if in.Wheel != 0 {
		o.io.AddMouseWheelDelta(0, in.Wheel)
	}
	imgui.NewFrame()
}

func (o *overlay) Render() renderer.OverlayFrame {
	imgui.Render()
	data := imgui.RenderedDrawData()
	frame := renderer.OverlayFrame{
		DisplaySize:      o.display,
		FramebufferScale: o.scale,
		IndexSize:        imgui.IndexBufferLayout(),
	}
	if !data.Valid() {
		return frame
	}

	stride, posOffset, uvOffset, colOffset := imgui.VertexBufferLayout()
	for _, list := range data.CommandLists() {
		vtxPtr, vtxSize := list.VertexBuffer()
		idxPtr, idxSize := list.IndexBuffer()
		out := renderer.OverlayList{
			Vertices: repackVertices(unsafe.Slice((*byte)(vtxPtr), vtxSize), stride, posOffset, uvOffset, colOffset),
			Indices:  append([]byte(nil), unsafe.Slice((*byte)(idxPtr), idxSize)...),
		}

		var offset uint32
		for _, cmd := range list.Commands() {
			count := uint32(cmd.ElementCount())
			clip := cmd.ClipRect()
			out.Commands = append(out.Commands, renderer.OverlayCommand{
				ClipRect: [4]float32{
					clip.X * o.scale[0], clip.Y * o.scale[1],
					clip.Z * o.scale[0], clip.W * o.scale[1],
				},
				ElementCount: count,
				IndexOffset:  offset,
				Texture:      renderer.OverlayTextureID(cmd.TextureID()),
			})
			offset += count
		}
		frame.Lists = append(frame.Lists, out)
	}
	return frame
}

func (o *overlay) WantsMouse() bool {
	return o.io.WantCaptureMouse()
}

func (o *overlay) Release() {
	if o.context != nil {
		o.context.Destroy()
		o.context = nil
	}
}

// repackVertices copies imgui vertices into the renderer's fixed layout of position, uv and
// packed color.
func repackVertices(src []byte, stride, posOffset, uvOffset, colOffset int) []byte {
	if stride <= 0 {
		return nil
	}
	n := len(src) / stride
	dst := make([]byte, n*renderer.OverlayVertexStride)
	for i := range n {
		v := src[i*stride:]
		d := dst[i*renderer.OverlayVertexStride:]
		copy(d[0:8], v[posOffset:posOffset+8])
		copy(d[8:16], v[uvOffset:uvOffset+8])
		copy(d[16:20], v[colOffset:colOffset+4])
	}
	return dst
}
