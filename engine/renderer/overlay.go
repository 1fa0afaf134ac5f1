package renderer

// OverlayTextureID identifies a texture referenced by overlay draw commands.
type OverlayTextureID uint64

const (
	// OverlayFontTexture is the id of the UI font atlas.
	OverlayFontTexture OverlayTextureID = 1

	// OverlayNoiseTexture is the id of the noise preview image.
	OverlayNoiseTexture OverlayTextureID = 2
)

// OverlayVertexStride is the byte size of one overlay vertex: position (2×f32), uv (2×f32), color (4×u8).
const OverlayVertexStride = 20

// OverlayCommand draws ElementCount indices of its list with a scissor rectangle.
type OverlayCommand struct {
	// ClipRect is the scissor rectangle in framebuffer pixels: min x, min y, max x, max y.
	ClipRect [4]float32

	// ElementCount is the number of indices to draw.
	ElementCount uint32

	// IndexOffset is the first index of this command within the list.
	IndexOffset uint32

	// Texture selects the texture sampled by this command.
	Texture OverlayTextureID
}

// OverlayList is one draw list: its own vertex and index data plus the commands drawing them.
type OverlayList struct {
	Vertices []byte
	Indices  []byte
	Commands []OverlayCommand
}

// OverlayFrame is the complete UI overlay for one frame in display coordinates.
type OverlayFrame struct {
	// DisplaySize is the UI display size in logical pixels.
	DisplaySize [2]float32

	// FramebufferScale converts logical pixels to framebuffer pixels.
	FramebufferScale [2]float32

	// IndexSize is the byte size of one index, 2 or 4.
	IndexSize int

	Lists []OverlayList
}

// Empty reports whether the frame contains no draw commands.
func (f OverlayFrame) Empty() bool {
	for _, l := range f.Lists {
		if len(l.Commands) > 0 {
			return false
		}
	}
	return true
}
