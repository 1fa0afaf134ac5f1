package shading

import "github.com/Carmen-Shannon/terraforge-go/engine/renderer"

type boundGroup struct {
	index uint32
	group renderer.BindGroup
}

// FrameBindSet is the complete draw state for one frame: the variant, its pipeline and the
// bind groups it needs beyond the frame constants. It is computed fresh by Prepare and is
// never modified afterwards.
type FrameBindSet struct {
	variant  Variant
	pipeline renderer.RenderPipeline
	groups   []boundGroup
}

// Variant returns the variant the set draws.
func (s FrameBindSet) Variant() Variant {
	return s.variant
}

// Pipeline returns the render pipeline, nil for an empty set.
func (s FrameBindSet) Pipeline() renderer.RenderPipeline {
	return s.pipeline
}

// Empty reports whether applying the set draws nothing.
func (s FrameBindSet) Empty() bool {
	return s.pipeline == nil
}

// Groups returns the group indices the set binds, in bind order.
func (s FrameBindSet) Groups() []uint32 {
	out := make([]uint32, len(s.groups))
	for i, g := range s.groups {
		out[i] = g.index
	}
	return out
}
