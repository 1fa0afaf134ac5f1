package headless

import (
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// Op names a backend operation that can be made to fail.
type Op string

const (
	OpConfigureSurface      Op = "configure_surface"
	OpAcquireTarget         Op = "acquire_target"
	OpCreateBuffer          Op = "create_buffer"
	OpWriteBuffer           Op = "write_buffer"
	OpCreateTexture         Op = "create_texture"
	OpWriteTexture          Op = "write_texture"
	OpCreateSampler         Op = "create_sampler"
	OpCreateRenderPipeline  Op = "create_render_pipeline"
	OpCreateComputePipeline Op = "create_compute_pipeline"
	OpCreateBindGroup       Op = "create_bind_group"
	OpDispatch              Op = "dispatch"
)

// SurfaceConfig is one recorded surface configuration.
type SurfaceConfig struct {
	Width, Height int
	PresentMode   string
}

// TargetInfo describes a live frame target.
type TargetInfo struct {
	ID            int
	Width, Height uint32
}

// DrawCall is one recorded draw with the state bound when it was issued.
type DrawCall struct {
	Pipeline      string
	Groups        map[uint32]string
	VertexCount   uint32
	InstanceCount uint32
}

// DispatchCall is one recorded compute dispatch.
type DispatchCall struct {
	Pipeline string
	X, Y, Z  uint32
}

type buffer struct {
	id       int
	label    string
	data     []byte
	usage    wgpu.BufferUsage
	released bool
}

func (b *buffer) Label() string { return b.label }
func (b *buffer) Size() uint64  { return uint64(len(b.data)) }
func (b *buffer) Release()      { b.released = true }

type texture struct {
	id       int
	label    string
	width    uint32
	height   uint32
	format   wgpu.TextureFormat
	usage    wgpu.TextureUsage
	data     []byte
	released bool
}

func (t *texture) Label() string              { return t.label }
func (t *texture) Width() uint32              { return t.width }
func (t *texture) Height() uint32             { return t.height }
func (t *texture) Format() wgpu.TextureFormat { return t.format }
func (t *texture) Release()                   { t.released = true }

type sampler struct {
	label    string
	released bool
}

func (s *sampler) Label() string { return s.label }
func (s *sampler) Release()      { s.released = true }

type target struct {
	id       int
	width    uint32
	height   uint32
	released bool
}

func (t *target) Width() uint32  { return t.width }
func (t *target) Height() uint32 { return t.height }

type layout struct {
	desc wgpu.BindGroupLayoutDescriptor
}

func (l *layout) Descriptor() wgpu.BindGroupLayoutDescriptor { return l.desc }

func lookupLayout(layouts map[int]*layout, group int) renderer.BindGroupLayout {
	if l, ok := layouts[group]; ok {
		return l
	}
	return nil
}

type renderPipeline struct {
	label    string
	layouts  map[int]*layout
	released bool
}

func (p *renderPipeline) Label() string { return p.label }
func (p *renderPipeline) Release()      { p.released = true }
func (p *renderPipeline) BindGroupLayout(group int) renderer.BindGroupLayout {
	return lookupLayout(p.layouts, group)
}

type computePipeline struct {
	label         string
	layouts       map[int]*layout
	workgroupSize [3]uint32
	fallback      renderer.HostKernel
	released      bool
}

func (p *computePipeline) Label() string            { return p.label }
func (p *computePipeline) Release()                 { p.released = true }
func (p *computePipeline) WorkgroupSize() [3]uint32 { return p.workgroupSize }
func (p *computePipeline) BindGroupLayout(group int) renderer.BindGroupLayout {
	return lookupLayout(p.layouts, group)
}

type bindGroup struct {
	label    string
	storage  []*texture
	textures []*texture
	buffers  []*buffer
	released bool
}

func (g *bindGroup) Label() string { return g.label }
func (g *bindGroup) Release()      { g.released = true }
