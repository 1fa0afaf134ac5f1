package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// BackendType identifies the GPU backend implementation used by the DeviceContext.
type BackendType string

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU BackendType = "wgpu"

	// BackendTypeHeadless selects the in-memory backend that records GPU work without a device.
	BackendTypeHeadless BackendType = "headless"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// String returns the config spelling of the present mode.
func (m PresentMode) String() string {
	if m == PresentModeVSync {
		return "vsync"
	}
	return "uncapped"
}

var (
	// ErrNotInitialized is returned when a frame operation is attempted before Initialize succeeded.
	ErrNotInitialized = errors.New("renderer: device context not initialized")

	// ErrFrameInProgress is returned by BeginFrame when the previous frame was never ended.
	ErrFrameInProgress = errors.New("renderer: frame already in progress")

	// ErrNoFrame is returned by EndFrame when no frame was begun.
	ErrNoFrame = errors.New("renderer: no frame in progress")

	// ErrSurfaceMinimized is returned by BeginFrame while the surface has a zero dimension.
	ErrSurfaceMinimized = errors.New("renderer: surface minimized")
)

// Color is a linear RGBA color used for clears.
type Color struct {
	R, G, B, A float64
}

// Viewport is the rectangle and depth range rasterization maps to.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Buffer is a GPU buffer handle owned by the backend that created it.
type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

// Texture is a 2D GPU texture handle. The backend keeps a default view alive for the
// texture's lifetime which is used for both sampled and storage bindings.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	Format() wgpu.TextureFormat
	Release()
}

// Sampler is a GPU sampler handle.
type Sampler interface {
	Label() string
	Release()
}

// RenderTarget is the view of the presentation surface acquired for a single frame.
type RenderTarget interface {
	Width() uint32
	Height() uint32
}

// BindGroupLayout is an opaque layout handle owned by a pipeline.
type BindGroupLayout interface {
	Descriptor() wgpu.BindGroupLayoutDescriptor
}

// LayoutProvider exposes the bind group layouts a pipeline was created with.
type LayoutProvider interface {
	// BindGroupLayout returns the layout for group, or nil if the pipeline does not use that group.
	BindGroupLayout(group int) BindGroupLayout
}

// RenderPipeline is a compiled render pipeline handle.
type RenderPipeline interface {
	LayoutProvider
	Label() string
	Release()
}

// ComputePipeline is a compiled compute pipeline handle.
type ComputePipeline interface {
	LayoutProvider
	Label() string
	WorkgroupSize() [3]uint32
	Release()
}

// BindGroup is a set of resources bound together against a BindGroupLayout.
type BindGroup interface {
	Label() string
	Release()
}

// Pass records draw commands into the current frame's render pass.
type Pass interface {
	// SetPipeline sets the render pipeline used by subsequent draws.
	SetPipeline(p RenderPipeline)

	// SetBindGroup binds g at the given group index for subsequent draws.
	SetBindGroup(index uint32, g BindGroup)

	// Draw issues a non-indexed draw with no vertex buffers bound.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawOverlay draws a UI overlay on top of everything recorded so far.
	DrawOverlay(frame OverlayFrame) error
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage wgpu.BufferUsage
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format wgpu.TextureFormat
	Usage  wgpu.TextureUsage
}

// SamplerDescriptor describes a sampler to create. Filter and address modes are used as given;
// a zero LodMaxClamp becomes 32 and a zero MaxAnisotropy becomes 1.
type SamplerDescriptor struct {
	Label string
	common.SamplerStagingData
}

// RenderPipelineDescriptor describes a full-screen render pipeline: triangle-list topology,
// no culling, no vertex buffers, and a single color target in the surface format.
type RenderPipelineDescriptor struct {
	Label         string
	Module        *wgpu.ShaderModuleDescriptor
	VertexEntry   string
	FragmentEntry string
	Layouts       map[int]wgpu.BindGroupLayoutDescriptor
}

// HostKernel fills a storage texture on the CPU. Backends without a GPU run it in place of
// the compute shader; dst is tightly packed in the texture's format.
type HostKernel func(dst []byte, width, height uint32)

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label         string
	Module        *wgpu.ShaderModuleDescriptor
	EntryPoint    string
	Layouts       map[int]wgpu.BindGroupLayoutDescriptor
	WorkgroupSize [3]uint32
	HostFallback  HostKernel
}

// BindGroupEntry binds one resource. Exactly one of Buffer, Texture or Sampler is set;
// whether a texture is bound sampled or as storage is decided by the layout entry.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
	Texture Texture
	Sampler Sampler
}

// BindGroupDescriptor describes a bind group created against one group of a pipeline's layout.
type BindGroupDescriptor struct {
	Label    string
	Pipeline LayoutProvider
	Group    int
	Entries  []BindGroupEntry
}

// Backend is the GPU API the DeviceContext and every GPU-owning component issue work through.
// It is used from a single thread.
type Backend interface {
	// Type reports which implementation this is.
	Type() BackendType

	// ConfigureSurface (re)configures the presentation surface. Any acquired RenderTarget must be
	// released before calling this.
	ConfigureSurface(width, height int, mode PresentMode) error

	// AcquireTarget acquires the current surface texture and creates a view of it.
	AcquireTarget() (RenderTarget, error)

	// ReleaseTarget releases a view previously returned by AcquireTarget. Safe to call once per target.
	ReleaseTarget(target RenderTarget)

	// BeginPass begins the frame's render pass on target, clearing it and setting the viewport.
	BeginPass(target RenderTarget, clear Color, viewport Viewport) (Pass, error)

	// EndPass ends the pass and submits the recorded commands.
	EndPass(pass Pass) error

	// Present presents target to the display.
	Present(target RenderTarget)

	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// WriteBuffer stages data for buf at offset without waiting on in-flight GPU use.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// ReadBuffer copies the buffer's contents back to the CPU, blocking until they are available.
	// The frame loop never reads back; this is for tests and offline inspection of uploads.
	ReadBuffer(buf Buffer) ([]byte, error)

	CreateTexture(desc TextureDescriptor) (Texture, error)

	// WriteTexture uploads tightly packed pixels covering the whole texture.
	WriteTexture(tex Texture, pixels []byte) error

	// ReadTexture copies the texture back to the CPU as tightly packed rows. It blocks like
	// ReadBuffer and backs the noise atlas snapshot.
	ReadTexture(tex Texture) ([]byte, error)

	CreateSampler(desc SamplerDescriptor) (Sampler, error)

	CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error)

	CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)

	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)

	// Dispatch records and submits a single compute pass.
	Dispatch(p ComputePipeline, groups []BindGroup, x, y, z uint32) error

	// SetOverlayTexture associates an overlay texture id with a texture for DrawOverlay.
	SetOverlayTexture(id OverlayTextureID, tex Texture) error

	// Release destroys the device and every backend-owned object.
	Release()
}

// BytesPerTexel returns the texel size of the formats the engine creates, or 0 for others.
//
// Parameters:
//   - format: the texture format
//
// Returns:
//   - uint32: bytes per texel
func BytesPerTexel(format wgpu.TextureFormat) uint32 {
	switch format {
	case wgpu.TextureFormatR8Unorm:
		return 1
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb,
		wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatR32Float:
		return 4
	case wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRG32Float:
		return 8
	case wgpu.TextureFormatRGBA32Float:
		return 16
	}
	return 0
}
