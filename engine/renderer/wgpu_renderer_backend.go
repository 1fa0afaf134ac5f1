package renderer

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuRendererBackendImpl is the WebGPU implementation of Backend.
type wgpuRendererBackendImpl struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	configured    bool

	overlay *wgpuOverlay
}

var _ Backend = &wgpuRendererBackendImpl{}

// wgpu handle wrappers

type wgpuBuffer struct {
	label string
	size  uint64
	buf   *wgpu.Buffer
}

func (b *wgpuBuffer) Label() string { return b.label }
func (b *wgpuBuffer) Size() uint64  { return b.size }
func (b *wgpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

type wgpuTexture struct {
	label  string
	width  uint32
	height uint32
	format wgpu.TextureFormat
	tex    *wgpu.Texture
	view   *wgpu.TextureView
}

func (t *wgpuTexture) Label() string              { return t.label }
func (t *wgpuTexture) Width() uint32              { return t.width }
func (t *wgpuTexture) Height() uint32             { return t.height }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.format }
func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type wgpuSampler struct {
	label   string
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Label() string { return s.label }
func (s *wgpuSampler) Release() {
	if s.sampler != nil {
		s.sampler.Release()
		s.sampler = nil
	}
}

type wgpuTarget struct {
	width   uint32
	height  uint32
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func (t *wgpuTarget) Width() uint32  { return t.width }
func (t *wgpuTarget) Height() uint32 { return t.height }

type wgpuLayout struct {
	desc   wgpu.BindGroupLayoutDescriptor
	layout *wgpu.BindGroupLayout
}

func (l *wgpuLayout) Descriptor() wgpu.BindGroupLayoutDescriptor { return l.desc }

// wgpuPipelineLayout holds the bind group layouts and the pipeline layout shared by render and
// compute pipelines.
type wgpuPipelineLayout struct {
	layouts        map[int]*wgpuLayout
	pipelineLayout *wgpu.PipelineLayout
}

func (p *wgpuPipelineLayout) BindGroupLayout(group int) BindGroupLayout {
	l, ok := p.layouts[group]
	if !ok {
		return nil
	}
	return l
}

func (p *wgpuPipelineLayout) release() {
	for _, l := range p.layouts {
		l.layout.Release()
	}
	p.layouts = nil
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
}

type wgpuRenderPipeline struct {
	wgpuPipelineLayout
	label    string
	pipeline *wgpu.RenderPipeline
}

func (p *wgpuRenderPipeline) Label() string { return p.label }
func (p *wgpuRenderPipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	p.release()
}

type wgpuComputePipeline struct {
	wgpuPipelineLayout
	label         string
	workgroupSize [3]uint32
	pipeline      *wgpu.ComputePipeline
}

func (p *wgpuComputePipeline) Label() string            { return p.label }
func (p *wgpuComputePipeline) WorkgroupSize() [3]uint32 { return p.workgroupSize }
func (p *wgpuComputePipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	p.release()
}

type wgpuBindGroup struct {
	label string
	group *wgpu.BindGroup
}

func (g *wgpuBindGroup) Label() string { return g.label }
func (g *wgpuBindGroup) Release() {
	if g.group != nil {
		g.group.Release()
		g.group = nil
	}
}

// wgpuPass is the frame's render pass plus the transient buffers it references.
type wgpuPass struct {
	backend *wgpuRendererBackendImpl
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder
	target  *wgpuTarget

	// transient holds per-frame buffers that must outlive submission.
	transient []*wgpu.Buffer
}

func (p *wgpuPass) SetPipeline(rp RenderPipeline) {
	if w, ok := rp.(*wgpuRenderPipeline); ok && w.pipeline != nil {
		p.pass.SetPipeline(w.pipeline)
	}
}

func (p *wgpuPass) SetBindGroup(index uint32, g BindGroup) {
	if w, ok := g.(*wgpuBindGroup); ok && w.group != nil {
		p.pass.SetBindGroup(index, w.group, nil)
	}
}

func (p *wgpuPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *wgpuPass) DrawOverlay(frame OverlayFrame) error {
	return p.backend.drawOverlay(p, frame)
}

// NewWGPUBackend creates the WebGPU instance, surface, adapter, device and queue.
// Unlike the pipeline objects, failure here is fatal to startup and is returned to the caller.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor from the window
//   - options: functional options to configure the backend
//
// Returns:
//   - Backend: the ready backend (surface not yet configured)
//   - error: an error if any creation step fails; nothing is retained on failure
func NewWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...WGPUBackendOption) (Backend, error) {
	if surfaceDescriptor == nil {
		return nil, errors.New("renderer: wgpu: nil surface descriptor")
	}

	cfg := wgpuBackendConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	b := &wgpuRendererBackendImpl{
		mu: &sync.Mutex{},
	}

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(surfaceDescriptor)
	if b.surface == nil {
		b.Release()
		return nil, errors.New("renderer: wgpu: create surface failed")
	}

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("renderer: wgpu: request adapter: %w", err)
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "TerraForge Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("renderer: wgpu: request device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	return b, nil
}

func (b *wgpuRendererBackendImpl) Type() BackendType {
	return BackendTypeWGPU
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int, mode PresentMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		return errors.New("surface reports no supported formats")
	}
	b.surfaceFormat = capabilities.Formats[0]

	presentMode := wgpu.PresentModeImmediate
	if mode == PresentModeVSync {
		presentMode = wgpu.PresentModeFifo
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.configured = true
	return nil
}

func (b *wgpuRendererBackendImpl) AcquireTarget() (RenderTarget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.configured {
		return nil, errors.New("surface not configured")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, err
	}
	return &wgpuTarget{
		width:   surfaceTexture.GetWidth(),
		height:  surfaceTexture.GetHeight(),
		texture: surfaceTexture,
		view:    view,
	}, nil
}

func (b *wgpuRendererBackendImpl) ReleaseTarget(target RenderTarget) {
	t, ok := target.(*wgpuTarget)
	if !ok || t == nil {
		return
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

func (b *wgpuRendererBackendImpl) BeginPass(target RenderTarget, clear Color, viewport Viewport) (Pass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := target.(*wgpuTarget)
	if !ok || t.view == nil {
		return nil, errors.New("invalid render target")
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Frame Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    t.view,
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: wgpu.StoreOpStore,
				ClearValue: wgpu.Color{
					R: clear.R, G: clear.G, B: clear.B, A: clear.A,
				},
			},
		},
	})
	pass.SetViewport(viewport.X, viewport.Y, viewport.Width, viewport.Height, viewport.MinDepth, viewport.MaxDepth)

	return &wgpuPass{
		backend: b,
		encoder: encoder,
		pass:    pass,
		target:  t,
	}, nil
}

func (b *wgpuRendererBackendImpl) EndPass(pass Pass) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := pass.(*wgpuPass)
	if !ok || p.encoder == nil {
		return errors.New("invalid pass")
	}
	defer func() {
		for _, buf := range p.transient {
			buf.Release()
		}
		p.transient = nil
		p.encoder.Release()
		p.encoder = nil
	}()

	p.pass.End()
	p.pass.Release()

	commandBuffer, err := p.encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Present(target RenderTarget) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := target.(*wgpuTarget); !ok || t.texture == nil {
		return
	}
	b.surface.Present()
}

func (b *wgpuRendererBackendImpl) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{label: desc.Label, size: desc.Size, buf: buf}, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := buf.(*wgpuBuffer)
	if !ok || w.buf == nil {
		return errors.New("write to released or foreign buffer")
	}
	if offset+uint64(len(data)) > w.size {
		return fmt.Errorf("write of %d bytes at %d overflows %q (%d bytes)", len(data), offset, w.label, w.size)
	}
	return b.queue.WriteBuffer(w.buf, offset, data)
}

func (b *wgpuRendererBackendImpl) ReadBuffer(buf Buffer) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := buf.(*wgpuBuffer)
	if !ok || w.buf == nil {
		return nil, errors.New("read from released or foreign buffer")
	}

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: w.label + " Readback",
		Size:  w.size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(w.buf, 0, staging, 0, w.size)
	if err := b.submit(encoder); err != nil {
		return nil, err
	}
	return b.mapRead(staging, w.size)
}

func (b *wgpuRendererBackendImpl) CreateTexture(desc TextureDescriptor) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     desc.Label,
		Usage:     desc.Usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        desc.Format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTexture{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		tex:    tex,
		view:   view,
	}, nil
}

func (b *wgpuRendererBackendImpl) WriteTexture(tex Texture, pixels []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := tex.(*wgpuTexture)
	if !ok || t.tex == nil {
		return errors.New("write to released or foreign texture")
	}
	bpp := BytesPerTexel(t.format)
	if bpp == 0 {
		return fmt.Errorf("unsupported texture format %v", t.format)
	}
	if want := int(t.width * t.height * bpp); len(pixels) != want {
		return fmt.Errorf("texture %q expects %d bytes, got %d", t.label, want, len(pixels))
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  t.width * bpp,
			RowsPerImage: t.height,
		},
		&wgpu.Extent3D{
			Width:              t.width,
			Height:             t.height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuRendererBackendImpl) ReadTexture(tex Texture) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := tex.(*wgpuTexture)
	if !ok || t.tex == nil {
		return nil, errors.New("read from released or foreign texture")
	}
	bpp := BytesPerTexel(t.format)
	if bpp == 0 {
		return nil, fmt.Errorf("unsupported texture format %v", t.format)
	}

	// copies into buffers require 256-byte aligned rows
	rowBytes := t.width * bpp
	paddedRow := (rowBytes + 255) &^ 255
	size := uint64(paddedRow) * uint64(t.height)

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: t.label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  paddedRow,
				RowsPerImage: t.height,
			},
		},
		&wgpu.Extent3D{
			Width:              t.width,
			Height:             t.height,
			DepthOrArrayLayers: 1,
		},
	)
	if err := b.submit(encoder); err != nil {
		return nil, err
	}

	padded, err := b.mapRead(staging, size)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, rowBytes*t.height)
	for y := uint32(0); y < t.height; y++ {
		start := y * paddedRow
		out = append(out, padded[start:start+rowBytes]...)
	}
	return out, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(desc SamplerDescriptor) (Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := desc.SamplerStagingData
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  s.AddressModeU,
		AddressModeV:  s.AddressModeV,
		AddressModeW:  s.AddressModeW,
		MagFilter:     s.MagFilter,
		MinFilter:     s.MinFilter,
		MipmapFilter:  s.MipmapFilter,
		LodMinClamp:   s.LodMinClamp,
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{label: desc.Label, sampler: samp}, nil
}

func (b *wgpuRendererBackendImpl) CreateRenderPipeline(desc RenderPipelineDescriptor) (RenderPipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.configured {
		return nil, errors.New("render pipelines need a configured surface format")
	}

	module, err := b.device.CreateShaderModule(desc.Module)
	if err != nil {
		return nil, fmt.Errorf("shader module %q: %w", desc.Label, err)
	}
	defer module.Release()

	layout, err := b.createPipelineLayout(desc.Label, desc.Layouts)
	if err != nil {
		return nil, err
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: layout.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		layout.release()
		return nil, fmt.Errorf("render pipeline %q: %w", desc.Label, err)
	}
	return &wgpuRenderPipeline{wgpuPipelineLayout: *layout, label: desc.Label, pipeline: created}, nil
}

func (b *wgpuRendererBackendImpl) CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	module, err := b.device.CreateShaderModule(desc.Module)
	if err != nil {
		return nil, fmt.Errorf("shader module %q: %w", desc.Label, err)
	}
	defer module.Release()

	layout, err := b.createPipelineLayout(desc.Label, desc.Layouts)
	if err != nil {
		return nil, err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label + " Compute Pipeline",
		Layout: layout.pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		layout.release()
		return nil, fmt.Errorf("compute pipeline %q: %w", desc.Label, err)
	}
	return &wgpuComputePipeline{
		wgpuPipelineLayout: *layout,
		label:              desc.Label,
		workgroupSize:      desc.WorkgroupSize,
		pipeline:           created,
	}, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if desc.Pipeline == nil {
		return nil, errors.New("bind group needs a pipeline layout")
	}
	l, ok := desc.Pipeline.BindGroupLayout(desc.Group).(*wgpuLayout)
	if !ok || l == nil {
		return nil, fmt.Errorf("pipeline has no layout for group %d", desc.Group)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf, ok := e.Buffer.(*wgpuBuffer)
			if !ok || buf.buf == nil {
				return nil, fmt.Errorf("binding %d: released or foreign buffer", e.Binding)
			}
			entry.Buffer = buf.buf
			entry.Offset = 0
			entry.Size = wgpu.WholeSize
		case e.Texture != nil:
			tex, ok := e.Texture.(*wgpuTexture)
			if !ok || tex.view == nil {
				return nil, fmt.Errorf("binding %d: released or foreign texture", e.Binding)
			}
			entry.TextureView = tex.view
		case e.Sampler != nil:
			samp, ok := e.Sampler.(*wgpuSampler)
			if !ok || samp.sampler == nil {
				return nil, fmt.Errorf("binding %d: released or foreign sampler", e.Binding)
			}
			entry.Sampler = samp.sampler
		default:
			return nil, fmt.Errorf("binding %d: no resource", e.Binding)
		}
		entries = append(entries, entry)
	}

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  l.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{label: desc.Label, group: group}, nil
}

func (b *wgpuRendererBackendImpl) Dispatch(p ComputePipeline, groups []BindGroup, x, y, z uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp, ok := p.(*wgpuComputePipeline)
	if !ok || cp.pipeline == nil {
		return errors.New("dispatch on released or foreign pipeline")
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(cp.pipeline)
	for i, g := range groups {
		wg, ok := g.(*wgpuBindGroup)
		if !ok || wg.group == nil {
			pass.End()
			pass.Release()
			encoder.Release()
			return fmt.Errorf("dispatch: group %d released or foreign", i)
		}
		pass.SetBindGroup(uint32(i), wg.group, nil)
	}
	pass.DispatchWorkgroups(x, y, z)
	pass.End()
	pass.Release()

	return b.submit(encoder)
}

func (b *wgpuRendererBackendImpl) SetOverlayTexture(id OverlayTextureID, tex Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.overlay == nil {
		overlay, err := newWGPUOverlay(b.device, b.surfaceFormat)
		if err != nil {
			return err
		}
		b.overlay = overlay
	}
	t, ok := tex.(*wgpuTexture)
	if !ok || t.view == nil {
		return errors.New("overlay texture released or foreign")
	}
	return b.overlay.setTexture(id, t.view)
}

func (b *wgpuRendererBackendImpl) drawOverlay(p *wgpuPass, frame OverlayFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.overlay == nil || frame.Empty() {
		return nil
	}
	buffers, err := b.overlay.draw(b.queue, p.pass, frame, p.target.width, p.target.height)
	p.transient = append(p.transient, buffers...)
	return err
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.overlay != nil {
		b.overlay.release()
		b.overlay = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
	b.configured = false
}

// createPipelineLayout creates bind group layouts for every group index up to the highest one
// declared; gaps get an empty layout so group indices stay stable. Callers must hold b.mu.
func (b *wgpuRendererBackendImpl) createPipelineLayout(label string, descriptors map[int]wgpu.BindGroupLayoutDescriptor) (*wgpuPipelineLayout, error) {
	groups := make([]int, 0, len(descriptors))
	for g := range descriptors {
		groups = append(groups, g)
	}
	sort.Ints(groups)
	maxGroup := -1
	if len(groups) > 0 {
		maxGroup = groups[len(groups)-1]
	}

	result := &wgpuPipelineLayout{layouts: make(map[int]*wgpuLayout, len(groups))}
	ordered := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		desc := descriptors[g]
		desc.Label = fmt.Sprintf("%s Group %d", label, g)
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			result.release()
			return nil, fmt.Errorf("bind group layout %d of %q: %w", g, label, err)
		}
		result.layouts[g] = &wgpuLayout{desc: desc, layout: layout}
		ordered[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: ordered,
	})
	if err != nil {
		result.release()
		return nil, fmt.Errorf("pipeline layout %q: %w", label, err)
	}
	result.pipelineLayout = pipelineLayout
	return result, nil
}

// submit finishes encoder and submits it. Callers must hold b.mu.
func (b *wgpuRendererBackendImpl) submit(encoder *wgpu.CommandEncoder) error {
	defer encoder.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

// mapRead maps a MapRead buffer and blocks on the device until the mapping resolves.
// Callers must hold b.mu.
func (b *wgpuRendererBackendImpl) mapRead(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	var status wgpu.BufferMapAsyncStatus
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		log.Printf("renderer: map read failed with status %v", status)
		return nil, fmt.Errorf("map read: status %v", status)
	}

	mapped := buf.GetMappedRange(0, uint(size))
	out := make([]byte, len(mapped))
	copy(out, mapped)
	buf.Unmap()
	return out, nil
}
