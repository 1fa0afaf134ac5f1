// Package headless implements renderer.Backend in memory. Buffers and textures hold real
// bytes, compute dispatches run their host fallback kernel, and every surface, target, draw
// and dispatch is recorded for inspection. It backs tests and -headless runs.
package headless

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrReleased is returned when a released handle is used.
var ErrReleased = errors.New("headless: handle released")

type backendImpl struct {
	mu *sync.Mutex

	failures map[Op]error

	configured    bool
	width, height int
	mode          renderer.PresentMode

	nextID   int
	targets  map[int]*target
	groups   []*bindGroup
	overlays map[renderer.OverlayTextureID]*texture

	configurations []SurfaceConfig
	draws          []DrawCall
	dispatches     []DispatchCall
	overlayFrames  int
	presents       int
	released       bool
}

// Backend is the in-memory renderer.Backend plus its inspection surface.
type Backend interface {
	renderer.Backend

	// Fail makes op return err until Fail(op, nil) clears it.
	//
	// Parameters:
	//   - op: the operation to fail
	//   - err: the error to return, nil to clear
	Fail(op Op, err error)

	// Configurations returns every surface configuration in order.
	Configurations() []SurfaceConfig

	// LiveTargets returns the frame targets acquired and not yet released.
	LiveTargets() []TargetInfo

	// Draws returns every recorded draw in order.
	Draws() []DrawCall

	// Dispatches returns every recorded compute dispatch in order.
	Dispatches() []DispatchCall

	// Presents returns how many frames were presented.
	Presents() int

	// OverlayFrames returns how many non-empty overlays were drawn.
	OverlayFrames() int

	// LiveBindGroups returns the number of bind groups not yet released.
	LiveBindGroups() int

	// StorageBindings returns how many live bind groups bind tex as a storage texture.
	//
	// Parameters:
	//   - tex: a texture created by this backend
	//
	// Returns:
	//   - int: the number of live storage bindings
	StorageBindings(tex renderer.Texture) int

	// OverlayTexture returns the texture registered for an overlay id.
	OverlayTexture(id renderer.OverlayTextureID) renderer.Texture

	// Released reports whether Release was called.
	Released() bool
}

var _ Backend = &backendImpl{}

// NewBackend creates an empty in-memory backend.
//
// Returns:
//   - Backend: the backend
func NewBackend() Backend {
	return &backendImpl{
		mu:       &sync.Mutex{},
		failures: make(map[Op]error),
		targets:  make(map[int]*target),
		overlays: make(map[renderer.OverlayTextureID]*texture),
	}
}

func (b *backendImpl) Type() renderer.BackendType {
	return renderer.BackendTypeHeadless
}

func (b *backendImpl) Fail(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// failure returns the injected error for op. Caller must hold b.mu.
func (b *backendImpl) failure(op Op) error {
	return b.failures[op]
}

func (b *backendImpl) id() int {
	b.nextID++
	return b.nextID
}

func (b *backendImpl) ConfigureSurface(width, height int, mode renderer.PresentMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpConfigureSurface); err != nil {
		return err
	}
	if len(b.targets) > 0 {
		return fmt.Errorf("headless: configure with %d live target view(s)", len(b.targets))
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("headless: invalid surface size %dx%d", width, height)
	}
	b.configured = true
	b.width, b.height, b.mode = width, height, mode
	b.configurations = append(b.configurations, SurfaceConfig{Width: width, Height: height, PresentMode: mode.String()})
	return nil
}

func (b *backendImpl) AcquireTarget() (renderer.RenderTarget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpAcquireTarget); err != nil {
		return nil, err
	}
	if !b.configured {
		return nil, errors.New("headless: surface not configured")
	}
	t := &target{id: b.id(), width: uint32(b.width), height: uint32(b.height)}
	b.targets[t.id] = t
	return t, nil
}

func (b *backendImpl) ReleaseTarget(rt renderer.RenderTarget) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := rt.(*target)
	if !ok || t.released {
		return
	}
	t.released = true
	delete(b.targets, t.id)
}

func (b *backendImpl) BeginPass(rt renderer.RenderTarget, _ renderer.Color, _ renderer.Viewport) (renderer.Pass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := rt.(*target)
	if !ok || t.released {
		return nil, ErrReleased
	}
	return &pass{backend: b, groups: make(map[uint32]string)}, nil
}

func (b *backendImpl) EndPass(p renderer.Pass) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	hp, ok := p.(*pass)
	if !ok {
		return errors.New("headless: foreign pass")
	}
	if hp.ended {
		return errors.New("headless: pass already ended")
	}
	hp.ended = true
	return nil
}

func (b *backendImpl) Present(rt renderer.RenderTarget) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := rt.(*target); ok && !t.released {
		b.presents++
	}
}

func (b *backendImpl) CreateBuffer(desc renderer.BufferDescriptor) (renderer.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpCreateBuffer); err != nil {
		return nil, err
	}
	return &buffer{id: b.id(), label: desc.Label, data: make([]byte, desc.Size), usage: desc.Usage}, nil
}

func (b *backendImpl) WriteBuffer(buf renderer.Buffer, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpWriteBuffer); err != nil {
		return err
	}
	hb, ok := buf.(*buffer)
	if !ok || hb.released {
		return ErrReleased
	}
	if offset+uint64(len(data)) > uint64(len(hb.data)) {
		return fmt.Errorf("headless: write of %d bytes at %d overflows %q", len(data), offset, hb.label)
	}
	copy(hb.data[offset:], data)
	return nil
}

func (b *backendImpl) ReadBuffer(buf renderer.Buffer) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hb, ok := buf.(*buffer)
	if !ok || hb.released {
		return nil, ErrReleased
	}
	return append([]byte(nil), hb.data...), nil
}

func (b *backendImpl) CreateTexture(desc renderer.TextureDescriptor) (renderer.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpCreateTexture); err != nil {
		return nil, err
	}
	bpp := renderer.BytesPerTexel(desc.Format)
	if bpp == 0 {
		return nil, fmt.Errorf("headless: unsupported texture format %v", desc.Format)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("headless: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	return &texture{
		id:     b.id(),
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		usage:  desc.Usage,
		data:   make([]byte, desc.Width*desc.Height*bpp),
	}, nil
}

func (b *backendImpl) WriteTexture(tex renderer.Texture, pixels []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpWriteTexture); err != nil {
		return err
	}
	ht, ok := tex.(*texture)
	if !ok || ht.released {
		return ErrReleased
	}
	if len(pixels) != len(ht.data) {
		return fmt.Errorf("headless: texture %q expects %d bytes, got %d", ht.label, len(ht.data), len(pixels))
	}
	copy(ht.data, pixels)
	return nil
}

func (b *backendImpl) ReadTexture(tex renderer.Texture) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ht, ok := tex.(*texture)
	if !ok || ht.released {
		return nil, ErrReleased
	}
	return append([]byte(nil), ht.data...), nil
}

func (b *backendImpl) CreateSampler(desc renderer.SamplerDescriptor) (renderer.Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpCreateSampler); err != nil {
		return nil, err
	}
	return &sampler{label: desc.Label}, nil
}

func (b *backendImpl) CreateRenderPipeline(desc renderer.RenderPipelineDescriptor) (renderer.RenderPipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpCreateRenderPipeline); err != nil {
		return nil, err
	}
	if desc.Module == nil || desc.VertexEntry == "" || desc.FragmentEntry == "" {
		return nil, fmt.Errorf("headless: render pipeline %q needs a module and both entry points", desc.Label)
	}
	return &renderPipeline{label: desc.Label, layouts: copyLayouts(desc.Layouts)}, nil
}

func (b *backendImpl) CreateComputePipeline(desc renderer.ComputePipelineDescriptor) (renderer.ComputePipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpCreateComputePipeline); err != nil {
		return nil, err
	}
	if desc.Module == nil || desc.EntryPoint == "" {
		return nil, fmt.Errorf("headless: compute pipeline %q needs a module and an entry point", desc.Label)
	}
	return &computePipeline{
		label:         desc.Label,
		layouts:       copyLayouts(desc.Layouts),
		workgroupSize: desc.WorkgroupSize,
		fallback:      desc.HostFallback,
	}, nil
}

func (b *backendImpl) CreateBindGroup(desc renderer.BindGroupDescriptor) (renderer.BindGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpCreateBindGroup); err != nil {
		return nil, err
	}
	if desc.Pipeline == nil {
		return nil, errors.New("headless: bind group needs a pipeline layout")
	}
	l := desc.Pipeline.BindGroupLayout(desc.Group)
	if l == nil {
		return nil, fmt.Errorf("headless: pipeline has no layout for group %d", desc.Group)
	}
	layoutEntries := make(map[uint32]wgpu.BindGroupLayoutEntry)
	for _, e := range l.Descriptor().Entries {
		layoutEntries[e.Binding] = e
	}
	if len(desc.Entries) != len(layoutEntries) {
		return nil, fmt.Errorf("headless: group %d expects %d entries, got %d", desc.Group, len(layoutEntries), len(desc.Entries))
	}

	g := &bindGroup{label: desc.Label}
	for _, e := range desc.Entries {
		le, ok := layoutEntries[e.Binding]
		if !ok {
			return nil, fmt.Errorf("headless: group %d has no binding %d", desc.Group, e.Binding)
		}
		switch {
		case le.Buffer.Type != wgpu.BufferBindingTypeUndefined:
			hb, ok := e.Buffer.(*buffer)
			if !ok || hb.released {
				return nil, fmt.Errorf("headless: binding %d needs a live buffer", e.Binding)
			}
			if uint64(len(hb.data)) < le.Buffer.MinBindingSize {
				return nil, fmt.Errorf("headless: binding %d: buffer %q smaller than %d bytes", e.Binding, hb.label, le.Buffer.MinBindingSize)
			}
			g.buffers = append(g.buffers, hb)
		case le.StorageTexture.Access != wgpu.StorageTextureAccessUndefined:
			ht, ok := e.Texture.(*texture)
			if !ok || ht.released {
				return nil, fmt.Errorf("headless: binding %d needs a live texture", e.Binding)
			}
			if ht.usage&wgpu.TextureUsageStorageBinding == 0 {
				return nil, fmt.Errorf("headless: binding %d: texture %q lacks storage usage", e.Binding, ht.label)
			}
			g.storage = append(g.storage, ht)
		case le.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
			ht, ok := e.Texture.(*texture)
			if !ok || ht.released {
				return nil, fmt.Errorf("headless: binding %d needs a live texture", e.Binding)
			}
			if ht.usage&wgpu.TextureUsageTextureBinding == 0 {
				return nil, fmt.Errorf("headless: binding %d: texture %q lacks sampled usage", e.Binding, ht.label)
			}
			g.textures = append(g.textures, ht)
		case le.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			hs, ok := e.Sampler.(*sampler)
			if !ok || hs.released {
				return nil, fmt.Errorf("headless: binding %d needs a live sampler", e.Binding)
			}
		default:
			return nil, fmt.Errorf("headless: binding %d has an unclassified layout", e.Binding)
		}
	}
	b.groups = append(b.groups, g)
	return g, nil
}

func (b *backendImpl) Dispatch(p renderer.ComputePipeline, groups []renderer.BindGroup, x, y, z uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failure(OpDispatch); err != nil {
		return err
	}
	cp, ok := p.(*computePipeline)
	if !ok || cp.released {
		return ErrReleased
	}
	for i, g := range groups {
		hg, ok := g.(*bindGroup)
		if !ok || hg.released {
			return fmt.Errorf("headless: dispatch group %d: %w", i, ErrReleased)
		}
		if cp.fallback == nil {
			continue
		}
		for _, tex := range hg.storage {
			cp.fallback(tex.data, tex.width, tex.height)
		}
	}
	b.dispatches = append(b.dispatches, DispatchCall{Pipeline: cp.label, X: x, Y: y, Z: z})
	return nil
}

func (b *backendImpl) SetOverlayTexture(id renderer.OverlayTextureID, tex renderer.Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ht, ok := tex.(*texture)
	if !ok || ht.released {
		return ErrReleased
	}
	b.overlays[id] = ht
	return nil
}

func (b *backendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	b.configured = false
}

func (b *backendImpl) Configurations() []SurfaceConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SurfaceConfig(nil), b.configurations...)
}

func (b *backendImpl) LiveTargets() []TargetInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]TargetInfo, 0, len(b.targets))
	for _, t := range b.targets {
		out = append(out, TargetInfo{ID: t.id, Width: t.width, Height: t.height})
	}
	return out
}

func (b *backendImpl) Draws() []DrawCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DrawCall(nil), b.draws...)
}

func (b *backendImpl) Dispatches() []DispatchCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DispatchCall(nil), b.dispatches...)
}

func (b *backendImpl) Presents() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presents
}

func (b *backendImpl) OverlayFrames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overlayFrames
}

func (b *backendImpl) LiveBindGroups() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, g := range b.groups {
		if !g.released {
			n++
		}
	}
	return n
}

func (b *backendImpl) StorageBindings(tex renderer.Texture) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, g := range b.groups {
		if g.released {
			continue
		}
		for _, t := range g.storage {
			if renderer.Texture(t) == tex {
				n++
			}
		}
	}
	return n
}

func (b *backendImpl) OverlayTexture(id renderer.OverlayTextureID) renderer.Texture {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.overlays[id]; ok {
		return t
	}
	return nil
}

func (b *backendImpl) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

func copyLayouts(descriptors map[int]wgpu.BindGroupLayoutDescriptor) map[int]*layout {
	out := make(map[int]*layout, len(descriptors))
	for g, d := range descriptors {
		out[g] = &layout{desc: d}
	}
	return out
}

// pass records draws into the backend.
type pass struct {
	backend  *backendImpl
	pipeline string
	groups   map[uint32]string
	ended    bool
}

func (p *pass) SetPipeline(rp renderer.RenderPipeline) {
	if rp == nil {
		return
	}
	p.pipeline = rp.Label()
}

func (p *pass) SetBindGroup(index uint32, g renderer.BindGroup) {
	if g == nil {
		return
	}
	p.groups[index] = g.Label()
}

func (p *pass) Draw(vertexCount, instanceCount, _, _ uint32) {
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()

	p.backend.draws = append(p.backend.draws, DrawCall{
		Pipeline:      p.pipeline,
		Groups:        maps.Clone(p.groups),
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
	})
}

func (p *pass) DrawOverlay(frame renderer.OverlayFrame) error {
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()

	if frame.Empty() {
		return nil
	}
	for _, l := range frame.Lists {
		for _, c := range l.Commands {
			if _, ok := p.backend.overlays[c.Texture]; !ok {
				return fmt.Errorf("headless: overlay texture %d not registered", c.Texture)
			}
		}
	}
	p.backend.overlayFrames++
	return nil
}
