// Package shading owns the full-screen raymarching programs and decides, once per frame,
// which of them draws.
package shading

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/Carmen-Shannon/terraforge-go/engine/constants"
	"github.com/Carmen-Shannon/terraforge-go/engine/noise"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/terraforge-go/engine/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultBlueNoiseName is the resource cache key of the cloud jitter texture.
const DefaultBlueNoiseName = "BlueNoise"

// blueNoiseFallbackName holds the 1×1 texture bound when the jitter texture was never loaded.
const blueNoiseFallbackName = "BlueNoiseFallback"

// Programs are the compiled fragment programs of each variant. A nil program leaves its
// variant unavailable.
type Programs struct {
	Flat       shader.Program
	Volumetric shader.Program
	Cloud      shader.Program
}

func (p Programs) byVariant() map[Variant]shader.Program {
	return map[Variant]shader.Program{
		VariantFlat:       p.Flat,
		VariantVolumetric: p.Volumetric,
		VariantCloud:      p.Cloud,
	}
}

type variantState struct {
	pipeline renderer.RenderPipeline
	groups   []boundGroup
}

type pipeline struct {
	mu *sync.Mutex

	backend   renderer.Backend
	constants constants.FrameConstants
	baker     noise.Baker
	cache     resource.Cache

	mode          SceneMode
	blueNoiseName string

	variants map[Variant]*variantState
	samplers []renderer.Sampler
	warned   map[Variant]bool
}

// Pipeline draws the selected full-screen variant.
//
// Variants whose program is missing or failed to build are absent; selecting one produces an
// empty FrameBindSet, which Render turns into no draw.
type Pipeline interface {
	// Mode returns the scene flags. The control panel edits them in place.
	//
	// Returns:
	//   - *SceneMode: the live flags
	Mode() *SceneMode

	// Prepare resolves the current flags to a fresh FrameBindSet.
	//
	// Returns:
	//   - FrameBindSet: the draw state for this frame
	Prepare() FrameBindSet

	// Render applies set to pass, pipeline first then its bind groups, and draws the
	// full-screen triangle. An empty set draws nothing.
	//
	// Parameters:
	//   - pass: the frame's render pass
	//   - set: the set returned by Prepare
	Render(pass renderer.Pass, set FrameBindSet)

	// Available reports whether variant v can draw.
	//
	// Parameters:
	//   - v: the variant
	//
	// Returns:
	//   - bool: true when the variant's pipeline exists
	Available(v Variant) bool

	// Release releases every pipeline, bind group and sampler the pipeline owns.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline builds a render pipeline per available program and attaches the frame constants
// to them. The cloud variant also binds the noise atlas, the blue noise texture and two samplers.
// Per-variant failures are logged and leave that variant absent.
//
// Parameters:
//   - backend: the GPU backend
//   - programs: the compiled variant programs
//   - fc: the frame constants bound at group 0
//   - baker: the noise baker supplying the atlas
//   - cache: the texture cache supplying the blue noise texture
//   - options: functional options to configure the pipeline
//
// Returns:
//   - Pipeline: the pipeline
//   - error: an error if a required collaborator is missing
func NewPipeline(backend renderer.Backend, programs Programs, fc constants.FrameConstants, baker noise.Baker, cache resource.Cache, options ...PipelineBuilderOption) (Pipeline, error) {
	if backend == nil || fc == nil {
		return nil, errors.New("shading: backend and frame constants are required")
	}

	p := &pipeline{
		mu:            &sync.Mutex{},
		backend:       backend,
		constants:     fc,
		baker:         baker,
		cache:         cache,
		mode:          SceneMode{Cloud: true},
		blueNoiseName: DefaultBlueNoiseName,
		variants:      make(map[Variant]*variantState),
		warned:        make(map[Variant]bool),
	}
	for _, opt := range options {
		opt(p)
	}

	attached := false
	for _, v := range []Variant{VariantFlat, VariantVolumetric, VariantCloud} {
		program := programs.byVariant()[v]
		if program == nil {
			log.Printf("shading: %s variant has no program", v)
			continue
		}
		if program.Stage() != shader.StageRender {
			log.Printf("shading: %s variant: %s is not a render program", v, program.Label())
			continue
		}

		rp, err := backend.CreateRenderPipeline(renderer.RenderPipelineDescriptor{
			Label:         program.Label(),
			Module:        program.Module(),
			VertexEntry:   program.VertexEntry(),
			FragmentEntry: program.EntryPoint(),
			Layouts:       program.BindGroupLayoutDescriptors(),
		})
		if err != nil {
			log.Printf("shading: %s variant: %v", v, err)
			continue
		}
		state := &variantState{pipeline: rp}

		if v == VariantCloud {
			group, index, err := p.cloudResources(program, rp)
			if err != nil {
				log.Printf("shading: %s variant: %v", v, err)
				rp.Release()
				continue
			}
			state.groups = append(state.groups, boundGroup{index: index, group: group})
		}

		if !attached {
			if err := fc.Attach(rp); err != nil {
				log.Printf("shading: %v", err)
			} else {
				attached = true
			}
		}
		p.variants[v] = state
	}
	return p, nil
}

// cloudResources creates the samplers and the resource bind group of the cloud variant.
func (p *pipeline) cloudResources(program shader.Program, rp renderer.RenderPipeline) (renderer.BindGroup, uint32, error) {
	roles := []shader.AnnotationArg{
		shader.AnnotationArgNoise,
		shader.AnnotationArgBlueNoise,
		shader.AnnotationArgLinearSampler,
		shader.AnnotationArgPointSampler,
	}
	slots := make(map[shader.AnnotationArg]uint32, len(roles))
	group := -1
	for _, role := range roles {
		g, b, ok := program.Slot(role)
		if !ok {
			return nil, 0, fmt.Errorf("%s declares no %s slot", program.Label(), role)
		}
		if group >= 0 && g != group {
			return nil, 0, fmt.Errorf("%s: slot %s is outside group %d", program.Label(), role, group)
		}
		group = g
		slots[role] = uint32(b)
	}

	if p.baker == nil || p.baker.Texture() == nil {
		return nil, 0, errors.New("noise atlas unavailable")
	}
	blueNoise, err := p.blueNoise()
	if err != nil {
		return nil, 0, err
	}

	linear, err := p.backend.CreateSampler(renderer.SamplerDescriptor{
		Label: "Linear Wrap Sampler",
		SamplerStagingData: common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeRepeat,
			AddressModeV: wgpu.AddressModeRepeat,
			AddressModeW: wgpu.AddressModeRepeat,
			MagFilter:    wgpu.FilterModeLinear,
			MinFilter:    wgpu.FilterModeLinear,
			MipmapFilter: wgpu.MipmapFilterModeLinear,
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("linear sampler: %w", err)
	}
	point, err := p.backend.CreateSampler(renderer.SamplerDescriptor{
		Label: "Point Clamp Sampler",
		SamplerStagingData: common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeClampToEdge,
			AddressModeV: wgpu.AddressModeClampToEdge,
			AddressModeW: wgpu.AddressModeClampToEdge,
			MagFilter:    wgpu.FilterModeNearest,
			MinFilter:    wgpu.FilterModeNearest,
			MipmapFilter: wgpu.MipmapFilterModeNearest,
		},
	})
	if err != nil {
		linear.Release()
		return nil, 0, fmt.Errorf("point sampler: %w", err)
	}

	bg, err := p.backend.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:    "Cloud Resources",
		Pipeline: rp,
		Group:    group,
		Entries: []renderer.BindGroupEntry{
			{Binding: slots[shader.AnnotationArgNoise], Texture: p.baker.Texture()},
			{Binding: slots[shader.AnnotationArgBlueNoise], Texture: blueNoise},
			{Binding: slots[shader.AnnotationArgLinearSampler], Sampler: linear},
			{Binding: slots[shader.AnnotationArgPointSampler], Sampler: point},
		},
	})
	if err != nil {
		linear.Release()
		point.Release()
		return nil, 0, fmt.Errorf("cloud bind group: %w", err)
	}
	p.samplers = append(p.samplers, linear, point)
	return bg, uint32(group), nil
}

// blueNoise returns the cached jitter texture, creating the 1×1 fallback when it is absent.
func (p *pipeline) blueNoise() (renderer.Texture, error) {
	if p.cache == nil {
		return nil, errors.New("no texture cache")
	}
	if tex := p.cache.Get(p.blueNoiseName); tex != nil {
		return tex, nil
	}
	log.Printf("shading: %q not loaded, using a flat fallback", p.blueNoiseName)

	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: 128})
	if err := p.cache.LoadImage(blueNoiseFallbackName, img); err != nil {
		return nil, fmt.Errorf("blue noise fallback: %w", err)
	}
	return p.cache.Get(blueNoiseFallbackName), nil
}

func (p *pipeline) Mode() *SceneMode {
	return &p.mode
}

func (p *pipeline) Prepare() FrameBindSet {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.mode.Variant()
	if v == VariantNone {
		return FrameBindSet{variant: VariantNone}
	}
	state, ok := p.variants[v]
	if !ok {
		if !p.warned[v] {
			log.Printf("shading: %s variant unavailable, skipping draw", v)
			p.warned[v] = true
		}
		return FrameBindSet{variant: v}
	}
	return FrameBindSet{
		variant:  v,
		pipeline: state.pipeline,
		groups:   append([]boundGroup(nil), state.groups...),
	}
}

func (p *pipeline) Render(pass renderer.Pass, set FrameBindSet) {
	if pass == nil || set.Empty() {
		return
	}
	pass.SetPipeline(set.pipeline)
	for _, g := range set.groups {
		pass.SetBindGroup(g.index, g.group)
	}
	pass.Draw(3, 1, 0, 0)
}

func (p *pipeline) Available(v Variant) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.variants[v]
	return ok
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for v, state := range p.variants {
		for _, g := range state.groups {
			g.group.Release()
		}
		state.pipeline.Release()
		delete(p.variants, v)
	}
	for _, s := range p.samplers {
		s.Release()
	}
	p.samplers = nil
}
