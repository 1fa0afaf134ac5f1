// Package noise bakes the procedural noise atlas sampled by the cloud pass.
package noise

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/x448/float16"
)

const (
	// Size is the width and height of the noise atlas in texels.
	Size uint32 = 204

	// Format is the texel format of the noise atlas.
	Format = wgpu.TextureFormatRGBA16Float
)

type baker struct {
	mu *sync.Mutex

	backend   renderer.Backend
	reference Reference
	workers   int
	size      uint32

	pipeline renderer.ComputePipeline
	output   renderer.Texture
	group    int
	binding  uint32

	bakes  int
	warned bool
}

// Baker owns the noise atlas and the compute pipeline that fills it.
//
// The atlas is created once and only changes when Bake is called. Each bake binds the atlas
// as a write-only storage texture for the duration of the dispatch and unbinds it before
// returning, so the shading stage only ever sees it as a sampled texture.
type Baker interface {
	// Bake dispatches the compute pass that regenerates the atlas. It is a logged no-op when
	// the pipeline or texture failed to create.
	//
	// Returns:
	//   - error: the bind or dispatch error; the storage binding is released either way
	Bake() error

	// Texture returns the atlas for sampled binding, nil when creation failed.
	//
	// Returns:
	//   - renderer.Texture: the noise atlas
	Texture() renderer.Texture

	// Bakes returns how many bakes have completed.
	//
	// Returns:
	//   - int: the completed bake count
	Bakes() int

	// Dispatch returns the workgroup counts a bake issues.
	//
	// Returns:
	//   - [3]uint32: workgroups in x, y and z
	Dispatch() [3]uint32

	// Snapshot reads the atlas back and quantizes each channel to 8 bits, alpha included.
	//
	// Returns:
	//   - *image.NRGBA: the atlas, one pixel per texel
	//   - error: an error if there is no atlas or the read-back fails
	Snapshot() (*image.NRGBA, error)

	// Release releases the atlas, the pipeline and the host reference pool.
	Release()
}

var _ Baker = &baker{}

// NewBaker creates the atlas texture and the compute pipeline for program. Creation failures
// are logged and leave the baker degraded; only an unusable program is returned as an error.
//
// Parameters:
//   - backend: the GPU backend
//   - program: the compiled noise compute program
//   - options: functional options to configure the baker
//
// Returns:
//   - Baker: the baker
//   - error: an error if program is not a compute program with a noise_output slot
func NewBaker(backend renderer.Backend, program shader.Program, options ...BakerBuilderOption) (Baker, error) {
	b := &baker{
		mu:      &sync.Mutex{},
		backend: backend,
		workers: 4,
		size:    Size,
	}
	for _, opt := range options {
		opt(b)
	}
	b.reference = NewReference(b.workers)

	if program == nil {
		log.Printf("noise: no baker program, baking disabled")
		return b, nil
	}
	if program.Stage() != shader.StageCompute {
		return nil, fmt.Errorf("noise: %s is not a compute program", program.Label())
	}
	group, binding, ok := program.Slot(shader.AnnotationArgNoiseOutput)
	if !ok {
		return nil, fmt.Errorf("noise: %s declares no %s slot", program.Label(), shader.AnnotationArgNoiseOutput)
	}
	b.group, b.binding = group, uint32(binding)

	output, err := backend.CreateTexture(renderer.TextureDescriptor{
		Label:  "Noise Atlas",
		Width:  b.size,
		Height: b.size,
		Format: Format,
		Usage:  wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		log.Printf("noise: create atlas: %v", err)
		return b, nil
	}
	b.output = output

	pipeline, err := backend.CreateComputePipeline(renderer.ComputePipelineDescriptor{
		Label:         program.Label(),
		Module:        program.Module(),
		EntryPoint:    program.EntryPoint(),
		Layouts:       program.BindGroupLayoutDescriptors(),
		WorkgroupSize: program.WorkgroupSize(),
		HostFallback:  b.reference.Fill,
	})
	if err != nil {
		log.Printf("noise: create pipeline: %v", err)
		return b, nil
	}
	b.pipeline = pipeline
	return b, nil
}

func (b *baker) Bake() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pipeline == nil || b.output == nil {
		if !b.warned {
			log.Printf("noise: bake skipped, baker is not initialized")
			b.warned = true
		}
		return nil
	}

	guard, err := b.acquireWriteGuard()
	if err != nil {
		return err
	}
	defer guard.Release()

	groups := make([]renderer.BindGroup, b.group+1)
	groups[b.group] = guard
	d := b.dispatch()
	if err := b.backend.Dispatch(b.pipeline, groups, d[0], d[1], d[2]); err != nil {
		return fmt.Errorf("noise: dispatch: %w", err)
	}
	b.bakes++
	return nil
}

// acquireWriteGuard binds the atlas as the storage output. The returned group must be released.
func (b *baker) acquireWriteGuard() (renderer.BindGroup, error) {
	guard, err := b.backend.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:    "Noise Write Guard",
		Pipeline: b.pipeline,
		Group:    b.group,
		Entries: []renderer.BindGroupEntry{
			{Binding: b.binding, Texture: b.output},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("noise: bind output: %w", err)
	}
	return guard, nil
}

func (b *baker) dispatch() [3]uint32 {
	wg := [3]uint32{8, 8, 1}
	if b.pipeline != nil {
		wg = b.pipeline.WorkgroupSize()
	}
	return [3]uint32{
		common.CeilDiv(b.size, max(wg[0], 1)),
		common.CeilDiv(b.size, max(wg[1], 1)),
		1,
	}
}

func (b *baker) Texture() renderer.Texture {
	return b.output
}

func (b *baker) Bakes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bakes
}

func (b *baker) Dispatch() [3]uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dispatch()
}

func (b *baker) Snapshot() (*image.NRGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.output == nil {
		return nil, errors.New("noise: snapshot: atlas was not created")
	}
	data, err := b.backend.ReadTexture(b.output)
	if err != nil {
		return nil, fmt.Errorf("noise: snapshot: %w", err)
	}
	texels := int(b.size * b.size)
	if len(data) < texels*bytesPerTexel {
		return nil, fmt.Errorf("noise: snapshot: read %d bytes, want %d", len(data), texels*bytesPerTexel)
	}

	img := image.NewNRGBA(image.Rect(0, 0, int(b.size), int(b.size)))
	for i := range img.Pix[:texels*4] {
		bits := uint16(data[2*i]) | uint16(data[2*i+1])<<8
		img.Pix[i] = unorm8(float16.Frombits(bits).Float32())
	}
	return img, nil
}

// unorm8 clamps v to [0, 1] and rounds it to the nearest 8-bit level.
func unorm8(v float32) uint8 {
	if math32.IsNaN(v) {
		return 0
	}
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}

func (b *baker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pipeline != nil {
		b.pipeline.Release()
		b.pipeline = nil
	}
	if b.output != nil {
		b.output.Release()
		b.output = nil
	}
	if b.reference != nil {
		b.reference.Release()
		b.reference = nil
	}
}
