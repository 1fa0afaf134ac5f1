package headless

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storageLayouts() map[int]wgpu.BindGroupLayoutDescriptor {
	return map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding: 0,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        wgpu.TextureFormatRGBA8Unorm,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		}},
	}
}

func TestConfigureRefusedWithLiveTarget(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.ConfigureSurface(64, 32, renderer.PresentModeUncapped))

	rt, err := b.AcquireTarget()
	require.NoError(t, err)
	assert.Error(t, b.ConfigureSurface(128, 64, renderer.PresentModeUncapped))

	b.ReleaseTarget(rt)
	b.ReleaseTarget(rt)
	assert.NoError(t, b.ConfigureSurface(128, 64, renderer.PresentModeUncapped))
	assert.Len(t, b.Configurations(), 2)
}

func TestBufferRoundTrip(t *testing.T) {
	b := NewBackend()
	buf, err := b.CreateBuffer(renderer.BufferDescriptor{Label: "data", Size: 8})
	require.NoError(t, err)

	require.NoError(t, b.WriteBuffer(buf, 4, []byte{1, 2, 3, 4}))
	assert.Error(t, b.WriteBuffer(buf, 6, []byte{1, 2, 3, 4}))

	data, err := b.ReadBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, data)

	buf.Release()
	_, err = b.ReadBuffer(buf)
	assert.ErrorIs(t, err, ErrReleased)
}

func TestTextureWriteSizeChecked(t *testing.T) {
	b := NewBackend()
	tex, err := b.CreateTexture(renderer.TextureDescriptor{
		Label: "t", Width: 2, Height: 2, Format: wgpu.TextureFormatRGBA8Unorm,
	})
	require.NoError(t, err)

	assert.Error(t, b.WriteTexture(tex, make([]byte, 4)))
	pixels := make([]byte, 16)
	pixels[15] = 9
	require.NoError(t, b.WriteTexture(tex, pixels))

	got, err := b.ReadTexture(tex)
	require.NoError(t, err)
	assert.Equal(t, pixels, got)
}

func TestDispatchRunsHostFallback(t *testing.T) {
	b := NewBackend()
	tex, err := b.CreateTexture(renderer.TextureDescriptor{
		Label: "out", Width: 4, Height: 2, Format: wgpu.TextureFormatRGBA8Unorm,
		Usage: wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
	})
	require.NoError(t, err)

	calls := 0
	pipeline, err := b.CreateComputePipeline(renderer.ComputePipelineDescriptor{
		Label:         "fill",
		Module:        &wgpu.ShaderModuleDescriptor{Label: "fill"},
		EntryPoint:    "main",
		Layouts:       storageLayouts(),
		WorkgroupSize: [3]uint32{8, 8, 1},
		HostFallback: func(dst []byte, width, height uint32) {
			calls++
			assert.Equal(t, uint32(4), width)
			assert.Equal(t, uint32(2), height)
			for i := range dst {
				dst[i] = 0xAB
			}
		},
	})
	require.NoError(t, err)

	group, err := b.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:    "fill group",
		Pipeline: pipeline,
		Group:    0,
		Entries:  []renderer.BindGroupEntry{{Binding: 0, Texture: tex}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, b.StorageBindings(tex))

	require.NoError(t, b.Dispatch(pipeline, []renderer.BindGroup{group}, 1, 1, 1))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []DispatchCall{{Pipeline: "fill", X: 1, Y: 1, Z: 1}}, b.Dispatches())

	data, err := b.ReadTexture(tex)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), data[len(data)-1])

	group.Release()
	assert.Equal(t, 0, b.StorageBindings(tex))
	assert.Equal(t, 0, b.LiveBindGroups())
}

func TestBindGroupValidation(t *testing.T) {
	b := NewBackend()
	pipeline, err := b.CreateComputePipeline(renderer.ComputePipelineDescriptor{
		Label:      "p",
		Module:     &wgpu.ShaderModuleDescriptor{},
		EntryPoint: "main",
		Layouts:    storageLayouts(),
	})
	require.NoError(t, err)

	sampledOnly, err := b.CreateTexture(renderer.TextureDescriptor{
		Label: "sampled", Width: 1, Height: 1, Format: wgpu.TextureFormatRGBA8Unorm,
		Usage: wgpu.TextureUsageTextureBinding,
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		desc renderer.BindGroupDescriptor
	}{
		{name: "missing group", desc: renderer.BindGroupDescriptor{Pipeline: pipeline, Group: 3}},
		{name: "entry count", desc: renderer.BindGroupDescriptor{Pipeline: pipeline}},
		{name: "unknown binding", desc: renderer.BindGroupDescriptor{
			Pipeline: pipeline,
			Entries:  []renderer.BindGroupEntry{{Binding: 5, Texture: sampledOnly}},
		}},
		{name: "missing storage usage", desc: renderer.BindGroupDescriptor{
			Pipeline: pipeline,
			Entries:  []renderer.BindGroupEntry{{Binding: 0, Texture: sampledOnly}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateBindGroup(tt.desc)
			assert.Error(t, err)
		})
	}
}

func TestFailInjection(t *testing.T) {
	b := NewBackend()
	boom := errors.New("boom")

	b.Fail(OpCreateBuffer, boom)
	_, err := b.CreateBuffer(renderer.BufferDescriptor{Size: 4})
	assert.ErrorIs(t, err, boom)

	b.Fail(OpCreateBuffer, nil)
	_, err = b.CreateBuffer(renderer.BufferDescriptor{Size: 4})
	assert.NoError(t, err)
}

func TestPassRecordsDraws(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.ConfigureSurface(8, 8, renderer.PresentModeVSync))
	rt, err := b.AcquireTarget()
	require.NoError(t, err)

	pipeline, err := b.CreateRenderPipeline(renderer.RenderPipelineDescriptor{
		Label:         "flat",
		Module:        &wgpu.ShaderModuleDescriptor{},
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
	})
	require.NoError(t, err)

	p, err := b.BeginPass(rt, renderer.Color{}, renderer.Viewport{})
	require.NoError(t, err)
	p.SetPipeline(pipeline)
	p.Draw(3, 1, 0, 0)
	require.NoError(t, b.EndPass(p))
	assert.Error(t, b.EndPass(p))

	draws := b.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "flat", draws[0].Pipeline)
	assert.Equal(t, uint32(3), draws[0].VertexCount)
}
