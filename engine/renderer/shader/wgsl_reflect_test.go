package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustReflect(t *testing.T, src string) reflection {
	t.Helper()
	r, err := reflectWGSL(src)
	require.NoError(t, err)
	return r
}

func TestReflectEntryPoints(t *testing.T) {
	src := `
// @compute @workgroup_size(2) fn commented_out() {}
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }
@fragment fn fs_a() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
@fragment fn fs_b() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	r := mustReflect(t, src)

	ep, ok := r.entry("fs_b")
	assert.True(t, ok)
	assert.Equal(t, ir.StageFragment, ep.Stage)
	_, ok = r.entry("commented_out")
	assert.False(t, ok)
	assert.Equal(t, "vs_main", r.firstOf(ir.StageVertex))
	assert.Empty(t, r.firstOf(ir.StageCompute))
}

func TestReflectWorkgroupSize(t *testing.T) {
	tests := []struct {
		attr string
		want [3]uint32
	}{
		{"@workgroup_size(64)", [3]uint32{64, 1, 1}},
		{"@workgroup_size(8, 8)", [3]uint32{8, 8, 1}},
		{"@workgroup_size( 4 , 4 , 2 )", [3]uint32{4, 4, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			r := mustReflect(t, "@compute "+tt.attr+" fn main() {}")
			ep, ok := r.entry("main")
			require.True(t, ok)
			assert.Equal(t, tt.want, ep.Workgroup)
		})
	}
}

func TestReflectRejectsInvalidSource(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "syntax", src: "@fragment fn fs_main( -> {"},
		{name: "unknown type", src: "@group(0) @binding(0) var<uniform> u: Missing;"},
		{name: "compute without workgroup size", src: "@compute fn main() {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reflectWGSL(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestBindGroupLayoutsBufferSizes(t *testing.T) {
	src := `
struct Inner {
    a: vec3<f32>,
    b: f32,
}

struct Outer {
    x: f32,
    inner: Inner,
    y: vec2f,
}

struct Particles {
    count: u32,
    items: array<vec4f>,
}

@group(0) @binding(0) var<uniform> scalar: f32;
@group(0) @binding(1) var<uniform> wide: vec3<f32>;
@group(0) @binding(2) var<uniform> view: mat4x4<f32>;
@group(0) @binding(3) var<uniform> normal: mat3x3f;
@group(0) @binding(4) var<uniform> fixed: array<vec4f, 4>;
@group(0) @binding(5) var<uniform> outer: Outer;
@group(0) @binding(6) var<storage, read> particles: Particles;
`
	layouts, _ := mustReflect(t, src).bindGroupLayouts(wgpu.ShaderStageFragment)
	require.Len(t, layouts, 1)

	tests := []struct {
		name string
		want uint64
	}{
		{"scalar", 4},
		{"wide", 12},
		{"view", 64},
		{"normal", 48},
		{"fixed", 64},
		{"outer", 48},
		{"particles", 32},
	}
	entries := layouts[0].Entries
	require.Len(t, entries, len(tests))
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, uint32(i), entries[i].Binding)
			assert.Equal(t, tt.want, entries[i].Buffer.MinBindingSize)
		})
	}
}

func TestBindGroupLayoutsClassifyResources(t *testing.T) {
	src := `
struct Block { v: vec4f, }
@group(0) @binding(1) var<storage, read> items: array<Block>;
@group(0) @binding(0) var<storage, read_write> counter: atomic<u32>;
@group(1) @binding(0) var volume: texture_3d<f32>;
@group(1) @binding(1) var depth: texture_depth_2d;
@group(1) @binding(2) var shadow: sampler_comparison;
@group(1) @binding(3) var ms: texture_multisampled_2d<u32>;
@group(1) @binding(4) var layers: texture_2d_array<i32>;
@group(2) @binding(0) var img: texture_storage_3d<r32float, read_write>;
`
	layouts, names := mustReflect(t, src).bindGroupLayouts(wgpu.ShaderStageCompute)
	require.Len(t, layouts, 3)

	g0 := layouts[0].Entries
	require.Len(t, g0, 2)
	assert.Equal(t, uint32(0), g0[0].Binding)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, g0[0].Buffer.Type)
	assert.Equal(t, uint64(4), g0[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, g0[1].Buffer.Type)
	assert.Equal(t, uint64(16), g0[1].Buffer.MinBindingSize)

	g1 := layouts[1].Entries
	require.Len(t, g1, 5)
	assert.Equal(t, wgpu.TextureViewDimension3D, g1[0].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, g1[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, g1[1].Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeComparison, g1[2].Sampler.Type)
	assert.True(t, g1[3].Texture.Multisampled)
	assert.Equal(t, wgpu.TextureSampleTypeUint, g1[3].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2DArray, g1[4].Texture.ViewDimension)
	assert.Equal(t, wgpu.TextureSampleTypeSint, g1[4].Texture.SampleType)

	g2 := layouts[2].Entries
	require.Len(t, g2, 1)
	assert.Equal(t, wgpu.TextureViewDimension3D, g2[0].StorageTexture.ViewDimension)
	assert.Equal(t, wgpu.TextureFormatR32Float, g2[0].StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessReadWrite, g2[0].StorageTexture.Access)

	assert.Equal(t, "counter", names[0][0])
	assert.Equal(t, "img", names[2][0])
}

func TestBindGroupLayoutsSkipUnboundGlobals(t *testing.T) {
	src := `
var<private> seed: u32;
var<workgroup> tile: array<f32, 64>;
@group(3) @binding(2) var samp: sampler;
`
	layouts, names := mustReflect(t, src).bindGroupLayouts(wgpu.ShaderStageFragment)
	require.Len(t, layouts, 1)
	require.Len(t, layouts[3].Entries, 1)
	assert.Equal(t, uint32(2), layouts[3].Entries[0].Binding)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, layouts[3].Entries[0].Sampler.Type)
	assert.Equal(t, map[int]map[int]string{3: {2: "samp"}}, names)
}
