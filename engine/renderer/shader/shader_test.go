package shader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cloudSource = `//@tf:include fullscreen
//@tf:group 0 0 storage_uniform globals global_constants
//@tf:group 0 1 storage_uniform cloud cloud_constants

//@tf:slot 1 0 noise
@group(1) @binding(0) var noise_tex: texture_2d<f32>;
//@tf:slot 1 1 blue_noise
@group(1) @binding(1) var blue_noise_tex: texture_2d<f32>;
//@tf:slot 1 2 linear_sampler
@group(1) @binding(2) var linear_samp: sampler;
//@tf:slot 1 3 point_sampler
@group(1) @binding(3) var point_samp: sampler;

@fragment
fn fs_main(in: FullscreenOut) -> @location(0) vec4<f32> {
    return vec4<f32>(in.uv, globals.time, cloud.coverage);
}
`

const bakerSource = `//@tf:include noise_common

//@tf:slot 0 0 noise_output
@group(0) @binding(0) var out_tex: texture_storage_2d<rgba16float, write>;

@compute @workgroup_size(8, 8)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    textureStore(out_tex, vec2<i32>(id.xy), vec4<f32>(0.0));
}
`

func TestCompileRenderProgram(t *testing.T) {
	p, err := NewCompiler().CompileSource("cloud", cloudSource, "fs_main", ProfileWGSL)
	require.NoError(t, err)

	assert.Equal(t, StageRender, p.Stage())
	assert.Equal(t, "fs_main", p.EntryPoint())
	assert.Equal(t, "vs_main", p.VertexEntry())
	assert.Equal(t, [3]uint32{}, p.WorkgroupSize())
	require.NotNil(t, p.Module().WGSLDescriptor)
	assert.Equal(t, p.Source(), p.Module().WGSLDescriptor.Code)

	// each struct is emitted once even with two bindings
	assert.Equal(t, 1, strings.Count(p.Source(), "struct GlobalConstants"))
	assert.Equal(t, 1, strings.Count(p.Source(), "struct CloudConstants"))
	assert.Contains(t, p.Source(), "@group(0) @binding(0) var<uniform> globals: GlobalConstants;")

	layouts := p.BindGroupLayoutDescriptors()
	require.Len(t, layouts, 2)

	group0 := layouts[0].Entries
	require.Len(t, group0, 2)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, group0[0].Buffer.Type)
	assert.Equal(t, uint64(80), group0[0].Buffer.MinBindingSize)
	assert.Equal(t, uint64(80), group0[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, group0[0].Visibility)

	group1 := layouts[1].Entries
	require.Len(t, group1, 4)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, group1[0].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, group1[1].Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, group1[2].Sampler.Type)

	assert.Equal(t, "globals", p.BindGroupVarName(0, 0))
	assert.Equal(t, "point_samp", p.BindGroupVarName(1, 3))
	assert.Empty(t, p.BindGroupVarName(2, 0))
}

func TestSlots(t *testing.T) {
	p, err := NewCompiler().CompileSource("cloud", cloudSource, "fs_main", ProfileWGSL)
	require.NoError(t, err)

	tests := []struct {
		role    AnnotationArg
		group   int
		binding int
		ok      bool
	}{
		{AnnotationArgNoise, 1, 0, true},
		{AnnotationArgBlueNoise, 1, 1, true},
		{AnnotationArgLinearSampler, 1, 2, true},
		{AnnotationArgPointSampler, 1, 3, true},
		{AnnotationArgNoiseOutput, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			g, b, ok := p.Slot(tt.role)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.group, g)
			assert.Equal(t, tt.binding, b)
		})
	}
	assert.Len(t, p.Declarations(), 6)
}

func TestCompileComputeProgram(t *testing.T) {
	p, err := NewCompiler().CompileSource("baker", bakerSource, "cs_main", ProfileWGSL)
	require.NoError(t, err)

	assert.Equal(t, StageCompute, p.Stage())
	assert.Empty(t, p.VertexEntry())
	assert.Equal(t, [3]uint32{8, 8, 1}, p.WorkgroupSize())
	assert.Contains(t, p.Source(), "fn hash_u32")

	entries := p.BindGroupLayoutDescriptors()[0].Entries
	require.Len(t, entries, 1)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, entries[0].StorageTexture.Access)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, entries[0].StorageTexture.Format)
	assert.Equal(t, wgpu.ShaderStageCompute, entries[0].Visibility)

	g, b, ok := p.Slot(AnnotationArgNoiseOutput)
	assert.True(t, ok)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		entry   string
		profile string
		target  error
	}{
		{name: "unknown profile", source: bakerSource, entry: "cs_main", profile: "hlsl", target: ErrUnknownProfile},
		{name: "missing entry", source: bakerSource, entry: "main", profile: ProfileWGSL, target: ErrEntryPointNotFound},
		{
			name:    "fragment without vertex",
			source:  "@fragment\nfn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }\n",
			entry:   "fs_main",
			profile: ProfileWGSL,
			target:  ErrEntryPointNotFound,
		},
		{name: "invalid wgsl", source: "@compute @workgroup_size(1)\nfn cs_main( {\n", entry: "cs_main", profile: ProfileWGSL},
		{name: "unknown include", source: "//@tf:include nope\n", entry: "cs_main", profile: ProfileWGSL},
		{name: "bad slot role", source: "//@tf:slot 1 0 albedo\n", entry: "cs_main", profile: ProfileWGSL},
		{name: "bad group arity", source: "//@tf:group 0 0 storage_uniform globals\n", entry: "cs_main", profile: ProfileWGSL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompiler().CompileSource(tt.name, tt.source, tt.entry, tt.profile)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestIncludeOverrideAndCycle(t *testing.T) {
	c := NewCompiler(
		WithInclude("fullscreen", "@vertex\nfn vs_custom() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }"),
		WithInclude("loop", "//@tf:include loop"),
	)

	p, err := c.CompileSource("custom", "//@tf:include fullscreen\n@fragment\nfn fs() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }", "fs", ProfileWGSL)
	require.NoError(t, err)
	assert.Equal(t, "vs_custom", p.VertexEntry())

	_, err = c.CompileSource("loop", "//@tf:include loop", "fs", ProfileWGSL)
	assert.Error(t, err)
}
func TestCompileShippedProgramsSPIRV(t *testing.T) {
	const dir = "../../../assets/shaders"
	tests := []struct {
		file  string
		entry string
		stage Stage
	}{
		{file: "flat_sdf.wgsl", entry: "fs_main", stage: StageRender},
		{file: "volume_sdf.wgsl", entry: "fs_main", stage: StageRender},
		{file: "cloud.wgsl", entry: "fs_main", stage: StageRender},
		{file: "noise_baker.wgsl", entry: "cs_bake", stage: StageCompute},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			wgsl, err := Compile(path, tt.entry, ProfileWGSL)
			require.NoError(t, err)
			spirv, err := Compile(path, tt.entry, ProfileSPIRV)
			require.NoError(t, err)

			assert.Equal(t, tt.stage, spirv.Stage())
			assert.Equal(t, ProfileSPIRV, spirv.Profile())
			assert.Nil(t, spirv.Module().WGSLDescriptor)
			require.NotNil(t, spirv.Module().SPIRVDescriptor)
			code := spirv.Module().SPIRVDescriptor.Code
			require.NotEmpty(t, code)
			assert.Zero(t, len(code)%4, "SPIR-V is a stream of 32-bit words")

			// the profile only changes the module, never the pipeline interface
			assert.Equal(t, wgsl.BindGroupLayoutDescriptors(), spirv.BindGroupLayoutDescriptors())
			assert.Equal(t, wgsl.VertexEntry(), spirv.VertexEntry())
			assert.Equal(t, wgsl.WorkgroupSize(), spirv.WorkgroupSize())
			assert.Equal(t, wgsl.Declarations(), spirv.Declarations())
		})
	}
}

func TestCompileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baker.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(bakerSource), 0o644))

	p, err := Compile(path, "cs_main", ProfileWGSL)
	require.NoError(t, err)
	assert.Equal(t, path, p.Label())
	assert.Equal(t, ProfileWGSL, p.Profile())

	_, err = Compile(filepath.Join(t.TempDir(), "missing.wgsl"), "cs_main", ProfileWGSL)
	assert.Error(t, err)
}

func TestParseAnnotation(t *testing.T) {
	a, err := parseAnnotation("let x = 1; // not an annotation", 1)
	assert.NoError(t, err)
	assert.Nil(t, a)

	a, err = parseAnnotation("    //@tf:slot 2 5 blue_noise", 7)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, AnnotationTypeSlot, a.Type)
	assert.Equal(t, 2, *a.Group)
	assert.Equal(t, 5, *a.Binding)
	assert.Equal(t, 7, a.Line)

	_, err = parseAnnotation("//@tf:slot -1 0 noise", 1)
	assert.Error(t, err)
	_, err = parseAnnotation("//@tf:", 1)
	assert.Error(t, err)
}
