package shader

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// reflection is what the compiler needs to know about a pre-processed WGSL module, read from
// naga's lowered IR.
type reflection struct {
	module *ir.Module
}

// reflectWGSL parses and lowers a pre-processed module.
func reflectWGSL(source string) (reflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return reflection{}, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return reflection{}, err
	}
	return reflection{module: module}, nil
}

// entry returns the named entry point.
func (r reflection) entry(name string) (ir.EntryPoint, bool) {
	for _, ep := range r.module.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return ir.EntryPoint{}, false
}

// firstOf returns the first entry point of stage in source order, or "".
func (r reflection) firstOf(stage ir.ShaderStage) string {
	for _, ep := range r.module.EntryPoints {
		if ep.Stage == stage {
			return ep.Name
		}
	}
	return ""
}

// bindGroupLayouts builds one layout descriptor per group, entries sorted by binding, every
// entry visible to visibility. Buffer entries carry the bound type's size as MinBindingSize.
// The second result maps group and binding to the declared variable name.
func (r reflection) bindGroupLayouts(visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	entries := make(map[int][]wgpu.BindGroupLayoutEntry)
	names := make(map[int]map[int]string)

	for _, gv := range r.module.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		group := int(gv.Binding.Group)
		entries[group] = append(entries[group], r.layoutEntry(gv, visibility))

		if names[group] == nil {
			names[group] = make(map[int]string)
		}
		names[group][int(gv.Binding.Binding)] = gv.Name
	}

	layouts := make(map[int]wgpu.BindGroupLayoutDescriptor, len(entries))
	for group, list := range entries {
		sort.Slice(list, func(i, j int) bool { return list[i].Binding < list[j].Binding })
		layouts[group] = wgpu.BindGroupLayoutDescriptor{Entries: list}
	}
	return layouts, names
}

var (
	sampleTypes = map[ir.ScalarKind]wgpu.TextureSampleType{
		ir.ScalarFloat: wgpu.TextureSampleTypeFloat,
		ir.ScalarSint:  wgpu.TextureSampleTypeSint,
		ir.ScalarUint:  wgpu.TextureSampleTypeUint,
	}

	storageAccess = map[ir.StorageAccess]wgpu.StorageTextureAccess{
		ir.StorageAccessWrite:     wgpu.StorageTextureAccessWriteOnly,
		ir.StorageAccessRead:      wgpu.StorageTextureAccessReadOnly,
		ir.StorageAccessReadWrite: wgpu.StorageTextureAccessReadWrite,
	}

	// texel formats allowed on storage textures
	texelFormats = map[ir.StorageFormat]wgpu.TextureFormat{
		ir.StorageFormatR8Unorm:       wgpu.TextureFormatR8Unorm,
		ir.StorageFormatR8Snorm:       wgpu.TextureFormatR8Snorm,
		ir.StorageFormatR8Uint:        wgpu.TextureFormatR8Uint,
		ir.StorageFormatR8Sint:        wgpu.TextureFormatR8Sint,
		ir.StorageFormatR16Uint:       wgpu.TextureFormatR16Uint,
		ir.StorageFormatR16Sint:       wgpu.TextureFormatR16Sint,
		ir.StorageFormatR16Float:      wgpu.TextureFormatR16Float,
		ir.StorageFormatRg8Unorm:      wgpu.TextureFormatRG8Unorm,
		ir.StorageFormatRg8Snorm:      wgpu.TextureFormatRG8Snorm,
		ir.StorageFormatRg8Uint:       wgpu.TextureFormatRG8Uint,
		ir.StorageFormatRg8Sint:       wgpu.TextureFormatRG8Sint,
		ir.StorageFormatR32Uint:       wgpu.TextureFormatR32Uint,
		ir.StorageFormatR32Sint:       wgpu.TextureFormatR32Sint,
		ir.StorageFormatR32Float:      wgpu.TextureFormatR32Float,
		ir.StorageFormatRg16Uint:      wgpu.TextureFormatRG16Uint,
		ir.StorageFormatRg16Sint:      wgpu.TextureFormatRG16Sint,
		ir.StorageFormatRg16Float:     wgpu.TextureFormatRG16Float,
		ir.StorageFormatRgba8Unorm:    wgpu.TextureFormatRGBA8Unorm,
		ir.StorageFormatRgba8Snorm:    wgpu.TextureFormatRGBA8Snorm,
		ir.StorageFormatRgba8Uint:     wgpu.TextureFormatRGBA8Uint,
		ir.StorageFormatRgba8Sint:     wgpu.TextureFormatRGBA8Sint,
		ir.StorageFormatBgra8Unorm:    wgpu.TextureFormatBGRA8Unorm,
		ir.StorageFormatRgb10a2Uint:   wgpu.TextureFormatRGB10A2Uint,
		ir.StorageFormatRgb10a2Unorm:  wgpu.TextureFormatRGB10A2Unorm,
		ir.StorageFormatRg11b10Ufloat: wgpu.TextureFormatRG11B10Ufloat,
		ir.StorageFormatRg32Uint:      wgpu.TextureFormatRG32Uint,
		ir.StorageFormatRg32Sint:      wgpu.TextureFormatRG32Sint,
		ir.StorageFormatRg32Float:     wgpu.TextureFormatRG32Float,
		ir.StorageFormatRgba16Uint:    wgpu.TextureFormatRGBA16Uint,
		ir.StorageFormatRgba16Sint:    wgpu.TextureFormatRGBA16Sint,
		ir.StorageFormatRgba16Float:   wgpu.TextureFormatRGBA16Float,
		ir.StorageFormatRgba32Uint:    wgpu.TextureFormatRGBA32Uint,
		ir.StorageFormatRgba32Sint:    wgpu.TextureFormatRGBA32Sint,
		ir.StorageFormatRgba32Float:   wgpu.TextureFormatRGBA32Float,
	}
)

// layoutEntry classifies one bound global variable by its address space and lowered type.
func (r reflection) layoutEntry(gv ir.GlobalVariable, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    gv.Binding.Binding,
		Visibility: visibility,
	}

	switch gv.Space {
	case ir.SpaceUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.MinBindingSize = uint64(ir.TypeSize(r.module, gv.Type))
		return entry
	case ir.SpaceStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if gv.Access == ir.StorageReadWrite {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		entry.Buffer.MinBindingSize = uint64(ir.TypeSize(r.module, gv.Type))
		return entry
	}

	if int(gv.Type) >= len(r.module.Types) {
		return entry
	}
	switch t := r.module.Types[gv.Type].Inner.(type) {
	case ir.SamplerType:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		if t.Comparison {
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
	case ir.ImageType:
		dim := viewDimension(t)
		switch t.Class {
		case ir.ImageClassStorage:
			entry.StorageTexture.ViewDimension = dim
			entry.StorageTexture.Format = texelFormats[t.StorageFormat]
			entry.StorageTexture.Access = storageAccess[t.StorageAccess]
		case ir.ImageClassDepth:
			entry.Texture.ViewDimension = dim
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
			entry.Texture.Multisampled = t.Multisampled
		case ir.ImageClassSampled:
			entry.Texture.ViewDimension = dim
			entry.Texture.SampleType = sampleTypes[t.SampledKind]
			entry.Texture.Multisampled = t.Multisampled
		}
	}
	return entry
}

// viewDimension maps an image's dimension and arrayness onto a texture view dimension.
func viewDimension(t ir.ImageType) wgpu.TextureViewDimension {
	switch t.Dim {
	case ir.Dim1D:
		return wgpu.TextureViewDimension1D
	case ir.Dim3D:
		return wgpu.TextureViewDimension3D
	case ir.DimCube:
		if t.Arrayed {
			return wgpu.TextureViewDimensionCubeArray
		}
		return wgpu.TextureViewDimensionCube
	default:
		if t.Arrayed {
			return wgpu.TextureViewDimension2DArray
		}
		return wgpu.TextureViewDimension2D
	}
}
