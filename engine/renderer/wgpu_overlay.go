package renderer

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/overlay.wgsl
var overlayShaderSource string

// wgpuOverlay draws UI overlay frames with alpha blending on top of the scene pass.
type wgpuOverlay struct {
	device *wgpu.Device

	uniformLayout *wgpu.BindGroupLayout
	textureLayout *wgpu.BindGroupLayout
	layout        *wgpu.PipelineLayout
	pipeline      *wgpu.RenderPipeline
	sampler       *wgpu.Sampler

	uniforms     *wgpu.Buffer
	uniformGroup *wgpu.BindGroup

	textures map[OverlayTextureID]*wgpu.BindGroup
}

// newWGPUOverlay builds the overlay pipeline for the surface format.
func newWGPUOverlay(device *wgpu.Device, format wgpu.TextureFormat) (*wgpuOverlay, error) {
	o := &wgpuOverlay{
		device:   device,
		textures: make(map[OverlayTextureID]*wgpu.BindGroup),
	}
	if err := o.init(format); err != nil {
		o.release()
		return nil, err
	}
	return o, nil
}

func (o *wgpuOverlay) init(format wgpu.TextureFormat) error {
	var err error
	o.uniformLayout, err = o.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Overlay Uniform Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("overlay uniform layout: %w", err)
	}

	o.textureLayout, err = o.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Overlay Texture Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("overlay texture layout: %w", err)
	}

	o.layout, err = o.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Overlay Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{o.uniformLayout, o.textureLayout},
	})
	if err != nil {
		return fmt.Errorf("overlay pipeline layout: %w", err)
	}

	module, err := o.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Overlay Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: overlayShaderSource},
	})
	if err != nil {
		return fmt.Errorf("overlay shader: %w", err)
	}
	defer module.Release()

	o.pipeline, err = o.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Overlay Render Pipeline",
		Layout: o.layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_overlay",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: OverlayVertexStride,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
						{Format: wgpu.VertexFormatUnorm8x4, Offset: 16, ShaderLocation: 2},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_overlay",
			Targets: []wgpu.ColorTargetState{
				{
					Format: format,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
						Alpha: wgpu.BlendComponent{
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
							Operation: wgpu.BlendOperationAdd,
						},
					},
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
		return fmt.Errorf("overlay pipeline: %w", err)
	}

	o.sampler, err = o.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Overlay Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("overlay sampler: %w", err)
	}

	o.uniforms, err = o.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Overlay Uniforms",
		Size:  64,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("overlay uniforms: %w", err)
	}

	o.uniformGroup, err = o.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Overlay Uniform Bind Group",
		Layout: o.uniformLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: o.uniforms, Size: 64},
		},
	})
	if err != nil {
		return fmt.Errorf("overlay uniform bind group: %w", err)
	}
	return nil
}

// setTexture binds view under id, replacing any previous binding.
func (o *wgpuOverlay) setTexture(id OverlayTextureID, view *wgpu.TextureView) error {
	group, err := o.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  fmt.Sprintf("Overlay Texture %d", id),
		Layout: o.textureLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: o.sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("overlay texture %d: %w", id, err)
	}
	if old, ok := o.textures[id]; ok {
		old.Release()
	}
	o.textures[id] = group
	return nil
}

// draw records frame into pass. The returned buffers stay referenced by the pass and must be
// released after it is submitted.
func (o *wgpuOverlay) draw(queue *wgpu.Queue, pass *wgpu.RenderPassEncoder, frame OverlayFrame, fbWidth, fbHeight uint32) ([]*wgpu.Buffer, error) {
	scale := frame.FramebufferScale
	if scale[0] == 0 || scale[1] == 0 {
		scale = [2]float32{1, 1}
	}

	projection := mgl32.Ortho(0, frame.DisplaySize[0], frame.DisplaySize[1], 0, -1, 1)
	if err := queue.WriteBuffer(o.uniforms, 0, common.SliceToBytes(projection[:])); err != nil {
		return nil, fmt.Errorf("overlay projection: %w", err)
	}

	indexFormat := wgpu.IndexFormatUint16
	if frame.IndexSize == 4 {
		indexFormat = wgpu.IndexFormatUint32
	}

	pass.SetPipeline(o.pipeline)
	pass.SetBindGroup(0, o.uniformGroup, nil)

	var transient []*wgpu.Buffer
	for i, list := range frame.Lists {
		if len(list.Commands) == 0 || len(list.Vertices) == 0 || len(list.Indices) == 0 {
			continue
		}
		vertices, err := o.upload(queue, fmt.Sprintf("Overlay Vertices %d", i), wgpu.BufferUsageVertex, list.Vertices)
		if err != nil {
			return transient, err
		}
		transient = append(transient, vertices)
		indices, err := o.upload(queue, fmt.Sprintf("Overlay Indices %d", i), wgpu.BufferUsageIndex, list.Indices)
		if err != nil {
			return transient, err
		}
		transient = append(transient, indices)

		pass.SetVertexBuffer(0, vertices, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(indices, indexFormat, 0, wgpu.WholeSize)

		for _, cmd := range list.Commands {
			group, ok := o.textures[cmd.Texture]
			if !ok {
				return transient, fmt.Errorf("overlay texture %d not registered", cmd.Texture)
			}
			x, y, w, h, visible := scissor(cmd.ClipRect, scale, fbWidth, fbHeight)
			if !visible {
				continue
			}
			pass.SetScissorRect(x, y, w, h)
			pass.SetBindGroup(1, group, nil)
			pass.DrawIndexed(cmd.ElementCount, 1, cmd.IndexOffset, 0, 0)
		}
	}
	pass.SetScissorRect(0, 0, fbWidth, fbHeight)
	return transient, nil
}

// upload creates a buffer holding data padded to the 4-byte copy alignment.
func (o *wgpuOverlay) upload(queue *wgpu.Queue, label string, usage wgpu.BufferUsage, data []byte) (*wgpu.Buffer, error) {
	size := (uint64(len(data)) + 3) &^ 3
	buf, err := o.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	if uint64(len(data)) != size {
		data = append(append([]byte(nil), data...), make([]byte, size-uint64(len(data)))...)
	}
	if err := queue.WriteBuffer(buf, 0, data); err != nil {
		buf.Release()
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return buf, nil
}

// scissor converts a logical clip rect to framebuffer pixels clamped to the target.
func scissor(clip [4]float32, scale [2]float32, fbWidth, fbHeight uint32) (x, y, w, h uint32, visible bool) {
	minX := mgl32.Clamp(clip[0]*scale[0], 0, float32(fbWidth))
	minY := mgl32.Clamp(clip[1]*scale[1], 0, float32(fbHeight))
	maxX := mgl32.Clamp(clip[2]*scale[0], 0, float32(fbWidth))
	maxY := mgl32.Clamp(clip[3]*scale[1], 0, float32(fbHeight))
	if maxX <= minX || maxY <= minY {
		return 0, 0, 0, 0, false
	}
	return uint32(minX), uint32(minY), uint32(maxX - minX), uint32(maxY - minY), true
}

func (o *wgpuOverlay) release() {
	for id, g := range o.textures {
		g.Release()
		delete(o.textures, id)
	}
	if o.uniformGroup != nil {
		o.uniformGroup.Release()
		o.uniformGroup = nil
	}
	if o.uniforms != nil {
		o.uniforms.Release()
		o.uniforms = nil
	}
	if o.sampler != nil {
		o.sampler.Release()
		o.sampler = nil
	}
	if o.pipeline != nil {
		o.pipeline.Release()
		o.pipeline = nil
	}
	if o.layout != nil {
		o.layout.Release()
		o.layout = nil
	}
	if o.textureLayout != nil {
		o.textureLayout.Release()
		o.textureLayout = nil
	}
	if o.uniformLayout != nil {
		o.uniformLayout.Release()
		o.uniformLayout = nil
	}
}
