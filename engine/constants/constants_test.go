package constants

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/Carmen-Shannon/terraforge-go/engine/camera"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer/headless"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantsPipeline(t *testing.T, backend renderer.Backend) renderer.RenderPipeline {
	t.Helper()
	uniform := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding: binding,
			Buffer:  wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: 80},
		}
	}
	p, err := backend.CreateRenderPipeline(renderer.RenderPipelineDescriptor{
		Label:         "variant",
		Module:        &wgpu.ShaderModuleDescriptor{},
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Layouts: map[int]wgpu.BindGroupLayoutDescriptor{
			0: {Entries: []wgpu.BindGroupLayoutEntry{uniform(0), uniform(1)}},
		},
	})
	require.NoError(t, err)
	return p
}

func TestBlockSizes(t *testing.T) {
	var g GlobalBlock
	var c CloudBlock
	assert.Equal(t, 80, g.Size())
	assert.Equal(t, 80, c.Size())
	assert.Len(t, g.Marshal(), 80)
	assert.Len(t, c.Marshal(), 80)
}

func TestUpdateGlobalReadBack(t *testing.T) {
	backend := headless.NewBackend()
	fc := NewFrameConstants(backend)

	cam := camera.NewCamera(camera.WithFov(60))
	fc.UpdateGlobal(cam, 3.5, 0.016, 1280, 720)
	fc.UpdateGlobal(cam, 4.0, 0.02, 1920, 1080)

	data, err := backend.ReadBuffer(fc.GlobalBuffer())
	require.NoError(t, err)
	require.Len(t, data, 80)

	assert.Equal(t, cam.Position(), common.Vec3At(data, 0))
	assert.Equal(t, float32(4.0), common.Float32At(data, 12))
	assert.Equal(t, cam.Forward(), common.Vec3At(data, 16))
	assert.InDelta(t, cam.TanHalfFov(), common.Float32At(data, 28), 1e-6)
	assert.Equal(t, float32(0.02), common.Float32At(data, 44))
	assert.Equal(t, float32(1920), common.Float32At(data, 64))
	assert.Equal(t, float32(1080), common.Float32At(data, 68))
	assert.Equal(t, uint32(1), fc.Global().FrameIndex)
}

func TestUpdateCloudKeepsSunUnit(t *testing.T) {
	tests := []struct {
		name string
		sun  mgl32.Vec3
		want mgl32.Vec3
	}{
		{name: "default", sun: DefaultSunDir, want: DefaultSunDir.Normalize()},
		{name: "long", sun: mgl32.Vec3{0, -10, 0}, want: mgl32.Vec3{0, -1, 0}},
		{name: "short", sun: mgl32.Vec3{0.001, 0, 0}, want: mgl32.Vec3{1, 0, 0}},
		{name: "zero falls back", sun: mgl32.Vec3{}, want: DefaultSunDir.Normalize()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := headless.NewBackend()
			fc := NewFrameConstants(backend)

			fc.Cloud().SunDir = tt.sun
			fc.UpdateCloud()

			data, err := backend.ReadBuffer(fc.CloudBuffer())
			require.NoError(t, err)
			got := common.Vec3At(data, 0)
			assert.InDelta(t, 1.0, got.Len(), 1e-5)
			assert.True(t, got.ApproxEqualThreshold(tt.want, 1e-5), "got %v want %v", got, tt.want)
			assert.Equal(t, got, fc.Cloud().SunDir)
		})
	}
}

func TestCloudDefaultsUploaded(t *testing.T) {
	backend := headless.NewBackend()
	fc := NewFrameConstants(backend)

	data, err := backend.ReadBuffer(fc.CloudBuffer())
	require.NoError(t, err)
	assert.Equal(t, float32(1.0), common.Float32At(data, 12))
	assert.Equal(t, float32(1.2), common.Float32At(data, 28))
	assert.Equal(t, float32(0.35), common.Float32At(data, 52))
	assert.Equal(t, float32(0.1), common.Float32At(data, 60))
	assert.Equal(t, float32(0.5), common.Float32At(data, 68))
}

func TestWithCloudParams(t *testing.T) {
	params := DefaultCloudParams()
	params.Coverage = 0.75
	fc := NewFrameConstants(headless.NewBackend(), WithCloudParams(params))

	assert.Equal(t, float32(0.75), fc.CloudBlock().Coverage)
}

func TestAttachAndBind(t *testing.T) {
	backend := headless.NewBackend()
	require.NoError(t, backend.ConfigureSurface(4, 4, renderer.PresentModeUncapped))
	fc := NewFrameConstants(backend)
	pipeline := constantsPipeline(t, backend)

	require.NoError(t, fc.Attach(pipeline))
	require.NoError(t, fc.Attach(pipeline))
	assert.Equal(t, 1, backend.LiveBindGroups())

	rt, err := backend.AcquireTarget()
	require.NoError(t, err)
	pass, err := backend.BeginPass(rt, renderer.Color{}, renderer.Viewport{})
	require.NoError(t, err)
	pass.SetPipeline(pipeline)
	fc.Bind(pass)
	pass.Draw(3, 1, 0, 0)
	require.NoError(t, backend.EndPass(pass))

	draws := backend.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "Frame Constants", draws[0].Groups[Group])

	fc.Release()
	assert.Equal(t, 0, backend.LiveBindGroups())
}

func TestNoOpWithoutBuffers(t *testing.T) {
	backend := headless.NewBackend()
	backend.Fail(headless.OpCreateBuffer, errors.New("out of memory"))
	fc := NewFrameConstants(backend)

	assert.Nil(t, fc.GlobalBuffer())
	assert.Nil(t, fc.CloudBuffer())

	fc.UpdateGlobal(camera.NewCamera(), 1, 1, 10, 10)
	fc.UpdateCloud()
	assert.NoError(t, fc.Attach(nil))
	fc.Bind(nil)
	assert.Equal(t, GlobalBlock{}, fc.Global())
}

func TestWriteFailureSkipsFrame(t *testing.T) {
	backend := headless.NewBackend()
	fc := NewFrameConstants(backend)
	cam := camera.NewCamera()

	fc.UpdateGlobal(cam, 1, 0.5, 100, 100)
	backend.Fail(headless.OpWriteBuffer, errors.New("lost"))
	fc.UpdateGlobal(cam, 2, 0.5, 100, 100)
	assert.Equal(t, float32(1), fc.Global().Time)

	backend.Fail(headless.OpWriteBuffer, nil)
	fc.UpdateGlobal(cam, 3, 0.5, 100, 100)
	assert.Equal(t, float32(3), fc.Global().Time)
}
