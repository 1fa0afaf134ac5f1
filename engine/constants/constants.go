package constants

import (
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/terraforge-go/engine/camera"
	"github.com/Carmen-Shannon/terraforge-go/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// Group is the bind group index both constant blocks live in.
const Group = 0

// Binding slots of the two blocks within Group.
const (
	GlobalBinding uint32 = 0
	CloudBinding  uint32 = 1
)

type frameConstants struct {
	mu *sync.Mutex

	backend renderer.Backend
	cloud   *CloudParams

	globalBuffer renderer.Buffer
	cloudBuffer  renderer.Buffer
	bindGroup    renderer.BindGroup

	global     GlobalBlock
	cloudBlock CloudBlock
	frameIndex uint32
}

// FrameConstants owns the two GPU parameter blocks shared by every shading variant.
//
// The Global block is rewritten in full once per frame. The Cloud block is rewritten only at
// construction and when UpdateCloud is called after an edit. If the GPU buffers could not be
// created every update and bind is a silent no-op.
type FrameConstants interface {
	// Cloud returns the editable cloud parameters. Edits take effect at the next UpdateCloud.
	//
	// Returns:
	//   - *CloudParams: the live parameter set
	Cloud() *CloudParams

	// UpdateGlobal rebuilds the Global block from the camera and frame timing and uploads it.
	// A failed write is logged and skipped for this frame only.
	//
	// Parameters:
	//   - cam: the camera supplying position and basis
	//   - elapsed: seconds since start
	//   - delta: the frame time step in seconds
	//   - width: viewport width in pixels
	//   - height: viewport height in pixels
	UpdateGlobal(cam camera.Camera, elapsed, delta, width, height float32)

	// UpdateCloud renormalizes the sun direction and uploads the whole Cloud block.
	UpdateCloud()

	// Attach creates the group 0 bind group against a pipeline whose group 0 declares both blocks.
	// Every shading variant declares an identical group 0, so one bind group serves them all.
	//
	// Parameters:
	//   - layout: the pipeline supplying the group 0 layout
	//
	// Returns:
	//   - error: an error if the bind group could not be created
	Attach(layout renderer.LayoutProvider) error

	// Bind binds group 0 on the pass. Called every frame whether or not either block changed.
	//
	// Parameters:
	//   - pass: the frame's render pass
	Bind(pass renderer.Pass)

	// Global returns the last uploaded Global block.
	Global() GlobalBlock

	// CloudBlock returns the last uploaded Cloud block.
	CloudBlock() CloudBlock

	// GlobalBuffer returns the Global block's GPU buffer, nil when creation failed.
	GlobalBuffer() renderer.Buffer

	// CloudBuffer returns the Cloud block's GPU buffer, nil when creation failed.
	CloudBuffer() renderer.Buffer

	// Release releases the buffers and bind group.
	Release()
}

var _ FrameConstants = &frameConstants{}

// NewFrameConstants creates both blocks' buffers and uploads the initial Cloud block.
// Buffer creation failure is logged and leaves the constants in the no-op state.
//
// Parameters:
//   - backend: the GPU backend
//   - options: functional options to configure the constants
//
// Returns:
//   - FrameConstants: the constants
func NewFrameConstants(backend renderer.Backend, options ...FrameConstantsBuilderOption) FrameConstants {
	params := DefaultCloudParams()
	fc := &frameConstants{
		mu:      &sync.Mutex{},
		backend: backend,
		cloud:   &params,
	}
	for _, opt := range options {
		opt(fc)
	}

	usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	globalBuffer, err := backend.CreateBuffer(renderer.BufferDescriptor{
		Label: "Global Constants",
		Size:  uint64(fc.global.Size()),
		Usage: usage,
	})
	if err != nil {
		log.Printf("constants: create global buffer: %v", err)
		return fc
	}
	cloudBuffer, err := backend.CreateBuffer(renderer.BufferDescriptor{
		Label: "Cloud Constants",
		Size:  uint64(fc.cloudBlock.Size()),
		Usage: usage,
	})
	if err != nil {
		log.Printf("constants: create cloud buffer: %v", err)
		globalBuffer.Release()
		return fc
	}
	fc.globalBuffer = globalBuffer
	fc.cloudBuffer = cloudBuffer

	fc.UpdateCloud()
	return fc
}

func (fc *frameConstants) Cloud() *CloudParams {
	return fc.cloud
}

func (fc *frameConstants) UpdateGlobal(cam camera.Camera, elapsed, delta, width, height float32) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.globalBuffer == nil || cam == nil {
		return
	}

	block := GlobalBlock{
		CameraPos:     cam.Position(),
		Time:          elapsed,
		CameraForward: cam.Forward(),
		TanHalfFov:    cam.TanHalfFov(),
		CameraRight:   cam.Right(),
		DeltaTime:     delta,
		CameraUp:      cam.Up(),
		FrameIndex:    fc.frameIndex,
	}
	block.Resolution[0] = width
	block.Resolution[1] = height
	fc.frameIndex++

	if err := fc.backend.WriteBuffer(fc.globalBuffer, 0, block.Marshal()); err != nil {
		log.Printf("constants: write global block: %v", err)
		return
	}
	fc.global = block
}

func (fc *frameConstants) UpdateCloud() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.cloudBuffer == nil {
		return
	}

	block := fc.cloud.Block()
	// keep the edited parameters consistent with what the GPU sees
	fc.cloud.SunDir = block.SunDir

	if err := fc.backend.WriteBuffer(fc.cloudBuffer, 0, block.Marshal()); err != nil {
		log.Printf("constants: write cloud block: %v", err)
		return
	}
	fc.cloudBlock = block
}

func (fc *frameConstants) Attach(layout renderer.LayoutProvider) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.globalBuffer == nil || fc.cloudBuffer == nil {
		return nil
	}
	if fc.bindGroup != nil {
		fc.bindGroup.Release()
		fc.bindGroup = nil
	}

	group, err := fc.backend.CreateBindGroup(renderer.BindGroupDescriptor{
		Label:    "Frame Constants",
		Pipeline: layout,
		Group:    Group,
		Entries: []renderer.BindGroupEntry{
			{Binding: GlobalBinding, Buffer: fc.globalBuffer},
			{Binding: CloudBinding, Buffer: fc.cloudBuffer},
		},
	})
	if err != nil {
		return fmt.Errorf("constants: create bind group: %w", err)
	}
	fc.bindGroup = group
	return nil
}

func (fc *frameConstants) Bind(pass renderer.Pass) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.bindGroup == nil || pass == nil {
		return
	}
	pass.SetBindGroup(Group, fc.bindGroup)
}

func (fc *frameConstants) Global() GlobalBlock {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.global
}

func (fc *frameConstants) CloudBlock() CloudBlock {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.cloudBlock
}

func (fc *frameConstants) GlobalBuffer() renderer.Buffer {
	return fc.globalBuffer
}

func (fc *frameConstants) CloudBuffer() renderer.Buffer {
	return fc.cloudBuffer
}

func (fc *frameConstants) Release() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.bindGroup != nil {
		fc.bindGroup.Release()
		fc.bindGroup = nil
	}
	if fc.globalBuffer != nil {
		fc.globalBuffer.Release()
		fc.globalBuffer = nil
	}
	if fc.cloudBuffer != nil {
		fc.cloudBuffer.Release()
		fc.cloudBuffer = nil
	}
}
