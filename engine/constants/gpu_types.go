package constants

import (
	_ "embed"
	"unsafe"

	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUGlobalConstantsSource is the WGSL definition of the GlobalConstants struct.
// Matches GlobalBlock exactly (80 bytes).
//
//go:embed assets/global_constants.wgsl
var GPUGlobalConstantsSource string

// GPUCloudConstantsSource is the WGSL definition of the CloudConstants struct.
// Matches CloudBlock exactly (80 bytes).
//
//go:embed assets/cloud_constants.wgsl
var GPUCloudConstantsSource string

// GlobalBlock is the per-frame parameter block bound at group 0 binding 0.
type GlobalBlock struct {
	CameraPos     mgl32.Vec3 // offset  0
	Time          float32    // offset 12: seconds since start
	CameraForward mgl32.Vec3 // offset 16
	TanHalfFov    float32    // offset 28
	CameraRight   mgl32.Vec3 // offset 32
	DeltaTime     float32    // offset 44
	CameraUp      mgl32.Vec3 // offset 48
	FrameIndex    uint32     // offset 60
	Resolution    mgl32.Vec2 // offset 64: viewport size in pixels
	_pad          mgl32.Vec2 // offset 72
}

// Size returns the size of the GlobalBlock in bytes.
//
// Returns:
//   - int: the block size in bytes (80)
func (g *GlobalBlock) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the block in the WGSL uniform layout.
//
// Returns:
//   - []byte: the serialized block
func (g *GlobalBlock) Marshal() []byte {
	buf := make([]byte, g.Size())
	common.PutVec3(buf, 0, g.CameraPos)
	common.PutFloat32(buf, 12, g.Time)
	common.PutVec3(buf, 16, g.CameraForward)
	common.PutFloat32(buf, 28, g.TanHalfFov)
	common.PutVec3(buf, 32, g.CameraRight)
	common.PutFloat32(buf, 44, g.DeltaTime)
	common.PutVec3(buf, 48, g.CameraUp)
	common.PutUint32(buf, 60, g.FrameIndex)
	common.PutFloat32(buf, 64, g.Resolution[0])
	common.PutFloat32(buf, 68, g.Resolution[1])
	return buf
}

// CloudBlock is the cloud and lighting parameter block bound at group 0 binding 1.
type CloudBlock struct {
	SunDir            mgl32.Vec3 // offset  0: unit direction the sunlight travels
	SunIntensity      float32    // offset 12
	SunColor          mgl32.Vec3 // offset 16
	CloudScale        float32    // offset 28: noise frequency
	FogColor          mgl32.Vec3 // offset 32
	FogDensity        float32    // offset 44
	ShapeStrength     float32    // offset 48
	DetailStrength    float32    // offset 52
	DensityMultiplier float32    // offset 56
	StepSize          float32    // offset 60: raymarch step length
	Coverage          float32    // offset 64: density threshold
	Absorption        float32    // offset 68: Beer-Lambert coefficient
	_pad              mgl32.Vec2 // offset 72
}

// Size returns the size of the CloudBlock in bytes.
//
// Returns:
//   - int: the block size in bytes (80)
func (c *CloudBlock) Size() int {
	return int(unsafe.Sizeof(*c))
}

// Marshal serializes the block in the WGSL uniform layout.
//
// Returns:
//   - []byte: the serialized block
func (c *CloudBlock) Marshal() []byte {
	buf := make([]byte, c.Size())
	common.PutVec3(buf, 0, c.SunDir)
	common.PutFloat32(buf, 12, c.SunIntensity)
	common.PutVec3(buf, 16, c.SunColor)
	common.PutFloat32(buf, 28, c.CloudScale)
	common.PutVec3(buf, 32, c.FogColor)
	common.PutFloat32(buf, 44, c.FogDensity)
	common.PutFloat32(buf, 48, c.ShapeStrength)
	common.PutFloat32(buf, 52, c.DetailStrength)
	common.PutFloat32(buf, 56, c.DensityMultiplier)
	common.PutFloat32(buf, 60, c.StepSize)
	common.PutFloat32(buf, 64, c.Coverage)
	common.PutFloat32(buf, 68, c.Absorption)
	return buf
}
