package constants

import (
	"github.com/Carmen-Shannon/terraforge-go/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultSunDir is the sun direction used at startup and whenever an edit leaves it at zero length.
var DefaultSunDir = mgl32.Vec3{0.577, -0.577, 0.577}

// CloudParams are the tunable cloud and lighting parameters. The control panel edits them
// in place; they reach the GPU only through UpdateCloud.
type CloudParams struct {
	SunDir            mgl32.Vec3
	SunIntensity      float32
	SunColor          mgl32.Vec3
	CloudScale        float32
	FogColor          mgl32.Vec3
	FogDensity        float32
	ShapeStrength     float32
	DetailStrength    float32
	DensityMultiplier float32
	StepSize          float32
	Coverage          float32
	Absorption        float32
}

// DefaultCloudParams returns the startup cloud parameters.
//
// Returns:
//   - CloudParams: the defaults
func DefaultCloudParams() CloudParams {
	return CloudParams{
		SunDir:            DefaultSunDir.Normalize(),
		SunIntensity:      1.0,
		SunColor:          mgl32.Vec3{1.0, 0.95, 0.85},
		CloudScale:        1.2,
		FogColor:          mgl32.Vec3{0.5, 0.6, 0.7},
		FogDensity:        0.01,
		ShapeStrength:     1.0,
		DetailStrength:    0.35,
		DensityMultiplier: 1.0,
		StepSize:          0.1,
		Coverage:          0.1,
		Absorption:        0.5,
	}
}

// Block converts the parameters to their GPU block with the sun direction renormalized.
//
// Returns:
//   - CloudBlock: the block ready for upload
func (p CloudParams) Block() CloudBlock {
	return CloudBlock{
		SunDir:            common.NormalizeOr(p.SunDir, DefaultSunDir),
		SunIntensity:      p.SunIntensity,
		SunColor:          p.SunColor,
		CloudScale:        p.CloudScale,
		FogColor:          p.FogColor,
		FogDensity:        p.FogDensity,
		ShapeStrength:     p.ShapeStrength,
		DetailStrength:    p.DetailStrength,
		DensityMultiplier: p.DensityMultiplier,
		StepSize:          p.StepSize,
		Coverage:          p.Coverage,
		Absorption:        p.Absorption,
	}
}
