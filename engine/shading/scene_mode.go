package shading

// Variant is a shading program selected for a frame.
type Variant int

const (
	// VariantNone draws nothing.
	VariantNone Variant = iota
	VariantFlat
	VariantVolumetric
	VariantCloud
)

// String returns the variant's display name.
func (v Variant) String() string {
	switch v {
	case VariantFlat:
		return "flat"
	case VariantVolumetric:
		return "volumetric"
	case VariantCloud:
		return "cloud"
	}
	return "none"
}

// SceneMode holds the independent scene flags edited by the control panel.
type SceneMode struct {
	Flat       bool
	Volumetric bool
	Cloud      bool
}

// Variant resolves the flags to one variant. Cloud wins over Volumetric, which wins over
// Flat; with no flag set the result is VariantNone.
//
// Returns:
//   - Variant: the selected variant
func (m SceneMode) Variant() Variant {
	switch {
	case m.Cloud:
		return VariantCloud
	case m.Volumetric:
		return VariantVolumetric
	case m.Flat:
		return VariantFlat
	}
	return VariantNone
}
