// annotations.go defines the annotation types and parser for the TerraForge WGSL
// pre-processor. Annotations are single-line WGSL comments prefixed with @tf: that drive
// source inclusion, constant block declaration and named resource slots.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a WGSL comment line.
const annotationPrefix = "@tf:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects a registered WGSL snippet at the annotation site.
	// It produces no declaration.
	//
	// Syntax: //@tf:include <name>
	//
	// Example: //@tf:include fullscreen
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding declaration for one of the
	// registered constant blocks and records it as a declaration.
	//
	// Syntax: //@tf:group <group> <binding> <address_space> <var_name> <struct>
	//
	// Example: //@tf:group 0 0 storage_uniform globals global_constants
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeSlot names the role of a hand-written binding declared directly below the
	// annotation. Components look up their bindings by role instead of by variable name.
	//
	// Syntax: //@tf:slot <group> <binding> <role>
	//
	// Example: //@tf:slot 1 0 noise
	AnnotationTypeSlot AnnotationType = "slot"
)

// Annotation represents a single parsed @tf: annotation.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = include name
	//   - group:   [0] = address space, [1] = var name, [2] = struct key
	//   - slot:    [0] = role
	Args []AnnotationArg

	// Line is the 1-based line number in the source file.
	Line int

	// Group is the @group index for group and slot annotations. Nil for include annotations.
	Group *int

	// Binding is the @binding index for group and slot annotations. Nil for include annotations.
	Binding *int
}

// AnnotationArg is a typed string used as an annotation argument.
type AnnotationArg string

// Struct keys accepted by @tf:group.
const (
	// AnnotationArgGlobalConstants identifies the per-frame GlobalConstants block.
	AnnotationArgGlobalConstants AnnotationArg = "global_constants"

	// AnnotationArgCloudConstants identifies the CloudConstants block.
	AnnotationArgCloudConstants AnnotationArg = "cloud_constants"
)

// Address spaces accepted by @tf:group.
const (
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"
	annotationArgStorageTypeRead    AnnotationArg = "storage_read"
)

// Slot roles accepted by @tf:slot.
const (
	// AnnotationArgNoise is the sampled noise atlas.
	AnnotationArgNoise AnnotationArg = "noise"

	// AnnotationArgBlueNoise is the blue-noise jitter texture.
	AnnotationArgBlueNoise AnnotationArg = "blue_noise"

	// AnnotationArgLinearSampler is the linear-filtering, repeat-addressing sampler.
	AnnotationArgLinearSampler AnnotationArg = "linear_sampler"

	// AnnotationArgPointSampler is the nearest-filtering, clamp-addressing sampler.
	AnnotationArgPointSampler AnnotationArg = "point_sampler"

	// AnnotationArgNoiseOutput is the write-only storage binding of the noise baker.
	AnnotationArgNoiseOutput AnnotationArg = "noise_output"
)

var validStructTypes = []AnnotationArg{
	AnnotationArgGlobalConstants,
	AnnotationArgCloudConstants,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
}

var validSlotRoles = []AnnotationArg{
	AnnotationArgNoise,
	AnnotationArgBlueNoise,
	AnnotationArgLinearSampler,
	AnnotationArgPointSampler,
	AnnotationArgNoiseOutput,
}

// parseAnnotation attempts to parse a single line of WGSL source as a @tf: annotation.
// Lines without the prefix return nil and no error.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @tf annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @tf include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @tf group annotation requires five arguments (group, binding, address space, var name, struct)", lineNum)
		}
		group, binding, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @tf group annotation", lineNum, args[3])
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[5])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @tf group annotation", lineNum, args[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case string(AnnotationTypeSlot):
		if len(args) != 4 {
			return nil, fmt.Errorf("line %d: @tf slot annotation requires three arguments (group, binding, role)", lineNum)
		}
		group, binding, err := parseGroupBinding(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validSlotRoles, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown slot role %q in @tf slot annotation", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeSlot,
			Args:    []AnnotationArg{AnnotationArg(args[3])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @tf annotation type %q", lineNum, args[0])
	}
}

func parseGroupBinding(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil || group < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q", lineNum, groupArg)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil || binding < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q", lineNum, bindingArg)
	}
	return group, binding, nil
}
