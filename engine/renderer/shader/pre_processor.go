// pre_processor.go implements the WGSL pre-processor. It replaces @tf: annotations with
// included snippets or generated binding declarations and collects the declarations list
// that components use to find their bindings by role.
package shader

import (
	_ "embed"
	"fmt"
	"maps"
	"strings"

	"github.com/Carmen-Shannon/terraforge-go/engine/constants"
)

//go:embed assets/fullscreen.wgsl
var fullscreenSource string

//go:embed assets/noise_common.wgsl
var noiseCommonSource string

// maxIncludeDepth bounds nested includes so an include cycle fails instead of recursing forever.
const maxIncludeDepth = 8

// registryEntry pairs a WGSL struct definition with the type name emitted in generated declarations.
type registryEntry struct {
	Source string
	Type   string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// structRegistry maps struct keys to their WGSL definitions.
	structRegistry map[AnnotationArg]registryEntry

	// includeRegistry maps include names to WGSL snippets.
	includeRegistry map[string]string

	addressSpaceRegistry map[AnnotationArg]string

	// declarations holds group and slot annotations from the most recent Process call.
	declarations []Annotation
}

// PreProcessor expands @tf: annotations in WGSL source.
type PreProcessor interface {
	// Process expands every annotation in source. Include snippets are processed recursively
	// and each struct is emitted at most once per call.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: an error if an annotation is malformed or names an unknown include
	Process(source string) (string, error)

	// Declarations returns the group and slot annotations collected during the last Process call.
	//
	// Returns:
	//   - []Annotation: the declarations in source order
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the constant block structs and the built-in
// includes registered. extraIncludes are added on top and may shadow built-ins.
//
// Parameters:
//   - extraIncludes: additional include snippets keyed by name
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(extraIncludes map[string]string) PreProcessor {
	includes := map[string]string{
		"fullscreen":   fullscreenSource,
		"noise_common": noiseCommonSource,
	}
	maps.Copy(includes, extraIncludes)

	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgGlobalConstants: {Source: constants.GPUGlobalConstantsSource, Type: "GlobalConstants"},
			AnnotationArgCloudConstants:  {Source: constants.GPUCloudConstantsSource, Type: "CloudConstants"},
		},
		includeRegistry: includes,
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform: "var<uniform>",
			annotationArgStorageTypeRead:    "var<storage, read>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	emitted := make(map[AnnotationArg]bool)
	return p.process(source, "", 0, emitted)
}

func (p *preProcessor) process(source, origin string, depth int, emitted map[AnnotationArg]bool) (string, error) {
	if depth > maxIncludeDepth {
		return "", fmt.Errorf("include depth exceeds %d at %q", maxIncludeDepth, origin)
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			if origin != "" {
				return "", fmt.Errorf("include %q: %w", origin, err)
			}
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			name := string(a.Args[0])
			snippet, ok := p.includeRegistry[name]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @tf:include %q", a.Line, name)
			}
			expanded, err := p.process(snippet, name, depth+1, emitted)
			if err != nil {
				return "", err
			}
			out = append(out, expanded)
		case AnnotationTypeBindingGroup:
			structKey := a.Args[2]
			entry := p.structRegistry[structKey]
			if !emitted[structKey] {
				out = append(out, entry.Source)
				emitted[structKey] = true
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, p.addressSpaceRegistry[a.Args[0]], a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeSlot:
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", a.Line, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
