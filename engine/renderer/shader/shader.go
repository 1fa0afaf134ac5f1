package shader

import (
	"errors"
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// Stage identifies whether a program is a render program or a compute program.
type Stage int

const (
	// StageCompute is a program whose entry point is a @compute function.
	StageCompute Stage = iota

	// StageRender is a program whose entry point is a @fragment function paired with a @vertex
	// function from the same module.
	StageRender
)

// Compilation profiles.
const (
	// ProfileWGSL hands the pre-processed WGSL text to the device.
	ProfileWGSL = "wgsl"

	// ProfileSPIRV translates the pre-processed WGSL to SPIR-V before handing it to the device.
	ProfileSPIRV = "spirv"
)

var (
	// ErrUnknownProfile is returned when Compile is asked for a profile it does not support.
	ErrUnknownProfile = errors.New("shader: unknown profile")

	// ErrEntryPointNotFound is returned when the requested entry point is not declared in the source.
	ErrEntryPointNotFound = errors.New("shader: entry point not found")
)

// program is the implementation of the Program interface.
type program struct {
	label                      string
	profile                    string
	source                     string
	stage                      Stage
	entryPoint                 string
	vertexEntry                string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	declarations               []Annotation
	workGroupSize              [3]uint32
	module                     *wgpu.ShaderModuleDescriptor
}

// Program is a compiled shader stage program: the module handed to the device plus the
// layout information reflected from its source.
type Program interface {
	// Label returns the name the program was compiled under, usually its source path.
	//
	// Returns:
	//   - string: the program label
	Label() string

	// Profile returns the profile the program was compiled with.
	//
	// Returns:
	//   - string: ProfileWGSL or ProfileSPIRV
	Profile() string

	// Source returns the pre-processed WGSL source.
	//
	// Returns:
	//   - string: the expanded WGSL source
	Source() string

	// Stage returns whether this is a render or compute program.
	//
	// Returns:
	//   - Stage: StageRender or StageCompute
	Stage() Stage

	// EntryPoint returns the requested entry point: the fragment entry of a render program
	// or the compute entry of a compute program.
	//
	// Returns:
	//   - string: the entry point name
	EntryPoint() string

	// VertexEntry returns the vertex entry paired with a render program, empty for compute.
	//
	// Returns:
	//   - string: the vertex entry point name
	VertexEntry() string

	// BindGroupLayoutDescriptors returns the bind group layouts reflected from the source.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the WGSL variable bound at group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or empty if nothing is bound there
	BindGroupVarName(group, binding int) string

	// Slot resolves a role declared with //@tf:slot to its group and binding.
	//
	// Parameters:
	//   - role: the slot role
	//
	// Returns:
	//   - int: the group index
	//   - int: the binding index
	//   - bool: false if the source declares no slot with that role
	Slot(role AnnotationArg) (int, int, bool)

	// Declarations returns the group and slot annotations found while pre-processing.
	//
	// Returns:
	//   - []Annotation: the declarations in source order
	Declarations() []Annotation

	// WorkgroupSize returns the @workgroup_size of a compute program, [0, 0, 0] for render programs.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Module returns the descriptor used to create the device shader module.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: a WGSL or SPIR-V module descriptor
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Program = &program{}

func (p *program) Label() string      { return p.label }
func (p *program) Profile() string    { return p.profile }
func (p *program) Source() string     { return p.source }
func (p *program) Stage() Stage       { return p.stage }
func (p *program) EntryPoint() string { return p.entryPoint }
func (p *program) VertexEntry() string {
	return p.vertexEntry
}

func (p *program) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return p.bindGroupLayoutDescriptors
}

func (p *program) BindGroupVarName(group, binding int) string {
	if p.bindingVarNames[group] == nil {
		return ""
	}
	return p.bindingVarNames[group][binding]
}

func (p *program) Slot(role AnnotationArg) (int, int, bool) {
	for _, d := range p.declarations {
		if d.Type == AnnotationTypeSlot && d.Args[0] == role {
			return *d.Group, *d.Binding, true
		}
	}
	return 0, 0, false
}

func (p *program) Declarations() []Annotation {
	return p.declarations
}

func (p *program) WorkgroupSize() [3]uint32 {
	return p.workGroupSize
}

func (p *program) Module() *wgpu.ShaderModuleDescriptor {
	return p.module
}

// compiler is the implementation of the Compiler interface.
type compiler struct {
	includes map[string]string
}

// Compiler turns WGSL source files into Programs.
type Compiler interface {
	// Compile reads the WGSL file at path, expands its annotations and compiles it for profile.
	// The stage is derived from the attribute on entryPoint: @fragment yields a render program
	// paired with the module's @vertex entry, @compute yields a compute program.
	//
	// Parameters:
	//   - path: the WGSL source file
	//   - entryPoint: the fragment or compute entry point
	//   - profile: ProfileWGSL or ProfileSPIRV
	//
	// Returns:
	//   - Program: the compiled program
	//   - error: a read, pre-processing, entry point, or translation error
	Compile(path, entryPoint, profile string) (Program, error)

	// CompileSource is Compile for source already in memory.
	//
	// Parameters:
	//   - label: the program label used in errors and GPU object names
	//   - source: the raw WGSL source
	//   - entryPoint: the fragment or compute entry point
	//   - profile: ProfileWGSL or ProfileSPIRV
	//
	// Returns:
	//   - Program: the compiled program
	//   - error: a pre-processing, entry point, or translation error
	CompileSource(label, source, entryPoint, profile string) (Program, error)
}

var _ Compiler = &compiler{}

// NewCompiler creates a Compiler with the built-in includes registered.
//
// Parameters:
//   - options: functional options to configure the compiler
//
// Returns:
//   - Compiler: the compiler
func NewCompiler(options ...CompilerBuilderOption) Compiler {
	c := &compiler{
		includes: make(map[string]string),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Compile is a convenience for NewCompiler().Compile with the built-in includes.
//
// Parameters:
//   - path: the WGSL source file
//   - entryPoint: the fragment or compute entry point
//   - profile: ProfileWGSL or ProfileSPIRV
//
// Returns:
//   - Program: the compiled program
//   - error: any compile error
func Compile(path, entryPoint, profile string) (Program, error) {
	return NewCompiler().Compile(path, entryPoint, profile)
}

func (c *compiler) Compile(path, entryPoint, profile string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: read %q: %w", path, err)
	}
	return c.CompileSource(path, string(data), entryPoint, profile)
}

func (c *compiler) CompileSource(label, source, entryPoint, profile string) (Program, error) {
	if profile != ProfileWGSL && profile != ProfileSPIRV {
		return nil, fmt.Errorf("%w %q for %s", ErrUnknownProfile, profile, label)
	}

	pp := NewPreProcessor(c.includes)
	expanded, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader: pre-process %s: %w", label, err)
	}

	refl, err := reflectWGSL(expanded)
	if err != nil {
		return nil, fmt.Errorf("shader: reflect %s: %w", label, err)
	}
	ep, ok := refl.entry(entryPoint)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrEntryPointNotFound, entryPoint, label)
	}

	p := &program{
		label:        label,
		profile:      profile,
		source:       expanded,
		entryPoint:   entryPoint,
		declarations: append([]Annotation(nil), pp.Declarations()...),
	}

	var visibility wgpu.ShaderStage
	switch ep.Stage {
	case ir.StageCompute:
		p.stage = StageCompute
		p.workGroupSize = ep.Workgroup
		visibility = wgpu.ShaderStageCompute
	case ir.StageFragment:
		p.stage = StageRender
		p.vertexEntry = refl.firstOf(ir.StageVertex)
		if p.vertexEntry == "" {
			return nil, fmt.Errorf("%w: no @vertex entry to pair with %q in %s", ErrEntryPointNotFound, entryPoint, label)
		}
		visibility = wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	default:
		return nil, fmt.Errorf("shader: %q in %s must be a @fragment or @compute entry point", entryPoint, label)
	}
	p.bindGroupLayoutDescriptors, p.bindingVarNames = refl.bindGroupLayouts(visibility)

	switch profile {
	case ProfileWGSL:
		p.module = &wgpu.ShaderModuleDescriptor{
			Label: label,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: expanded,
			},
		}
	case ProfileSPIRV:
		spirv, err := naga.Compile(expanded)
		if err != nil {
			return nil, fmt.Errorf("shader: translate %s to SPIR-V: %w", label, err)
		}
		p.module = &wgpu.ShaderModuleDescriptor{
			Label: label,
			SPIRVDescriptor: &wgpu.ShaderModuleSPIRVDescriptor{
				Code: spirv,
			},
		}
	}
	return p, nil
}
