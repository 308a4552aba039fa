package shader

import (
	"fmt"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

// ShaderType identifies which pipeline stages a shader source provides.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex indicates a shader containing a @vertex entry point.
	ShaderTypeVertex

	// ShaderTypeFragment indicates a shader containing a @fragment entry point.
	ShaderTypeFragment

	// ShaderTypeRender indicates a single source providing both a @vertex and a @fragment
	// entry point, sharing one set of bindings.
	ShaderTypeRender
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	case ShaderTypeRender:
		return "render"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	entryPoints   map[ShaderType]string
	bindings      []Binding
	layouts       map[int]wgpu.BindGroupLayoutDescriptor
	structs       map[string]StructLayout
	workGroupSize [3]uint32
	module        *wgpu.ShaderModuleDescriptor

	pp PreProcessor
}

// Shader is a pre-processed and reflected WGSL program. It exposes what pipeline creation and
// resource wiring need: entry points, workgroup size, bindings, and struct layouts.
type Shader interface {
	// Key retrieves the unique identifier for this shader, also used as its debug label.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source.
	//
	// Returns:
	//   - string: the WGSL source with every @oxy: annotation expanded
	Source() string

	// ShaderType returns the stages this shader provides.
	//
	// Returns:
	//   - ShaderType: ShaderTypeCompute, ShaderTypeVertex, ShaderTypeFragment or ShaderTypeRender
	ShaderType() ShaderType

	// EntryPoint returns the primary entry point: the compute entry of a compute shader, the
	// vertex entry of a vertex or render shader, the fragment entry of a fragment shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// StageEntryPoint returns the entry point of one stage.
	//
	// Parameters:
	//   - stage: ShaderTypeCompute, ShaderTypeVertex or ShaderTypeFragment
	//
	// Returns:
	//   - string: the entry point name, or "" if the shader has no entry for the stage
	StageEntryPoint(stage ShaderType) string

	// Visibility returns the shader stage flags the bindings of this shader are visible to.
	Visibility() wgpu.ShaderStage

	// WorkgroupSize returns the parsed @workgroup_size of a compute shader. Omitted dimensions
	// are 1; non-compute shaders return [0, 0, 0].
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Bindings returns every resource declaration ordered by group then binding.
	Bindings() []Binding

	// Binding returns one resource declaration.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - Binding: the declaration
	//   - bool: false if nothing is declared at group/binding
	Binding(group, binding int) (Binding, bool)

	// BindGroupLayoutDescriptor returns the layout inferred for one group, or an empty
	// descriptor if the group is not used.
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors returns the inferred layouts keyed by group index.
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the variable name declared at group/binding, or "".
	BindGroupVarName(group, binding int) string

	// BindingTypeName returns the WGSL type declared at group/binding, or "".
	BindingTypeName(group, binding int) string

	// StructLayout returns the host-shareable layout of a struct declared in the source.
	//
	// Parameters:
	//   - name: the WGSL struct name
	//
	// Returns:
	//   - StructLayout: the layout with member offsets
	//   - bool: false if the struct is not declared or has unresolvable members
	StructLayout(name string) (StructLayout, bool)

	// Module returns the shader module descriptor built from the pre-processed source.
	Module() *wgpu.ShaderModuleDescriptor

	// Declarations returns the @oxy:group and @oxy:provider annotations of the source.
	Declarations() []Annotation

	// Validate runs the source through the naga WGSL front end and SPIR-V back end. It catches
	// syntax and type errors before the source reaches the driver.
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrProgramCompilationFailed if naga rejects the source
	Validate() error
}

var _ Shader = &shader{}

// NewShader pre-processes and reflects WGSL source.
//
// Parameters:
//   - key: a unique identifier for the shader, used as its debug label
//   - shaderType: the stages the source must provide
//   - source: raw WGSL source, may contain @oxy: annotations
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error wrapping gpu.ErrProgramCompilationFailed if the source is empty, an
//     annotation is malformed, or a required entry point is missing
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: shader %s: empty source", gpu.ErrProgramCompilationFailed, key)
	}
	s := &shader{
		key:         key,
		shaderType:  shaderType,
		entryPoints: make(map[ShaderType]string),
		pp:          NewPreProcessor(),
	}
	if err := s.parseSource(source); err != nil {
		return nil, fmt.Errorf("%w: shader %s: %v", gpu.ErrProgramCompilationFailed, key, err)
	}
	return s, nil
}

// NewShaderFromPath reads WGSL source from a file and passes it to NewShader.
func NewShaderFromPath(key string, shaderType ShaderType, sourcePath string) (Shader, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", sourcePath, err)
	}
	return NewShader(key, shaderType, string(data))
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	if s.shaderType == ShaderTypeRender {
		return s.entryPoints[ShaderTypeVertex]
	}
	return s.entryPoints[s.shaderType]
}

func (s *shader) StageEntryPoint(stage ShaderType) string {
	return s.entryPoints[stage]
}

func (s *shader) Visibility() wgpu.ShaderStage {
	switch s.shaderType {
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeRender:
		return wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	default:
		return wgpu.ShaderStageNone
	}
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) Binding(group, binding int) (Binding, bool) {
	for _, b := range s.bindings {
		if b.Group == group && b.Binding == binding {
			return b, true
		}
	}
	return Binding{}, false
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.layouts[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.layouts
}

func (s *shader) BindGroupVarName(group, binding int) string {
	b, _ := s.Binding(group, binding)
	return b.VarName
}

func (s *shader) BindingTypeName(group, binding int) string {
	b, _ := s.Binding(group, binding)
	return b.TypeName
}

func (s *shader) StructLayout(name string) (StructLayout, bool) {
	l, ok := s.structs[name]
	return l, ok
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

func (s *shader) Validate() error {
	if _, err := naga.Compile(s.source); err != nil {
		return fmt.Errorf("%w: shader %s: %v", gpu.ErrProgramCompilationFailed, s.key, err)
	}
	return nil
}

// parseSource expands annotations, builds the module descriptor, then reflects entry points,
// workgroup size, struct layouts and bindings from the expanded source.
func (s *shader) parseSource(raw string) error {
	var err error
	if s.source, err = s.pp.Process(raw); err != nil {
		return err
	}
	s.module = &wgpu.ShaderModuleDescriptor{
		Label:          s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: s.source},
	}

	var stages []ShaderType
	switch s.shaderType {
	case ShaderTypeRender:
		stages = []ShaderType{ShaderTypeVertex, ShaderTypeFragment}
	case ShaderTypeCompute, ShaderTypeVertex, ShaderTypeFragment:
		stages = []ShaderType{s.shaderType}
	default:
		return fmt.Errorf("unknown shader type %v", s.shaderType)
	}
	for _, stage := range stages {
		ep := parseEntryPoint(s.source, stage)
		if ep == "" {
			return fmt.Errorf("no @%s entry point", stage)
		}
		s.entryPoints[stage] = ep
	}

	if s.shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(s.source)
	}
	s.structs = parseStructLayouts(s.source)
	s.bindings = parseBindings(s.source, s.Visibility(), s.structs)
	s.layouts = groupLayouts(s.bindings)
	return nil
}
