package shader

import "github.com/cogentcore/webgpu/wgpu"

// sampledTextureInfo holds the view dimension and multisampled flag for a sampled texture type
type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// wgslTypeLayout holds the byte size and alignment of a WGSL type in host-shareable memory.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is one member of a WGSL struct.
type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

// parsedStruct is a WGSL struct block.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// Binding is one @group/@binding resource declaration found in a shader.
type Binding struct {
	Group   int
	Binding int

	// AddressSpace is the var<> qualifier, e.g. "uniform" or "storage, read_write". Empty for
	// handle types such as textures and samplers.
	AddressSpace string

	VarName  string
	TypeName string

	// Entry is the layout entry inferred from the declaration.
	Entry wgpu.BindGroupLayoutEntry
}

// FieldLayout is the placement of one struct member.
type FieldLayout struct {
	Name   string
	Type   string
	Offset uint64
	Size   uint64
}

// StructLayout is the host-shareable layout of a WGSL struct.
type StructLayout struct {
	Name   string
	Size   uint64
	Align  uint64
	Fields []FieldLayout
}

// Field returns the layout of the named member.
//
// Parameters:
//   - name: the member name as written in WGSL
//
// Returns:
//   - FieldLayout: the member's layout
//   - bool: false if the struct has no such member
func (l StructLayout) Field(name string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}
