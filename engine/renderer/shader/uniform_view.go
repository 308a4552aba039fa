package shader

import (
	"encoding/binary"
	"fmt"
	"math"
)

// UniformView is a CPU-side mirror of one WGSL struct instance laid out exactly as the GPU
// reads it. Fields are addressed by their WGSL member name and written little-endian.
// A UniformView is not safe for concurrent use.
type UniformView struct {
	layout StructLayout
	data   []byte
}

// NewUniformView allocates a zeroed mirror of layout.
func NewUniformView(layout StructLayout) *UniformView {
	return &UniformView{layout: layout, data: make([]byte, layout.Size)}
}

// Layout returns the struct layout the view was created from.
func (v *UniformView) Layout() StructLayout {
	return v.layout
}

// Bytes returns the full struct contents. The slice aliases the view.
func (v *UniformView) Bytes() []byte {
	return v.data
}

// SetF32 writes an f32 member.
func (v *UniformView) SetF32(name string, value float32) error {
	b, err := v.field(name, "f32")
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, math.Float32bits(value))
	return nil
}

// SetVec2U32 writes a vec2<u32> member.
func (v *UniformView) SetVec2U32(name string, x, y uint32) error {
	b, err := v.field(name, "vec2<u32>", "vec2u")
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[0:], x)
	binary.LittleEndian.PutUint32(b[4:], y)
	return nil
}

// SetVec2F32 writes a vec2<f32> member.
func (v *UniformView) SetVec2F32(name string, x, y float32) error {
	b, err := v.field(name, "vec2<f32>", "vec2f")
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(y))
	return nil
}

// SetVec2I32 writes a vec2<i32> member.
func (v *UniformView) SetVec2I32(name string, x, y int32) error {
	b, err := v.field(name, "vec2<i32>", "vec2i")
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[0:], uint32(x))
	binary.LittleEndian.PutUint32(b[4:], uint32(y))
	return nil
}

// SetVec2 writes an unsigned pair into a vec2 member of any 32-bit scalar type,
// converting to the member's declared type.
func (v *UniformView) SetVec2(name string, x, y uint32) error {
	f, ok := v.layout.Field(name)
	if !ok {
		return fmt.Errorf("shader: struct %s has no member %q", v.layout.Name, name)
	}
	switch f.Type {
	case "vec2<f32>", "vec2f":
		return v.SetVec2F32(name, float32(x), float32(y))
	case "vec2<i32>", "vec2i":
		if x > math.MaxInt32 || y > math.MaxInt32 {
			return fmt.Errorf("shader: (%d, %d) overflows %s.%s", x, y, v.layout.Name, name)
		}
		return v.SetVec2I32(name, int32(x), int32(y))
	default:
		return v.SetVec2U32(name, x, y)
	}
}

// field returns the bytes of the named member after checking its WGSL type.
func (v *UniformView) field(name string, types ...string) ([]byte, error) {
	f, ok := v.layout.Field(name)
	if !ok {
		return nil, fmt.Errorf("shader: struct %s has no member %q", v.layout.Name, name)
	}
	for _, t := range types {
		if f.Type == t {
			return v.data[f.Offset : f.Offset+f.Size], nil
		}
	}
	return nil, fmt.Errorf("shader: member %s.%s is %s, not %s", v.layout.Name, name, f.Type, types[0])
}
