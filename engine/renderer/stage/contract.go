package stage

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/sampling"
	"github.com/cogentcore/webgpu/wgpu"
)

// The binding slots every compute and draw program must expose in group 0.
const (
	bindGroupIndex = 0

	computeFramebufferBinding = 0
	computeParamsBinding      = 1

	drawFramebufferBinding = 0
	drawSamplerBinding     = 1
)

// extentTypes are the WGSL types accepted for the extent member of the parameters struct.
var extentTypes = []string{"vec2<u32>", "vec2u", "vec2<i32>", "vec2i", "vec2<f32>", "vec2f"}

// contractError wraps a program contract violation as a compilation failure.
func contractError(s shader.Shader, format string, args ...any) error {
	return fmt.Errorf("%w: shader %s: %s", gpu.ErrProgramCompilationFailed, s.Key(), fmt.Sprintf(format, args...))
}

// describe names the declaration at binding for error messages, e.g. "0/1 samplingParams: SamplingParams".
func describe(s shader.Shader, binding int) string {
	return fmt.Sprintf("%d/%d %s: %s", bindGroupIndex, binding,
		s.BindGroupVarName(bindGroupIndex, binding), s.BindingTypeName(bindGroupIndex, binding))
}

// checkLayoutShape rejects programs declaring resources outside the given group 0 bindings.
// Pipelines are built against an explicit layout holding exactly those bindings.
func checkLayoutShape(s shader.Shader, bindings ...int) error {
	for group := range s.BindGroupLayoutDescriptors() {
		if group != bindGroupIndex {
			return contractError(s, "unexpected bind group %d, only group %d is bound", group, bindGroupIndex)
		}
	}
	var declared []int
	for _, e := range s.BindGroupLayoutDescriptor(bindGroupIndex).Entries {
		declared = append(declared, int(e.Binding))
	}
	for _, b := range declared {
		if !slices.Contains(bindings, b) {
			return contractError(s, "unexpected binding %s", describe(s, b))
		}
	}
	for _, b := range bindings {
		if !slices.Contains(declared, b) {
			return contractError(s, "missing binding %d/%d", bindGroupIndex, b)
		}
	}
	return nil
}

// checkProviderHint rejects an //@oxy:provider annotation on binding naming a different resource.
// The annotation is optional.
func checkProviderHint(s shader.Shader, binding int, identity shader.AnnotationArg) error {
	for _, a := range s.Declarations() {
		if a.Type != shader.AnnotationTypeProvider || a.Group == nil || a.Binding == nil {
			continue
		}
		if *a.Group != bindGroupIndex || *a.Binding != binding {
			continue
		}
		if len(a.Args) != 1 || a.Args[0] != identity {
			return contractError(s, "binding %d/%d is annotated as provider %v, want %s", bindGroupIndex, binding, a.Args, identity)
		}
	}
	return nil
}

// validateComputeContract checks that s writes an rgba16float storage texture at binding 0 and
// reads a uniform struct holding the sampling parameters at binding 1. The struct is found
// through the binding's declared type. It returns the reflected struct layout.
func validateComputeContract(s shader.Shader) (shader.StructLayout, error) {
	if s.ShaderType() != shader.ShaderTypeCompute {
		return shader.StructLayout{}, contractError(s, "expected a compute shader, got %s", s.ShaderType())
	}
	if err := checkLayoutShape(s, computeFramebufferBinding, computeParamsBinding); err != nil {
		return shader.StructLayout{}, err
	}
	if err := checkProviderHint(s, computeFramebufferBinding, shader.AnnotationArgFramebuffer); err != nil {
		return shader.StructLayout{}, err
	}

	fb, _ := s.Binding(bindGroupIndex, computeFramebufferBinding)
	st := fb.Entry.StorageTexture
	if st.Format != FramebufferFormat || st.Access != wgpu.StorageTextureAccessWriteOnly || st.ViewDimension != wgpu.TextureViewDimension2D {
		return shader.StructLayout{}, contractError(s, "binding %s must be texture_storage_2d<rgba16float, write>",
			describe(s, computeFramebufferBinding))
	}

	params, _ := s.Binding(bindGroupIndex, computeParamsBinding)
	if params.AddressSpace != "uniform" {
		return shader.StructLayout{}, contractError(s, "binding %s must be in the uniform address space, got %q",
			describe(s, computeParamsBinding), params.AddressSpace)
	}
	layout, ok := s.StructLayout(params.TypeName)
	if !ok {
		return shader.StructLayout{}, contractError(s, "binding %s must be a struct declared in the program",
			describe(s, computeParamsBinding))
	}
	if f, ok := layout.Field(sampling.FieldSeed); !ok || f.Type != "f32" {
		return shader.StructLayout{}, contractError(s, "%s.%s must be f32", layout.Name, sampling.FieldSeed)
	}
	if f, ok := layout.Field(sampling.FieldExtent); !ok || !slices.Contains(extentTypes, f.Type) {
		return shader.StructLayout{}, contractError(s, "%s.%s must be a vec2 of u32, i32 or f32", layout.Name, sampling.FieldExtent)
	}
	return layout, nil
}

// validateDrawContract checks that s provides a vertex and a fragment entry point and samples
// a 2D float texture at binding 0 through the sampler at binding 1.
func validateDrawContract(s shader.Shader) error {
	if s.StageEntryPoint(shader.ShaderTypeVertex) == "" || s.StageEntryPoint(shader.ShaderTypeFragment) == "" {
		return contractError(s, "draw program needs a vertex and a fragment entry point")
	}
	if err := checkLayoutShape(s, drawFramebufferBinding, drawSamplerBinding); err != nil {
		return err
	}
	if err := checkProviderHint(s, drawFramebufferBinding, shader.AnnotationArgFramebuffer); err != nil {
		return err
	}
	if err := checkProviderHint(s, drawSamplerBinding, shader.AnnotationArgFramebufferSampler); err != nil {
		return err
	}

	fb, _ := s.Binding(bindGroupIndex, drawFramebufferBinding)
	tex := fb.Entry.Texture
	if tex.SampleType != wgpu.TextureSampleTypeFloat || tex.ViewDimension != wgpu.TextureViewDimension2D || tex.Multisampled {
		return contractError(s, "binding %s must be texture_2d<f32>", describe(s, drawFramebufferBinding))
	}
	smp, _ := s.Binding(bindGroupIndex, drawSamplerBinding)
	if smp.Entry.Sampler.Type != wgpu.SamplerBindingTypeFiltering {
		return contractError(s, "binding %s must be a sampler", describe(s, drawSamplerBinding))
	}
	return nil
}
