package shader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

const testComputeSource = `//@oxy:include sampling_params

//@oxy:provider 0 0 framebuffer
@group(0) @binding(0) var framebuffer: texture_storage_2d<rgba16float, write>;
//@oxy:group 0 1 storage_uniform samplingParams sampling_params

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    if (id.x >= samplingParams.extent.x || id.y >= samplingParams.extent.y) {
        return;
    }
    textureStore(framebuffer, vec2<i32>(id.xy), vec4<f32>(samplingParams.seed, 0.0, 0.0, 1.0));
}
`

const testRenderSource = `@group(0) @binding(0) var framebuffer: texture_2d<f32>;
@group(0) @binding(1) var framebufferSampler: sampler;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vertexMain(@builtin(vertex_index) index: u32) -> VertexOutput {
    var out: VertexOutput;
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    out.position = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fragmentMain(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(framebuffer, framebufferSampler, in.uv);
}
`

func TestNewShaderCompute(t *testing.T) {
	s, err := NewShader("compute", ShaderTypeCompute, testComputeSource)
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}

	if got := s.EntryPoint(); got != "main" {
		t.Errorf("EntryPoint() = %q, want %q", got, "main")
	}
	if got := s.WorkgroupSize(); got != [3]uint32{8, 8, 1} {
		t.Errorf("WorkgroupSize() = %v, want [8 8 1]", got)
	}
	if !strings.Contains(s.Source(), "struct SamplingParams") {
		t.Error("Source() does not contain the included SamplingParams struct")
	}
	if !strings.Contains(s.Source(), "@group(0) @binding(1) var<uniform> samplingParams: SamplingParams;") {
		t.Errorf("Source() does not contain the generated uniform declaration:\n%s", s.Source())
	}
	if strings.Contains(s.Source(), "@oxy:") {
		t.Error("Source() still contains annotations")
	}
	if got := s.Module().WGSLDescriptor.Code; got != s.Source() {
		t.Error("Module() code differs from Source()")
	}
	if got := s.Module().Label; got != "compute" {
		t.Errorf("Module().Label = %q, want %q", got, "compute")
	}

	fb, ok := s.Binding(0, 0)
	if !ok {
		t.Fatal("no binding at 0/0")
	}
	if fb.VarName != "framebuffer" {
		t.Errorf("binding 0 var = %q, want framebuffer", fb.VarName)
	}
	if fb.Entry.StorageTexture.Format != wgpu.TextureFormatRGBA16Float {
		t.Errorf("binding 0 format = %v, want RGBA16Float", fb.Entry.StorageTexture.Format)
	}
	if fb.Entry.StorageTexture.Access != wgpu.StorageTextureAccessWriteOnly {
		t.Errorf("binding 0 access = %v, want WriteOnly", fb.Entry.StorageTexture.Access)
	}
	if fb.Entry.StorageTexture.ViewDimension != wgpu.TextureViewDimension2D {
		t.Errorf("binding 0 dimension = %v, want 2D", fb.Entry.StorageTexture.ViewDimension)
	}
	if fb.Entry.Visibility != wgpu.ShaderStageCompute {
		t.Errorf("binding 0 visibility = %v, want compute", fb.Entry.Visibility)
	}

	params, ok := s.Binding(0, 1)
	if !ok {
		t.Fatal("no binding at 0/1")
	}
	if params.Entry.Buffer.Type != wgpu.BufferBindingTypeUniform {
		t.Errorf("binding 1 buffer type = %v, want uniform", params.Entry.Buffer.Type)
	}
	if params.Entry.Buffer.MinBindingSize != 16 {
		t.Errorf("binding 1 MinBindingSize = %d, want 16", params.Entry.Buffer.MinBindingSize)
	}
	if got := s.BindingTypeName(0, 1); got != "SamplingParams" {
		t.Errorf("BindingTypeName(0, 1) = %q, want SamplingParams", got)
	}
	if got := s.BindGroupVarName(0, 1); got != "samplingParams" {
		t.Errorf("BindGroupVarName(0, 1) = %q, want samplingParams", got)
	}
	if got := len(s.BindGroupLayoutDescriptor(0).Entries); got != 2 {
		t.Errorf("group 0 layout has %d entries, want 2", got)
	}

	decls := s.Declarations()
	if len(decls) != 2 {
		t.Fatalf("Declarations() has %d entries, want 2", len(decls))
	}
	if decls[0].Type != AnnotationTypeProvider || decls[0].Args[0] != AnnotationArgFramebuffer || *decls[0].Binding != 0 {
		t.Errorf("first declaration = %+v, want framebuffer provider at binding 0", decls[0])
	}
	if decls[1].Type != AnnotationTypeBindingGroup || *decls[1].Binding != 1 {
		t.Errorf("second declaration = %+v, want group declaration at binding 1", decls[1])
	}
}

func TestNewShaderRender(t *testing.T) {
	s, err := NewShader("draw", ShaderTypeRender, testRenderSource)
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if got := s.StageEntryPoint(ShaderTypeVertex); got != "vertexMain" {
		t.Errorf("vertex entry = %q, want vertexMain", got)
	}
	if got := s.StageEntryPoint(ShaderTypeFragment); got != "fragmentMain" {
		t.Errorf("fragment entry = %q, want fragmentMain", got)
	}
	if got := s.EntryPoint(); got != "vertexMain" {
		t.Errorf("EntryPoint() = %q, want vertexMain", got)
	}
	if got := s.WorkgroupSize(); got != [3]uint32{} {
		t.Errorf("WorkgroupSize() = %v, want zero for render shaders", got)
	}

	tex, _ := s.Binding(0, 0)
	if tex.Entry.Texture.SampleType != wgpu.TextureSampleTypeFloat {
		t.Errorf("binding 0 sample type = %v, want float", tex.Entry.Texture.SampleType)
	}
	if tex.Entry.Visibility != wgpu.ShaderStageVertex|wgpu.ShaderStageFragment {
		t.Errorf("binding 0 visibility = %v, want vertex|fragment", tex.Entry.Visibility)
	}
	smp, _ := s.Binding(0, 1)
	if smp.Entry.Sampler.Type != wgpu.SamplerBindingTypeFiltering {
		t.Errorf("binding 1 sampler type = %v, want filtering", smp.Entry.Sampler.Type)
	}
	if got := s.BindGroupVarName(0, 1); got != "framebufferSampler" {
		t.Errorf("BindGroupVarName(0, 1) = %q, want framebufferSampler", got)
	}

	// builtin members are not part of host-shareable layouts
	vo, ok := s.StructLayout("VertexOutput")
	if !ok {
		t.Fatal("VertexOutput layout missing")
	}
	if len(vo.Fields) != 1 || vo.Fields[0].Name != "uv" {
		t.Errorf("VertexOutput fields = %+v, want only uv", vo.Fields)
	}
}

func TestNewShaderErrors(t *testing.T) {
	tests := []struct {
		name       string
		shaderType ShaderType
		source     string
	}{
		{"empty source", ShaderTypeCompute, "  \n"},
		{"missing compute entry", ShaderTypeCompute, testRenderSource},
		{"missing fragment entry", ShaderTypeRender, "@vertex fn vs() -> @builtin(position) vec4<f32> { return vec4<f32>(); }"},
		{"unknown include", ShaderTypeCompute, "//@oxy:include camera\n@compute @workgroup_size(1) fn main() {}"},
		{"unknown shader type", ShaderType(42), testComputeSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewShader(tt.name, tt.shaderType, tt.source)
			if !errors.Is(err, gpu.ErrProgramCompilationFailed) {
				t.Errorf("NewShader error = %v, want ErrProgramCompilationFailed", err)
			}
		})
	}
}

func TestNewShaderFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compute.wgsl")
	if err := os.WriteFile(path, []byte(testComputeSource), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewShaderFromPath("compute", ShaderTypeCompute, path)
	if err != nil {
		t.Fatalf("NewShaderFromPath: %v", err)
	}
	if s.EntryPoint() != "main" {
		t.Errorf("EntryPoint() = %q, want main", s.EntryPoint())
	}

	if _, err := NewShaderFromPath("missing", ShaderTypeCompute, filepath.Join(t.TempDir(), "nope.wgsl")); err == nil {
		t.Error("NewShaderFromPath with a missing file returned no error")
	}
}

func TestValidateRejectsMalformedSource(t *testing.T) {
	s, err := NewShader("broken", ShaderTypeCompute, "@compute @workgroup_size(1)\nfn main() {\n    let x: f32 = ;\n}\n")
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if err := s.Validate(); !errors.Is(err, gpu.ErrProgramCompilationFailed) {
		t.Errorf("Validate() = %v, want ErrProgramCompilationFailed", err)
	}
}

func TestShaderTypeString(t *testing.T) {
	tests := []struct {
		t    ShaderType
		want string
	}{
		{ShaderTypeCompute, "compute"},
		{ShaderTypeVertex, "vertex"},
		{ShaderTypeFragment, "fragment"},
		{ShaderTypeRender, "render"},
		{ShaderType(9), "ShaderType(9)"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
