package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineType PipelineType
	pipelineKey  string

	vertexShader, fragmentShader, computeShader shader.Shader

	// GPU objects created by Build.
	modules         []gpu.ShaderModule
	layout          gpu.PipelineLayout
	renderPipeline  gpu.RenderPipeline
	computePipeline gpu.ComputePipeline

	// Render state. Compute pipelines ignore it.
	colorFormat wgpu.TextureFormat
	cullMode    wgpu.CullMode
	topology    wgpu.PrimitiveTopology
	frontFace   wgpu.FrontFace
	writeMask   wgpu.ColorWriteMask
	blendState  *wgpu.BlendState
}

// Pipeline describes a compute pipeline or a render pipeline without vertex buffers or depth,
// and owns the GPU objects created from that description.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, also used as its label.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader providing the given stage, nil if not set.
	//
	// Parameters:
	//   - shaderType: the stage to look up (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader providing that stage, or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// ColorFormat returns the format of the single color target of a render pipeline.
	ColorFormat() wgpu.TextureFormat

	// CullMode returns the cull mode configured for this pipeline.
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state of the color target, nil when blending is off.
	BlendState() *wgpu.BlendState

	// Build compiles the shader modules and creates the pipeline layout and pipeline. The bind
	// group layouts are used in order, index i at @group(i). On failure every object created
	// by the call is released.
	//
	// Parameters:
	//   - device: the device to create the objects on
	//   - layouts: the bind group layouts, in group order
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrProgramCompilationFailed on failure
	Build(device gpu.Device, layouts ...gpu.BindGroupLayout) error

	// ComputePipeline returns the pipeline created by Build, nil for render pipelines or
	// before Build.
	ComputePipeline() gpu.ComputePipeline

	// RenderPipeline returns the pipeline created by Build, nil for compute pipelines or
	// before Build.
	RenderPipeline() gpu.RenderPipeline

	// Release frees every GPU object created by Build.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a Pipeline description. Nothing is created on the GPU until Build.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		colorFormat:  wgpu.TextureFormatBGRA8Unorm,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		writeMask:    wgpu.ColorWriteMaskAll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) ColorFormat() wgpu.TextureFormat {
	return p.colorFormat
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) ComputePipeline() gpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) RenderPipeline() gpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) Build(device gpu.Device, layouts ...gpu.BindGroupLayout) (err error) {
	if p.layout != nil {
		return fmt.Errorf("%w: pipeline %s already built", gpu.ErrProgramCompilationFailed, p.pipelineKey)
	}
	defer func() {
		if err != nil {
			p.Release()
			err = fmt.Errorf("%w: pipeline %s: %v", gpu.ErrProgramCompilationFailed, p.pipelineKey, err)
		}
	}()

	p.layout, err = device.CreatePipelineLayout(&gpu.PipelineLayoutDescriptor{
		Label:            p.pipelineKey,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return err
	}

	switch p.pipelineType {
	case PipelineTypeCompute:
		return p.buildCompute(device)
	case PipelineTypeRender:
		return p.buildRender(device)
	default:
		return fmt.Errorf("unknown pipeline type %d", p.pipelineType)
	}
}

func (p *pipeline) buildCompute(device gpu.Device) error {
	if p.computeShader == nil {
		return errors.New("no compute shader")
	}
	module, err := p.module(device, p.computeShader)
	if err != nil {
		return err
	}
	p.computePipeline, err = device.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
		Label:      p.pipelineKey,
		Layout:     p.layout,
		Module:     module,
		EntryPoint: p.computeShader.StageEntryPoint(shader.ShaderTypeCompute),
	})
	return err
}

func (p *pipeline) buildRender(device gpu.Device) error {
	if p.vertexShader == nil || p.fragmentShader == nil {
		return errors.New("render pipeline needs a vertex and a fragment shader")
	}
	vertexModule, err := p.module(device, p.vertexShader)
	if err != nil {
		return err
	}
	fragmentModule := vertexModule
	if p.fragmentShader != p.vertexShader {
		if fragmentModule, err = p.module(device, p.fragmentShader); err != nil {
			return err
		}
	}

	p.renderPipeline, err = device.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{
		Label:              p.pipelineKey,
		Layout:             p.layout,
		VertexModule:       vertexModule,
		VertexEntryPoint:   p.vertexShader.StageEntryPoint(shader.ShaderTypeVertex),
		FragmentModule:     fragmentModule,
		FragmentEntryPoint: p.fragmentShader.StageEntryPoint(shader.ShaderTypeFragment),
		Targets: []wgpu.ColorTargetState{{
			Format:    p.colorFormat,
			Blend:     p.blendState,
			WriteMask: p.writeMask,
		}},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	return err
}

// module compiles s and keeps the module for Release.
func (p *pipeline) module(device gpu.Device, s shader.Shader) (gpu.ShaderModule, error) {
	m, err := device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, err
	}
	p.modules = append(p.modules, m)
	return m, nil
}

func (p *pipeline) Release() {
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
	for _, m := range p.modules {
		m.Release()
	}
	p.modules = nil
}
