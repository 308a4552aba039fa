package gpu

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupEntry binds exactly one of Buffer, Sampler or TextureView at Binding.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	Sampler     Sampler
	TextureView TextureView
}

// BindGroupDescriptor describes a bind group against a layout.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// PipelineLayoutDescriptor lists the bind group layouts of a pipeline by group index.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label      string
	Layout     PipelineLayout
	Module     ShaderModule
	EntryPoint string
}

// RenderPipelineDescriptor describes a render pipeline without vertex buffers or depth.
type RenderPipelineDescriptor struct {
	Label              string
	Layout             PipelineLayout
	VertexModule       ShaderModule
	VertexEntryPoint   string
	FragmentModule     ShaderModule
	FragmentEntryPoint string
	Targets            []wgpu.ColorTargetState
	Primitive          wgpu.PrimitiveState
	Multisample        wgpu.MultisampleState
}

// RenderPassColorAttachment describes one color target of a render pass.
type RenderPassColorAttachment struct {
	View       TextureView
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearValue wgpu.Color
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []RenderPassColorAttachment
}
