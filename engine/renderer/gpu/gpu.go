// Package gpu narrows the WebGPU API to the objects the renderer creates and drives.
//
// Descriptors that carry no GPU handles reuse the wgpu value types directly. Descriptors that
// reference other GPU objects are redeclared here in terms of this package's interfaces so that a
// whole frame can be recorded against any implementation. The production implementation wraps
// github.com/cogentcore/webgpu (see NewInstance); tests use the recording fake in gpu/gputest.
package gpu

import "github.com/cogentcore/webgpu/wgpu"

// Releaser is implemented by every GPU object. Release drops the host reference; the backend
// keeps the object alive until in-flight GPU work that uses it has completed.
type Releaser interface {
	Release()
}

// Texture is a GPU texture.
type Texture interface {
	Releaser

	// CreateView creates a default view covering the whole texture.
	//
	// Returns:
	//   - TextureView: the created view
	//   - error: an error if the view could not be created
	CreateView() (TextureView, error)
}

// TextureView is a view over a Texture that can be bound or rendered into.
type TextureView interface {
	Releaser
}

// Buffer is a GPU buffer.
type Buffer interface {
	Releaser

	// Size returns the size of the buffer in bytes.
	Size() uint64
}

// Sampler is a GPU sampler.
type Sampler interface {
	Releaser
}

// ShaderModule is a compiled WGSL module.
type ShaderModule interface {
	Releaser
}

// BindGroupLayout describes the resources of one bind group.
type BindGroupLayout interface {
	Releaser
}

// BindGroup is a set of resources bound together at one group index.
type BindGroup interface {
	Releaser
}

// PipelineLayout is the ordered set of bind group layouts a pipeline uses.
type PipelineLayout interface {
	Releaser
}

// ComputePipeline is a compiled compute program.
type ComputePipeline interface {
	Releaser
}

// RenderPipeline is a compiled vertex/fragment program.
type RenderPipeline interface {
	Releaser
}

// CommandBuffer is a finished, submittable list of GPU commands.
type CommandBuffer interface {
	Releaser
}

// AdapterInfo describes the physical adapter selected by the instance.
type AdapterInfo struct {
	Name    string
	Backend string
}

// AdapterOptions selects which adapter RequestAdapter returns.
type AdapterOptions struct {
	// ForceFallbackAdapter requests a CPU/software adapter.
	ForceFallbackAdapter bool
	// PowerPreference hints at low-power or high-performance adapters.
	PowerPreference wgpu.PowerPreference
}

// Instance is the entry point to the GPU API.
type Instance interface {
	Releaser

	// RequestAdapter selects a physical adapter.
	//
	// Parameters:
	//   - opts: adapter selection options, nil for defaults
	//
	// Returns:
	//   - Adapter: the selected adapter
	//   - error: an error wrapping ErrNoAdapter if none is available
	RequestAdapter(opts *AdapterOptions) (Adapter, error)

	// CreateSurface creates a presentable surface for a host window.
	//
	// Parameters:
	//   - desc: the platform surface descriptor
	//
	// Returns:
	//   - Surface: the created surface
	//   - error: an error wrapping ErrNoSurfaceContext if the descriptor is nil or unusable
	CreateSurface(desc *wgpu.SurfaceDescriptor) (Surface, error)
}

// Adapter is a physical GPU.
type Adapter interface {
	Releaser

	// Info returns the adapter name and backend.
	Info() AdapterInfo

	// RequestDevice creates the logical device.
	//
	// Parameters:
	//   - desc: the device descriptor, nil for defaults
	//
	// Returns:
	//   - Device: the created device
	//   - error: an error wrapping ErrNoDevice on failure
	RequestDevice(desc *wgpu.DeviceDescriptor) (Device, error)
}

// Surface is the presentable output the draw pass renders into.
type Surface interface {
	Releaser

	// Capabilities returns the formats and alpha modes the surface supports on the adapter.
	// The first format is the adapter-preferred presentation format.
	Capabilities(adapter Adapter) wgpu.SurfaceCapabilities

	// Configure sets the surface size, format and present mode.
	//
	// Parameters:
	//   - adapter: the adapter the device was created from
	//   - device: the device that will render into the surface
	//   - config: the surface configuration
	//
	// Returns:
	//   - error: an error if the surface could not be configured
	Configure(adapter Adapter, device Device, config *wgpu.SurfaceConfiguration) error

	// CurrentTexture acquires the texture to render the next frame into.
	//
	// Returns:
	//   - Texture: the acquired surface texture
	//   - error: an error wrapping ErrSurfaceTexture on failure
	CurrentTexture() (Texture, error)

	// Present presents the most recently acquired texture.
	Present()
}

// Device is the logical device that creates every GPU object.
type Device interface {
	Releaser

	// Limits returns the limits the device was created with.
	Limits() wgpu.Limits

	// Queue returns the device's command queue.
	Queue() Queue

	CreateTexture(desc *wgpu.TextureDescriptor) (Texture, error)
	CreateBuffer(desc *wgpu.BufferDescriptor) (Buffer, error)
	CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error)
	CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (ShaderModule, error)
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)

	// CreateCommandEncoder starts recording a command buffer.
	//
	// Parameters:
	//   - label: debug label for the encoder and the resulting command buffer
	//
	// Returns:
	//   - CommandEncoder: the encoder
	//   - error: an error if the encoder could not be created
	CreateCommandEncoder(label string) (CommandEncoder, error)
}

// Queue executes submitted work in submission order.
type Queue interface {
	// WriteBuffer schedules a write of data into buf at offset. The write is ordered before any
	// command buffer submitted afterwards.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// Submit enqueues command buffers for execution.
	Submit(cmds ...CommandBuffer)
}

// CommandEncoder records passes into a command buffer.
type CommandEncoder interface {
	Releaser

	BeginComputePass() ComputePassEncoder
	BeginRenderPass(desc *RenderPassDescriptor) RenderPassEncoder

	// Finish ends recording.
	//
	// Returns:
	//   - CommandBuffer: the finished command buffer
	//   - error: an error if recording failed
	Finish() (CommandBuffer, error)
}

// ComputePassEncoder records compute dispatches.
type ComputePassEncoder interface {
	Releaser

	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, bg BindGroup)
	DispatchWorkgroups(x, y, z uint32)
	End() error
}

// RenderPassEncoder records draws.
type RenderPassEncoder interface {
	Releaser

	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, bg BindGroup)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	End() error
}
