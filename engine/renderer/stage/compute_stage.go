package stage

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raysampler/common"
	bgp "github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// FramebufferFormat is the texel format of the intermediate framebuffer.
	FramebufferFormat = wgpu.TextureFormatRGBA16Float

	// FramebufferLabel is the debug label of every framebuffer texture.
	FramebufferLabel = "Compute framebuffer"

	// ParamsBufferLabel is the debug label of the sampling parameters uniform buffer.
	ParamsBufferLabel = "Ray sampling parameters"

	computeLabel = "Ray sampling"
)

// computeStage is the implementation of the ComputeStage interface.
type computeStage struct {
	label    string
	device   gpu.Device
	shader   shader.Shader
	pipeline pipeline.Pipeline
	provider bgp.BindGroupProvider
	params   *shader.UniformView
}

// ComputeStage owns the ray sampling program: its pipeline, its bind group layout, and the
// uniform buffer holding the sampling parameters. The framebuffer it writes is created on
// demand and owned by the caller.
type ComputeStage interface {
	// Pipeline returns the compiled compute pipeline.
	//
	// Returns:
	//   - pipeline.Pipeline: the compute pipeline
	Pipeline() pipeline.Pipeline

	// Provider returns the bind group provider for group 0. The params buffer is stored at
	// binding 1; the framebuffer view at binding 0 is supplied by the caller.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider
	Provider() bgp.BindGroupProvider

	// Params returns the CPU mirror of the sampling parameters uniform.
	//
	// Returns:
	//   - *shader.UniformView: the parameters mirror
	Params() *shader.UniformView

	// ParamsWrite returns a write of the whole parameters mirror at offset 0.
	//
	// Returns:
	//   - bind_group_provider.BufferWrite: the write, ready to Apply
	ParamsWrite() bgp.BufferWrite

	// WorkgroupSize returns the compute program's declared workgroup size.
	//
	// Returns:
	//   - [3]uint32: the x, y and z workgroup dimensions
	WorkgroupSize() [3]uint32

	// CreateFramebuffer creates an rgba16float texture usable as a storage texture by this stage
	// and as a sampled texture by the draw stage, together with its default view.
	//
	// Parameters:
	//   - extent: the framebuffer size, both dimensions must be positive
	//
	// Returns:
	//   - gpu.Texture: the framebuffer texture
	//   - gpu.TextureView: the view over the whole texture
	//   - error: an error wrapping gpu.ErrResourceCreation on failure
	CreateFramebuffer(extent common.Extent2D) (gpu.Texture, gpu.TextureView, error)

	// CreateBindGroup creates a compute bind group binding view and the params buffer. The
	// provider's current bind group is not replaced.
	//
	// Parameters:
	//   - view: the framebuffer view to write into
	//
	// Returns:
	//   - gpu.BindGroup: the new bind group
	//   - error: an error wrapping gpu.ErrResourceCreation on failure
	CreateBindGroup(view gpu.TextureView) (gpu.BindGroup, error)

	// Release releases the pipeline, the layout, the params buffer and the current bind group.
	Release()
}

// Compile-time check that computeStage implements ComputeStage
var _ ComputeStage = &computeStage{}

// NewComputeStage validates s against the ray sampling binding contract, then creates the bind
// group layout, the params buffer and the compute pipeline on device.
//
// Parameters:
//   - device: the device to create GPU objects on
//   - s: the reflected compute program
//   - opts: stage options
//
// Returns:
//   - ComputeStage: the ready stage
//   - error: an error wrapping gpu.ErrProgramCompilationFailed if the program does not satisfy the
//     contract or pipeline creation fails, or gpu.ErrResourceCreation if a resource cannot be created
func NewComputeStage(device gpu.Device, s shader.Shader, opts ...StageBuilderOption) (_ ComputeStage, err error) {
	o := newStageOptions(computeLabel, opts)
	layout, err := validateComputeContract(s)
	if err != nil {
		return nil, err
	}

	cs := &computeStage{
		label:  o.label,
		device: device,
		shader: s,
		params: shader.NewUniformView(layout),
	}
	defer func() {
		if err != nil {
			cs.Release()
		}
	}()

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: cs.label + " bind group layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    computeFramebufferBinding,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        FramebufferFormat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    computeParamsBinding,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: layout.Size,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s bind group layout: %v", gpu.ErrResourceCreation, cs.label, err)
	}
	cs.provider = bgp.NewBindGroupProvider(cs.label+" bind group", bgp.WithBindGroupLayout(bgl))

	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: ParamsBufferLabel,
		Size:  layout.Size,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", gpu.ErrResourceCreation, ParamsBufferLabel, err)
	}
	cs.provider.SetBuffer(computeParamsBinding, buf)

	cs.pipeline = pipeline.NewPipeline(cs.label+" pipeline", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(s))
	if err = cs.pipeline.Build(device, bgl); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *computeStage) Pipeline() pipeline.Pipeline {
	return cs.pipeline
}

func (cs *computeStage) Provider() bgp.BindGroupProvider {
	return cs.provider
}

func (cs *computeStage) Params() *shader.UniformView {
	return cs.params
}

func (cs *computeStage) ParamsWrite() bgp.BufferWrite {
	return bgp.BufferWrite{
		Provider: cs.provider,
		Binding:  computeParamsBinding,
		Offset:   0,
		Data:     cs.params.Bytes(),
	}
}

func (cs *computeStage) WorkgroupSize() [3]uint32 {
	return cs.shader.WorkgroupSize()
}

func (cs *computeStage) CreateFramebuffer(extent common.Extent2D) (gpu.Texture, gpu.TextureView, error) {
	if extent.Empty() {
		return nil, nil, fmt.Errorf("%w: %s of size %s", gpu.ErrResourceCreation, FramebufferLabel, extent)
	}
	tex, err := cs.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         FramebufferLabel,
		Size:          extent.Extent3D(),
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        FramebufferFormat,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", gpu.ErrResourceCreation, FramebufferLabel, err)
	}
	view, err := tex.CreateView()
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("%w: %s view: %v", gpu.ErrResourceCreation, FramebufferLabel, err)
	}
	return tex, view, nil
}

func (cs *computeStage) CreateBindGroup(view gpu.TextureView) (gpu.BindGroup, error) {
	return cs.provider.CreateBindGroup(cs.device, gpu.BindGroupEntry{
		Binding:     computeFramebufferBinding,
		TextureView: view,
	})
}

func (cs *computeStage) Release() {
	if cs.pipeline != nil {
		cs.pipeline.Release()
		cs.pipeline = nil
	}
	if cs.provider != nil {
		cs.provider.Release()
		cs.provider = nil
	}
}
