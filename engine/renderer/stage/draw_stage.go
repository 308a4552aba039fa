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
	// FullScreenVertexCount is the number of vertices of the procedural full-screen triangle.
	FullScreenVertexCount = 3

	drawLabel = "Framebuffer draw"
)

// drawStage is the implementation of the DrawStage interface.
type drawStage struct {
	label    string
	device   gpu.Device
	pipeline pipeline.Pipeline
	provider bgp.BindGroupProvider
}

// DrawStage owns the program that copies the framebuffer onto the surface: its render
// pipeline, its bind group layout, and the framebuffer sampler.
type DrawStage interface {
	// Pipeline returns the compiled render pipeline.
	//
	// Returns:
	//   - pipeline.Pipeline: the render pipeline
	Pipeline() pipeline.Pipeline

	// Provider returns the bind group provider for group 0. The sampler is stored at binding 1;
	// the framebuffer view at binding 0 is supplied by the caller.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider
	Provider() bgp.BindGroupProvider

	// VertexCount returns the number of vertices to draw, always FullScreenVertexCount.
	VertexCount() uint32

	// CreateBindGroup creates a draw bind group sampling view. The provider's current bind group
	// is not replaced.
	//
	// Parameters:
	//   - view: the framebuffer view to sample
	//
	// Returns:
	//   - gpu.BindGroup: the new bind group
	//   - error: an error wrapping gpu.ErrResourceCreation on failure
	CreateBindGroup(view gpu.TextureView) (gpu.BindGroup, error)

	// Release releases the pipeline, the layout, the sampler and the current bind group.
	Release()
}

// Compile-time check that drawStage implements DrawStage
var _ DrawStage = &drawStage{}

// NewDrawStage validates s against the draw binding contract, then creates the sampler, the bind
// group layout and the render pipeline targeting surfaceFormat.
//
// Parameters:
//   - device: the device to create GPU objects on
//   - s: the reflected draw program, providing both a vertex and a fragment entry point
//   - surfaceFormat: the color format of the render target
//   - opts: stage options
//
// Returns:
//   - DrawStage: the ready stage
//   - error: an error wrapping gpu.ErrProgramCompilationFailed if the program does not satisfy the
//     contract or pipeline creation fails, or gpu.ErrResourceCreation if a resource cannot be created
func NewDrawStage(device gpu.Device, s shader.Shader, surfaceFormat wgpu.TextureFormat, opts ...StageBuilderOption) (_ DrawStage, err error) {
	o := newStageOptions(drawLabel, opts)
	if err := validateDrawContract(s); err != nil {
		return nil, err
	}

	ds := &drawStage{
		label:  o.label,
		device: device,
	}
	defer func() {
		if err != nil {
			ds.Release()
		}
	}()

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: ds.label + " bind group layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    drawFramebufferBinding,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    drawSamplerBinding,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeNonFiltering,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s bind group layout: %v", gpu.ErrResourceCreation, ds.label, err)
	}
	ds.provider = bgp.NewBindGroupProvider(ds.label+" bind group", bgp.WithBindGroupLayout(bgl))

	smp, err := device.CreateSampler(samplerDescriptor(ds.label+" sampler", o.sampler))
	if err != nil {
		return nil, fmt.Errorf("%w: %s sampler: %v", gpu.ErrResourceCreation, ds.label, err)
	}
	ds.provider.SetSampler(drawSamplerBinding, smp)

	ds.pipeline = pipeline.NewPipeline(ds.label+" pipeline", pipeline.PipelineTypeRender,
		pipeline.WithRenderShader(s),
		pipeline.WithColorFormat(surfaceFormat),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithCullMode(wgpu.CullModeNone),
	)
	if err = ds.pipeline.Build(device, bgl); err != nil {
		return nil, err
	}
	return ds, nil
}

// samplerDescriptor builds the framebuffer sampler. rgba16float is sampled as unfilterable, so
// every filter is nearest regardless of data; address modes default to clamp-to-edge.
func samplerDescriptor(label string, data common.SamplerStagingData) *wgpu.SamplerDescriptor {
	return &wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   data.LodMinClamp,
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32),
		Compare:       data.Compare,
		MaxAnisotropy: 1,
	}
}

func (ds *drawStage) Pipeline() pipeline.Pipeline {
	return ds.pipeline
}

func (ds *drawStage) Provider() bgp.BindGroupProvider {
	return ds.provider
}

func (ds *drawStage) VertexCount() uint32 {
	return FullScreenVertexCount
}

func (ds *drawStage) CreateBindGroup(view gpu.TextureView) (gpu.BindGroup, error) {
	return ds.provider.CreateBindGroup(ds.device, gpu.BindGroupEntry{
		Binding:     drawFramebufferBinding,
		TextureView: view,
	})
}

func (ds *drawStage) Release() {
	if ds.pipeline != nil {
		ds.pipeline.Release()
		ds.pipeline = nil
	}
	if ds.provider != nil {
		ds.provider.Release()
		ds.provider = nil
	}
}
