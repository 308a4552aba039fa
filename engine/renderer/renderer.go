package renderer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-raysampler/common"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/logging"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/stage"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	instance gpu.Instance
	adapter  gpu.Adapter
	device   gpu.Device
	queue    gpu.Queue
	surface  gpu.Surface

	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode
	surfaceExtent common.Extent2D
	maxDimension  uint32

	compute     stage.ComputeStage
	draw        stage.DrawStage
	coordinator Coordinator

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
	computeShader        shader.Shader
	drawShader           shader.Shader
	validateShaders      bool
	exactDispatch        bool
	clearColor           wgpu.Color
	sampler              common.SamplerStagingData
	initialTimestamp     float64
}

// Renderer drives the ray sampler: every Update dispatches the compute program into the
// intermediate framebuffer and draws that framebuffer onto the surface in the same submission.
//
// A Renderer is driven from a single goroutine; none of its methods are safe for concurrent use.
type Renderer interface {
	// HandleResize reconfigures the surface for a new drawable size. Both dimensions are clamped
	// to the device's MaxTextureDimension2D; if either is not positive the call does nothing.
	// The framebuffer follows lazily on the next Update.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	HandleResize(width, height int)

	// Update renders one frame at the configured surface size. The sampling parameters are
	// written before the compute pass that reads them is submitted.
	//
	// Parameters:
	//   - timeStamp: the host timestamp of the frame, used as the sampling seed
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrResourceCreation or gpu.ErrSurfaceTexture on failure
	Update(timeStamp float64) error

	// SetPresentMode changes the present mode and reconfigures the surface at its current size.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SurfaceExtent returns the size the surface is currently configured at.
	SurfaceExtent() common.Extent2D

	// SurfaceFormat returns the color format chosen for the surface at creation.
	SurfaceFormat() wgpu.TextureFormat

	// AdapterInfo describes the adapter the device was requested from.
	AdapterInfo() gpu.AdapterInfo

	// Coordinator returns the coordinator owning the framebuffer and bind groups.
	Coordinator() Coordinator

	// Release releases the coordinator, both stages, the surface, the device and the adapter.
	// The instance is owned by the caller.
	Release()
}

// Compile-time check that renderer implements Renderer
var _ Renderer = &renderer{}

// NewRenderer acquires an adapter, a device and a surface for target, compiles the compute and
// draw programs concurrently, and builds the framebuffer at the target's size.
//
// Any failure releases everything acquired so far; no partial Renderer is returned.
//
// Parameters:
//   - instance: the GPU instance to request the adapter from, owned by the caller
//   - target: the host surface to present into
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the ready renderer
//   - error: an error wrapping gpu.ErrNoAdapter, gpu.ErrNoDevice, gpu.ErrNoSurfaceContext,
//     gpu.ErrProgramCompilationFailed or gpu.ErrResourceCreation
func NewRenderer(instance gpu.Instance, target SurfaceTarget, options ...RendererBuilderOption) (_ Renderer, err error) {
	r := &renderer{
		instance:    instance,
		presentMode: PresentModeUncapped,
		clearColor:  wgpu.Color{R: 0, G: 0, B: 0, A: 1},
	}
	for _, opt := range options {
		opt(r)
	}
	defer func() {
		if err != nil {
			r.Release()
		}
	}()

	r.adapter, err = instance.RequestAdapter(&gpu.AdapterOptions{
		ForceFallbackAdapter: r.forceFallbackAdapter,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	info := r.adapter.Info()
	logging.Logger().Info("adapter selected", "name", info.Name, "backend", info.Backend)

	r.device, err = r.adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "Main Device"})
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	r.queue = r.device.Queue()
	r.maxDimension = r.device.Limits().MaxTextureDimension2D

	r.surface, err = instance.CreateSurface(target.SurfaceDescriptor())
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	capabilities := r.surface.Capabilities(r.adapter)
	if len(capabilities.Formats) == 0 {
		return nil, fmt.Errorf("renderer: %w: surface reports no formats", gpu.ErrNoSurfaceContext)
	}
	r.surfaceFormat = capabilities.Formats[0]
	r.alphaMode = wgpu.CompositeAlphaModeOpaque
	if len(capabilities.AlphaModes) > 0 {
		r.alphaMode = capabilities.AlphaModes[0]
	}

	width := max(common.ClampDimension(target.Width(), r.maxDimension), 1)
	height := max(common.ClampDimension(target.Height(), r.maxDimension), 1)
	if err = r.configureSurface(common.NewExtent2D(width, height)); err != nil {
		return nil, err
	}

	if err = r.compilePrograms(); err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	r.coordinator = NewCoordinator(r.compute, r.draw)
	if err = r.coordinator.Update(r.queue, width, height, r.initialTimestamp); err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	return r, nil
}

// compilePool runs program compilation for every renderer in the process. The pool's workers
// live for the life of the process, so the pool is created once and shared.
var compilePool = sync.OnceValue(func() worker.DynamicWorkerPool {
	return worker.NewDynamicWorkerPool(2, 4, time.Second)
})

// compilePrograms builds the compute and draw stages as two tasks on the shared pool and waits for
// both, so a failure of one never leaves the other running. Either stage that succeeded is kept on
// r so Release can free it.
func (r *renderer) compilePrograms() error {
	var err error
	computeShader, drawShader := r.computeShader, r.drawShader
	if computeShader == nil {
		if computeShader, err = stage.DefaultComputeShader(); err != nil {
			return err
		}
	}
	if drawShader == nil {
		if drawShader, err = stage.DefaultDrawShader(); err != nil {
			return err
		}
	}

	var (
		wg                  sync.WaitGroup
		computeErr, drawErr error
		computeStg          stage.ComputeStage
		drawStg             stage.DrawStage
	)
	pool := compilePool()

	wg.Add(2)
	pool.SubmitTask(worker.Task{
		ID: 0,
		Do: func() (any, error) {
			defer wg.Done()
			if computeErr = r.validate(computeShader); computeErr != nil {
				return nil, computeErr
			}
			computeStg, computeErr = stage.NewComputeStage(r.device, computeShader)
			return computeStg, computeErr
		},
	})
	pool.SubmitTask(worker.Task{
		ID: 1,
		Do: func() (any, error) {
			defer wg.Done()
			if drawErr = r.validate(drawShader); drawErr != nil {
				return nil, drawErr
			}
			drawStg, drawErr = stage.NewDrawStage(r.device, drawShader, r.surfaceFormat, stage.WithSampler(r.sampler))
			return drawStg, drawErr
		},
	})
	wg.Wait()

	r.compute, r.draw = computeStg, drawStg
	return errors.Join(computeErr, drawErr)
}

// validate runs the naga front end over s when shader validation is enabled.
func (r *renderer) validate(s shader.Shader) error {
	if !r.validateShaders {
		return nil
	}
	return s.Validate()
}

// configureSurface configures the surface at extent with the current present mode.
func (r *renderer) configureSurface(extent common.Extent2D) error {
	err := r.surface.Configure(r.adapter, r.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      r.surfaceFormat,
		Width:       extent.Width,
		Height:      extent.Height,
		PresentMode: r.presentMode.surfacePresentMode(),
		AlphaMode:   r.alphaMode,
	})
	if err != nil {
		return fmt.Errorf("renderer: configure surface at %s: %w", extent, err)
	}
	r.surfaceExtent = extent
	return nil
}

func (r *renderer) HandleResize(width, height int) {
	width = common.ClampDimension(width, r.maxDimension)
	height = common.ClampDimension(height, r.maxDimension)
	if width <= 0 || height <= 0 {
		logging.Logger().Debug("resize ignored", "width", width, "height", height)
		return
	}
	if err := r.configureSurface(common.NewExtent2D(width, height)); err != nil {
		logging.Logger().Warn("resize failed", "error", err)
	}
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.presentMode = mode
	if r.surface == nil || r.surfaceExtent.Empty() {
		return
	}
	if err := r.configureSurface(r.surfaceExtent); err != nil {
		logging.Logger().Warn("present mode change failed", "mode", mode.String(), "error", err)
	}
}

func (r *renderer) Update(timeStamp float64) error {
	extent := r.surfaceExtent
	if err := r.coordinator.Update(r.queue, int(extent.Width), int(extent.Height), timeStamp); err != nil {
		return fmt.Errorf("renderer: update: %w", err)
	}

	surfaceTexture, err := r.surface.CurrentTexture()
	if err != nil {
		return fmt.Errorf("renderer: update: %w", err)
	}
	defer surfaceTexture.Release()
	surfaceView, err := surfaceTexture.CreateView()
	if err != nil {
		return fmt.Errorf("renderer: update: %w: surface view: %v", gpu.ErrSurfaceTexture, err)
	}
	defer surfaceView.Release()

	encoder, err := r.device.CreateCommandEncoder("Frame")
	if err != nil {
		return fmt.Errorf("renderer: update: %w: command encoder: %v", gpu.ErrResourceCreation, err)
	}
	defer encoder.Release()

	if err := r.encodeCompute(encoder, extent); err != nil {
		return fmt.Errorf("renderer: update: %w", err)
	}
	if err := r.encodeDraw(encoder, surfaceView); err != nil {
		return fmt.Errorf("renderer: update: %w", err)
	}

	commands, err := encoder.Finish()
	if err != nil {
		return fmt.Errorf("renderer: update: %w: finish: %v", gpu.ErrResourceCreation, err)
	}
	defer commands.Release()

	r.queue.Submit(commands)
	r.surface.Present()
	return nil
}

// encodeCompute records the ray sampling pass covering extent.
func (r *renderer) encodeCompute(encoder gpu.CommandEncoder, extent common.Extent2D) error {
	tile := r.compute.WorkgroupSize()
	pass := encoder.BeginComputePass()
	defer pass.Release()
	pass.SetPipeline(r.compute.Pipeline().ComputePipeline())
	pass.SetBindGroup(0, r.coordinator.ComputeBindGroup())
	pass.DispatchWorkgroups(
		common.DispatchCount(extent.Width, tile[0], r.exactDispatch),
		common.DispatchCount(extent.Height, tile[1], r.exactDispatch),
		1,
	)
	return pass.End()
}

// encodeDraw records the full-screen pass resampling the framebuffer onto view.
func (r *renderer) encodeDraw(encoder gpu.CommandEncoder, view gpu.TextureView) error {
	pass := encoder.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label: "Framebuffer draw",
		ColorAttachments: []gpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: r.clearColor,
		}},
	})
	defer pass.Release()
	pass.SetPipeline(r.draw.Pipeline().RenderPipeline())
	pass.SetBindGroup(0, r.coordinator.DrawBindGroup())
	pass.Draw(r.draw.VertexCount(), 1, 0, 0)
	return pass.End()
}

func (r *renderer) SurfaceExtent() common.Extent2D {
	return r.surfaceExtent
}

func (r *renderer) SurfaceFormat() wgpu.TextureFormat {
	return r.surfaceFormat
}

func (r *renderer) AdapterInfo() gpu.AdapterInfo {
	if r.adapter == nil {
		return gpu.AdapterInfo{}
	}
	return r.adapter.Info()
}

func (r *renderer) Coordinator() Coordinator {
	return r.coordinator
}

func (r *renderer) Release() {
	if r.coordinator != nil {
		r.coordinator.Release()
		r.coordinator = nil
	}
	if r.compute != nil {
		r.compute.Release()
		r.compute = nil
	}
	if r.draw != nil {
		r.draw.Release()
		r.draw = nil
	}
	if r.surface != nil {
		r.surface.Release()
		r.surface = nil
	}
	if r.device != nil {
		r.device.Release()
		r.device = nil
	}
	if r.adapter != nil {
		r.adapter.Release()
		r.adapter = nil
	}
}
