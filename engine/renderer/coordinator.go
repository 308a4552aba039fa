package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raysampler/common"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/logging"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/stage"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/sampling"
)

// coordinator is the implementation of the Coordinator interface.
type coordinator struct {
	compute stage.ComputeStage
	draw    stage.DrawStage

	// framebuffer and framebufferView are owned by the coordinator and replaced on every rebuild.
	framebuffer     gpu.Texture
	framebufferView gpu.TextureView

	extent   common.Extent2D
	seed     float64
	rebuilds int
}

// Coordinator keeps the compute output and the draw input consistent. It owns the intermediate
// framebuffer, lazily recreates it together with both bind groups when the requested size
// changes, and rewrites the sampling parameters every frame.
type Coordinator interface {
	// Update brings the framebuffer to width x height and writes the sampling parameters.
	//
	// When the requested size differs from the tracked extent, a new framebuffer and both bind
	// groups are created first and swapped in only once all of them exist. On failure every new
	// object is released, the previous resources and extent stay current, nothing is written,
	// and the call can be retried.
	//
	// The seed is set to timeStamp on every call and the whole parameters record is written to
	// the buffer at offset 0 in a single write.
	//
	// Parameters:
	//   - queue: the queue to write the parameters through
	//   - width: the requested framebuffer width in pixels
	//   - height: the requested framebuffer height in pixels
	//   - timeStamp: the host timestamp of the frame
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrResourceCreation if the rebuild or the write fails
	Update(queue gpu.Queue, width, height int, timeStamp float64) error

	// Extent returns the size of the current framebuffer, zero before the first Update.
	Extent() common.Extent2D

	// Params returns the parameters last written to the GPU.
	Params() sampling.Params

	// Rebuilds returns how many times the framebuffer has been created.
	Rebuilds() int

	// FramebufferView returns the view both bind groups currently reference.
	FramebufferView() gpu.TextureView

	// ComputeBindGroup returns the compute stage's current bind group.
	ComputeBindGroup() gpu.BindGroup

	// DrawBindGroup returns the draw stage's current bind group.
	DrawBindGroup() gpu.BindGroup

	// Release releases the framebuffer, its view and both current bind groups. The stages keep
	// their pipelines, layouts, buffer and sampler.
	Release()
}

// Compile-time check that coordinator implements Coordinator
var _ Coordinator = &coordinator{}

// NewCoordinator creates a Coordinator over the two stages. No framebuffer exists until the
// first Update.
//
// Parameters:
//   - compute: the ray sampling stage writing the framebuffer
//   - draw: the stage sampling the framebuffer onto the surface
//
// Returns:
//   - Coordinator: the coordinator
func NewCoordinator(compute stage.ComputeStage, draw stage.DrawStage) Coordinator {
	return &coordinator{
		compute: compute,
		draw:    draw,
	}
}

func (c *coordinator) Update(queue gpu.Queue, width, height int, timeStamp float64) error {
	requested := common.NewExtent2D(width, height)
	if requested != c.extent || c.framebufferView == nil {
		if err := c.rebuild(requested); err != nil {
			return err
		}
	}

	params := c.compute.Params()
	if err := params.SetF32(sampling.FieldSeed, float32(timeStamp)); err != nil {
		return fmt.Errorf("%w: sampling parameters: %v", gpu.ErrResourceCreation, err)
	}
	if err := c.compute.ParamsWrite().Apply(queue); err != nil {
		return fmt.Errorf("%w: sampling parameters: %v", gpu.ErrResourceCreation, err)
	}
	c.seed = timeStamp
	return nil
}

// rebuild creates the framebuffer for extent and both bind groups over it, then swaps them in.
func (c *coordinator) rebuild(extent common.Extent2D) error {
	tex, view, err := c.compute.CreateFramebuffer(extent)
	if err != nil {
		return err
	}
	computeBindGroup, err := c.compute.CreateBindGroup(view)
	if err != nil {
		view.Release()
		tex.Release()
		return err
	}
	drawBindGroup, err := c.draw.CreateBindGroup(view)
	if err != nil {
		computeBindGroup.Release()
		view.Release()
		tex.Release()
		return err
	}
	if err := c.compute.Params().SetVec2(sampling.FieldExtent, extent.Width, extent.Height); err != nil {
		drawBindGroup.Release()
		computeBindGroup.Release()
		view.Release()
		tex.Release()
		return fmt.Errorf("%w: sampling parameters: %v", gpu.ErrResourceCreation, err)
	}

	c.swapBindGroups(computeBindGroup, drawBindGroup)
	if c.framebufferView != nil {
		c.framebufferView.Release()
	}
	if c.framebuffer != nil {
		c.framebuffer.Release()
	}
	c.framebuffer, c.framebufferView = tex, view
	c.extent = extent
	c.rebuilds++

	logging.Logger().Debug("framebuffer rebuilt", "extent", extent.String(), "rebuilds", c.rebuilds)
	return nil
}

// swapBindGroups installs the given bind groups on both providers and releases the replaced ones.
func (c *coordinator) swapBindGroups(compute, draw gpu.BindGroup) {
	if prev := c.compute.Provider().SetBindGroup(compute); prev != nil {
		prev.Release()
	}
	if prev := c.draw.Provider().SetBindGroup(draw); prev != nil {
		prev.Release()
	}
}

func (c *coordinator) Extent() common.Extent2D {
	return c.extent
}

func (c *coordinator) Params() sampling.Params {
	return sampling.Params{Seed: c.seed, Extent: c.extent}
}

func (c *coordinator) Rebuilds() int {
	return c.rebuilds
}

func (c *coordinator) FramebufferView() gpu.TextureView {
	return c.framebufferView
}

func (c *coordinator) ComputeBindGroup() gpu.BindGroup {
	return c.compute.Provider().BindGroup()
}

func (c *coordinator) DrawBindGroup() gpu.BindGroup {
	return c.draw.Provider().BindGroup()
}

func (c *coordinator) Release() {
	c.swapBindGroups(nil, nil)
	if c.framebufferView != nil {
		c.framebufferView.Release()
		c.framebufferView = nil
	}
	if c.framebuffer != nil {
		c.framebuffer.Release()
		c.framebuffer = nil
	}
	c.extent = common.Extent2D{}
}
