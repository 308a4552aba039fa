package renderer

import (
	"github.com/Carmen-Shannon/oxy-raysampler/common"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithShaders replaces the embedded compute and draw programs. A nil shader keeps the default
// for that stage. Replacements must honor the same binding contract as the defaults.
//
// Parameters:
//   - compute: the ray sampling program, or nil
//   - draw: the full-screen draw program, or nil
//
// Returns:
//   - RendererBuilderOption: a function that sets the programs
func WithShaders(compute, draw shader.Shader) RendererBuilderOption {
	return func(r *renderer) {
		r.computeShader = compute
		r.drawShader = draw
	}
}

// WithShaderValidation runs both programs through the naga WGSL front end before handing them
// to the driver, so syntax errors surface as gpu.ErrProgramCompilationFailed with naga's message.
//
// Parameters:
//   - enabled: true to validate
//
// Returns:
//   - RendererBuilderOption: a function that sets shader validation
func WithShaderValidation(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.validateShaders = enabled
	}
}

// WithExactDispatch switches the workgroup count from size/tile + 1 to the ceiling of size/tile,
// which avoids an idle row and column of workgroups when the size is a multiple of the tile.
//
// Parameters:
//   - exact: true for ceiling division
//
// Returns:
//   - RendererBuilderOption: a function that sets the dispatch rounding
func WithExactDispatch(exact bool) RendererBuilderOption {
	return func(r *renderer) {
		r.exactDispatch = exact
	}
}

// WithClearColor sets the color the draw pass clears the surface to. Defaults to opaque black.
//
// Parameters:
//   - color: the clear color
//
// Returns:
//   - RendererBuilderOption: a function that sets the clear color
func WithClearColor(color wgpu.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = color
	}
}

// WithSampler configures the framebuffer sampler of the draw stage.
//
// Parameters:
//   - data: the sampler staging data, zero fields keep the defaults
//
// Returns:
//   - RendererBuilderOption: a function that sets the sampler configuration
func WithSampler(data common.SamplerStagingData) RendererBuilderOption {
	return func(r *renderer) {
		r.sampler = data
	}
}

// WithInitialTimestamp sets the seed written with the first parameters record during NewRenderer.
//
// Parameters:
//   - timeStamp: the initial host timestamp
//
// Returns:
//   - RendererBuilderOption: a function that sets the initial timestamp
func WithInitialTimestamp(timeStamp float64) RendererBuilderOption {
	return func(r *renderer) {
		r.initialTimestamp = timeStamp
	}
}
