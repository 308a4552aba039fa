// Package stage builds the two GPU programs of the ray sampler: the compute stage that writes
// stochastic samples into an intermediate framebuffer, and the draw stage that resamples that
// framebuffer onto the surface with a single full-screen triangle.
package stage

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/shader"
)

//go:embed assets/compute.wgsl
var computeSource string

//go:embed assets/draw.wgsl
var drawSource string

const (
	// ComputeShaderKey is the key and debug label of the default compute program.
	ComputeShaderKey = "ray_sampler_compute"

	// DrawShaderKey is the key and debug label of the default draw program.
	DrawShaderKey = "ray_sampler_draw"
)

// DefaultComputeShader reflects the embedded ray sampling program.
func DefaultComputeShader() (shader.Shader, error) {
	return shader.NewShader(ComputeShaderKey, shader.ShaderTypeCompute, computeSource)
}

// DefaultDrawShader reflects the embedded full-screen draw program.
func DefaultDrawShader() (shader.Shader, error) {
	return shader.NewShader(DrawShaderKey, shader.ShaderTypeRender, drawSource)
}
