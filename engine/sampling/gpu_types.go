// Package sampling owns the CPU-side definition of the ray sampling parameters record that the
// compute program reads every frame.
package sampling

import (
	_ "embed"
	"fmt"

	"github.com/Carmen-Shannon/oxy-raysampler/common"
)

// GPUSamplingParamsSource is the canonical WGSL definition of the SamplingParams struct,
// injected into compute programs through `//@oxy:include sampling_params`.
// Layout: seed at offset 0, extent at offset 8, 16 bytes total.
//
//go:embed assets/sampling_params.wgsl
var GPUSamplingParamsSource string

const (
	// TypeName is the WGSL struct name declared by GPUSamplingParamsSource.
	TypeName = "SamplingParams"

	// FieldSeed names the f32 seed member. The renderer writes the frame timestamp here.
	FieldSeed = "seed"

	// FieldExtent names the vec2 extent member holding the framebuffer size in pixels.
	FieldExtent = "extent"
)

// Params is the value the renderer mirrors into the parameters buffer each frame.
type Params struct {
	// Seed is the host timestamp of the frame, typically milliseconds since start.
	Seed float64
	// Extent is the size of the framebuffer the compute program writes into.
	Extent common.Extent2D
}

func (p Params) String() string {
	return fmt.Sprintf("seed=%.3f extent=%s", p.Seed, p.Extent)
}
