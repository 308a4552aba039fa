// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Extent2D is a width/height pair in pixels. It is the unit the renderer uses to track the
// configured surface size and the size of the intermediate framebuffer.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// NewExtent2D converts signed pixel dimensions into an Extent2D. Negative values become zero.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - Extent2D: the converted extent
func NewExtent2D(width, height int) Extent2D {
	return Extent2D{Width: uint32(max(width, 0)), Height: uint32(max(height, 0))}
}

// Empty reports whether either dimension is zero.
func (e Extent2D) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Extent3D expands the extent into a single-layer wgpu.Extent3D for texture creation.
func (e Extent2D) Extent3D() wgpu.Extent3D {
	return wgpu.Extent3D{
		Width:              e.Width,
		Height:             e.Height,
		DepthOrArrayLayers: 1,
	}
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// Zero-valued fields fall back to the defaults of whichever component creates the sampler.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}
