package renderer

import (
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency. This is the default.
	PresentModeUncapped PresentMode = iota

	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync
)

// surfacePresentMode maps the mode onto the surface present mode.
func (m PresentMode) surfacePresentMode() wgpu.PresentMode {
	switch m {
	case PresentModeVSync:
		return wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		return wgpu.PresentModeImmediate
	}
}

func (m PresentMode) String() string {
	if m == PresentModeVSync {
		return "vsync"
	}
	return "uncapped"
}

// SurfaceTarget is the host object the renderer presents into. window.Window satisfies it.
type SurfaceTarget interface {
	// SurfaceDescriptor returns the platform surface descriptor, nil if the host cannot
	// provide one.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Width returns the drawable width in pixels.
	Width() int

	// Height returns the drawable height in pixels.
	Height() int
}

// Errors returned by NewRenderer and Update. They alias the gpu package sentinels so callers
// can match them with errors.Is without importing gpu.
var (
	ErrNoAdapter                = gpu.ErrNoAdapter
	ErrNoDevice                 = gpu.ErrNoDevice
	ErrNoSurfaceContext         = gpu.ErrNoSurfaceContext
	ErrProgramCompilationFailed = gpu.ErrProgramCompilationFailed
	ErrResourceCreation         = gpu.ErrResourceCreation
	ErrSurfaceTexture           = gpu.ErrSurfaceTexture
)
