package gpu

import "errors"

var (
	// ErrNoAdapter is returned when no graphics adapter satisfies the request.
	ErrNoAdapter = errors.New("gpu: no suitable adapter")

	// ErrNoDevice is returned when the adapter refuses to create a logical device.
	ErrNoDevice = errors.New("gpu: device request failed")

	// ErrNoSurfaceContext is returned when the host target cannot produce a presentable surface.
	ErrNoSurfaceContext = errors.New("gpu: no surface context")

	// ErrProgramCompilationFailed is returned when a shader program fails validation, does not
	// honor its binding contract, or is rejected by the driver.
	ErrProgramCompilationFailed = errors.New("gpu: program compilation failed")

	// ErrResourceCreation is returned when a texture, view, buffer or bind group cannot be created.
	ErrResourceCreation = errors.New("gpu: resource creation failed")

	// ErrSurfaceTexture is returned when the current surface texture cannot be acquired.
	ErrSurfaceTexture = errors.New("gpu: surface texture unavailable")
)
