package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// DispatchCount returns the number of workgroups needed along one axis to cover size invocations
// with workgroups of the given tile size.
//
// The default rounding is size/tile + 1, which always dispatches one extra workgroup when size is
// an exact multiple of tile. Compute programs are expected to bounds-check their invocation ids.
// With exact set, the count is the ceiling of size/tile instead.
//
// Parameters:
//   - size: the number of invocations to cover along the axis
//   - tile: the workgroup size along the axis (0 is treated as 1)
//   - exact: use ceiling division instead of size/tile + 1
//
// Returns:
//   - uint32: the number of workgroups to dispatch
func DispatchCount(size, tile uint32, exact bool) uint32 {
	if tile == 0 {
		tile = 1
	}
	if exact {
		return (size + tile - 1) / tile
	}
	return size/tile + 1
}

// ClampDimension clamps a requested pixel dimension to the device limit.
//
// Parameters:
//   - value: the requested dimension in pixels
//   - limit: the maximum supported dimension
//
// Returns:
//   - int: value clamped to limit
func ClampDimension(value int, limit uint32) int {
	return min(value, int(limit))
}
