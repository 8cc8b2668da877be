package usecases

import "github.com/samirrijal/saferoute/internal/core/domain"

// DefaultStride is the decimation stride used when none is configured.
const DefaultStride = 10

// Simplify decimates a route polyline by keeping every stride-th point by
// original index (0, stride, 2*stride, ...). It is a fixed-stride reduction,
// not a geometry-aware one. When keepLast is set and the final polyline point
// falls between strides, it is appended so the destination is always a
// waypoint. A stride below 1 is treated as 1.
func Simplify(polyline []domain.Coordinate, stride int, keepLast bool) []domain.Coordinate {
	if len(polyline) == 0 {
		return nil
	}
	if stride < 1 {
		stride = 1
	}

	waypoints := make([]domain.Coordinate, 0, len(polyline)/stride+2)
	for i := 0; i < len(polyline); i += stride {
		waypoints = append(waypoints, polyline[i])
	}

	last := len(polyline) - 1
	if keepLast && last%stride != 0 {
		waypoints = append(waypoints, polyline[last])
	}
	return waypoints
}
