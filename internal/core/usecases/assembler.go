package usecases

import (
	"github.com/samirrijal/saferoute/internal/core/domain"
	"github.com/samirrijal/saferoute/internal/pkg/geospatial"
)

// Assemble pairs consecutive waypoints into segments. Each segment's risk is
// taken from its leading endpoint only: a segment that crosses a district
// boundary is attributed entirely to the district of its first point.
// riskOf is called once per segment, in waypoint order.
func Assemble(waypoints []domain.Coordinate, riskOf func(domain.Coordinate) domain.RiskCategory) []domain.Segment {
	if len(waypoints) < 2 {
		return []domain.Segment{}
	}

	segments := make([]domain.Segment, 0, len(waypoints)-1)
	for i := 0; i < len(waypoints)-1; i++ {
		from, to := waypoints[i], waypoints[i+1]
		segments = append(segments, domain.Segment{
			From:           from,
			To:             to,
			Risk:           riskOf(from).Normalize(),
			DistanceMeters: geospatial.Haversine(from.Lat, from.Lng, to.Lat, to.Lng),
		})
	}
	return segments
}
