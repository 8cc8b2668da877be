package http

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-polyline"

	"github.com/samirrijal/saferoute/internal/core/domain"
)

// PlanResponse is the default JSON rendering of a plan. Polyline encodes the
// waypoints with the Google polyline algorithm (precision 5).
type PlanResponse struct {
	*domain.PlanResult
	Polyline string `json:"polyline"`
}

func newPlanResponse(res *domain.PlanResult) PlanResponse {
	return PlanResponse{PlanResult: res, Polyline: EncodeWaypoints(res.Waypoints())}
}

// EncodeWaypoints encodes coordinates as a Google encoded polyline.
func EncodeWaypoints(points []domain.Coordinate) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}

// PlanFeatureCollection renders a plan as GeoJSON: one LineString per segment
// carrying its risk and district, plus origin and destination points.
func PlanFeatureCollection(res *domain.PlanResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, s := range res.Segments {
		f := geojson.NewFeature(orb.LineString{toPoint(s.From), toPoint(s.To)})
		f.Properties["index"] = i
		f.Properties["risk"] = string(s.Risk)
		f.Properties["state"] = s.District.State
		f.Properties["district"] = s.District.District
		f.Properties["distance_m"] = s.DistanceMeters
		fc.Append(f)
	}

	origin := geojson.NewFeature(toPoint(res.Origin))
	origin.Properties["role"] = "origin"
	fc.Append(origin)

	dest := geojson.NewFeature(toPoint(res.Destination))
	dest.Properties["role"] = "destination"
	fc.Append(dest)

	fc.ExtraMembers = geojson.Properties{
		"plan_id":      res.ID,
		"distance_m":   res.DistanceMeters,
		"risk_summary": res.RiskSummary,
	}
	return fc
}

// GeoJSON uses [lng, lat] order.
func toPoint(c domain.Coordinate) orb.Point {
	return orb.Point{c.Lng, c.Lat}
}
