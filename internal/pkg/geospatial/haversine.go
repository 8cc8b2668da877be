package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Haversine returns the great-circle distance in meters between two points
// given as latitude/longitude degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}
