package geocode

import (
	"math"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points in
// meters.
func HaversineMeters(a, b domain.Point) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}
