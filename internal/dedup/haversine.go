package dedup

import (
	"math"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

const earthRadiusMeters = 6371000.0

func haversineMeters(a, b domain.Point) float64 {
	const degToRad = math.Pi / 180
	lat1, lon1 := a.Lat*degToRad, a.Lon*degToRad
	lat2, lon2 := b.Lat*degToRad, b.Lon*degToRad
	dlat := lat2 - lat1
	dlon := lon2 - lon1
	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}
