package geocode

import (
	"errors"
	"strings"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// CentroidGeocoder is the geocoder of last resort: a static table mapping
// known municipality names to a representative point, used when neither
// the parcel nor block tier can resolve a location. It never fails for a
// recognized municipality, giving every incident report at least a
// region-level location, at the lowest confidence tier.
type CentroidGeocoder struct {
	centroids map[string]domain.Point
}

// NewCentroidGeocoder builds a CentroidGeocoder from a municipality-name
// to point table, typically loaded once at startup from operator config.
func NewCentroidGeocoder(centroids map[string]domain.Point) *CentroidGeocoder {
	normalized := make(map[string]domain.Point, len(centroids))
	for k, v := range centroids {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &CentroidGeocoder{centroids: normalized}
}

// ErrUnknownMunicipality is returned when city matches no entry in the
// centroid table.
var ErrUnknownMunicipality = errors.New("geocode: unknown municipality")

// Geocode returns the centroid registered for city.
func (g *CentroidGeocoder) Geocode(city string) (domain.Point, float64, error) {
	pt, ok := g.centroids[strings.ToLower(strings.TrimSpace(city))]
	if !ok {
		return domain.Point{}, 0, ErrUnknownMunicipality
	}
	return pt, 0.3, nil
}

// DefaultCentroids is a small illustrative seed table; real deployments
// load their own municipality list via operator configuration.
func DefaultCentroids() map[string]domain.Point {
	return map[string]domain.Point{
		"newton":    {Lat: 41.0598, Lon: -74.7515},
		"sparta":    {Lat: 41.0362, Lon: -74.6382},
		"vernon":    {Lat: 41.1926, Lon: -74.4854},
		"hopatcong": {Lat: 40.9531, Lon: -74.6593},
	}
}
