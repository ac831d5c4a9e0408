// Package geocode resolves a textual address into a coordinate through
// three descending-precision tiers: an external forward-geocode API, a
// cached street-centerline interpolation, and a static municipality
// centroid, each tier lowering the confidence attached to the result.
package geocode

import (
	"context"
	"strconv"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// Result is a resolved location and the tier that produced it.
type Result struct {
	Location   domain.Point
	Resolution domain.LocationResolution
	Confidence float64
}

// Geocoder tries the parcel tier first, then the block tier, then the
// centroid tier, returning the first tier that succeeds.
type Geocoder struct {
	parcel   *ParcelGeocoder
	block    *BlockGeocoder
	centroid *CentroidGeocoder
}

// New builds a Geocoder from its three tiers. Any tier may be nil, in
// which case it is skipped (a deployment with no Mapbox token configured,
// for instance, runs block-then-centroid only).
func New(parcel *ParcelGeocoder, block *BlockGeocoder, centroid *CentroidGeocoder) *Geocoder {
	return &Geocoder{parcel: parcel, block: block, centroid: centroid}
}

// Resolve attempts to geocode rawText (the report's address/description),
// falling through tiers in order. region scopes the block tier's
// centerline lookup; city scopes both the parcel query and the centroid
// fallback.
func (g *Geocoder) Resolve(ctx context.Context, region, rawText, city string) (Result, error) {
	if g.parcel != nil {
		if addr, err := ParseAddress(rawText); err == nil && !addr.IsBlockOnly {
			if pt, conf, err := g.parcel.Geocode(ctx, formatAddressQuery(addr), city); err == nil {
				return Result{Location: pt, Resolution: domain.ResolutionParcel, Confidence: conf}, nil
			}
		} else if city != "" {
			if pt, conf, err := g.parcel.Geocode(ctx, rawText, city); err == nil {
				return Result{Location: pt, Resolution: domain.ResolutionParcel, Confidence: conf}, nil
			}
		}
	}

	if g.block != nil {
		if addr, err := ParseAddress(rawText); err == nil {
			if pt, conf, err := g.block.Geocode(ctx, region, addr); err == nil {
				return Result{Location: pt, Resolution: domain.ResolutionBlock, Confidence: conf}, nil
			}
		}
	}

	if g.centroid != nil && city != "" {
		if pt, conf, err := g.centroid.Geocode(city); err == nil {
			return Result{Location: pt, Resolution: domain.ResolutionCentroid, Confidence: conf}, nil
		}
	}

	return Result{Resolution: domain.ResolutionUnknown}, ErrAllTiersFailed
}

// ErrAllTiersFailed is returned when no tier could resolve a location.
var ErrAllTiersFailed = errAllTiersFailed{}

type errAllTiersFailed struct{}

func (errAllTiersFailed) Error() string { return "geocode: all tiers failed to resolve a location" }

func formatAddressQuery(addr *ParsedAddress) string {
	if addr.HouseNumber == 0 {
		return addr.Street
	}
	return strconv.Itoa(addr.HouseNumber) + " " + addr.Street
}
