package geocode

import (
	"context"
	"errors"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// CenterlineLookup is the subset of the store the block tier needs,
// narrowed so tests can supply an in-memory fake.
type CenterlineLookup interface {
	FindCenterlines(ctx context.Context, region, streetNameNormalized string) ([]domain.StreetCenterline, error)
}

// BlockGeocoder resolves an address to a coordinate by interpolating along
// a cached street centerline segment whose address range contains the
// target house number, falling back to the segment midpoint when no exact
// range match is found (the common case for "N block of Street" reports
// that never carry an exact number).
type BlockGeocoder struct {
	store CenterlineLookup
}

// NewBlockGeocoder builds a BlockGeocoder over a centerline lookup.
func NewBlockGeocoder(store CenterlineLookup) *BlockGeocoder {
	return &BlockGeocoder{store: store}
}

// ErrNoCenterline is returned when no cached centerline matches the
// street name in the given region.
var ErrNoCenterline = errors.New("geocode: no centerline for street")

// blockConfidence is the fixed confidence for the block tier, whether the
// house number falls inside a segment's address range or the segment
// midpoint is used as a fallback.
const blockConfidence = 0.70

// Geocode resolves a parsed address within region into a coordinate.
// Confidence is lower than the parcel tier's since it locates a block, not
// a parcel.
func (g *BlockGeocoder) Geocode(ctx context.Context, region string, addr *ParsedAddress) (domain.Point, float64, error) {
	lines, err := g.store.FindCenterlines(ctx, region, addr.Street)
	if err != nil {
		return domain.Point{}, 0, err
	}
	if len(lines) == 0 {
		return domain.Point{}, 0, ErrNoCenterline
	}

	for _, c := range lines {
		lo, hi := c.FromAddress, c.ToAddress
		if lo > hi {
			lo, hi = hi, lo
		}
		if addr.HouseNumber >= lo && addr.HouseNumber <= hi {
			return interpolate(c, addr.HouseNumber), blockConfidence, nil
		}
	}

	// no segment's range contains the number: fall back to the first
	// matching segment's midpoint, which is still better than the
	// region centroid.
	return lines[0].Midpoint(), blockConfidence, nil
}

// interpolate places the point proportionally along the segment based on
// where the house number falls within its address range.
func interpolate(c domain.StreetCenterline, houseNumber int) domain.Point {
	lo, hi := c.FromAddress, c.ToAddress
	fromPoint, toPoint := c.FromPoint, c.ToPoint
	if lo > hi {
		lo, hi = hi, lo
		fromPoint, toPoint = toPoint, fromPoint
	}
	if hi == lo {
		return c.Midpoint()
	}
	frac := float64(houseNumber-lo) / float64(hi-lo)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return domain.Point{
		Lat: fromPoint.Lat + frac*(toPoint.Lat-fromPoint.Lat),
		Lon: fromPoint.Lon + frac*(toPoint.Lon-fromPoint.Lon),
	}
}
