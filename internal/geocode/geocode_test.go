package geocode

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

func TestHaversineMetersKnownDistance(t *testing.T) {
	// Newton, NJ to Sparta, NJ is roughly 9-10km.
	a := domain.Point{Lat: 41.0598, Lon: -74.7515}
	b := domain.Point{Lat: 41.0362, Lon: -74.6382}
	got := HaversineMeters(a, b)
	if got < 8000 || got > 11000 {
		t.Fatalf("distance = %.0fm, want roughly 9-10km", got)
	}
	if same := HaversineMeters(a, a); math.Abs(same) > 1e-6 {
		t.Fatalf("distance to self = %.6f, want 0", same)
	}
}

func TestCentroidGeocoderKnownAndUnknownMunicipality(t *testing.T) {
	g := NewCentroidGeocoder(DefaultCentroids())

	pt, conf, err := g.Geocode("Newton")
	if err != nil {
		t.Fatalf("geocode known municipality: %v", err)
	}
	if conf != 0.3 {
		t.Fatalf("confidence = %.2f, want 0.3", conf)
	}
	if pt.Lat == 0 && pt.Lon == 0 {
		t.Fatalf("expected a non-zero point for Newton")
	}

	if _, _, err := g.Geocode("Atlantis"); err != ErrUnknownMunicipality {
		t.Fatalf("expected ErrUnknownMunicipality, got %v", err)
	}
}

func TestParcelGeocoderReturnsFixedConfidenceRegardlessOfRelevance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[{"center":[-74.7515,41.0598],"relevance":0.42}]}`))
	}))
	defer srv.Close()

	g := NewParcelGeocoder(srv.Client(), "test-token", srv.URL, [4]float64{}, false)
	pt, conf, err := g.Geocode(context.Background(), "100 Main Street", "Newton")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if conf != 0.95 {
		t.Fatalf("confidence = %.2f, want fixed 0.95 regardless of provider relevance", conf)
	}
	if pt.Lat != 41.0598 || pt.Lon != -74.7515 {
		t.Fatalf("point = %+v, want (41.0598, -74.7515)", pt)
	}

	// Tier law: parcel confidence must never fall below the block tier's.
	if conf < blockConfidence {
		t.Fatalf("parcel confidence %.2f below block confidence %.2f, violates tier ordering", conf, blockConfidence)
	}
}

type fakeCenterlineLookup struct {
	lines []domain.StreetCenterline
}

func (f *fakeCenterlineLookup) FindCenterlines(ctx context.Context, region, streetNameNormalized string) ([]domain.StreetCenterline, error) {
	return f.lines, nil
}

func TestBlockGeocoderInterpolatesWithinRange(t *testing.T) {
	lookup := &fakeCenterlineLookup{lines: []domain.StreetCenterline{
		{
			StreetNameNormalized: "Main Street",
			FromAddress:          100,
			ToAddress:            200,
			FromPoint:            domain.Point{Lat: 41.0, Lon: -74.0},
			ToPoint:              domain.Point{Lat: 41.1, Lon: -74.1},
		},
	}}
	g := NewBlockGeocoder(lookup)
	pt, conf, err := g.Geocode(context.Background(), "region", &ParsedAddress{HouseNumber: 150, Street: "Main Street"})
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if conf != 0.70 {
		t.Fatalf("confidence = %.2f, want 0.70 for an in-range match", conf)
	}
	wantLat := 41.05
	if math.Abs(pt.Lat-wantLat) > 0.01 {
		t.Fatalf("lat = %.4f, want roughly %.4f (midpoint interpolation)", pt.Lat, wantLat)
	}
}

func TestBlockGeocoderFallsBackToMidpointOutsideRange(t *testing.T) {
	lookup := &fakeCenterlineLookup{lines: []domain.StreetCenterline{
		{
			StreetNameNormalized: "Main Street",
			FromAddress:          100,
			ToAddress:            200,
			FromPoint:            domain.Point{Lat: 41.0, Lon: -74.0},
			ToPoint:              domain.Point{Lat: 41.1, Lon: -74.1},
		},
	}}
	g := NewBlockGeocoder(lookup)
	_, conf, err := g.Geocode(context.Background(), "region", &ParsedAddress{HouseNumber: 900, Street: "Main Street"})
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if conf != 0.70 {
		t.Fatalf("confidence = %.2f, want 0.70 for the midpoint fallback", conf)
	}
}

func TestBlockGeocoderNoCenterline(t *testing.T) {
	g := NewBlockGeocoder(&fakeCenterlineLookup{})
	_, _, err := g.Geocode(context.Background(), "region", &ParsedAddress{HouseNumber: 150, Street: "Elm Street"})
	if err != ErrNoCenterline {
		t.Fatalf("expected ErrNoCenterline, got %v", err)
	}
}

func TestGeocoderFallsThroughTiers(t *testing.T) {
	block := NewBlockGeocoder(&fakeCenterlineLookup{})
	centroid := NewCentroidGeocoder(DefaultCentroids())
	g := New(nil, block, centroid)

	result, err := g.Resolve(context.Background(), "region", "suspicious activity reported near downtown", "Newton")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Resolution != domain.ResolutionCentroid {
		t.Fatalf("resolution = %s, want centroid fallback", result.Resolution)
	}
}
