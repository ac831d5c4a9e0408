package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// ParcelGeocoder resolves an address string to a coordinate via an
// external forward-geocoding API (Mapbox-shaped: a /geocoding/v5 style
// endpoint returning GeoJSON features with a [lon, lat] center).
type ParcelGeocoder struct {
	client  *http.Client
	token   string
	baseURL string
	bbox    [4]float64
	hasBBox bool
}

// NewParcelGeocoder builds a ParcelGeocoder. baseURL defaults to Mapbox's
// public endpoint when empty. bbox, when set, biases results toward the
// operating region the same way the source's configured region does.
func NewParcelGeocoder(client *http.Client, token, baseURL string, bbox [4]float64, hasBBox bool) *ParcelGeocoder {
	if baseURL == "" {
		baseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ParcelGeocoder{client: client, token: token, baseURL: baseURL, bbox: bbox, hasBBox: hasBBox}
}

// ErrNoResult is returned when the geocoding API returns zero features.
var ErrNoResult = errors.New("geocode: parcel tier returned no result")

// parcelConfidence is the fixed confidence for the parcel tier. An
// address-level match from this tier is the most precise the pipeline
// produces, so it is pinned above every other tier's confidence rather
// than left to float with the provider's own relevance score.
const parcelConfidence = 0.95

// Geocode resolves a free-form address (optionally scoped by city) into a
// coordinate.
func (g *ParcelGeocoder) Geocode(ctx context.Context, address, city string) (domain.Point, float64, error) {
	if strings.TrimSpace(g.token) == "" {
		return domain.Point{}, 0, errors.New("geocode: parcel tier has no API token configured")
	}
	query := strings.TrimSpace(address)
	if city != "" {
		query += ", " + city
	}
	if query == "" {
		return domain.Point{}, 0, errors.New("geocode: empty query")
	}

	endpoint := fmt.Sprintf("%s%s.json?access_token=%s&limit=1&country=US&language=en",
		g.baseURL, url.PathEscape(query), g.token)
	if g.hasBBox {
		endpoint += fmt.Sprintf("&bbox=%f,%f,%f,%f", g.bbox[0], g.bbox[1], g.bbox[2], g.bbox[3])
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Point{}, 0, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Point{}, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return domain.Point{}, 0, fmt.Errorf("geocode: parcel tier status %d", resp.StatusCode)
	}

	var data struct {
		Features []struct {
			Center []float64 `json:"center"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.Point{}, 0, err
	}
	if len(data.Features) == 0 || len(data.Features[0].Center) < 2 {
		return domain.Point{}, 0, ErrNoResult
	}
	f := data.Features[0]
	return domain.Point{Lat: f.Center[1], Lon: f.Center[0]}, parcelConfidence, nil
}
