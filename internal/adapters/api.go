package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// APIAdapter polls a JSON agency API (CAD feeds, permit portals, business
// license endpoints) that returns an array of records at a configurable
// dotted path (config "records_path"). Field names within each record are mapped through
// the source's config so the same adapter serves any agency whose API
// returns a flat JSON array.
type APIAdapter struct {
	client HTTPDoer
}

// NewAPIAdapter builds an APIAdapter using client for API fetches.
func NewAPIAdapter(client HTTPDoer) *APIAdapter {
	return &APIAdapter{client: client}
}

func (a *APIAdapter) Fetch(ctx context.Context, src *domain.Source) ([]RawObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if key, ok := src.Config["api_key"].(string); ok && key != "" {
		header, _ := src.Config["api_key_header"].(string)
		if header == "" {
			header = "Authorization"
		}
		req.Header.Set(header, key)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api adapter: fetch %s: %w", src.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("api adapter: %s returned status %d", src.URL, resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("api adapter: decode %s: %w", src.URL, err)
	}

	recordsPath, _ := src.Config["records_path"].(string)
	records, ok := lookupArray(payload, recordsPath)
	if !ok {
		return nil, fmt.Errorf("api adapter: %s: no array at records_path %q", src.URL, recordsPath)
	}

	idField, _ := src.Config["id_field"].(string)
	if idField == "" {
		idField = "id"
	}

	fetchedAt := time.Now().UTC()
	obs := make([]RawObservation, 0, len(records))
	for i, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		id := fmt.Sprintf("%v", m[idField])
		if id == "" || id == "<nil>" {
			id = fmt.Sprintf("%s-%d", src.ID, i)
		}
		text, err := json.Marshal(m)
		if err != nil {
			continue
		}
		obs = append(obs, RawObservation{
			ExternalID: id,
			SourceURL:  src.URL,
			Text:       string(text),
			FetchedAt:  fetchedAt,
		})
	}
	return obs, nil
}

// lookupArray navigates a dotted path (e.g. "data.records") into a decoded
// JSON value and returns the []any found there. An empty path means the
// top-level value itself is the array.
func lookupArray(v any, path string) ([]any, bool) {
	if path == "" {
		arr, ok := v.([]any)
		return arr, ok
	}
	cur := v
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	arr, ok := cur.([]any)
	return arr, ok
}
