// Package adapters turns heterogeneous upstream sources (HTML pages, RSS
// feeds, agency JSON/XML APIs, and audio scanner streams) into a common
// RawObservation shape the extraction engine can consume.
package adapters

import (
	"context"
	"net/http"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// RawObservation is one unprocessed item pulled from a source, before
// extraction has turned it into structured incident fields.
type RawObservation struct {
	ExternalID string
	SourceURL  string
	Text       string
	FetchedAt  time.Time
}

// Adapter fetches new observations from a single configured source.
// Implementations must be safe to call repeatedly on a schedule; ExternalID
// values are the idempotency key the store uses to reject re-ingestion of
// the same observation.
type Adapter interface {
	Fetch(ctx context.Context, src *domain.Source) ([]RawObservation, error)
}

// ErrUnsupportedSourceType is returned by For when no adapter is
// registered for a source's type.
type ErrUnsupportedSourceType struct {
	SourceType domain.SourceType
}

func (e *ErrUnsupportedSourceType) Error() string {
	return "adapters: no adapter registered for source type " + string(e.SourceType)
}

// For resolves the adapter to use for a source, given the shared HTTP
// client and the audio-directory watcher (nil for deployments that don't
// ingest scanner audio).
func For(srcType domain.SourceType, deps Dependencies) (Adapter, error) {
	switch srcType {
	case domain.SourceTypeHTML:
		return NewHTMLAdapter(deps.HTTPClient), nil
	case domain.SourceTypeRSS:
		return NewRSSAdapter(deps.HTTPClient), nil
	case domain.SourceTypeAPI:
		return NewAPIAdapter(deps.HTTPClient), nil
	case domain.SourceTypeAudio:
		if deps.AudioWatcher == nil {
			return nil, &ErrUnsupportedSourceType{SourceType: srcType}
		}
		return deps.AudioWatcher, nil
	default:
		return nil, &ErrUnsupportedSourceType{SourceType: srcType}
	}
}

// Dependencies bundles the shared clients adapters need. Constructing one
// adapter per source would open a new *http.Client per source; instead the
// scheduler builds Dependencies once and hands it to For on every cycle.
type Dependencies struct {
	HTTPClient   HTTPDoer
	AudioWatcher Adapter
}

// HTTPDoer is the subset of *http.Client the adapters need, narrowed so
// tests can substitute a fake transport without a real network call.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
