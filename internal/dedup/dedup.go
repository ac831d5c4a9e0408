// Package dedup links a newly geocoded incident report to an existing
// canonical incident, or seeds a new one, using a spatiotemporal
// match-score formula rather than exact identity.
package dedup

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

const (
	// SearchRadiusMeters bounds the candidate search window; the scoring
	// formula still penalizes distance within this radius rather than
	// treating every candidate inside it as equally likely.
	SearchRadiusMeters = 300.0
	// SearchWindow bounds the candidate search window in time, applied
	// symmetrically around the report being matched.
	SearchWindow = 3 * time.Hour
	// MatchThreshold is the score at or above which a report links to an
	// existing incident instead of seeding a new one.
	MatchThreshold = 0.55

	distanceWeight = 0.5
	timeWeight     = 0.3
	typeWeight     = 0.2
)

// CandidateStore is the subset of the store the deduplicator needs.
type CandidateStore interface {
	FindDedupCandidates(ctx context.Context, region string, loc domain.Point, latDelta, lonDelta float64, from, to time.Time) ([]*domain.IncidentReport, error)
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
}

// Decision is the outcome of matching one report against existing
// incidents.
type Decision struct {
	// MatchedIncidentID is non-empty when the report links to an
	// existing incident.
	MatchedIncidentID string
	Score             float64
	IsNewIncident     bool
}

// Match searches for an existing incident the report should link to. When
// the report has no resolved location, it always seeds a new incident:
// spatial matching requires a coordinate on both sides.
func Match(ctx context.Context, store CandidateStore, region string, report *domain.IncidentReport) (Decision, error) {
	if report.Location == nil {
		return Decision{IsNewIncident: true}, nil
	}

	referenceTime := report.OccurredAt
	if referenceTime == nil {
		referenceTime = &report.IngestedAt
	}
	from := referenceTime.Add(-SearchWindow)
	to := referenceTime.Add(SearchWindow)

	latDelta, lonDelta := boundingBoxDelta(*report.Location, SearchRadiusMeters)
	candidates, err := store.FindDedupCandidates(ctx, region, *report.Location, latDelta, lonDelta, from, to)
	if err != nil {
		return Decision{}, err
	}

	type scored struct {
		incidentID string
		score      float64
		distance   float64
		deltaMin   float64
	}
	var best []scored
	seen := make(map[string]bool)
	for _, cand := range candidates {
		if cand.IncidentID == nil || seen[*cand.IncidentID] {
			continue
		}
		if cand.Location == nil {
			continue
		}
		distance := haversineMeters(*report.Location, *cand.Location)
		if distance > SearchRadiusMeters {
			continue
		}
		candTime := cand.OccurredAt
		if candTime == nil {
			candTime = &cand.IngestedAt
		}
		deltaMin := referenceTime.Sub(*candTime).Minutes()
		if deltaMin < 0 {
			deltaMin = -deltaMin
		}
		if deltaMin > SearchWindow.Minutes() {
			continue
		}
		typeMatch := 0.0
		if cand.IncidentType == report.IncidentType {
			typeMatch = 1.0
		}
		score := distanceWeight*(1-distance/SearchRadiusMeters) +
			timeWeight*(1-deltaMin/SearchWindow.Minutes()) +
			typeWeight*typeMatch
		seen[*cand.IncidentID] = true
		best = append(best, scored{incidentID: *cand.IncidentID, score: score, distance: distance, deltaMin: deltaMin})
	}

	if len(best) == 0 {
		return Decision{IsNewIncident: true}, nil
	}

	// Deterministic tie-break: highest score first, then closest distance,
	// then smallest time delta, then lexicographically smallest incident
	// ID, so re-running the matcher over the same inputs always picks the
	// same winner.
	sort.Slice(best, func(i, j int) bool {
		if best[i].score != best[j].score {
			return best[i].score > best[j].score
		}
		if best[i].distance != best[j].distance {
			return best[i].distance < best[j].distance
		}
		if best[i].deltaMin != best[j].deltaMin {
			return best[i].deltaMin < best[j].deltaMin
		}
		return best[i].incidentID < best[j].incidentID
	})

	winner := best[0]
	if winner.score < MatchThreshold {
		return Decision{IsNewIncident: true, Score: winner.score}, nil
	}
	return Decision{MatchedIncidentID: winner.incidentID, Score: winner.score}, nil
}

// boundingBoxDelta converts a radius in meters into a lat/lon delta usable
// as a cheap prefilter before the exact haversine check; it overestimates
// slightly at higher latitudes rather than risk excluding a true match.
func boundingBoxDelta(center domain.Point, radiusMeters float64) (latDelta, lonDelta float64) {
	const metersPerDegreeLat = 111320.0
	latDelta = radiusMeters / metersPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonDelta = radiusMeters / (metersPerDegreeLat * cosLat)
	return latDelta, lonDelta
}
