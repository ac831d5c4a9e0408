// Package rollup computes weekly per-municipality aggregate snapshots over
// canonical incidents and news-category reports.
package rollup

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
	"github.com/mchenry-intel/ingestion-pipeline/internal/store"
)

// Store is the subset of persistence the rollup engine needs.
type Store interface {
	ListIncidents(ctx context.Context, f store.IncidentFilter) ([]*domain.Incident, error)
	ReportsByIncident(ctx context.Context, incidentID string) ([]*domain.IncidentReport, error)
	GetSourceCategory(ctx context.Context, sourceID string) (domain.SourceCategory, error)
	UpsertWeeklyRollup(ctx context.Context, r *domain.WeeklyRollup) error
	RollupForWeek(ctx context.Context, weekStart time.Time, municipality *string) (*domain.WeeklyRollup, error)
}

// WeekStart truncates t to the Monday 00:00 UTC that begins its ISO week,
// matching how weeks are keyed for idempotent rollup upserts.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday becomes day 7 so Monday is always day 1
	}
	daysSinceMonday := weekday - 1
	y, m, d := t.Date()
	monday := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysSinceMonday)
	return monday
}

// maxIncidentsPerWeek bounds a single rollup pass; a region generating
// more than this many incidents in a week needs the query paginated,
// which the current single-pass engine does not attempt.
const maxIncidentsPerWeek = 5000

// Engine computes and persists weekly rollups.
type Engine struct {
	store Store
}

// New builds a rollup Engine.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// RunWeek computes and idempotently upserts the rollup for the ISO week
// containing weekOf, scoped to region, split by municipality. Incidents
// with no city are grouped into the empty-string bucket, stored with a nil
// municipality; that bucket holds only those incidents and is not a total
// across municipalities.
func (e *Engine) RunWeek(ctx context.Context, region string, weekOf time.Time) (int, error) {
	start := WeekStart(weekOf)
	end := start.AddDate(0, 0, 7)

	incidents, err := e.store.ListIncidents(ctx, store.IncidentFilter{Region: region, Since: &start, Before: &end, Limit: maxIncidentsPerWeek})
	if err != nil {
		return 0, fmt.Errorf("rollup: list incidents: %w", err)
	}

	byMunicipality := make(map[string][]*domain.Incident)
	for _, inc := range incidents {
		muni := ""
		if inc.City != nil {
			muni = strings.ToLower(strings.TrimSpace(*inc.City))
		}
		byMunicipality[muni] = append(byMunicipality[muni], inc)
	}

	// cached across every municipality bucket in this run so a source
	// shared by incidents in several municipalities is only looked up once.
	sourceCategories := make(map[string]domain.SourceCategory)

	count := 0
	for muni, incs := range byMunicipality {
		r, err := e.buildRollup(ctx, start, muni, incs, sourceCategories)
		if err != nil {
			continue
		}
		if err := e.store.UpsertWeeklyRollup(ctx, r); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

func (e *Engine) buildRollup(ctx context.Context, weekStart time.Time, municipality string, incidents []*domain.Incident, sourceCategories map[string]domain.SourceCategory) (*domain.WeeklyRollup, error) {
	incidentsByCategory := make(map[string]int)
	newsByCategory := make(map[string]int)
	for _, inc := range incidents {
		incidentsByCategory[inc.Category]++

		reports, err := e.store.ReportsByIncident(ctx, inc.ID)
		if err != nil {
			continue
		}
		for _, r := range reports {
			cat, ok := sourceCategories[r.SourceID]
			if !ok {
				cat, err = e.store.GetSourceCategory(ctx, r.SourceID)
				if err != nil {
					continue
				}
				sourceCategories[r.SourceID] = cat
			}
			if cat != domain.CategoryNews {
				continue
			}
			newsByCategory[string(r.Category)]++
		}
	}

	var muniPtr *string
	if municipality != "" {
		m := municipality
		muniPtr = &m
	}

	trend, err := e.computeTrend(ctx, weekStart, muniPtr, len(incidents))
	if err != nil {
		trend = 0
	}

	return &domain.WeeklyRollup{
		WeekStart:           weekStart,
		Municipality:        muniPtr,
		IncidentsByCategory: incidentsByCategory,
		NewsByCategory:      newsByCategory,
		IncidentTrend:       trend,
		SummaryText:         summaryText(municipality, weekStart, incidentsByCategory, trend),
	}, nil
}

// computeTrend compares this week's incident count against the count from
// the rollup exactly one week prior, expressed as an integer percent
// change. When no prior rollup exists, the trend is 100 if this week has
// any incidents at all, otherwise 0 (there is nothing to compare against,
// and no change).
func (e *Engine) computeTrend(ctx context.Context, weekStart time.Time, municipality *string, currentCount int) (int, error) {
	priorWeekStart := weekStart.AddDate(0, 0, -7)
	prior, err := e.store.RollupForWeek(ctx, priorWeekStart, municipality)
	if err == store.ErrNotFound {
		return zeroPreviousTrend(currentCount), nil
	}
	if err != nil {
		return 0, err
	}

	priorCount := 0
	for _, n := range prior.IncidentsByCategory {
		priorCount += n
	}
	if priorCount == 0 {
		return zeroPreviousTrend(currentCount), nil
	}
	pct := 100 * float64(currentCount-priorCount) / float64(priorCount)
	return int(math.Round(pct)), nil
}

func zeroPreviousTrend(currentCount int) int {
	if currentCount > 0 {
		return 100
	}
	return 0
}

func summaryText(municipality string, weekStart time.Time, byCategory map[string]int, trend int) string {
	label := municipality
	if label == "" {
		label = "the region"
	}
	total := 0
	keys := make([]string, 0, len(byCategory))
	for k, n := range byCategory {
		total += n
		keys = append(keys, k)
	}
	sort.Strings(keys)

	direction := "steady"
	if trend > 0 {
		direction = fmt.Sprintf("up %d", trend)
	} else if trend < 0 {
		direction = fmt.Sprintf("down %d", -trend)
	}

	if total == 0 {
		return fmt.Sprintf("No reported incidents in %s for the week of %s.", label, weekStart.Format("2006-01-02"))
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", byCategory[k], strings.ReplaceAll(k, "_", " ")))
	}
	return fmt.Sprintf("%d incidents in %s for the week of %s (%s from last week): %s.",
		total, label, weekStart.Format("2006-01-02"), direction, strings.Join(parts, ", "))
}
