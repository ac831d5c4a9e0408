package store

import (
	"context"
	"testing"
	"time"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

func TestUpsertWeeklyRollupIsIdempotentOnWeekAndMunicipality(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	muni := "newton"
	first := &domain.WeeklyRollup{
		WeekStart:           weekStart,
		Municipality:        &muni,
		IncidentsByCategory: map[string]int{"fire": 2},
		SummaryText:         "2 incidents in newton for the week of 2026-03-02.",
	}
	if err := st.UpsertWeeklyRollup(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	firstID := first.ID

	second := &domain.WeeklyRollup{
		WeekStart:           weekStart,
		Municipality:        &muni,
		IncidentsByCategory: map[string]int{"fire": 3},
		IncidentTrend:       1,
		SummaryText:         "3 incidents in newton for the week of 2026-03-02 (up 1 from last week): 3 fire.",
	}
	if err := st.UpsertWeeklyRollup(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != firstID {
		t.Fatalf("re-running the same week produced a new row: %q vs %q", second.ID, firstID)
	}

	rollups, err := st.RollupsByMunicipality(ctx, muni, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("expected exactly one persisted rollup for the week, got %d", len(rollups))
	}
	if rollups[0].IncidentsByCategory["fire"] != 3 {
		t.Fatalf("expected the update to overwrite the category counts, got %+v", rollups[0].IncidentsByCategory)
	}
}

func TestRollupForWeekMatchesExactWeekOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	muni := "newton"

	older := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)
	target := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, w := range []time.Time{older, target} {
		r := &domain.WeeklyRollup{WeekStart: w, Municipality: &muni, IncidentsByCategory: map[string]int{"fire": 1}}
		if err := st.UpsertWeeklyRollup(ctx, r); err != nil {
			t.Fatalf("upsert %v: %v", w, err)
		}
	}

	got, err := st.RollupForWeek(ctx, target, &muni)
	if err != nil {
		t.Fatalf("rollup for week: %v", err)
	}
	if !got.WeekStart.Equal(target) {
		t.Fatalf("week start = %v, want %v", got.WeekStart, target)
	}

	missingWeek := target.AddDate(0, 0, 7)
	if _, err := st.RollupForWeek(ctx, missingWeek, &muni); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for a week with no rollup, got %v", err)
	}
}

func TestRollupsByMunicipalityOrdersNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	muni := "sparta"

	weeks := []time.Time{
		time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	for _, w := range weeks {
		r := &domain.WeeklyRollup{WeekStart: w, Municipality: &muni, IncidentsByCategory: map[string]int{}}
		if err := st.UpsertWeeklyRollup(ctx, r); err != nil {
			t.Fatalf("upsert %v: %v", w, err)
		}
	}

	got, err := st.RollupsByMunicipality(ctx, muni, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || !got[0].WeekStart.Equal(weeks[2]) {
		t.Fatalf("expected the most recent week first, got %+v", got)
	}
}
