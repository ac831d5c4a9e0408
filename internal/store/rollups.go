package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// UpsertWeeklyRollup writes a rollup, replacing any existing row for the
// same (week_start, municipality) pair so a re-run of the rollup engine
// for a week already computed is idempotent rather than accumulating
// duplicate rows.
func (s *Store) UpsertWeeklyRollup(ctx context.Context, r *domain.WeeklyRollup) error {
	incidentsJSON, err := json.Marshal(r.IncidentsByCategory)
	if err != nil {
		return err
	}
	newsJSON, err := json.Marshal(r.NewsByCategory)
	if err != nil {
		return err
	}

	existing, err := s.findRollup(ctx, r.WeekStart, r.Municipality)
	if err != nil && err != ErrNotFound {
		return err
	}
	if existing != nil {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
		_, err := s.db.ExecContext(ctx, `UPDATE weekly_rollups SET
                incidents_by_category_json=?, news_by_category_json=?, incident_trend=?, summary_text=?
            WHERE id=?`,
			string(incidentsJSON), string(newsJSON), r.IncidentTrend, r.SummaryText, r.ID)
		return err
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO weekly_rollups(
            id, week_start, municipality, incidents_by_category_json, news_by_category_json,
            incident_trend, summary_text, created_at
        ) VALUES(?,?,?,?,?,?,?,?)`,
		r.ID, r.WeekStart, r.Municipality, string(incidentsJSON), string(newsJSON),
		r.IncidentTrend, r.SummaryText, r.CreatedAt)
	return err
}

func (s *Store) findRollup(ctx context.Context, weekStart time.Time, municipality *string) (*domain.WeeklyRollup, error) {
	muni := ""
	if municipality != nil {
		muni = *municipality
	}
	row := s.db.QueryRowContext(ctx, rollupSelectCols+`
        FROM weekly_rollups WHERE week_start=? AND COALESCE(municipality, '')=?`, weekStart, muni)
	r, err := scanRollup(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return r, err
}

// RollupForWeek returns the rollup for an exact (week_start, municipality)
// pair, or ErrNotFound if that week hasn't been rolled up yet.
func (s *Store) RollupForWeek(ctx context.Context, weekStart time.Time, municipality *string) (*domain.WeeklyRollup, error) {
	return s.findRollup(ctx, weekStart, municipality)
}

// RollupsByMunicipality returns the most recent rollups for a municipality
// (or the rollups stored with a nil municipality when municipality is
// empty), newest first.
func (s *Store) RollupsByMunicipality(ctx context.Context, municipality string, limit int) ([]*domain.WeeklyRollup, error) {
	rows, err := s.db.QueryContext(ctx, rollupSelectCols+`
        FROM weekly_rollups WHERE COALESCE(municipality, '')=? ORDER BY week_start DESC LIMIT ?`,
		municipality, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WeeklyRollup
	for rows.Next() {
		r, err := scanRollupRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const rollupSelectCols = `SELECT id, week_start, municipality, incidents_by_category_json, news_by_category_json,
        incident_trend, summary_text, created_at`

func scanRollup(row *sql.Row) (*domain.WeeklyRollup, error) {
	return scanRollupFrom(row)
}

func scanRollupRows(rows *sql.Rows) (*domain.WeeklyRollup, error) {
	return scanRollupFrom(rows)
}

func scanRollupFrom(rs rowScanner) (*domain.WeeklyRollup, error) {
	var (
		r                          domain.WeeklyRollup
		municipality               sql.NullString
		incidentsJSON, newsJSON    string
		summaryText                sql.NullString
	)
	if err := rs.Scan(&r.ID, &r.WeekStart, &municipality, &incidentsJSON, &newsJSON,
		&r.IncidentTrend, &summaryText, &r.CreatedAt); err != nil {
		return nil, err
	}
	if municipality.Valid {
		r.Municipality = &municipality.String
	}
	if summaryText.Valid {
		r.SummaryText = summaryText.String
	}
	_ = json.Unmarshal([]byte(incidentsJSON), &r.IncidentsByCategory)
	_ = json.Unmarshal([]byte(newsJSON), &r.NewsByCategory)
	return &r, nil
}
