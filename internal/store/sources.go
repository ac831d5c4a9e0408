package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// UpsertSource inserts a source or, if one with the same (url, region)
// already exists, active or not, updates its mutable fields. Matches
// spec.md §3's "(url) unique while active for the same region" invariant.
func (s *Store) UpsertSource(ctx context.Context, src *domain.Source) error {
	cfgJSON, err := json.Marshal(src.Config)
	if err != nil {
		return err
	}

	existing, err := s.findSourceByURLRegion(ctx, src.URL, src.Region)
	if err != nil && err != ErrNotFound {
		return err
	}
	if existing != nil {
		src.ID = existing.ID
		src.CreatedAt = existing.CreatedAt
		_, err := s.db.ExecContext(ctx, `UPDATE sources SET name=?, source_type=?, category=?, config_json=?, is_active=?, reliability_score=? WHERE id=?`,
			src.Name, string(src.SourceType), string(src.Category), string(cfgJSON), boolToInt(src.IsActive), src.ReliabilityScore, src.ID)
		return err
	}

	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sources(id, name, source_type, url, region, category, config_json, is_active, reliability_score, last_fetched_at, created_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		src.ID, src.Name, string(src.SourceType), src.URL, src.Region, string(src.Category), string(cfgJSON),
		boolToInt(src.IsActive), src.ReliabilityScore, nullTime(src.LastFetchedAt), src.CreatedAt)
	return err
}

func (s *Store) findSourceByURLRegion(ctx context.Context, url, region string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, source_type, url, region, category, config_json, is_active, reliability_score, last_fetched_at, created_at
        FROM sources WHERE url=? AND region=?`, url, region)
	return scanSource(row)
}

// GetSource fetches a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, source_type, url, region, category, config_json, is_active, reliability_score, last_fetched_at, created_at
        FROM sources WHERE id=?`, id)
	return scanSource(row)
}

// GetSourceType looks up just a source's type, a narrower query than
// GetSource for the confidence formula's source-diversity term, which
// never needs the rest of the source record.
func (s *Store) GetSourceType(ctx context.Context, id string) (domain.SourceType, error) {
	var sourceType string
	err := s.db.QueryRowContext(ctx, `SELECT source_type FROM sources WHERE id=?`, id).Scan(&sourceType)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return domain.SourceType(sourceType), nil
}

// GetSourceCategory looks up just a source's editorial category, a
// narrower query than GetSource for the rollup engine's news-by-category
// bucketing, which never needs the rest of the source record.
func (s *Store) GetSourceCategory(ctx context.Context, id string) (domain.SourceCategory, error) {
	var category string
	err := s.db.QueryRowContext(ctx, `SELECT category FROM sources WHERE id=?`, id).Scan(&category)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return domain.SourceCategory(category), nil
}

// ListActiveSources returns every source with is_active = 1.
func (s *Store) ListActiveSources(ctx context.Context) ([]*domain.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, source_type, url, region, category, config_json, is_active, reliability_score, last_fetched_at, created_at
        FROM sources WHERE is_active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Source
	for rows.Next() {
		src, err := scanSourceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// MarkFetched records a successful fetch's timestamp.
func (s *Store) MarkFetched(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET last_fetched_at=? WHERE id=?`, at, id)
	return err
}

// DeactivateSource marks a source inactive, per spec.md §7's fatal-error path.
func (s *Store) DeactivateSource(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET is_active=0 WHERE id=?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row *sql.Row) (*domain.Source, error) {
	src, err := scanSourceFrom(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return src, err
}

func scanSourceRows(rows *sql.Rows) (*domain.Source, error) {
	return scanSourceFrom(rows)
}

func scanSourceFrom(rs rowScanner) (*domain.Source, error) {
	var (
		src           domain.Source
		sourceType    string
		category      string
		cfgJSON       string
		isActive      int
		lastFetchedAt sql.NullTime
	)
	if err := rs.Scan(&src.ID, &src.Name, &sourceType, &src.URL, &src.Region, &category, &cfgJSON,
		&isActive, &src.ReliabilityScore, &lastFetchedAt, &src.CreatedAt); err != nil {
		return nil, err
	}
	src.SourceType = domain.SourceType(sourceType)
	src.Category = domain.SourceCategory(category)
	src.IsActive = isActive != 0
	if lastFetchedAt.Valid {
		t := lastFetchedAt.Time
		src.LastFetchedAt = &t
	}
	_ = json.Unmarshal([]byte(cfgJSON), &src.Config)
	return &src, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
