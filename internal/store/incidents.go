package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// CreateIncident inserts a new canonical incident, seeded from its first
// linked report.
func (s *Store) CreateIncident(ctx context.Context, inc *domain.Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = now
	}
	inc.UpdatedAt = now

	sourceTypesJSON, err := json.Marshal(inc.SourceTypes)
	if err != nil {
		return err
	}

	var lat, lon any
	if inc.Location != nil {
		lat, lon = inc.Location.Lat, inc.Location.Lon
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO incidents(
            id, incident_type, category, urgency_score, latitude, longitude, location_resolution,
            location_confidence, address, city, region, occurred_at, reported_at, title, description,
            report_count, source_types_json, confidence_score, review_status, reviewed_at, reviewed_by,
            status, created_at, updated_at
        ) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		inc.ID, inc.IncidentType, inc.Category, inc.UrgencyScore, lat, lon, string(inc.LocationResolution),
		inc.LocationConfidence, inc.Address, inc.City, inc.Region, nullTime(inc.OccurredAt), inc.ReportedAt,
		inc.Title, inc.Description, inc.ReportCount, string(sourceTypesJSON), inc.ConfidenceScore,
		string(inc.ReviewStatus), nullTime(inc.ReviewedAt), inc.ReviewedBy, string(inc.Status),
		inc.CreatedAt, inc.UpdatedAt)
	return err
}

// GetIncident fetches an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	row := s.db.QueryRowContext(ctx, incidentSelectCols+` FROM incidents WHERE id=?`, id)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return inc, err
}

// UpdateIncidentDerived persists the fields recomputed whenever a new
// report links to an incident: location, report count, source diversity,
// confidence, and (unless the current status is final) review status.
func (s *Store) UpdateIncidentDerived(ctx context.Context, inc *domain.Incident) error {
	sourceTypesJSON, err := json.Marshal(inc.SourceTypes)
	if err != nil {
		return err
	}
	var lat, lon any
	if inc.Location != nil {
		lat, lon = inc.Location.Lat, inc.Location.Lon
	}
	inc.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `UPDATE incidents SET
            latitude=?, longitude=?, location_resolution=?, location_confidence=?,
            report_count=?, source_types_json=?, confidence_score=?,
            review_status=CASE WHEN review_status IN ('approved','rejected') THEN review_status ELSE ? END,
            status=?, updated_at=?
        WHERE id=?`,
		lat, lon, string(inc.LocationResolution), inc.LocationConfidence,
		inc.ReportCount, string(sourceTypesJSON), inc.ConfidenceScore, string(inc.ReviewStatus),
		string(inc.Status), inc.UpdatedAt, inc.ID)
	return err
}

// SetReviewDecision records a human review decision. Approved and rejected
// are terminal: workflow.Recompute must never overwrite them afterward.
func (s *Store) SetReviewDecision(ctx context.Context, id string, status domain.ReviewStatus, reviewer string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE incidents SET review_status=?, reviewed_at=?, reviewed_by=?, updated_at=? WHERE id=?`,
		string(status), at, reviewer, at, id)
	return err
}

// RetractIncident marks an incident retracted, used by the reject-cascade
// path when every one of its reports turns out to be spurious.
func (s *Store) RetractIncident(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE incidents SET status=?, updated_at=? WHERE id=?`, string(domain.IncidentRetracted), at, id)
	return err
}

// ReviewQueue returns incidents awaiting human review, most recently
// reported first, paginated.
func (s *Store) ReviewQueue(ctx context.Context, limit, offset int) ([]*domain.Incident, error) {
	rows, err := s.db.QueryContext(ctx, incidentSelectCols+`
        FROM incidents WHERE review_status=? ORDER BY reported_at DESC LIMIT ? OFFSET ?`,
		string(domain.ReviewNeedsReview), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidentRows(rows)
}

// IncidentFilter narrows the public incident listing.
type IncidentFilter struct {
	Region       string
	Category     string
	Since        *time.Time
	Before       *time.Time
	ReviewStatus string
	Limit        int
	Offset       int
}

// ListIncidents returns incidents matching a filter, most recent first.
func (s *Store) ListIncidents(ctx context.Context, f IncidentFilter) ([]*domain.Incident, error) {
	query := incidentSelectCols + ` FROM incidents WHERE 1=1`
	var args []any
	if f.Region != "" {
		query += ` AND region=?`
		args = append(args, f.Region)
	}
	if f.Category != "" {
		query += ` AND category=?`
		args = append(args, f.Category)
	}
	if f.Since != nil {
		query += ` AND reported_at >= ?`
		args = append(args, *f.Since)
	}
	if f.Before != nil {
		query += ` AND reported_at < ?`
		args = append(args, *f.Before)
	}
	if f.ReviewStatus != "" {
		query += ` AND review_status=?`
		args = append(args, f.ReviewStatus)
	}
	query += ` ORDER BY reported_at DESC LIMIT ? OFFSET ?`
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidentRows(rows)
}

const incidentSelectCols = `SELECT id, incident_type, category, urgency_score, latitude, longitude,
        location_resolution, location_confidence, address, city, region, occurred_at, reported_at,
        title, description, report_count, source_types_json, confidence_score, review_status,
        reviewed_at, reviewed_by, status, created_at, updated_at`

func scanIncident(row *sql.Row) (*domain.Incident, error) {
	return scanIncidentFrom(row)
}

func scanIncidentRows(rows *sql.Rows) ([]*domain.Incident, error) {
	var out []*domain.Incident
	for rows.Next() {
		inc, err := scanIncidentFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func scanIncidentFrom(rs rowScanner) (*domain.Incident, error) {
	var (
		inc                             domain.Incident
		lat, lon                        sql.NullFloat64
		locationResolution              string
		address, city                   sql.NullString
		occurredAt, reviewedAt          sql.NullTime
		reviewedBy                      sql.NullString
		sourceTypesJSON                 string
		reviewStatus, status            string
	)
	if err := rs.Scan(&inc.ID, &inc.IncidentType, &inc.Category, &inc.UrgencyScore, &lat, &lon,
		&locationResolution, &inc.LocationConfidence, &address, &city, &inc.Region, &occurredAt,
		&inc.ReportedAt, &inc.Title, &inc.Description, &inc.ReportCount, &sourceTypesJSON,
		&inc.ConfidenceScore, &reviewStatus, &reviewedAt, &reviewedBy, &status,
		&inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		inc.Location = &domain.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	inc.LocationResolution = domain.LocationResolution(locationResolution)
	if address.Valid {
		inc.Address = &address.String
	}
	if city.Valid {
		inc.City = &city.String
	}
	if occurredAt.Valid {
		t := occurredAt.Time
		inc.OccurredAt = &t
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		inc.ReviewedAt = &t
	}
	if reviewedBy.Valid {
		inc.ReviewedBy = &reviewedBy.String
	}
	_ = json.Unmarshal([]byte(sourceTypesJSON), &inc.SourceTypes)
	inc.ReviewStatus = domain.ReviewStatus(reviewStatus)
	inc.Status = domain.IncidentStatus(status)
	return &inc, nil
}
