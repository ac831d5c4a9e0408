package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// InsertReport inserts a new incident report. A conflict on
// (source_id, external_id) means the observation was already ingested and
// is reported back as ErrConflict so callers can treat it as a no-op
// rather than a failure, per spec.md §7.
func (s *Store) InsertReport(ctx context.Context, r *domain.IncidentReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.IngestedAt.IsZero() {
		r.IngestedAt = time.Now().UTC()
	}
	if r.DedupStatus == "" {
		r.DedupStatus = domain.DedupPending
	}

	var lat, lon any
	if r.Location != nil {
		lat, lon = r.Location.Lat, r.Location.Lon
	}
	if r.LocationResolution == "" {
		r.LocationResolution = domain.ResolutionUnknown
	}
	if r.UrgencyScore == 0 {
		r.UrgencyScore = 1
	}
	if r.Category == "" {
		r.Category = domain.CategoryOther
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO incident_reports(
            id, source_id, external_id, source_url, raw_text, incident_type, category, address, city,
            latitude, longitude, location_resolution, location_confidence, occurred_at, ingested_at,
            extraction_model, extraction_confidence, urgency_score, dedup_status, dedup_processed_at, incident_id
        ) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.SourceID, r.ExternalID, r.SourceURL, r.RawText, r.IncidentType, string(r.Category), r.Address, r.City,
		lat, lon, string(r.LocationResolution), r.LocationConfidence, nullTime(r.OccurredAt), r.IngestedAt,
		r.ExtractionModel, r.ExtractionConfidence, r.UrgencyScore, string(r.DedupStatus), nullTime(r.DedupProcessedAt), r.IncidentID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetReport fetches a report by ID.
func (s *Store) GetReport(ctx context.Context, id string) (*domain.IncidentReport, error) {
	row := s.db.QueryRowContext(ctx, reportSelectCols+` FROM incident_reports WHERE id=?`, id)
	rep, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rep, err
}

// UpdateReportLink sets a report's dedup outcome once the deduplicator has
// decided whether it matches an existing incident or seeds a new one.
func (s *Store) UpdateReportLink(ctx context.Context, reportID string, status domain.DedupStatus, incidentID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE incident_reports SET dedup_status=?, incident_id=?, dedup_processed_at=? WHERE id=?`,
		string(status), incidentID, at, reportID)
	return err
}

// UpdateReportLocation persists a geocoder result onto the report so the
// dedup stage can use resolved coordinates rather than re-geocoding, along
// with the tier that produced the location and its confidence.
func (s *Store) UpdateReportLocation(ctx context.Context, reportID string, loc domain.Point, resolution domain.LocationResolution, confidence float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE incident_reports SET latitude=?, longitude=?, location_resolution=?, location_confidence=? WHERE id=?`,
		loc.Lat, loc.Lon, string(resolution), confidence, reportID)
	return err
}

// PendingReports returns reports awaiting dedup processing, oldest first.
func (s *Store) PendingReports(ctx context.Context, limit int) ([]*domain.IncidentReport, error) {
	rows, err := s.db.QueryContext(ctx, reportSelectCols+` FROM incident_reports WHERE dedup_status=? ORDER BY ingested_at ASC LIMIT ?`,
		string(domain.DedupPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReportRows(rows)
}

// FindDedupCandidates returns reports already linked to an incident within
// the spatial radius (meters, applied as a bounding-box prefilter — exact
// haversine distance is computed by the caller) and time window of the
// report being matched. The window applies to each candidate's occurred_at,
// or its ingested_at when occurred_at is unknown. region is not used to
// filter.
func (s *Store) FindDedupCandidates(ctx context.Context, region string, loc domain.Point, latDelta, lonDelta float64, from, to time.Time) ([]*domain.IncidentReport, error) {
	rows, err := s.db.QueryContext(ctx, reportSelectCols+`
        FROM incident_reports
        WHERE incident_id IS NOT NULL
          AND latitude IS NOT NULL AND longitude IS NOT NULL
          AND latitude BETWEEN ? AND ?
          AND longitude BETWEEN ? AND ?
          AND COALESCE(occurred_at, ingested_at) BETWEEN ? AND ?`,
		loc.Lat-latDelta, loc.Lat+latDelta, loc.Lon-lonDelta, loc.Lon+lonDelta, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReportRows(rows)
}

// ReportsByIncident returns every report linked to an incident.
func (s *Store) ReportsByIncident(ctx context.Context, incidentID string) ([]*domain.IncidentReport, error) {
	rows, err := s.db.QueryContext(ctx, reportSelectCols+` FROM incident_reports WHERE incident_id=? ORDER BY ingested_at ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReportRows(rows)
}

const reportSelectCols = `SELECT id, source_id, external_id, source_url, raw_text, incident_type, category, address, city,
        latitude, longitude, location_resolution, location_confidence, occurred_at, ingested_at,
        extraction_model, extraction_confidence, urgency_score, dedup_status, dedup_processed_at, incident_id`

func scanReport(row *sql.Row) (*domain.IncidentReport, error) {
	return scanReportFrom(row)
}

func scanReportRows(rows *sql.Rows) ([]*domain.IncidentReport, error) {
	var out []*domain.IncidentReport
	for rows.Next() {
		r, err := scanReportFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReportFrom(rs rowScanner) (*domain.IncidentReport, error) {
	var (
		r                  domain.IncidentReport
		category           string
		address, city      sql.NullString
		lat, lon           sql.NullFloat64
		locationResolution string
		occurredAt         sql.NullTime
		dedupProcessedAt   sql.NullTime
		incidentID         sql.NullString
		dedupStatus        string
	)
	if err := rs.Scan(&r.ID, &r.SourceID, &r.ExternalID, &r.SourceURL, &r.RawText, &r.IncidentType, &category, &address, &city,
		&lat, &lon, &locationResolution, &r.LocationConfidence, &occurredAt, &r.IngestedAt,
		&r.ExtractionModel, &r.ExtractionConfidence, &r.UrgencyScore, &dedupStatus, &dedupProcessedAt, &incidentID); err != nil {
		return nil, err
	}
	r.Category = domain.ExtractionCategory(category)
	r.LocationResolution = domain.LocationResolution(locationResolution)
	if address.Valid {
		r.Address = &address.String
	}
	if city.Valid {
		r.City = &city.String
	}
	if lat.Valid && lon.Valid {
		r.Location = &domain.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	if occurredAt.Valid {
		t := occurredAt.Time
		r.OccurredAt = &t
	}
	if dedupProcessedAt.Valid {
		t := dedupProcessedAt.Time
		r.DedupProcessedAt = &t
	}
	if incidentID.Valid {
		r.IncidentID = &incidentID.String
	}
	r.DedupStatus = domain.DedupStatus(dedupStatus)
	return &r, nil
}
