package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
)

// LoadCenterlines bulk-inserts reference street geometry in a single
// transaction, seeding a region's centerline table.
func (s *Store) LoadCenterlines(ctx context.Context, lines []domain.StreetCenterline) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for i := range lines {
			c := &lines[i]
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO street_centerlines(
                    id, region, street_name, street_name_normalized, from_address, to_address, city,
                    from_lat, from_lon, to_lat, to_lon
                ) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
				c.ID, c.Region, c.StreetName, c.StreetNameNormalized, c.FromAddress, c.ToAddress, c.City,
				c.FromPoint.Lat, c.FromPoint.Lon, c.ToPoint.Lat, c.ToPoint.Lon); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertCenterline inserts a single centerline segment.
func (s *Store) InsertCenterline(ctx context.Context, c *domain.StreetCenterline) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO street_centerlines(
            id, region, street_name, street_name_normalized, from_address, to_address, city,
            from_lat, from_lon, to_lat, to_lon
        ) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Region, c.StreetName, c.StreetNameNormalized, c.FromAddress, c.ToAddress, c.City,
		c.FromPoint.Lat, c.FromPoint.Lon, c.ToPoint.Lat, c.ToPoint.Lon)
	return err
}

// FindCenterlines returns every centerline segment in a region matching a
// normalized street name, for the geocoder's block-interpolation tier to
// pick the segment whose address range contains the target house number.
func (s *Store) FindCenterlines(ctx context.Context, region, streetNameNormalized string) ([]domain.StreetCenterline, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, region, street_name, street_name_normalized, from_address, to_address, city,
            from_lat, from_lon, to_lat, to_lon
        FROM street_centerlines WHERE region=? AND street_name_normalized=?`, region, streetNameNormalized)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StreetCenterline
	for rows.Next() {
		var c domain.StreetCenterline
		if err := rows.Scan(&c.ID, &c.Region, &c.StreetName, &c.StreetNameNormalized, &c.FromAddress, &c.ToAddress,
			&c.City, &c.FromPoint.Lat, &c.FromPoint.Lon, &c.ToPoint.Lat, &c.ToPoint.Lon); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
