package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// StationRepository is a Postgres implementation for stations.
type StationRepository struct {
	db DBTX
	t  Tables
}

// NewStationRepository constructs a repository.
func NewStationRepository(db DBTX, opts ...Option) *StationRepository {
	cfg := newConfig(opts)
	return &StationRepository{db: db, t: cfg.tables}
}

const stationColumns = `s.id, s.normalized_name, s.display_name, s.acronym, s.status, s.country,
	s.latitude, s.longitude, s.elevation_m, s.description, s.created_at, s.updated_at`

func scanStation(row scanner, extra ...any) (masterdata.Station, error) {
	var station masterdata.Station
	dest := []any{
		&station.ID,
		&station.NormalizedName,
		&station.DisplayName,
		&station.Acronym,
		&station.Status,
		&station.Country,
		&station.Latitude,
		&station.Longitude,
		&station.ElevationM,
		&station.Description,
		&station.CreatedAt,
		&station.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return masterdata.Station{}, err
	}
	station.CreatedAt = station.CreatedAt.UTC()
	station.UpdatedAt = station.UpdatedAt.UTC()
	return station, nil
}

func (r *StationRepository) ready() error {
	if r == nil || r.db == nil {
		return errors.New("station repo: nil db")
	}
	return nil
}

// GetStation loads a station by id.
func (r *StationRepository) GetStation(ctx context.Context, id int64) (*masterdata.Station, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s s
WHERE s.id = $1
LIMIT 1`, stationColumns, r.t.Stations)

	station, err := scanStation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &station, nil
}

// FindStation matches normalized_name exactly or acronym case-insensitively.
func (r *StationRepository) FindStation(ctx context.Context, key string) (*masterdata.Station, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s s
WHERE s.normalized_name = $1 OR UPPER(s.acronym) = UPPER($1)
ORDER BY (s.normalized_name = $1) DESC, s.id
LIMIT 1`, stationColumns, r.t.Stations)

	station, err := scanStation(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &station, nil
}

// ListStations returns every station ordered by normalized name.
func (r *StationRepository) ListStations(ctx context.Context) ([]masterdata.Station, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s s
ORDER BY s.normalized_name`, stationColumns, r.t.Stations)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []masterdata.Station{}
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, station)
	}
	return out, rows.Err()
}

// StationSummaries returns every station with descendant counts.
func (r *StationRepository) StationSummaries(ctx context.Context) ([]masterdata.StationSummary, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s, COUNT(DISTINCT p.id), COUNT(DISTINCT i.id), COUNT(DISTINCT r.id)
FROM %s s
LEFT JOIN %s p ON p.station_id = s.id
LEFT JOIN %s i ON i.platform_id = p.id
LEFT JOIN %s r ON r.instrument_id = i.id
GROUP BY s.id
ORDER BY s.normalized_name`, stationColumns, r.t.Stations, r.t.Platforms, r.t.Instruments, r.t.ROIs)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []masterdata.StationSummary{}
	for rows.Next() {
		var summary masterdata.StationSummary
		station, err := scanStation(rows, &summary.PlatformCount, &summary.InstrumentCount, &summary.ROICount)
		if err != nil {
			return nil, err
		}
		summary.Station = station
		out = append(out, summary)
	}
	return out, rows.Err()
}

// CreateStation inserts a station and assigns its id.
func (r *StationRepository) CreateStation(ctx context.Context, station *masterdata.Station) error {
	if err := r.ready(); err != nil {
		return err
	}
	if station == nil {
		return errors.New("station repo: nil station")
	}
	if err := station.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	normalized_name,
	display_name,
	acronym,
	status,
	country,
	latitude,
	longitude,
	elevation_m,
	description
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9
)
RETURNING id, created_at, updated_at`, r.t.Stations)

	err := r.db.QueryRowContext(
		ctx,
		query,
		station.NormalizedName,
		station.DisplayName,
		station.Acronym,
		station.Status,
		station.Country,
		station.Latitude,
		station.Longitude,
		station.ElevationM,
		station.Description,
	).Scan(&station.ID, &station.CreatedAt, &station.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	station.CreatedAt = station.CreatedAt.UTC()
	station.UpdatedAt = station.UpdatedAt.UTC()
	return nil
}

// UpdateStation applies validated changes.
func (r *StationRepository) UpdateStation(ctx context.Context, id int64, changes masterdata.Changes) error {
	if err := r.ready(); err != nil {
		return err
	}
	query, args, err := buildUpdate(r.t.Stations, masterdata.KindStation, id, changes)
	if err != nil {
		return err
	}
	return execAffecting(ctx, r.db, query, args...)
}

// DeleteStation removes a station; descendants go through ON DELETE CASCADE.
func (r *StationRepository) DeleteStation(ctx context.Context, id int64) error {
	if err := r.ready(); err != nil {
		return err
	}
	return execAffecting(ctx, r.db, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.t.Stations), id)
}
