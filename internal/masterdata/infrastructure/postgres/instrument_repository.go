package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// InstrumentRepository is a Postgres implementation for instruments.
type InstrumentRepository struct {
	db DBTX
	t  Tables
}

// NewInstrumentRepository constructs a repository.
func NewInstrumentRepository(db DBTX, opts ...Option) *InstrumentRepository {
	cfg := newConfig(opts)
	return &InstrumentRepository{db: db, t: cfg.tables}
}

const instrumentColumns = `i.id, i.platform_id, i.normalized_name, i.display_name, i.legacy_acronym,
	i.instrument_type, i.instrument_number, i.status, i.ecosystem_code, COALESCE(i.deployment_date::text, ''),
	i.instrument_height_m, i.viewing_direction, i.azimuth_degrees, i.degrees_from_nadir,
	i.camera_brand, i.camera_model, i.camera_serial_number, i.latitude, i.longitude, i.description,
	i.created_at, i.updated_at, p.normalized_name, s.id, s.normalized_name, s.acronym`

func (r *InstrumentRepository) from() string {
	return fmt.Sprintf("%s i JOIN %s p ON p.id = i.platform_id JOIN %s s ON s.id = p.station_id",
		r.t.Instruments, r.t.Platforms, r.t.Stations)
}

func scanInstrument(row scanner) (masterdata.Instrument, error) {
	var i masterdata.Instrument
	if err := row.Scan(
		&i.ID,
		&i.PlatformID,
		&i.NormalizedName,
		&i.DisplayName,
		&i.LegacyAcronym,
		&i.InstrumentType,
		&i.InstrumentNumber,
		&i.Status,
		&i.EcosystemCode,
		&i.DeploymentDate,
		&i.InstrumentHeightM,
		&i.ViewingDirection,
		&i.AzimuthDegrees,
		&i.DegreesFromNadir,
		&i.CameraBrand,
		&i.CameraModel,
		&i.CameraSerialNumber,
		&i.Latitude,
		&i.Longitude,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.PlatformNormalizedName,
		&i.StationID,
		&i.StationNormalizedName,
		&i.StationAcronym,
	); err != nil {
		return masterdata.Instrument{}, err
	}
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
	return i, nil
}

func (r *InstrumentRepository) ready() error {
	if r == nil || r.db == nil {
		return errors.New("instrument repo: nil db")
	}
	return nil
}

// GetInstrument loads an instrument by id.
func (r *InstrumentRepository) GetInstrument(ctx context.Context, id int64) (*masterdata.Instrument, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE i.id = $1
LIMIT 1`, instrumentColumns, r.from())

	i, err := scanInstrument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// FindInstrument matches normalized_name, then legacy_acronym.
func (r *InstrumentRepository) FindInstrument(ctx context.Context, key string) (*masterdata.Instrument, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE i.normalized_name = $1 OR (i.legacy_acronym <> '' AND i.legacy_acronym = $1)
ORDER BY (i.normalized_name = $1) DESC, i.id
LIMIT 1`, instrumentColumns, r.from())

	i, err := scanInstrument(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &i, nil
}

// ListInstruments returns instruments ordered by normalized name.
func (r *InstrumentRepository) ListInstruments(ctx context.Context, filter masterdata.InstrumentFilter) ([]masterdata.Instrument, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var w where
	if filter.PlatformID != 0 {
		w.add("i.platform_id = $%d", filter.PlatformID)
	}
	if filter.StationID != 0 {
		w.add("p.station_id = $%d", filter.StationID)
	}
	if filter.Status != "" {
		w.add("LOWER(i.status) = LOWER($%d)", filter.Status)
	}
	if filter.Search != "" {
		w.add("concat_ws(' ', i.normalized_name, i.display_name, i.description) ILIKE $%d", "%"+escapeLike(filter.Search)+"%")
	}
	if !filter.UpdatedSince.IsZero() {
		w.add("i.updated_at >= $%d", filter.UpdatedSince.UTC())
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
%s
ORDER BY i.normalized_name`, instrumentColumns, r.from(), w.String())

	rows, err := r.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []masterdata.Instrument{}
	for rows.Next() {
		i, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		// Legacy rows store type labels ("Phenocam", "MS"), so the type
		// filter runs after the scan.
		if filter.Type != "" && !filter.Matches(i) {
			continue
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// CreateInstrument inserts an instrument and assigns its id.
func (r *InstrumentRepository) CreateInstrument(ctx context.Context, i *masterdata.Instrument) error {
	if err := r.ready(); err != nil {
		return err
	}
	if i == nil {
		return errors.New("instrument repo: nil instrument")
	}
	if err := i.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	platform_id,
	normalized_name,
	display_name,
	legacy_acronym,
	instrument_type,
	instrument_number,
	status,
	ecosystem_code,
	deployment_date,
	instrument_height_m,
	viewing_direction,
	azimuth_degrees,
	degrees_from_nadir,
	camera_brand,
	camera_model,
	camera_serial_number,
	latitude,
	longitude,
	description
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9::date, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
)
RETURNING id, created_at, updated_at`, r.t.Instruments)

	err := r.db.QueryRowContext(
		ctx,
		query,
		i.PlatformID,
		i.NormalizedName,
		i.DisplayName,
		i.LegacyAcronym,
		i.InstrumentType,
		i.InstrumentNumber,
		i.Status,
		i.EcosystemCode,
		nullableDate(i.DeploymentDate),
		i.InstrumentHeightM,
		i.ViewingDirection,
		i.AzimuthDegrees,
		i.DegreesFromNadir,
		i.CameraBrand,
		i.CameraModel,
		i.CameraSerialNumber,
		i.Latitude,
		i.Longitude,
		i.Description,
	).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
	return nil
}

// UpdateInstrument applies validated changes.
func (r *InstrumentRepository) UpdateInstrument(ctx context.Context, id int64, changes masterdata.Changes) error {
	if err := r.ready(); err != nil {
		return err
	}
	query, args, err := buildUpdate(r.t.Instruments, masterdata.KindInstrument, id, changes)
	if err != nil {
		return err
	}
	return execAffecting(ctx, r.db, query, args...)
}

// DeleteInstrument removes an instrument; its ROIs go through ON DELETE CASCADE.
func (r *InstrumentRepository) DeleteInstrument(ctx context.Context, id int64) error {
	if err := r.ready(); err != nil {
		return err
	}
	return execAffecting(ctx, r.db, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.t.Instruments), id)
}
