package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// PlatformRepository is a Postgres implementation for platforms.
type PlatformRepository struct {
	db DBTX
	t  Tables
}

// NewPlatformRepository constructs a repository.
func NewPlatformRepository(db DBTX, opts ...Option) *PlatformRepository {
	cfg := newConfig(opts)
	return &PlatformRepository{db: db, t: cfg.tables}
}

const platformColumns = `p.id, p.station_id, p.normalized_name, p.display_name, p.location_code, p.ecosystem_code,
	p.mounting_structure, p.platform_height_m, p.latitude, p.longitude, p.status, p.description,
	p.created_at, p.updated_at, s.normalized_name, s.acronym`

func (r *PlatformRepository) from() string {
	return fmt.Sprintf("%s p JOIN %s s ON s.id = p.station_id", r.t.Platforms, r.t.Stations)
}

func scanPlatform(row scanner) (masterdata.Platform, error) {
	var p masterdata.Platform
	if err := row.Scan(
		&p.ID,
		&p.StationID,
		&p.NormalizedName,
		&p.DisplayName,
		&p.LocationCode,
		&p.EcosystemCode,
		&p.MountingStructure,
		&p.PlatformHeightM,
		&p.Latitude,
		&p.Longitude,
		&p.Status,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.StationNormalizedName,
		&p.StationAcronym,
	); err != nil {
		return masterdata.Platform{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (r *PlatformRepository) ready() error {
	if r == nil || r.db == nil {
		return errors.New("platform repo: nil db")
	}
	return nil
}

func (r *PlatformRepository) one(ctx context.Context, predicate string, arg any) (*masterdata.Platform, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s
ORDER BY p.id
LIMIT 1`, platformColumns, r.from(), predicate)

	p, err := scanPlatform(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetPlatform loads a platform by id.
func (r *PlatformRepository) GetPlatform(ctx context.Context, id int64) (*masterdata.Platform, error) {
	return r.one(ctx, "p.id = $1", id)
}

// FindPlatform matches normalized_name. Platform names are unique per
// station only, so the lowest id wins when several stations share one.
func (r *PlatformRepository) FindPlatform(ctx context.Context, name string) (*masterdata.Platform, error) {
	return r.one(ctx, "p.normalized_name = $1", name)
}

// ListPlatforms returns platforms ordered by normalized name.
func (r *PlatformRepository) ListPlatforms(ctx context.Context, filter masterdata.PlatformFilter) ([]masterdata.Platform, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var w where
	if filter.StationID != 0 {
		w.add("p.station_id = $%d", filter.StationID)
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
%s
ORDER BY p.normalized_name`, platformColumns, r.from(), w.String())

	rows, err := r.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []masterdata.Platform{}
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePlatform inserts a platform and assigns its id.
func (r *PlatformRepository) CreatePlatform(ctx context.Context, p *masterdata.Platform) error {
	if err := r.ready(); err != nil {
		return err
	}
	if p == nil {
		return errors.New("platform repo: nil platform")
	}
	if err := p.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	station_id,
	normalized_name,
	display_name,
	location_code,
	ecosystem_code,
	mounting_structure,
	platform_height_m,
	latitude,
	longitude,
	status,
	description
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
RETURNING id, created_at, updated_at`, r.t.Platforms)

	err := r.db.QueryRowContext(
		ctx,
		query,
		p.StationID,
		p.NormalizedName,
		p.DisplayName,
		p.LocationCode,
		p.EcosystemCode,
		p.MountingStructure,
		p.PlatformHeightM,
		p.Latitude,
		p.Longitude,
		p.Status,
		p.Description,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return nil
}

// UpdatePlatform applies validated changes.
func (r *PlatformRepository) UpdatePlatform(ctx context.Context, id int64, changes masterdata.Changes) error {
	if err := r.ready(); err != nil {
		return err
	}
	query, args, err := buildUpdate(r.t.Platforms, masterdata.KindPlatform, id, changes)
	if err != nil {
		return err
	}
	return execAffecting(ctx, r.db, query, args...)
}

// DeletePlatform removes a platform; descendants go through ON DELETE CASCADE.
func (r *PlatformRepository) DeletePlatform(ctx context.Context, id int64) error {
	if err := r.ready(); err != nil {
		return err
	}
	return execAffecting(ctx, r.db, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.t.Platforms), id)
}
