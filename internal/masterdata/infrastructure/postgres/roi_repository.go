package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// ROIRepository is a Postgres implementation for regions of interest.
type ROIRepository struct {
	db DBTX
	t  Tables
}

// NewROIRepository constructs a repository.
func NewROIRepository(db DBTX, opts ...Option) *ROIRepository {
	cfg := newConfig(opts)
	return &ROIRepository{db: db, t: cfg.tables}
}

const roiColumns = `r.id, r.instrument_id, r.roi_name, r.description, r.alpha, r.auto_generated,
	r.color_r, r.color_g, r.color_b, r.thickness, r.points_json::text, r.source_image, r.comment,
	r.created_at, r.updated_at, i.normalized_name, s.id, s.normalized_name, s.acronym`

func (r *ROIRepository) from() string {
	return fmt.Sprintf("%s r JOIN %s i ON i.id = r.instrument_id JOIN %s p ON p.id = i.platform_id JOIN %s s ON s.id = p.station_id",
		r.t.ROIs, r.t.Instruments, r.t.Platforms, r.t.Stations)
}

func scanROI(row scanner) (masterdata.ROI, error) {
	var (
		roi    masterdata.ROI
		points string
	)
	if err := row.Scan(
		&roi.ID,
		&roi.InstrumentID,
		&roi.ROIName,
		&roi.Description,
		&roi.Alpha,
		&roi.AutoGenerated,
		&roi.ColorR,
		&roi.ColorG,
		&roi.ColorB,
		&roi.Thickness,
		&points,
		&roi.SourceImage,
		&roi.Comment,
		&roi.CreatedAt,
		&roi.UpdatedAt,
		&roi.InstrumentNormalizedName,
		&roi.StationID,
		&roi.StationNormalizedName,
		&roi.StationAcronym,
	); err != nil {
		return masterdata.ROI{}, err
	}
	roi.Points = []byte(points)
	roi.CreatedAt = roi.CreatedAt.UTC()
	roi.UpdatedAt = roi.UpdatedAt.UTC()
	return roi, nil
}

func (r *ROIRepository) ready() error {
	if r == nil || r.db == nil {
		return errors.New("roi repo: nil db")
	}
	return nil
}

// GetROI loads an ROI by id.
func (r *ROIRepository) GetROI(ctx context.Context, id int64) (*masterdata.ROI, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE r.id = $1
LIMIT 1`, roiColumns, r.from())

	roi, err := scanROI(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &roi, nil
}

// ListROIs returns ROIs ordered by instrument and name.
func (r *ROIRepository) ListROIs(ctx context.Context, filter masterdata.ROIFilter) ([]masterdata.ROI, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var w where
	if filter.InstrumentID != 0 {
		w.add("r.instrument_id = $%d", filter.InstrumentID)
	}
	if filter.PlatformID != 0 {
		w.add("i.platform_id = $%d", filter.PlatformID)
	}
	if filter.StationID != 0 {
		w.add("p.station_id = $%d", filter.StationID)
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
%s
ORDER BY r.instrument_id, r.roi_name`, roiColumns, r.from(), w.String())

	rows, err := r.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []masterdata.ROI{}
	for rows.Next() {
		roi, err := scanROI(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, roi)
	}
	return out, rows.Err()
}

// CreateROI inserts an ROI and assigns its id.
func (r *ROIRepository) CreateROI(ctx context.Context, roi *masterdata.ROI) error {
	if err := r.ready(); err != nil {
		return err
	}
	if roi == nil {
		return errors.New("roi repo: nil roi")
	}
	if err := roi.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	instrument_id,
	roi_name,
	description,
	alpha,
	auto_generated,
	color_r,
	color_g,
	color_b,
	thickness,
	points_json,
	source_image,
	comment
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12
)
RETURNING id, created_at, updated_at`, r.t.ROIs)

	err := r.db.QueryRowContext(
		ctx,
		query,
		roi.InstrumentID,
		roi.ROIName,
		roi.Description,
		roi.Alpha,
		roi.AutoGenerated,
		roi.ColorR,
		roi.ColorG,
		roi.ColorB,
		roi.Thickness,
		string(roi.Points),
		roi.SourceImage,
		roi.Comment,
	).Scan(&roi.ID, &roi.CreatedAt, &roi.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	roi.CreatedAt = roi.CreatedAt.UTC()
	roi.UpdatedAt = roi.UpdatedAt.UTC()
	return nil
}

// UpdateROI applies validated changes.
func (r *ROIRepository) UpdateROI(ctx context.Context, id int64, changes masterdata.Changes) error {
	if err := r.ready(); err != nil {
		return err
	}
	query, args, err := buildUpdate(r.t.ROIs, masterdata.KindROI, id, changes)
	if err != nil {
		return err
	}
	return execAffecting(ctx, r.db, query, args...)
}

// DeleteROI removes an ROI.
func (r *ROIRepository) DeleteROI(ctx context.Context, id int64) error {
	if err := r.ready(); err != nil {
		return err
	}
	return execAffecting(ctx, r.db, fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.t.ROIs), id)
}
