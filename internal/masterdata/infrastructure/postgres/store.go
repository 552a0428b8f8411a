package postgres

import (
	"context"
	"errors"
	"fmt"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// Option configures the repositories.
type Option func(*config)

type config struct {
	tables Tables
}

func newConfig(opts []Option) config {
	cfg := config{tables: DefaultTables()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTables overrides the default table names. Empty names keep the default.
func WithTables(tables Tables) Option {
	return func(cfg *config) {
		if tables.Stations != "" {
			cfg.tables.Stations = tables.Stations
		}
		if tables.Platforms != "" {
			cfg.tables.Platforms = tables.Platforms
		}
		if tables.Instruments != "" {
			cfg.tables.Instruments = tables.Instruments
		}
		if tables.ROIs != "" {
			cfg.tables.ROIs = tables.ROIs
		}
	}
}

// Store combines the repositories into the catalog's persistence port.
type Store struct {
	*StationRepository
	*PlatformRepository
	*InstrumentRepository
	*ROIRepository

	db DBTX
	t  Tables
}

var _ masterdata.Store = (*Store)(nil)

// NewStore constructs a Store over db.
func NewStore(db DBTX, opts ...Option) *Store {
	cfg := newConfig(opts)
	return &Store{
		StationRepository:    NewStationRepository(db, opts...),
		PlatformRepository:   NewPlatformRepository(db, opts...),
		InstrumentRepository: NewInstrumentRepository(db, opts...),
		ROIRepository:        NewROIRepository(db, opts...),
		db:                   db,
		t:                    cfg.tables,
	}
}

// ExistingValues lists the values of a unique field already in use, within
// scopeID when the kind is parent-scoped and skipping excludeID.
func (s *Store) ExistingValues(ctx context.Context, kind masterdata.ResourceKind, field string, scopeID, excludeID int64) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil db")
	}
	spec := masterdata.UniqueSpecFor(kind)
	if !containsField(spec.Fields, field) {
		return nil, fmt.Errorf("store: %s is not a unique field of %s", field, kind)
	}

	var w where
	w.add("id <> $%d", excludeID)
	if spec.Scope != "" && scopeID != 0 {
		w.add(spec.Scope+" = $%d", scopeID)
	}
	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY %s", field, s.t.of(kind), w.String(), field)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// CountDependencies counts every descendant of one resource with a single
// joined aggregate.
func (s *Store) CountDependencies(ctx context.Context, kind masterdata.ResourceKind, id int64) (map[masterdata.ResourceKind]int, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: nil db")
	}
	var platforms, instruments, rois int
	switch kind {
	case masterdata.KindStation:
		query := fmt.Sprintf(`
SELECT COUNT(DISTINCT p.id), COUNT(DISTINCT i.id), COUNT(DISTINCT r.id)
FROM %s p
LEFT JOIN %s i ON i.platform_id = p.id
LEFT JOIN %s r ON r.instrument_id = i.id
WHERE p.station_id = $1`, s.t.Platforms, s.t.Instruments, s.t.ROIs)
		if err := s.db.QueryRowContext(ctx, query, id).Scan(&platforms, &instruments, &rois); err != nil {
			return nil, err
		}
		return map[masterdata.ResourceKind]int{
			masterdata.KindPlatform:   platforms,
			masterdata.KindInstrument: instruments,
			masterdata.KindROI:        rois,
		}, nil
	case masterdata.KindPlatform:
		query := fmt.Sprintf(`
SELECT COUNT(DISTINCT i.id), COUNT(DISTINCT r.id)
FROM %s i
LEFT JOIN %s r ON r.instrument_id = i.id
WHERE i.platform_id = $1`, s.t.Instruments, s.t.ROIs)
		if err := s.db.QueryRowContext(ctx, query, id).Scan(&instruments, &rois); err != nil {
			return nil, err
		}
		return map[masterdata.ResourceKind]int{
			masterdata.KindInstrument: instruments,
			masterdata.KindROI:        rois,
		}, nil
	case masterdata.KindInstrument:
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE instrument_id = $1", s.t.ROIs)
		if err := s.db.QueryRowContext(ctx, query, id).Scan(&rois); err != nil {
			return nil, err
		}
		return map[masterdata.ResourceKind]int{masterdata.KindROI: rois}, nil
	default:
		return map[masterdata.ResourceKind]int{}, nil
	}
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}
