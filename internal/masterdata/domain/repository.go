package masterdata

import "context"

// Lookups return nil, nil when no row matches.

// StationRepository persists stations.
type StationRepository interface {
	GetStation(ctx context.Context, id int64) (*Station, error)
	// FindStation matches normalized_name exactly or acronym case-insensitively,
	// preferring the normalized_name match.
	FindStation(ctx context.Context, key string) (*Station, error)
	ListStations(ctx context.Context) ([]Station, error)
	StationSummaries(ctx context.Context) ([]StationSummary, error)
	CreateStation(ctx context.Context, station *Station) error
	UpdateStation(ctx context.Context, id int64, changes Changes) error
	DeleteStation(ctx context.Context, id int64) error
}

// PlatformRepository persists platforms.
type PlatformRepository interface {
	GetPlatform(ctx context.Context, id int64) (*Platform, error)
	FindPlatform(ctx context.Context, normalizedName string) (*Platform, error)
	ListPlatforms(ctx context.Context, filter PlatformFilter) ([]Platform, error)
	CreatePlatform(ctx context.Context, platform *Platform) error
	UpdatePlatform(ctx context.Context, id int64, changes Changes) error
	DeletePlatform(ctx context.Context, id int64) error
}

// InstrumentRepository persists instruments.
type InstrumentRepository interface {
	GetInstrument(ctx context.Context, id int64) (*Instrument, error)
	// FindInstrument matches normalized_name or legacy_acronym.
	FindInstrument(ctx context.Context, key string) (*Instrument, error)
	ListInstruments(ctx context.Context, filter InstrumentFilter) ([]Instrument, error)
	CreateInstrument(ctx context.Context, instrument *Instrument) error
	UpdateInstrument(ctx context.Context, id int64, changes Changes) error
	DeleteInstrument(ctx context.Context, id int64) error
}

// ROIRepository persists regions of interest.
type ROIRepository interface {
	GetROI(ctx context.Context, id int64) (*ROI, error)
	ListROIs(ctx context.Context, filter ROIFilter) ([]ROI, error)
	CreateROI(ctx context.Context, roi *ROI) error
	UpdateROI(ctx context.Context, id int64, changes Changes) error
	DeleteROI(ctx context.Context, id int64) error
}

// UniquenessReader lists values already taken for a unique field. scopeID
// restricts the scan to one parent when the kind is parent-scoped and
// excludeID skips the record being updated.
type UniquenessReader interface {
	ExistingValues(ctx context.Context, kind ResourceKind, field string, scopeID, excludeID int64) ([]string, error)
}

// DependencyReader counts every descendant of one resource in a single pass.
type DependencyReader interface {
	CountDependencies(ctx context.Context, kind ResourceKind, id int64) (map[ResourceKind]int, error)
}

// Store is the full persistence port of the catalog.
type Store interface {
	StationRepository
	PlatformRepository
	InstrumentRepository
	ROIRepository
	UniquenessReader
	DependencyReader
}
