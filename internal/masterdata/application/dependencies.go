package application

import (
	"context"
	"errors"
	"time"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// DependencyAnalyzer computes what a delete would cascade to and snapshots
// it on request. It never deletes anything itself.
type DependencyAnalyzer struct {
	store masterdata.Store
	now   func() time.Time
}

// NewDependencyAnalyzer constructs an analyzer.
func NewDependencyAnalyzer(store masterdata.Store) (*DependencyAnalyzer, error) {
	if store == nil {
		return nil, errors.New("dependency analyzer: nil store")
	}
	return &DependencyAnalyzer{store: store, now: time.Now}, nil
}

// Analyze counts every descendant of one resource.
func (a *DependencyAnalyzer) Analyze(ctx context.Context, kind masterdata.ResourceKind, id int64) (masterdata.DependencyReport, error) {
	counts, err := a.store.CountDependencies(ctx, kind, id)
	if err != nil {
		return masterdata.DependencyReport{}, err
	}
	return masterdata.NewDependencyReport(kind, counts), nil
}

// Backup is a point-in-time snapshot of a resource and every row a cascade
// would remove. It is returned to the caller, not persisted.
type Backup struct {
	ResourceType masterdata.ResourceKind      `json:"resource_type"`
	ResourceID   int64                        `json:"resource_id"`
	GeneratedAt  time.Time                    `json:"generated_at"`
	GeneratedBy  string                       `json:"generated_by"`
	Resource     any                          `json:"resource"`
	Platforms    []masterdata.Platform        `json:"platforms"`
	Instruments  []masterdata.Instrument      `json:"instruments"`
	ROIs         []masterdata.ROI             `json:"rois"`
	Summary      masterdata.DependencySummary `json:"summary"`
}

// Backup snapshots resource and its descendants.
func (a *DependencyAnalyzer) Backup(ctx context.Context, resource masterdata.Resource, actor string) (*Backup, error) {
	ref := resource.Ref()
	backup := &Backup{
		ResourceType: ref.Kind,
		ResourceID:   ref.ID,
		GeneratedAt:  a.now().UTC(),
		GeneratedBy:  actor,
		Resource:     resource,
		Platforms:    []masterdata.Platform{},
		Instruments:  []masterdata.Instrument{},
		ROIs:         []masterdata.ROI{},
		Summary:      masterdata.DependencySummary{},
	}

	var err error
	switch ref.Kind {
	case masterdata.KindStation:
		if backup.Platforms, err = a.store.ListPlatforms(ctx, masterdata.PlatformFilter{StationID: ref.ID}); err != nil {
			return nil, err
		}
		if backup.Instruments, err = a.store.ListInstruments(ctx, masterdata.InstrumentFilter{StationID: ref.ID}); err != nil {
			return nil, err
		}
		if backup.ROIs, err = a.store.ListROIs(ctx, masterdata.ROIFilter{StationID: ref.ID}); err != nil {
			return nil, err
		}
	case masterdata.KindPlatform:
		if backup.Instruments, err = a.store.ListInstruments(ctx, masterdata.InstrumentFilter{PlatformID: ref.ID}); err != nil {
			return nil, err
		}
		if backup.ROIs, err = a.store.ListROIs(ctx, masterdata.ROIFilter{PlatformID: ref.ID}); err != nil {
			return nil, err
		}
	case masterdata.KindInstrument:
		if backup.ROIs, err = a.store.ListROIs(ctx, masterdata.ROIFilter{InstrumentID: ref.ID}); err != nil {
			return nil, err
		}
	}

	for _, child := range ref.Kind.Descendants() {
		switch child {
		case masterdata.KindPlatform:
			backup.Summary[child.Plural()] = len(backup.Platforms)
		case masterdata.KindInstrument:
			backup.Summary[child.Plural()] = len(backup.Instruments)
		case masterdata.KindROI:
			backup.Summary[child.Plural()] = len(backup.ROIs)
		}
	}
	return backup, nil
}
