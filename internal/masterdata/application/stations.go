package application

import (
	"context"
	"errors"
	"time"

	"sites-spectral/internal/auth"
	masterdata "sites-spectral/internal/masterdata/domain"
)

// CreateStation inserts a station. normalized_name defaults to the
// normalized display name and status to Active.
func (c *Catalog) CreateStation(ctx context.Context, input map[string]any) (station *masterdata.Station, err error) {
	defer observe(masterdata.KindStation, auth.OpCreate, time.Now(), &err)

	claims, err := authorize(ctx, auth.OpCreate, masterdata.KindStation, "")
	if err != nil {
		return nil, err
	}
	station, err = c.PlanStation(auth.AccessLevel(claims), input)
	if err != nil {
		return nil, err
	}
	candidate := map[string]string{"normalized_name": station.NormalizedName, "acronym": station.Acronym}
	if err := c.conflicts.Guard(ctx, masterdata.KindStation, candidate, 0, 0); err != nil {
		return nil, err
	}
	if err := c.store.CreateStation(ctx, station); err != nil {
		if errors.Is(err, masterdata.ErrUniqueViolation) {
			return nil, c.conflicts.FromViolation(ctx, masterdata.KindStation, candidate, 0, 0)
		}
		return nil, err
	}
	return station, nil
}

// PlanStation decodes and validates a station create without touching the store.
func (c *Catalog) PlanStation(level masterdata.Access, input map[string]any) (*masterdata.Station, error) {
	changes, err := masterdata.DecodeCreate(schemaFor(masterdata.KindStation), level, input)
	if err != nil {
		return nil, err
	}
	station := &masterdata.Station{Status: "Active"}
	if err := changes.Into(station); err != nil {
		return nil, invalid(err)
	}
	if station.NormalizedName == "" {
		station.NormalizedName = masterdata.NormalizeName(station.DisplayName)
	}
	if err := station.Validate(); err != nil {
		return nil, invalid(err)
	}
	return station, nil
}

// UpdateStation applies the fields the caller may write.
func (c *Catalog) UpdateStation(ctx context.Context, identifier string, input map[string]any) (station *masterdata.Station, err error) {
	defer observe(masterdata.KindStation, auth.OpUpdate, time.Now(), &err)

	current, err := c.mustStation(ctx, identifier)
	if err != nil {
		return nil, err
	}
	claims, err := authorize(ctx, auth.OpUpdate, masterdata.KindStation, current.NormalizedName)
	if err != nil {
		return nil, err
	}
	changes, err := masterdata.ApplyUpdate(schemaFor(masterdata.KindStation), auth.AccessLevel(claims), input, c.now())
	if err != nil {
		return nil, err
	}
	merged := *current
	if err := changes.Into(&merged); err != nil {
		return nil, invalid(err)
	}
	if err := merged.Validate(); err != nil {
		return nil, invalid(err)
	}
	candidate := uniqueCandidate(masterdata.KindStation, changes)
	if err := c.conflicts.Guard(ctx, masterdata.KindStation, candidate, 0, current.ID); err != nil {
		return nil, err
	}
	if err := c.store.UpdateStation(ctx, current.ID, changes); err != nil {
		switch {
		case errors.Is(err, masterdata.ErrUniqueViolation):
			return nil, c.conflicts.FromViolation(ctx, masterdata.KindStation, candidate, 0, current.ID)
		case errors.Is(err, masterdata.ErrNotFound):
			return nil, notFound(masterdata.KindStation, identifier)
		}
		return nil, err
	}
	return c.mustStation(ctx, identifierOf(current.ID))
}

// StationTree returns a station with every descendant nested under it.
func (c *Catalog) StationTree(ctx context.Context, identifier string) (*masterdata.StationTree, error) {
	if _, err := authorize(ctx, auth.OpRead, masterdata.KindStation, ""); err != nil {
		return nil, err
	}
	station, err := c.mustStation(ctx, identifier)
	if err != nil {
		return nil, err
	}
	platforms, err := c.store.ListPlatforms(ctx, masterdata.PlatformFilter{StationID: station.ID})
	if err != nil {
		return nil, err
	}
	instruments, err := c.store.ListInstruments(ctx, masterdata.InstrumentFilter{StationID: station.ID})
	if err != nil {
		return nil, err
	}
	rois, err := c.store.ListROIs(ctx, masterdata.ROIFilter{StationID: station.ID})
	if err != nil {
		return nil, err
	}
	tree := masterdata.BuildStationTree(*station, platforms, instruments, rois)
	return &tree, nil
}
