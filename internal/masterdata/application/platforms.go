package application

import (
	"context"
	"errors"
	"time"

	"sites-spectral/internal/auth"
	masterdata "sites-spectral/internal/masterdata/domain"
)

// CreatePlatform inserts a platform under the station named by station_id
// (or station). normalized_name defaults to
// {station_acronym}_{ecosystem_code}_{location_code} and display_name to the
// normalized name.
func (c *Catalog) CreatePlatform(ctx context.Context, input map[string]any) (platform *masterdata.Platform, err error) {
	defer observe(masterdata.KindPlatform, auth.OpCreate, time.Now(), &err)

	parent := parentIdentifier(input, "station_id", "station")
	if parent == "" {
		return nil, &masterdata.ValidationError{Details: []string{"station_id: is required"}}
	}
	station, err := c.mustStation(ctx, parent)
	if err != nil {
		return nil, err
	}
	claims, err := authorize(ctx, auth.OpCreate, masterdata.KindPlatform, station.NormalizedName)
	if err != nil {
		return nil, err
	}
	platform, err = c.PlanPlatform(*station, auth.AccessLevel(claims), input)
	if err != nil {
		return nil, err
	}
	candidate := map[string]string{"normalized_name": platform.NormalizedName, "location_code": platform.LocationCode}
	if err := c.conflicts.Guard(ctx, masterdata.KindPlatform, candidate, station.ID, 0); err != nil {
		return nil, err
	}
	if err := c.store.CreatePlatform(ctx, platform); err != nil {
		switch {
		case errors.Is(err, masterdata.ErrUniqueViolation):
			return nil, c.conflicts.FromViolation(ctx, masterdata.KindPlatform, candidate, station.ID, 0)
		case errors.Is(err, masterdata.ErrInvalidParent):
			return nil, notFound(masterdata.KindStation, parent)
		}
		return nil, err
	}
	return platform, nil
}

// PlanPlatform decodes and validates a platform create under station.
func (c *Catalog) PlanPlatform(station masterdata.Station, level masterdata.Access, input map[string]any) (*masterdata.Platform, error) {
	changes, err := masterdata.DecodeCreate(schemaFor(masterdata.KindPlatform), level, input)
	if err != nil {
		return nil, err
	}
	platform := &masterdata.Platform{Status: "Active"}
	if err := changes.Into(platform); err != nil {
		return nil, invalid(err)
	}
	platform.StationID = station.ID
	platform.StationNormalizedName = station.NormalizedName
	platform.StationAcronym = station.Acronym
	if platform.NormalizedName == "" {
		platform.NormalizedName = masterdata.PlatformName(station.Acronym, platform.EcosystemCode, platform.LocationCode)
	}
	if platform.DisplayName == "" {
		platform.DisplayName = platform.NormalizedName
	}
	if err := platform.Validate(); err != nil {
		return nil, invalid(err)
	}
	return platform, nil
}

// UpdatePlatform applies the fields the caller may write.
func (c *Catalog) UpdatePlatform(ctx context.Context, identifier string, input map[string]any) (platform *masterdata.Platform, err error) {
	defer observe(masterdata.KindPlatform, auth.OpUpdate, time.Now(), &err)

	current, err := c.mustPlatform(ctx, identifier)
	if err != nil {
		return nil, err
	}
	claims, err := authorize(ctx, auth.OpUpdate, masterdata.KindPlatform, current.StationNormalizedName)
	if err != nil {
		return nil, err
	}
	changes, err := masterdata.ApplyUpdate(schemaFor(masterdata.KindPlatform), auth.AccessLevel(claims), input, c.now())
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
	candidate := uniqueCandidate(masterdata.KindPlatform, changes)
	if err := c.conflicts.Guard(ctx, masterdata.KindPlatform, candidate, current.StationID, current.ID); err != nil {
		return nil, err
	}
	if err := c.store.UpdatePlatform(ctx, current.ID, changes); err != nil {
		switch {
		case errors.Is(err, masterdata.ErrUniqueViolation):
			return nil, c.conflicts.FromViolation(ctx, masterdata.KindPlatform, candidate, current.StationID, current.ID)
		case errors.Is(err, masterdata.ErrNotFound):
			return nil, notFound(masterdata.KindPlatform, identifier)
		}
		return nil, err
	}
	return c.mustPlatform(ctx, identifierOf(current.ID))
}
