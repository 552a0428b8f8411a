package application

import (
	"context"
	"errors"
	"time"

	"sites-spectral/internal/auth"
	masterdata "sites-spectral/internal/masterdata/domain"
)

// CreateInstrument inserts an instrument on the platform named by
// platform_id (or platform). Without an explicit normalized_name the next
// free {platform}_{TYPE}{NN} name is assigned.
func (c *Catalog) CreateInstrument(ctx context.Context, input map[string]any) (instrument *masterdata.Instrument, err error) {
	defer observe(masterdata.KindInstrument, auth.OpCreate, time.Now(), &err)

	parent := parentIdentifier(input, "platform_id", "platform")
	if parent == "" {
		return nil, &masterdata.ValidationError{Details: []string{"platform_id: is required"}}
	}
	platform, err := c.mustPlatform(ctx, parent)
	if err != nil {
		return nil, err
	}
	claims, err := authorize(ctx, auth.OpCreate, masterdata.KindInstrument, platform.StationNormalizedName)
	if err != nil {
		return nil, err
	}
	siblings, err := c.store.ListInstruments(ctx, masterdata.InstrumentFilter{PlatformID: platform.ID})
	if err != nil {
		return nil, err
	}
	instrument, err = c.PlanInstrument(*platform, siblingNames(siblings), auth.AccessLevel(claims), input)
	if err != nil {
		return nil, err
	}
	candidate := map[string]string{"normalized_name": instrument.NormalizedName}
	if err := c.conflicts.Guard(ctx, masterdata.KindInstrument, candidate, 0, 0); err != nil {
		return nil, err
	}
	if err := c.store.CreateInstrument(ctx, instrument); err != nil {
		switch {
		case errors.Is(err, masterdata.ErrUniqueViolation):
			return nil, c.conflicts.FromViolation(ctx, masterdata.KindInstrument, candidate, 0, 0)
		case errors.Is(err, masterdata.ErrInvalidParent):
			return nil, notFound(masterdata.KindPlatform, parent)
		}
		return nil, err
	}
	return instrument, nil
}

// PlanInstrument decodes and validates an instrument create on platform.
// siblings holds the names already used on the platform.
func (c *Catalog) PlanInstrument(platform masterdata.Platform, siblings []string, level masterdata.Access, input map[string]any) (*masterdata.Instrument, error) {
	changes, err := masterdata.DecodeCreate(schemaFor(masterdata.KindInstrument), level, input)
	if err != nil {
		return nil, err
	}
	instrument := &masterdata.Instrument{Status: "Active", EcosystemCode: platform.EcosystemCode}
	if err := changes.Into(instrument); err != nil {
		return nil, invalid(err)
	}
	instrument.PlatformID = platform.ID
	instrument.PlatformNormalizedName = platform.NormalizedName
	instrument.StationID = platform.StationID
	instrument.StationNormalizedName = platform.StationNormalizedName
	instrument.StationAcronym = platform.StationAcronym

	kind, _ := masterdata.ParseInstrumentType(instrument.InstrumentType)
	if instrument.NormalizedName == "" {
		name, number := masterdata.NextInstrumentName(platform.NormalizedName, kind, siblings)
		instrument.NormalizedName = name
		if instrument.InstrumentNumber == "" {
			instrument.InstrumentNumber = number
		}
	}
	if instrument.DisplayName == "" {
		instrument.DisplayName = instrument.NormalizedName
	}
	if err := instrument.Validate(); err != nil {
		return nil, invalid(err)
	}
	return instrument, nil
}

// UpdateInstrument applies the fields the caller may write. The merged
// record must still satisfy the rules of its instrument type.
func (c *Catalog) UpdateInstrument(ctx context.Context, identifier string, input map[string]any) (instrument *masterdata.Instrument, err error) {
	defer observe(masterdata.KindInstrument, auth.OpUpdate, time.Now(), &err)

	current, err := c.mustInstrument(ctx, identifier)
	if err != nil {
		return nil, err
	}
	claims, err := authorize(ctx, auth.OpUpdate, masterdata.KindInstrument, current.StationNormalizedName)
	if err != nil {
		return nil, err
	}
	changes, err := masterdata.ApplyUpdate(schemaFor(masterdata.KindInstrument), auth.AccessLevel(claims), input, c.now())
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
	candidate := uniqueCandidate(masterdata.KindInstrument, changes)
	if err := c.conflicts.Guard(ctx, masterdata.KindInstrument, candidate, 0, current.ID); err != nil {
		return nil, err
	}
	if err := c.store.UpdateInstrument(ctx, current.ID, changes); err != nil {
		switch {
		case errors.Is(err, masterdata.ErrUniqueViolation):
			return nil, c.conflicts.FromViolation(ctx, masterdata.KindInstrument, candidate, 0, current.ID)
		case errors.Is(err, masterdata.ErrNotFound):
			return nil, notFound(masterdata.KindInstrument, identifier)
		}
		return nil, err
	}
	return c.mustInstrument(ctx, identifierOf(current.ID))
}

func siblingNames(instruments []masterdata.Instrument) []string {
	names := make([]string, 0, len(instruments))
	for _, i := range instruments {
		names = append(names, i.NormalizedName)
	}
	return names
}
