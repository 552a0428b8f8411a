package application

import (
	"context"
	"errors"
	"time"

	"sites-spectral/internal/auth"
	masterdata "sites-spectral/internal/masterdata/domain"
)

// Defaults applied to new ROIs.
const (
	defaultROIThickness = 7
	defaultROIColorR    = 255
)

// CreateROI inserts an ROI on the instrument named by instrument_id (or
// instrument). Without roi_name the next free ROI_NN is assigned.
func (c *Catalog) CreateROI(ctx context.Context, input map[string]any) (roi *masterdata.ROI, err error) {
	defer observe(masterdata.KindROI, auth.OpCreate, time.Now(), &err)

	parent := parentIdentifier(input, "instrument_id", "instrument")
	if parent == "" {
		return nil, &masterdata.ValidationError{Details: []string{"instrument_id: is required"}}
	}
	instrument, err := c.mustInstrument(ctx, parent)
	if err != nil {
		return nil, err
	}
	claims, err := authorize(ctx, auth.OpCreate, masterdata.KindROI, instrument.StationNormalizedName)
	if err != nil {
		return nil, err
	}
	existing, err := c.store.ListROIs(ctx, masterdata.ROIFilter{InstrumentID: instrument.ID})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(existing))
	for _, r := range existing {
		names = append(names, r.ROIName)
	}
	roi, err = c.PlanROI(*instrument, names, auth.AccessLevel(claims), input)
	if err != nil {
		return nil, err
	}

	candidate := map[string]string{"roi_name": roi.ROIName}
	if err := c.conflicts.Guard(ctx, masterdata.KindROI, candidate, instrument.ID, 0); err != nil {
		return nil, err
	}
	if err := c.store.CreateROI(ctx, roi); err != nil {
		switch {
		case errors.Is(err, masterdata.ErrUniqueViolation):
			return nil, c.conflicts.FromViolation(ctx, masterdata.KindROI, candidate, instrument.ID, 0)
		case errors.Is(err, masterdata.ErrInvalidParent):
			return nil, notFound(masterdata.KindInstrument, parent)
		}
		return nil, err
	}
	return roi, nil
}

// PlanROI decodes and validates an ROI create on instrument. siblings holds
// the ROI names already used on the instrument.
func (c *Catalog) PlanROI(instrument masterdata.Instrument, siblings []string, level masterdata.Access, input map[string]any) (*masterdata.ROI, error) {
	changes, err := masterdata.DecodeCreate(schemaFor(masterdata.KindROI), level, input)
	if err != nil {
		return nil, err
	}
	roi := &masterdata.ROI{Thickness: defaultROIThickness, ColorR: defaultROIColorR}
	if err := changes.Into(roi); err != nil {
		return nil, invalid(err)
	}
	roi.InstrumentID = instrument.ID
	roi.InstrumentNormalizedName = instrument.NormalizedName
	roi.StationID = instrument.StationID
	roi.StationNormalizedName = instrument.StationNormalizedName
	roi.StationAcronym = instrument.StationAcronym
	if roi.ROIName == "" {
		roi.ROIName = masterdata.NextROIName(siblings)
	}
	if err := roi.Validate(); err != nil {
		return nil, invalid(err)
	}
	return roi, nil
}

// UpdateROI applies the fields the caller may write.
func (c *Catalog) UpdateROI(ctx context.Context, identifier string, input map[string]any) (roi *masterdata.ROI, err error) {
	defer observe(masterdata.KindROI, auth.OpUpdate, time.Now(), &err)

	current, err := c.mustROI(ctx, identifier)
	if err != nil {
		return nil, err
	}
	claims, err := authorize(ctx, auth.OpUpdate, masterdata.KindROI, current.StationNormalizedName)
	if err != nil {
		return nil, err
	}
	changes, err := masterdata.ApplyUpdate(schemaFor(masterdata.KindROI), auth.AccessLevel(claims), input, c.now())
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
	candidate := uniqueCandidate(masterdata.KindROI, changes)
	if err := c.conflicts.Guard(ctx, masterdata.KindROI, candidate, current.InstrumentID, current.ID); err != nil {
		return nil, err
	}
	if err := c.store.UpdateROI(ctx, current.ID, changes); err != nil {
		switch {
		case errors.Is(err, masterdata.ErrUniqueViolation):
			return nil, c.conflicts.FromViolation(ctx, masterdata.KindROI, candidate, current.InstrumentID, current.ID)
		case errors.Is(err, masterdata.ErrNotFound):
			return nil, notFound(masterdata.KindROI, identifier)
		}
		return nil, err
	}
	return c.mustROI(ctx, identifierOf(current.ID))
}
