package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sites-spectral/internal/auth"
	masterdata "sites-spectral/internal/masterdata/domain"
	"sites-spectral/internal/observability/metrics"
)

// ImportDocument is a bulk load of platforms, instruments and ROIs for one
// station. Instrument rows name their platform with platform_normalized_name
// (or platform) and ROI rows their instrument with instrument_normalized_name
// (or instrument); the parent may be created earlier in the same document.
type ImportDocument struct {
	Platforms   []map[string]any `json:"platforms"`
	Instruments []map[string]any `json:"instruments"`
	ROIs        []map[string]any `json:"rois"`
}

// ImportRowError is one rejected row. Row numbers start at 1 per section.
type ImportRowError struct {
	Section string `json:"section"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e ImportRowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// ImportReport summarizes an import run. ROIs are listed as
// {instrument}/{roi_name}.
type ImportReport struct {
	Station            string           `json:"station"`
	DryRun             bool             `json:"dry_run"`
	PlatformsCreated   []string         `json:"platforms_created"`
	InstrumentsCreated []string         `json:"instruments_created"`
	ROIsCreated        []string         `json:"rois_created"`
	Errors             []ImportRowError `json:"errors"`
}

// Created is the number of rows written (or planned, on a dry run).
func (r *ImportReport) Created() int {
	return len(r.PlatformsCreated) + len(r.InstrumentsCreated) + len(r.ROIsCreated)
}

// provisionalBase keys rows planned during a dry run; never persisted.
const provisionalBase int64 = 1 << 62

// importRun carries the state shared by the sections of one import.
type importRun struct {
	c       *Catalog
	station masterdata.Station
	level   masterdata.Access
	dryRun  bool
	report  *ImportReport

	platforms   map[string]masterdata.Platform
	instruments map[string]masterdata.Instrument
	provisional int64
}

func (run *importRun) fail(section string, row int, msg string) {
	run.report.Errors = append(run.report.Errors, ImportRowError{Section: section, Row: row, Message: msg})
}

func (run *importRun) nextProvisionalID() int64 {
	run.provisional++
	return provisionalBase + run.provisional
}

// Import creates the platforms, then the instruments, then the ROIs of doc
// under the station. Rows are independent: a failing row is reported and
// skipped. With dryRun nothing is written but every row is validated and
// conflict checked.
func (c *Catalog) Import(ctx context.Context, stationIdentifier string, doc ImportDocument, dryRun bool) (*ImportReport, error) {
	station, err := c.mustStation(ctx, stationIdentifier)
	if err != nil {
		return nil, err
	}
	claims, err := authorize(ctx, auth.OpCreate, masterdata.KindPlatform, station.NormalizedName)
	if err != nil {
		return nil, err
	}

	run := &importRun{
		c:       c,
		station: *station,
		level:   auth.AccessLevel(claims),
		dryRun:  dryRun,
		report: &ImportReport{
			Station:            station.NormalizedName,
			DryRun:             dryRun,
			PlatformsCreated:   []string{},
			InstrumentsCreated: []string{},
			ROIsCreated:        []string{},
			Errors:             []ImportRowError{},
		},
		platforms:   map[string]masterdata.Platform{},
		instruments: map[string]masterdata.Instrument{},
	}

	existing, err := c.store.ListPlatforms(ctx, masterdata.PlatformFilter{StationID: station.ID})
	if err != nil {
		return nil, err
	}
	for _, p := range existing {
		run.platforms[strings.ToLower(p.NormalizedName)] = p
	}
	current, err := c.store.ListInstruments(ctx, masterdata.InstrumentFilter{StationID: station.ID})
	if err != nil {
		return nil, err
	}
	for _, i := range current {
		run.instruments[strings.ToLower(i.NormalizedName)] = i
	}

	if err := run.importPlatforms(ctx, doc.Platforms); err != nil {
		return nil, err
	}
	if err := run.importInstruments(ctx, doc.Instruments); err != nil {
		return nil, err
	}
	if err := run.importROIs(ctx, doc.ROIs); err != nil {
		return nil, err
	}

	report := run.report
	if !dryRun {
		metrics.AddImportRows(string(masterdata.KindPlatform), metrics.ResultSuccess, len(report.PlatformsCreated))
		metrics.AddImportRows(string(masterdata.KindInstrument), metrics.ResultSuccess, len(report.InstrumentsCreated))
		metrics.AddImportRows(string(masterdata.KindROI), metrics.ResultSuccess, len(report.ROIsCreated))
	}
	metrics.AddImportRows("row", metrics.ResultError, len(report.Errors))
	return report, nil
}

func (run *importRun) importPlatforms(ctx context.Context, rows []map[string]any) error {
	const section = "platforms"
	seenLocations := map[string]bool{}
	for i, row := range rows {
		plan, err := run.c.PlanPlatform(run.station, run.level, row)
		if err != nil {
			run.fail(section, i+1, err.Error())
			continue
		}
		nameKey := strings.ToLower(plan.NormalizedName)
		locKey := strings.ToLower(plan.LocationCode)
		if _, dup := run.platforms[nameKey]; dup {
			run.fail(section, i+1, fmt.Sprintf("platform %s already exists", plan.NormalizedName))
			continue
		}
		if seenLocations[locKey] {
			run.fail(section, i+1, fmt.Sprintf("location_code %s is used earlier in the document", plan.LocationCode))
			continue
		}
		conflicts, err := run.c.conflicts.Check(ctx, masterdata.KindPlatform,
			map[string]string{"normalized_name": plan.NormalizedName, "location_code": plan.LocationCode}, run.station.ID, 0)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			run.fail(section, i+1, describeConflicts(conflicts))
			continue
		}
		if run.dryRun {
			plan.ID = run.nextProvisionalID()
		} else if err := run.c.store.CreatePlatform(ctx, plan); err != nil {
			run.fail(section, i+1, err.Error())
			continue
		}
		run.platforms[nameKey] = *plan
		seenLocations[locKey] = true
		run.report.PlatformsCreated = append(run.report.PlatformsCreated, plan.NormalizedName)
	}
	return nil
}

func (run *importRun) importInstruments(ctx context.Context, rows []map[string]any) error {
	const section = "instruments"
	siblings := map[int64][]string{}
	for i, row := range rows {
		ref := parentIdentifier(row, "platform_normalized_name", "platform")
		if ref == "" {
			run.fail(section, i+1, "platform_normalized_name: is required")
			continue
		}
		platform, ok := run.platforms[strings.ToLower(ref)]
		if !ok {
			run.fail(section, i+1, fmt.Sprintf("platform %s not found in station %s", ref, run.station.NormalizedName))
			continue
		}
		names, ok := siblings[platform.ID]
		if !ok {
			names = run.instrumentNames(platform.ID)
		}
		plan, err := run.c.PlanInstrument(platform, names, run.level, row)
		if err != nil {
			run.fail(section, i+1, err.Error())
			continue
		}
		if containsFold(names, plan.NormalizedName) {
			run.fail(section, i+1, fmt.Sprintf("instrument %s already exists", plan.NormalizedName))
			continue
		}
		conflicts, err := run.c.conflicts.Check(ctx, masterdata.KindInstrument,
			map[string]string{"normalized_name": plan.NormalizedName}, 0, 0)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			run.fail(section, i+1, describeConflicts(conflicts))
			continue
		}
		if run.dryRun {
			plan.ID = run.nextProvisionalID()
		} else if err := run.c.store.CreateInstrument(ctx, plan); err != nil {
			run.fail(section, i+1, err.Error())
			continue
		}
		siblings[platform.ID] = append(names, plan.NormalizedName)
		run.instruments[strings.ToLower(plan.NormalizedName)] = *plan
		run.report.InstrumentsCreated = append(run.report.InstrumentsCreated, plan.NormalizedName)
	}
	return nil
}

// instrumentNames lists the instruments known on a platform, including those
// planned earlier in this run.
func (run *importRun) instrumentNames(platformID int64) []string {
	var names []string
	for _, i := range run.instruments {
		if i.PlatformID == platformID {
			names = append(names, i.NormalizedName)
		}
	}
	return names
}

func (run *importRun) importROIs(ctx context.Context, rows []map[string]any) error {
	const section = "rois"
	siblings := map[int64][]string{}
	for i, row := range rows {
		ref := parentIdentifier(row, "instrument_normalized_name", "instrument")
		if ref == "" {
			run.fail(section, i+1, "instrument_normalized_name: is required")
			continue
		}
		instrument, ok := run.instruments[strings.ToLower(ref)]
		if !ok {
			run.fail(section, i+1, fmt.Sprintf("instrument %s not found in station %s", ref, run.station.NormalizedName))
			continue
		}
		names, ok := siblings[instrument.ID]
		if !ok && instrument.ID < provisionalBase {
			current, err := run.c.store.ListROIs(ctx, masterdata.ROIFilter{InstrumentID: instrument.ID})
			if err != nil {
				return err
			}
			for _, r := range current {
				names = append(names, r.ROIName)
			}
		}
		input, err := roiImportInput(row)
		if err != nil {
			run.fail(section, i+1, err.Error())
			continue
		}
		plan, err := run.c.PlanROI(instrument, names, run.level, input)
		if err != nil {
			run.fail(section, i+1, err.Error())
			continue
		}
		if containsFold(names, plan.ROIName) {
			run.fail(section, i+1, fmt.Sprintf("roi %s already exists on %s", plan.ROIName, instrument.NormalizedName))
			continue
		}
		if !run.dryRun {
			if err := run.c.store.CreateROI(ctx, plan); err != nil {
				run.fail(section, i+1, err.Error())
				continue
			}
		}
		siblings[instrument.ID] = append(names, plan.ROIName)
		run.report.ROIsCreated = append(run.report.ROIsCreated, instrument.NormalizedName+"/"+plan.ROIName)
	}
	return nil
}

// roiImportInput accepts the field names of older ROI exchange files:
// polygon_points for points_json and a #RRGGBB color for color_r/g/b.
func roiImportInput(row map[string]any) (map[string]any, error) {
	input := make(map[string]any, len(row))
	for k, v := range row {
		input[k] = v
	}
	if _, ok := input["points_json"]; !ok {
		if pts, ok := input["polygon_points"]; ok {
			input["points_json"] = pts
		}
	}
	if color, ok := input["color"].(string); ok && color != "" {
		r, g, b, err := parseHexColor(color)
		if err != nil {
			return nil, err
		}
		for k, v := range map[string]int{"color_r": r, "color_g": g, "color_b": b} {
			if _, set := input[k]; !set {
				input[k] = float64(v)
			}
		}
	}
	return input, nil
}

func parseHexColor(value string) (r, g, b int, err error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("color: %q is not a #RRGGBB value", value)
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("color: %q is not a #RRGGBB value", value)
	}
	return int(rgb >> 16 & 0xff), int(rgb >> 8 & 0xff), int(rgb & 0xff), nil
}

func describeConflicts(conflicts []masterdata.Conflict) string {
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		parts = append(parts, fmt.Sprintf("%s %s already exists", c.Field, c.Value))
	}
	return strings.Join(parts, "; ")
}

func containsFold(values []string, value string) bool {
	for _, v := range values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
