package application_test

import (
	"reflect"
	"testing"

	"sites-spectral/internal/masterdata/application"
	masterdata "sites-spectral/internal/masterdata/domain"
)

func importDoc() application.ImportDocument {
	return application.ImportDocument{
		Platforms: []map[string]any{
			{"location_code": "PL02", "ecosystem_code": "WET", "display_name": "Wetland mast"},
			{"location_code": "PL01", "ecosystem_code": "MIR"},
			{"location_code": "PL03", "ecosystem_code": "XXX", "display_name": "Bad"},
		},
		Instruments: []map[string]any{
			{"platform_normalized_name": "SVB_WET_PL02", "instrument_type": "phenocam"},
			{"platform": "SVB_WET_PL02", "instrument_type": "phenocam"},
			{"platform": "SVB_MIR_PL01", "instrument_type": "ndvi"},
			{"platform": "SVB_GRA_PL09", "instrument_type": "ndvi"},
		},
	}
}

func TestImportDryRunWritesNothing(t *testing.T) {
	c := newCatalog(t)
	seed(t, c)

	report, err := c.Import(asAdmin(), "SVB", importDoc(), true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !report.DryRun || report.Station != "svartberget" {
		t.Fatalf("unexpected header %+v", report)
	}
	if !reflect.DeepEqual(report.PlatformsCreated, []string{"SVB_WET_PL02"}) {
		t.Fatalf("platforms = %v", report.PlatformsCreated)
	}
	wantInstruments := []string{"SVB_WET_PL02_PHE01", "SVB_WET_PL02_PHE02", "SVB_MIR_PL01_NDVI01"}
	if !reflect.DeepEqual(report.InstrumentsCreated, wantInstruments) {
		t.Fatalf("instruments = %v, want %v", report.InstrumentsCreated, wantInstruments)
	}

	var rows []string
	for _, e := range report.Errors {
		rows = append(rows, e.Section+" "+e.String())
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 row errors, got %v", rows)
	}
	if rows[2] != "instruments Row 4: platform SVB_GRA_PL09 not found in station svartberget" {
		t.Fatalf("unexpected last error %q", rows[2])
	}

	platforms, err := c.List(asAdmin(), masterdata.KindPlatform, application.ListQuery{Station: "SVB"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if n := len(platforms.([]masterdata.Platform)); n != 2 {
		t.Fatalf("dry run wrote platforms: %d", n)
	}
}

func TestImportCreatesRows(t *testing.T) {
	c := newCatalog(t)
	seed(t, c)

	report, err := c.Import(asAdmin(), "SVB", importDoc(), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.InstrumentsCreated) != 3 {
		t.Fatalf("instruments = %v", report.InstrumentsCreated)
	}

	platform, err := c.Get(asAdmin(), masterdata.KindPlatform, "SVB_WET_PL02")
	if err != nil {
		t.Fatalf("imported platform missing: %v", err)
	}
	if got := platform.(masterdata.Platform); got.DisplayName != "Wetland mast" || got.Status != "Active" {
		t.Fatalf("unexpected platform %+v", got)
	}

	// Re-running the same document only produces errors.
	again, err := c.Import(asAdmin(), "SVB", importDoc(), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(again.PlatformsCreated) != 0 {
		t.Fatalf("duplicate platforms were created: %v", again.PlatformsCreated)
	}
}

func roiImportDoc() application.ImportDocument {
	return application.ImportDocument{
		Platforms: []map[string]any{
			{"location_code": "PL05", "ecosystem_code": "WET"},
		},
		Instruments: []map[string]any{
			{"platform": "SVB_WET_PL05", "instrument_type": "phenocam"},
		},
		ROIs: []map[string]any{
			{"instrument": "SVB_WET_PL05_PHE01", "polygon_points": "[[0,0],[5,0],[5,5]]", "color": "#00FF80", "description": "snow patch"},
			{"instrument_normalized_name": "SVB_MIR_PL01_PHE01", "points_json": triangle},
			{"instrument": "SVB_MIR_PL01_PHE01", "roi_name": "ROI_01", "points_json": triangle},
			{"instrument": "SVB_GRA_PL09_PHE01", "points_json": triangle},
			{"instrument": "SVB_MIR_PL01_PHE01", "points_json": triangle, "color": "red"},
		},
	}
}

func TestImportROIs(t *testing.T) {
	for _, dryRun := range []bool{true, false} {
		c := newCatalog(t)
		seed(t, c)

		report, err := c.Import(asAdmin(), "SVB", roiImportDoc(), dryRun)
		if err != nil {
			t.Fatalf("import (dry run %v): %v", dryRun, err)
		}
		if !reflect.DeepEqual(report.PlatformsCreated, []string{"SVB_WET_PL05"}) {
			t.Fatalf("platforms = %v", report.PlatformsCreated)
		}
		want := []string{"SVB_WET_PL05_PHE01/ROI_01", "SVB_MIR_PL01_PHE01/ROI_02"}
		if !reflect.DeepEqual(report.ROIsCreated, want) {
			t.Fatalf("rois = %v, want %v (dry run %v)", report.ROIsCreated, want, dryRun)
		}
		var rows []int
		for _, e := range report.Errors {
			if e.Section != "rois" {
				t.Fatalf("unexpected error %+v", e)
			}
			rows = append(rows, e.Row)
		}
		if !reflect.DeepEqual(rows, []int{3, 4, 5}) {
			t.Fatalf("error rows = %v (%v)", rows, report.Errors)
		}
		if report.Created() != 4 {
			t.Fatalf("created = %d", report.Created())
		}
	}
}

func TestImportWritesROIFields(t *testing.T) {
	c := newCatalog(t)
	seed(t, c)

	if _, err := c.Import(asAdmin(), "SVB", roiImportDoc(), false); err != nil {
		t.Fatalf("import: %v", err)
	}

	platform, err := c.Get(asAdmin(), masterdata.KindPlatform, "SVB_WET_PL05")
	if err != nil {
		t.Fatalf("imported platform missing: %v", err)
	}
	if got := platform.(masterdata.Platform).DisplayName; got != "SVB_WET_PL05" {
		t.Fatalf("display_name = %q, want the normalized name", got)
	}

	list, err := c.List(asAdmin(), masterdata.KindROI, application.ListQuery{Instrument: "SVB_WET_PL05_PHE01"})
	if err != nil {
		t.Fatalf("list rois: %v", err)
	}
	rois := list.([]masterdata.ROI)
	if len(rois) != 1 {
		t.Fatalf("rois = %+v", rois)
	}
	roi := rois[0]
	if roi.ROIName != "ROI_01" || roi.Description != "snow patch" {
		t.Fatalf("unexpected roi %+v", roi)
	}
	if roi.ColorR != 0 || roi.ColorG != 255 || roi.ColorB != 128 || roi.Thickness != 7 {
		t.Fatalf("unexpected drawing fields %+v", roi)
	}
}
