package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// BuildStationXLSX renders the document as a workbook with one sheet per level.
func BuildStationXLSX(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	stationSheet := "station"
	platformSheet := "platforms"
	instrumentSheet := "instruments"
	roiSheet := "rois"
	if err := f.SetSheetName("Sheet1", stationSheet); err != nil {
		return nil, err
	}
	for _, name := range []string{platformSheet, instrumentSheet, roiSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	s := doc.Station
	summary := [][2]any{
		{"Station", s.DisplayName},
		{"Normalized name", s.NormalizedName},
		{"Acronym", s.Acronym},
		{"Status", s.Status},
		{"Country", s.Country},
		{"Latitude", deref(s.Latitude)},
		{"Longitude", deref(s.Longitude)},
		{"Platforms", doc.Meta.PlatformCount},
		{"Instruments", doc.Meta.InstrumentCount},
		{"ROIs", doc.Meta.ROICount},
		{"Exported at", doc.Meta.ExportedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"Exported by", doc.Meta.ExportedBy},
	}
	for i, kv := range summary {
		r := i + 1
		_ = f.SetCellValue(stationSheet, fmt.Sprintf("A%d", r), kv[0])
		_ = f.SetCellValue(stationSheet, fmt.Sprintf("B%d", r), kv[1])
	}

	setRow(f, platformSheet, 1, []any{"id", "normalized_name", "display_name", "location_code", "ecosystem_code",
		"mounting_structure", "platform_height_m", "latitude", "longitude", "status"})
	setRow(f, instrumentSheet, 1, []any{"id", "platform", "normalized_name", "display_name", "legacy_acronym",
		"instrument_type", "instrument_number", "status", "deployment_date", "viewing_direction",
		"azimuth_degrees", "degrees_from_nadir", "camera_brand", "camera_model"})
	setRow(f, roiSheet, 1, []any{"id", "instrument", "roi_name", "alpha", "color", "thickness", "points_json", "auto_generated"})

	platformRow, instrumentRow, roiRow := 2, 2, 2
	for _, p := range doc.Platforms {
		setRow(f, platformSheet, platformRow, []any{p.ID, p.NormalizedName, p.DisplayName, p.LocationCode, p.EcosystemCode,
			p.MountingStructure, deref(p.PlatformHeightM), deref(p.Latitude), deref(p.Longitude), p.Status})
		platformRow++
		for _, i := range p.Instruments {
			setRow(f, instrumentSheet, instrumentRow, []any{i.ID, p.NormalizedName, i.NormalizedName, i.DisplayName,
				i.LegacyAcronym, i.InstrumentType, i.InstrumentNumber, i.Status, i.DeploymentDate, i.ViewingDirection,
				deref(i.AzimuthDegrees), deref(i.DegreesFromNadir), i.CameraBrand, i.CameraModel})
			instrumentRow++
			for _, r := range i.ROIs {
				setRow(f, roiSheet, roiRow, []any{r.ID, i.NormalizedName, r.ROIName, r.Alpha,
					fmt.Sprintf("#%02X%02X%02X", r.ColorR, r.ColorG, r.ColorB), r.Thickness, string(r.Points), r.AutoGenerated})
				roiRow++
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			continue
		}
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func deref(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
