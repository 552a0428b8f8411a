package export

import (
	"encoding/csv"
	"io"
	"strconv"

	masterdata "sites-spectral/internal/masterdata/domain"
)

// StationCSVHeader is the fixed column layout of the station CSV export.
var StationCSVHeader = []string{
	"station_id",
	"station_normalized_name",
	"station_display_name",
	"station_acronym",
	"station_status",
	"station_country",
	"station_latitude",
	"station_longitude",
	"platform_id",
	"platform_normalized_name",
	"platform_display_name",
	"location_code",
	"ecosystem_code",
	"mounting_structure",
	"platform_height_m",
	"platform_latitude",
	"platform_longitude",
	"platform_status",
	"platform_description",
	"instrument_id",
	"instrument_normalized_name",
	"instrument_display_name",
	"legacy_acronym",
	"instrument_type",
	"instrument_number",
	"instrument_status",
	"instrument_ecosystem_code",
	"deployment_date",
	"instrument_height_m",
	"viewing_direction",
	"azimuth_degrees",
	"degrees_from_nadir",
	"camera_brand",
	"camera_model",
	"camera_serial_number",
	"instrument_latitude",
	"instrument_longitude",
	"instrument_description",
	"roi_count",
}

// WriteStationCSV writes one row per platform/instrument pair. Platforms
// without instruments get a single row with empty instrument columns.
func WriteStationCSV(w io.Writer, tree masterdata.StationTree) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(StationCSVHeader); err != nil {
		return err
	}

	s := tree.Station
	stationCols := []string{
		id(s.ID), s.NormalizedName, s.DisplayName, s.Acronym, s.Status, s.Country,
		float(s.Latitude), float(s.Longitude),
	}
	for _, p := range tree.Platforms {
		platformCols := []string{
			id(p.ID), p.NormalizedName, p.DisplayName, p.LocationCode, p.EcosystemCode, p.MountingStructure,
			float(p.PlatformHeightM), float(p.Latitude), float(p.Longitude), p.Status, p.Description,
		}
		if len(p.Instruments) == 0 {
			if err := writer.Write(row(stationCols, platformCols, make([]string, 20))); err != nil {
				return err
			}
			continue
		}
		for _, i := range p.Instruments {
			instrumentCols := []string{
				id(i.ID), i.NormalizedName, i.DisplayName, i.LegacyAcronym, i.InstrumentType, i.InstrumentNumber,
				i.Status, i.EcosystemCode, i.DeploymentDate, float(i.InstrumentHeightM), i.ViewingDirection,
				float(i.AzimuthDegrees), float(i.DegreesFromNadir), i.CameraBrand, i.CameraModel,
				i.CameraSerialNumber, float(i.Latitude), float(i.Longitude), i.Description,
				strconv.Itoa(len(i.ROIs)),
			}
			if err := writer.Write(row(stationCols, platformCols, instrumentCols)); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func row(parts ...[]string) []string {
	out := make([]string, 0, len(StationCSVHeader))
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
