package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	masterdata "sites-spectral/internal/masterdata/domain"
)

func ptr(v float64) *float64 { return &v }

func sampleTree() masterdata.StationTree {
	station := masterdata.Station{
		ID: 1, NormalizedName: "svartberget", DisplayName: "Svartberget, \"SVB\"", Acronym: "SVB",
		Status: "Active", Country: "Sweden", Latitude: ptr(64.256), Longitude: ptr(19.775),
	}
	platforms := []masterdata.Platform{
		{ID: 10, StationID: 1, NormalizedName: "SVB_FOR_BL01", DisplayName: "Tower", LocationCode: "BL01",
			EcosystemCode: "FOR", PlatformHeightM: ptr(150), Status: "Active"},
		{ID: 11, StationID: 1, NormalizedName: "SVB_MIR_PL01", DisplayName: "Mire, north", LocationCode: "PL01",
			EcosystemCode: "MIR", Status: "Active"},
	}
	instruments := []masterdata.Instrument{
		{ID: 100, PlatformID: 10, NormalizedName: "SVB_FOR_BL01_PHE01", InstrumentType: "phenocam",
			InstrumentNumber: "PHE01", Status: "Active", DeploymentDate: "2020-05-01", AzimuthDegrees: ptr(185.5)},
		{ID: 101, PlatformID: 10, NormalizedName: "SVB_FOR_BL01_NDVI01", InstrumentType: "ndvi",
			InstrumentNumber: "NDVI01", Status: "Inactive"},
	}
	rois := []masterdata.ROI{
		{ID: 1000, InstrumentID: 100, ROIName: "ROI_01", Alpha: 0.5, ColorR: 255, Thickness: 7,
			Points: json.RawMessage(`[[1,2],[3,4],[5,6]]`)},
	}
	return masterdata.BuildStationTree(station, platforms, instruments, rois)
}

func TestWriteStationCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStationCSV(&buf, sampleTree()))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Len(t, StationCSVHeader, 39)
	for _, r := range records {
		assert.Len(t, r, 39)
	}

	col := func(name string) int {
		for i, h := range StationCSVHeader {
			if h == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}

	first := records[1]
	assert.Equal(t, `Svartberget, "SVB"`, first[col("station_display_name")])
	assert.Equal(t, "64.256", first[col("station_latitude")])
	assert.Equal(t, "150", first[col("platform_height_m")])
	assert.Equal(t, "SVB_FOR_BL01_PHE01", first[col("instrument_normalized_name")])
	assert.Equal(t, "185.5", first[col("azimuth_degrees")])
	assert.Equal(t, "", first[col("degrees_from_nadir")])
	assert.Equal(t, "1", first[col("roi_count")])

	empty := records[3]
	assert.Equal(t, "Mire, north", empty[col("platform_display_name")])
	assert.Equal(t, "", empty[col("instrument_id")])
	assert.Equal(t, "", empty[col("roi_count")])

	assert.Contains(t, buf.String(), `"Svartberget, ""SVB"""`)
}

func TestNewDocumentCounts(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := NewDocument(sampleTree(), at, "alice")
	assert.Equal(t, 2, doc.Meta.PlatformCount)
	assert.Equal(t, 2, doc.Meta.InstrumentCount)
	assert.Equal(t, 1, doc.Meta.ROICount)
	assert.Equal(t, "svartberget_export_20250601.csv", doc.Filename(FormatCSV))

	out, err := Render(FormatJSON, doc)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	meta, ok := decoded["_export_meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", meta["exported_by"])
	assert.Equal(t, SchemaVersion, meta["schema_version"])
	assert.Len(t, decoded["platforms"], 2)
}

func TestRenderBinaryFormats(t *testing.T) {
	doc := NewDocument(sampleTree(), time.Now(), "alice")

	xlsx, err := Render(FormatXLSX, doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx, []byte("PK")))

	pdf, err := Render(FormatPDF, doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
