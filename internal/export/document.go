// Package export renders a station tree as JSON, CSV, XLSX or PDF.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	masterdata "sites-spectral/internal/masterdata/domain"
	"sites-spectral/internal/observability/metrics"
)

// SchemaVersion tags the JSON export layout.
const SchemaVersion = "1.0"

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a query value onto a Format. Empty selects CSV.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", value)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Meta describes an export run.
type Meta struct {
	SchemaVersion   string    `json:"schema_version"`
	ExportedAt      time.Time `json:"exported_at"`
	ExportedBy      string    `json:"exported_by"`
	PlatformCount   int       `json:"platform_count"`
	InstrumentCount int       `json:"instrument_count"`
	ROICount        int       `json:"roi_count"`
}

// Document is the JSON export of one station.
type Document struct {
	Meta Meta `json:"_export_meta"`
	masterdata.StationTree
}

// NewDocument wraps a tree with its export metadata.
func NewDocument(tree masterdata.StationTree, exportedAt time.Time, exportedBy string) Document {
	platforms, instruments, rois := tree.Counts()
	return Document{
		Meta: Meta{
			SchemaVersion:   SchemaVersion,
			ExportedAt:      exportedAt.UTC(),
			ExportedBy:      exportedBy,
			PlatformCount:   platforms,
			InstrumentCount: instruments,
			ROICount:        rois,
		},
		StationTree: tree,
	}
}

// Filename is the attachment name for the document in format f.
func (d Document) Filename(f Format) string {
	return fmt.Sprintf("%s_export_%s.%s", d.Station.NormalizedName, d.Meta.ExportedAt.Format("20060102"), f)
}

// Render encodes the document in format f.
func Render(f Format, doc Document) (out []byte, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveExport(string(f), result, time.Since(start))
	}()

	switch f {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatXLSX:
		return BuildStationXLSX(doc)
	case FormatPDF:
		return BuildStationPDF(doc)
	case FormatCSV:
		var buf bytes.Buffer
		if err := WriteStationCSV(&buf, doc.StationTree); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("export: unsupported format %q", f)
	}
}
