package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// BuildStationPDF renders a one-page summary of the station and its instruments.
func BuildStationPDF(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	s := doc.Station
	pdf.Cell(0, 8, tr(fmt.Sprintf("Station %s (%s)", s.DisplayName, s.Acronym)))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Normalized name: %s", s.NormalizedName)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", s.Status))
	pdf.Ln(5)
	if s.Country != "" {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Country: %s", s.Country)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Platforms: %d  Instruments: %d  ROIs: %d",
		doc.Meta.PlatformCount, doc.Meta.InstrumentCount, doc.Meta.ROICount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Exported: %s by %s", doc.Meta.ExportedAt.Format(time.RFC3339), doc.Meta.ExportedBy))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(50, 6, "Platform", "1", 0, "C", false, 0, "")
	pdf.CellFormat(65, 6, "Instrument", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "ROIs", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, p := range doc.Platforms {
		if len(p.Instruments) == 0 {
			pdf.CellFormat(50, 6, p.NormalizedName, "1", 0, "L", false, 0, "")
			pdf.CellFormat(65, 6, "-", "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, "", "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, p.Status, "1", 0, "C", false, 0, "")
			pdf.CellFormat(15, 6, "0", "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
			continue
		}
		for _, i := range p.Instruments {
			pdf.CellFormat(50, 6, p.NormalizedName, "1", 0, "L", false, 0, "")
			pdf.CellFormat(65, 6, i.NormalizedName, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, i.InstrumentType, "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, i.Status, "1", 0, "C", false, 0, "")
			pdf.CellFormat(15, 6, fmt.Sprintf("%d", len(i.ROIs)), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
