package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// scheduleColWidths gives narrow columns to day and times and the remaining
// width to names; the sum matches an A4 landscape page minus margins.
var scheduleColWidths = []float64{32, 22, 22, 72, 62, 67}

// PDFExporter renders a weekly schedule into a tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a landscape PDF of the schedule with an optional title.
// Landscape keeps instructor and room names readable on one line. A blank
// day cell means the row continues the previous row's day.
func (e *PDFExporter) Render(rows []ScheduleRow, title string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	e.writeHeader(pdf)

	pdf.SetFont("Arial", "", 9)
	prevDay := ""
	for _, row := range rows {
		if pdf.GetY() > 180 {
			pdf.AddPage()
			e.writeHeader(pdf)
			pdf.SetFont("Arial", "", 9)
			prevDay = ""
		}
		day := row.Day
		if day == prevDay {
			day = ""
		} else {
			prevDay = row.Day
		}
		cells := []string{day, row.Start, row.End, row.Instructor, row.Room, row.Location}
		for i, value := range cells {
			pdf.CellFormat(scheduleColWidths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) writeHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 10)
	for i, column := range ScheduleColumns {
		pdf.CellFormat(scheduleColWidths[i], 8, column, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
}
