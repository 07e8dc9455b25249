package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// ScheduleRow is one placed priority block in presentation form. Rows are
// expected in week order (day, then start time), the way the decoder emits
// them.
type ScheduleRow struct {
	Day        string
	Start      string
	End        string
	Instructor string
	Room       string
	Location   string
}

// ScheduleColumns is the column order shared by the CSV and PDF renderers.
var ScheduleColumns = []string{"Day", "Start", "End", "Instructor", "Room", "Location"}

func (r ScheduleRow) values() []string {
	return []string{r.Day, r.Start, r.End, r.Instructor, r.Room, r.Location}
}

// CSVExporter renders a weekly schedule into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the schedule. An empty schedule
// renders the header line alone.
func (e *CSVExporter) Render(rows []ScheduleRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(ScheduleColumns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.values()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
