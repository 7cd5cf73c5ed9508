package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Timetable is a flattened weekly schedule ready for download.
type Timetable struct {
	Title string
	Rows  []TimetableRow
}

// TimetableRow is one meeting in a rendered timetable.
type TimetableRow struct {
	CourseCode string
	CourseName string
	GroupName  string
	Day        string
	Start      string
	End        string
}

var timetableHeaders = []string{"Course", "Name", "Group", "Day", "Start", "End"}

func (r TimetableRow) record() []string {
	return []string{r.CourseCode, r.CourseName, r.GroupName, r.Day, r.Start, r.End}
}

// RenderCSV encodes the timetable as CSV bytes.
func RenderCSV(table Timetable) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(timetableHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(row.record()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPDF renders the timetable as a tabular PDF document.
func RenderPDF(table Timetable) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if table.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(table.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	colWidth := 190.0 / float64(len(timetableHeaders))
	pdf.SetFont("Arial", "B", 10)
	for _, header := range timetableHeaders {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range table.Rows {
		for _, value := range row.record() {
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
