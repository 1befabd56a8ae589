package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// SessionReport is the printable view of one attendance session.
type SessionReport struct {
	ClassName string
	StartTime string
	Code      string
	Rows      []SessionReportRow
}

// SessionReportRow is a single student line in the report.
type SessionReportRow struct {
	RollNumber string
	Name       string
	Status     string
	MarkedAt   string
}

// PDFExporter renders attendance session reports as tabular PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

var reportColumns = []struct {
	header string
	width  float64
}{
	{"Roll", 25},
	{"Name", 75},
	{"Status", 35},
	{"Marked At", 55},
}

// Render creates the PDF document for a session report.
func (e *PDFExporter) Render(report SessionReport) ([]byte, error) {
	if report.ClassName == "" {
		return nil, fmt.Errorf("pdf requires a class name")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(report.ClassName+" - attendance"), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	subtitle := report.StartTime
	if report.Code != "" {
		subtitle += "  ·  code " + report.Code
	}
	pdf.CellFormat(0, 6, subtitle, "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	for _, col := range reportColumns {
		pdf.CellFormat(col.width, 8, col.header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range report.Rows {
		values := []string{row.RollNumber, row.Name, row.Status, row.MarkedAt}
		for i, col := range reportColumns {
			pdf.CellFormat(col.width, 7, values[i], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
