package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a landscape tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

const pdfTableWidth = 277.0

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 10)
	colWidth := pdfTableWidth / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, tr(row[header]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(data.Rows) == 0 {
		pdf.CellFormat(pdfTableWidth, 7, "no rows", "1", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
