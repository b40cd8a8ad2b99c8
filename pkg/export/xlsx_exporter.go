package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter constructs an XLSX exporter writing to the named sheet.
func NewXLSXExporter(sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &XLSXExporter{sheet: sheet}
}

// Render produces workbook bytes with a bold header row.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", e.sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(e.sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write xlsx headers: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, fmt.Errorf("resolve header range: %w", err)
	}
	if err := f.SetCellStyle(e.sheet, "A1", lastCol+"1", style); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i, row := range data.Rows {
		record := make([]interface{}, len(data.Headers))
		for j, h := range data.Headers {
			record[j] = row[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("resolve row cell: %w", err)
		}
		if err := f.SetSheetRow(e.sheet, cell, &record); err != nil {
			return nil, fmt.Errorf("write xlsx row: %w", err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
