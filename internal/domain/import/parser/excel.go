package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// PreferredSheetNames are tried case-insensitively before the first sheet.
var PreferredSheetNames = []string{
	"precios", "lista", "inventario", "productos", "price list", "sheet1",
}

// ExcelReader reads XLSX workbooks.
type ExcelReader struct {
	preferred []string
}

// NewExcelReader creates an XLSX reader.
func NewExcelReader() *ExcelReader {
	return &ExcelReader{preferred: PreferredSheetNames}
}

// ReadTable opens the workbook, picks the price sheet and returns its first
// row as headers and the remaining rows as data.
func (r *ExcelReader) ReadTable(ctx context.Context, data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", ErrUnreadableInput, err)
	}
	defer f.Close()

	sheet := r.findPriceSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnreadableInput)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %s: %v", ErrUnreadableInput, sheet, err)
	}
	defer rows.Close()

	table := &Table{Sheet: sheet}
	header := true
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read row: %v", ErrUnreadableInput, err)
		}
		if header {
			table.Headers = cols
			header = false
			continue
		}
		cells := make([]any, len(cols))
		for i, c := range cols {
			cells[i] = c
		}
		table.Rows = append(table.Rows, cells)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableInput, err)
	}

	return table, nil
}

func (r *ExcelReader) findPriceSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range r.preferred {
		for _, sheet := range sheets {
			if strings.EqualFold(strings.TrimSpace(sheet), preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}

// ExcelFormatInfo summarizes a workbook for previews.
type ExcelFormatInfo struct {
	Sheets     []string   `json:"sheets"`
	Sheet      string     `json:"sheet"`
	Headers    []string   `json:"headers"`
	RowCount   int        `json:"row_count"`
	SampleRows [][]string `json:"sample_rows"`
}

// DetectExcelFormat reports the sheet that would be imported, its headers
// and up to five sample rows.
func DetectExcelFormat(data []byte) (*ExcelFormatInfo, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", ErrUnreadableInput, err)
	}
	defer f.Close()

	info := &ExcelFormatInfo{Sheets: f.GetSheetList()}
	if len(info.Sheets) == 0 {
		return info, nil
	}

	info.Sheet = NewExcelReader().findPriceSheet(f)
	rows, err := f.GetRows(info.Sheet)
	if err != nil || len(rows) == 0 {
		return info, nil
	}

	info.Headers = rows[0]
	info.RowCount = len(rows) - 1
	maxSamples := min(5, len(rows)-1)
	info.SampleRows = make([][]string, maxSamples)
	for i := 0; i < maxSamples; i++ {
		info.SampleRows[i] = rows[i+1]
	}
	return info, nil
}
