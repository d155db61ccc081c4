package parser

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExcelReader_ReadTable(t *testing.T) {
	t.Run("reads header and rows", func(t *testing.T) {
		data := newWorkbook(t, "Sheet1", [][]any{
			{"Código", "Descripcion", "Precio", "Marca"},
			{"ABC-1", "Mouse USB", "350.00", "Logitech"},
			{"ABC-2", "Teclado", 12.5, ""},
		})

		table, err := NewExcelReader().ReadTable(context.Background(), data)
		require.NoError(t, err)
		assert.Equal(t, "Sheet1", table.Sheet)
		assert.Equal(t, []string{"Código", "Descripcion", "Precio", "Marca"}, table.Headers)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "ABC-1", table.Rows[0][0])
		assert.Equal(t, "12.5", table.Rows[1][2])
	})

	t.Run("prefers a price sheet over the first sheet", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()
		require.NoError(t, f.SetCellValue("Sheet1", "A1", "Portada"))
		_, err := f.NewSheet("Precios")
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Precios", "A1", &[]any{"Codigo", "Descripcion", "Precio"}))
		require.NoError(t, f.SetSheetRow("Precios", "A2", &[]any{"Z-1", "Parlante", "20.00"}))
		var buf bytes.Buffer
		require.NoError(t, f.Write(&buf))

		table, err := NewExcelReader().ReadTable(context.Background(), buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "Precios", table.Sheet)
		assert.Len(t, table.Rows, 1)
	})

	t.Run("garbage bytes are unreadable", func(t *testing.T) {
		_, err := NewExcelReader().ReadTable(context.Background(), []byte("not a workbook"))
		assert.ErrorIs(t, err, ErrUnreadableInput)
	})
}

func TestExcel_EndToEnd(t *testing.T) {
	data := newWorkbook(t, "Lista", [][]any{
		{"Código", "Descripcion", "Precio", "Marca"},
		{"ABC-1", "Mouse USB", "350.00", "Logitech"},
	})

	p := NewSpreadsheetParser(NewExcelReader(), nil, discardLogger())
	result, err := p.Parse(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Lista", result.Sheet)
	assert.Equal(t, "Logitech", result.Records[0].BrandOrDefault())
	assert.Equal(t, "350", result.Records[0].CostUSD.String())
}

func TestDetectExcelFormat(t *testing.T) {
	rows := [][]any{{"SKU", "Nombre", "Costo"}}
	for i := 0; i < 8; i++ {
		rows = append(rows, []any{"S", "Item", "1.00"})
	}
	data := newWorkbook(t, "Inventario", rows)

	info, err := DetectExcelFormat(data)
	require.NoError(t, err)
	assert.Equal(t, "Inventario", info.Sheet)
	assert.Equal(t, []string{"SKU", "Nombre", "Costo"}, info.Headers)
	assert.Equal(t, 8, info.RowCount)
	assert.Len(t, info.SampleRows, 5)
}
