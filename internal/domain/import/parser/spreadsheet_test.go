package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
)

func TestColumnMapper_Bind(t *testing.T) {
	m := NewColumnMapper()

	t.Run("accented and plain headers bind the same field", func(t *testing.T) {
		a, err := m.Bind([]string{"Código", "Descripción", "Precio"})
		require.NoError(t, err)
		b, err := m.Bind([]string{"codigo", "descripcion", "precio"})
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Equal(t, 1, a[catalog.FieldDescription])
	})

	t.Run("english headers", func(t *testing.T) {
		got, err := m.Bind([]string{"SKU", "Description", "Price", "Brand"})
		require.NoError(t, err)
		assert.Equal(t, map[catalog.Field]int{
			catalog.FieldProductCode: 0,
			catalog.FieldDescription: 1,
			catalog.FieldCostUSD:     2,
			catalog.FieldBrand:       3,
		}, got)
	})

	t.Run("earlier synonym wins over earlier column", func(t *testing.T) {
		got, err := m.Bind([]string{"Item", "Codigo", "Nombre", "Costo"})
		require.NoError(t, err)
		assert.Equal(t, 1, got[catalog.FieldProductCode])
	})

	t.Run("a column binds at most one field", func(t *testing.T) {
		// "usd" is the last cost synonym; "precio" wins and "usd" stays free
		got, err := m.Bind([]string{"codigo", "producto", "precio", "usd"})
		require.NoError(t, err)
		assert.Equal(t, 2, got[catalog.FieldCostUSD])
		assert.Len(t, got, 3)
	})

	t.Run("duplicate headers bind the first occurrence", func(t *testing.T) {
		got, err := m.Bind([]string{"codigo", "precio", "descripcion", "precio"})
		require.NoError(t, err)
		assert.Equal(t, 1, got[catalog.FieldCostUSD])
	})

	t.Run("missing required fields", func(t *testing.T) {
		_, err := m.Bind([]string{"Codigo", "Marca", "Existencia"})
		require.Error(t, err)

		var schemaErr *SchemaUnresolvedError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, []catalog.Field{catalog.FieldDescription, catalog.FieldCostUSD}, schemaErr.Missing)
		assert.Contains(t, err.Error(), "description")
		assert.Contains(t, err.Error(), "cost_usd")
	})

	t.Run("substring headers do not match", func(t *testing.T) {
		_, err := m.Bind([]string{"Codigo interno", "Descripcion", "Precio"})
		var schemaErr *SchemaUnresolvedError
		require.ErrorAs(t, err, &schemaErr)
		assert.Equal(t, []catalog.Field{catalog.FieldProductCode}, schemaErr.Missing)
	})
}

func TestColumnMapper_Map(t *testing.T) {
	m := NewColumnMapper()

	t.Run("converts rows to records", func(t *testing.T) {
		table := &Table{
			Headers: []string{"Código", "Descripcion", "Precio", "Marca"},
			Rows: [][]any{
				{"ABC-1", "Mouse USB", "350.00", "Logitech"},
				{" ABC-2 ", "  Teclado   inalambrico ", "$1,200.50", ""},
				{"", "", nil, ""},
				{"", "Sin codigo", "10.00", "HP"},
				{"ABC-3", "Cable", 12.5, nil},
				{"ABC-4", "Adaptador", "N/D"},
			},
		}

		result, err := m.Map(table)
		require.NoError(t, err)
		require.Len(t, result.Records, 4)
		assert.Equal(t, 6, result.TotalRows)

		first := result.Records[0]
		assert.Equal(t, "ABC-1", first.ProductCode)
		assert.Equal(t, "Mouse USB", first.Description)
		assert.Equal(t, "Logitech", first.BrandOrDefault())
		assert.Equal(t, "General", first.CategoryOrDefault())
		assert.True(t, decimal.NewFromInt(350).Equal(first.CostUSD))

		second := result.Records[1]
		assert.Equal(t, "ABC-2", second.ProductCode)
		assert.Equal(t, "Teclado inalambrico", second.Description)
		assert.Equal(t, catalog.DefaultBrand, second.BrandOrDefault())
		assert.True(t, decimal.RequireFromString("1200.50").Equal(second.CostUSD))

		assert.True(t, decimal.RequireFromString("12.5").Equal(result.Records[2].CostUSD))
		assert.True(t, result.Records[3].CostUSD.IsZero())

		counts := CountByReason(result.Rejections)
		assert.Equal(t, 1, counts[ReasonBlankRow])
		assert.Equal(t, 1, counts[ReasonMissingCode])
		assert.Equal(t, "Código", result.Bindings[catalog.FieldProductCode])
	})

	t.Run("column order does not change the records", func(t *testing.T) {
		a, err := m.Map(&Table{
			Headers: []string{"Codigo", "Descripcion", "Precio", "Marca"},
			Rows:    [][]any{{"X-1", "Monitor 24", "150.00", "Dell"}},
		})
		require.NoError(t, err)
		b, err := m.Map(&Table{
			Headers: []string{"Marca", "Precio", "Codigo", "Descripcion"},
			Rows:    [][]any{{"Dell", "150.00", "X-1", "Monitor 24"}},
		})
		require.NoError(t, err)
		assert.Equal(t, a.Records, b.Records)
	})

	t.Run("optional category and stock", func(t *testing.T) {
		result, err := m.Map(&Table{
			Headers: []string{"SKU", "Nombre", "Costo", "Categoria", "Existencia"},
			Rows: [][]any{
				{"S-1", "Router", "45.00", "Redes", "12"},
				{"S-2", "Switch", "80.00", "", "3.0"},
				{"S-3", "Patch", "1.00", "", "muchos"},
			},
		})
		require.NoError(t, err)
		require.Len(t, result.Records, 3)

		assert.Equal(t, "Redes", result.Records[0].CategoryOrDefault())
		require.NotNil(t, result.Records[0].StockQuantity)
		assert.Equal(t, 12, *result.Records[0].StockQuantity)
		require.NotNil(t, result.Records[1].StockQuantity)
		assert.Equal(t, 3, *result.Records[1].StockQuantity)
		assert.Nil(t, result.Records[2].StockQuantity)
	})

	t.Run("unresolved schema returns no records", func(t *testing.T) {
		result, err := m.Map(&Table{
			Headers: []string{"Fecha", "Monto"},
			Rows:    [][]any{{"2024-01-01", "10.00"}},
		})
		assert.Nil(t, result)
		var schemaErr *SchemaUnresolvedError
		assert.ErrorAs(t, err, &schemaErr)
	})
}

type stubTabular struct {
	table *Table
	err   error
}

func (s *stubTabular) ReadTable(context.Context, []byte) (*Table, error) {
	return s.table, s.err
}

func TestSpreadsheetParser_Parse(t *testing.T) {
	t.Run("end to end", func(t *testing.T) {
		reader := &stubTabular{table: &Table{
			Sheet:   "Precios",
			Headers: []string{"Código", "Descripcion", "Precio", "Marca"},
			Rows:    [][]any{{"ABC-1", "Mouse USB", "350.00", "Logitech"}},
		}}
		p := NewSpreadsheetParser(reader, nil, discardLogger())

		result, err := p.Parse(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, result.Records, 1)

		rec := result.Records[0]
		assert.Equal(t, "ABC-1", rec.ProductCode)
		assert.Equal(t, "Mouse USB", rec.Description)
		assert.True(t, decimal.RequireFromString("350.00").Equal(rec.CostUSD))
		assert.Equal(t, "Logitech", rec.BrandOrDefault())
		assert.Equal(t, "General", rec.CategoryOrDefault())
	})

	t.Run("reader errors pass through", func(t *testing.T) {
		p := NewSpreadsheetParser(&stubTabular{err: ErrUnreadableInput}, nil, discardLogger())
		_, err := p.Parse(context.Background(), nil)
		assert.ErrorIs(t, err, ErrUnreadableInput)
	})
}
