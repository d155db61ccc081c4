package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
)

// generateCSVData creates a price list with the specified row count
func generateCSVData(rows int) []byte {
	f := gofakeit.New(1)
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	writer.Write([]string{"Codigo", "Descripcion", "Precio", "Marca"})
	for _, l := range fakePriceLines(f, rows) {
		writer.Write([]string{l.Code, l.Description, withThousands(l.Price), f.Company()})
	}

	writer.Flush()
	return buf.Bytes()
}

// BenchmarkSpreadsheetCSV measures the full CSV path: decode, bind, map.
func BenchmarkSpreadsheetCSV(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		data := generateCSVData(size)
		p := NewSpreadsheetParser(NewCSVReader(0), nil, discardLogger())

		b.Run(fmt.Sprintf("%d_rows", size), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := p.Parse(context.Background(), data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDocumentTokens compares sequential and page-parallel grouping.
func BenchmarkDocumentTokens(b *testing.B) {
	lines := fakePriceLines(gofakeit.New(2), 2000)
	tokens := fakeDocumentTokens(lines, 40)

	for _, parallel := range []bool{false, true} {
		p := NewDocumentParser(nil, discardLogger(),
			WithRowGrouper(NewRowGrouper(DefaultRowTolerance, parallel)))

		b.Run(fmt.Sprintf("parallel=%t", parallel), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := p.ParseTokens(context.Background(), tokens); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkNormalizeHeaderBinding(b *testing.B) {
	m := NewColumnMapper()
	headers := []string{"Precio Unitario", "Marca", "Descripción", "Código", "Existencia", "Precio"}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = m.Bind(headers)
	}
}
