package parser

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// lineTokens lays texts out left to right on one line.
func lineTokens(page int, y float64, texts ...string) []PositionedToken {
	out := make([]PositionedToken, len(texts))
	x := 40.0
	for i, text := range texts {
		w := float64(len(text)) * 5
		out[i] = PositionedToken{Text: text, X0: x, Y0: y, X1: x + w, Y1: y + 10, Page: page}
		x += w + 8
	}
	return out
}

// withThousands renders a decimal as "1,234.50".
func withThousands(d decimal.Decimal) string {
	s := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + "." + frac
}

type fakeLine struct {
	Code        string
	Description string
	Price       decimal.Decimal
}

func fakePriceLines(f *gofakeit.Faker, n int) []fakeLine {
	lines := make([]fakeLine, n)
	for i := range lines {
		lines[i] = fakeLine{
			Code:        strings.ToUpper(f.LetterN(3)) + "-" + f.DigitN(4),
			Description: f.ProductName(),
			Price:       decimal.NewFromFloat(f.Price(1, 5000)).Round(2),
		}
	}
	return lines
}

// fakeDocumentTokens renders lines as a paginated price list with a header
// row on every page.
func fakeDocumentTokens(lines []fakeLine, perPage int) []PositionedToken {
	var tokens []PositionedToken
	page, y := 1, 80.0
	tokens = append(tokens, lineTokens(page, 60, "CODIGO", "DESCRIPCION", "PRECIO")...)
	for i, l := range lines {
		if i > 0 && i%perPage == 0 {
			page++
			y = 80
			tokens = append(tokens, lineTokens(page, 60, "CODIGO", "DESCRIPCION", "PRECIO")...)
		}
		texts := append([]string{l.Code}, strings.Fields(l.Description)...)
		texts = append(texts, "$"+withThousands(l.Price))
		tokens = append(tokens, lineTokens(page, y, texts...)...)
		y += 14
	}
	return tokens
}

// newWorkbook builds an in-memory XLSX with one sheet.
func newWorkbook(t testing.TB, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func csvOf(rows ...[]string) []byte {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintln(&b, strings.Join(r, ","))
	}
	return []byte(b.String())
}
