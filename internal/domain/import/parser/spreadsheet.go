package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/normalizer"
	"github.com/shopspring/decimal"
)

// Table is a header row plus data rows as read from a spreadsheet.
// Cells are strings, numbers or nil.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
}

// TabularReader opens spreadsheet bytes as a Table.
type TabularReader interface {
	ReadTable(ctx context.Context, data []byte) (*Table, error)
}

// ColumnSynonyms lists the normalized header spellings accepted for a field,
// in priority order.
type ColumnSynonyms struct {
	Field    catalog.Field
	Synonyms []string
}

// DefaultSynonyms is the header synonym table, scanned field by field.
var DefaultSynonyms = []ColumnSynonyms{
	{Field: catalog.FieldProductCode, Synonyms: []string{"codigo", "code", "sku", "id", "item"}},
	{Field: catalog.FieldDescription, Synonyms: []string{"descripcion", "description", "nombre", "producto", "desc"}},
	{Field: catalog.FieldCostUSD, Synonyms: []string{"precio", "price", "costo", "cost", "valor", "usd"}},
	{Field: catalog.FieldBrand, Synonyms: []string{"marca", "brand", "fabricante"}},
	{Field: catalog.FieldCategory, Synonyms: []string{"categoria", "category", "linea"}},
	{Field: catalog.FieldStock, Synonyms: []string{"stock", "existencia", "existencias", "cantidad", "qty"}},
}

// ColumnMapper binds source columns to canonical fields by header name.
type ColumnMapper struct {
	synonyms []ColumnSynonyms
	required []catalog.Field
}

// NewColumnMapper creates a mapper. With no table it uses DefaultSynonyms.
func NewColumnMapper(synonyms ...ColumnSynonyms) *ColumnMapper {
	if len(synonyms) == 0 {
		synonyms = DefaultSynonyms
	}
	normalized := make([]ColumnSynonyms, len(synonyms))
	for i, s := range synonyms {
		names := make([]string, len(s.Synonyms))
		for j, n := range s.Synonyms {
			names[j] = normalizer.NormalizeHeader(n)
		}
		normalized[i] = ColumnSynonyms{Field: s.Field, Synonyms: names}
	}
	return &ColumnMapper{synonyms: normalized, required: catalog.RequiredFields}
}

// Bind returns the column index bound to each field. Fields are processed
// in table order; for each synonym, in order, the first still unbound
// column with that normalized header is taken. A missing required field
// fails the whole file with *SchemaUnresolvedError.
func (m *ColumnMapper) Bind(headers []string) (map[catalog.Field]int, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizer.NormalizeHeader(h)
	}

	bindings := make(map[catalog.Field]int, len(m.synonyms))
	taken := make([]bool, len(headers))

	for _, entry := range m.synonyms {
		if _, ok := bindings[entry.Field]; ok {
			continue
		}
	synonyms:
		for _, syn := range entry.Synonyms {
			for col, h := range normalized {
				if !taken[col] && h == syn {
					bindings[entry.Field] = col
					taken[col] = true
					break synonyms
				}
			}
		}
	}

	var missing []catalog.Field
	for _, f := range m.required {
		if _, ok := bindings[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaUnresolvedError{Missing: missing, Headers: append([]string(nil), headers...)}
	}
	return bindings, nil
}

// Map converts a table into canonical records. Fully blank rows and rows
// without a product code are skipped and reported as rejections.
func (m *ColumnMapper) Map(table *Table) (*SpreadsheetResult, error) {
	bindings, err := m.Bind(table.Headers)
	if err != nil {
		return nil, err
	}

	result := &SpreadsheetResult{
		Records:   make([]catalog.Record, 0, len(table.Rows)),
		Sheet:     table.Sheet,
		Bindings:  make(map[catalog.Field]string, len(bindings)),
		TotalRows: len(table.Rows),
	}
	for f, col := range bindings {
		result.Bindings[f] = table.Headers[col]
	}

	cell := func(row []any, f catalog.Field) (any, bool) {
		col, ok := bindings[f]
		if !ok || col >= len(row) {
			return nil, false
		}
		return row[col], true
	}
	text := func(row []any, f catalog.Field) string {
		v, ok := cell(row, f)
		if !ok {
			return ""
		}
		return cellText(v)
	}

	for i, row := range table.Rows {
		rowNum := i + 2 // 1-indexed, after the header

		if isBlankRow(row) {
			result.Rejections = append(result.Rejections, RowRejection{Row: rowNum, Reason: ReasonBlankRow})
			continue
		}

		code := text(row, catalog.FieldProductCode)
		if code == "" {
			result.Rejections = append(result.Rejections, RowRejection{
				Row: rowNum, Reason: ReasonMissingCode, Text: joinCells(row),
			})
			continue
		}

		rawPrice, _ := cell(row, catalog.FieldCostUSD)
		rec := catalog.NewRecord(
			code,
			normalizer.CleanText(text(row, catalog.FieldDescription)),
			text(row, catalog.FieldBrand),
			normalizer.NormalizePrice(rawPrice),
		)
		if category := text(row, catalog.FieldCategory); category != "" {
			rec.Category = &category
		}
		if stock, ok := parseStock(text(row, catalog.FieldStock)); ok {
			rec.StockQuantity = &stock
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// SpreadsheetParser reads a table and maps it to records.
type SpreadsheetParser struct {
	reader TabularReader
	mapper *ColumnMapper
	logger *slog.Logger
}

// NewSpreadsheetParser creates a parser over a tabular reader. A nil
// mapper selects the default synonym table.
func NewSpreadsheetParser(reader TabularReader, mapper *ColumnMapper, logger *slog.Logger) *SpreadsheetParser {
	if mapper == nil {
		mapper = NewColumnMapper()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SpreadsheetParser{reader: reader, mapper: mapper, logger: logger}
}

// Parse reads data and extracts records. Unreadable input and unresolved
// schemas fail the whole file.
func (p *SpreadsheetParser) Parse(ctx context.Context, data []byte) (*SpreadsheetResult, error) {
	table, err := p.reader.ReadTable(ctx, data)
	if err != nil {
		return nil, err
	}

	result, err := p.mapper.Map(table)
	if err != nil {
		p.logger.Warn("spreadsheet schema unresolved", "sheet", table.Sheet, slog.Any("error", err))
		return nil, err
	}

	for f, h := range result.Bindings {
		p.logger.Debug("column bound", "field", f, "header", h)
	}
	p.logger.Info("spreadsheet parsed",
		"sheet", result.Sheet,
		"rows", result.TotalRows,
		"records", len(result.Records),
		"skipped", len(result.Rejections))

	return result, nil
}

func cellText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case decimal.Decimal:
		return c.String()
	default:
		return strings.TrimSpace(fmt.Sprint(c))
	}
}

func isBlankRow(row []any) bool {
	for _, v := range row {
		if cellText(v) != "" {
			return false
		}
	}
	return true
}

func joinCells(row []any) string {
	parts := make([]string, 0, len(row))
	for _, v := range row {
		parts = append(parts, cellText(v))
	}
	return strings.Join(parts, " | ")
}

// parseStock accepts whole numbers, including "12.0" as written by
// spreadsheet tools.
func parseStock(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) || d.IsNegative() {
		return 0, false
	}
	return int(d.IntPart()), true
}
