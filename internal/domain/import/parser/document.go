package parser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/normalizer"
)

// MinDescriptionLength is the shortest description, in characters, a
// document row may carry.
const MinDescriptionLength = 2

// PriceMatcher recognizes a document token as a price. Text is the token
// after currency signs and thousands separators are stripped.
type PriceMatcher struct {
	Name  string
	Match func(text string) bool
}

var decimalPricePattern = regexp.MustCompile(`^\d+\.\d+$`)

// DecimalPriceMatcher accepts digits, a decimal point and digits. Bare
// integers such as model numbers ("15") never qualify.
var DecimalPriceMatcher = PriceMatcher{
	Name:  "decimal",
	Match: decimalPricePattern.MatchString,
}

// DefaultPriceMatchers are evaluated in order for each candidate token.
var DefaultPriceMatchers = []PriceMatcher{DecimalPriceMatcher}

// FieldExtractor pulls code, description and price from a data row laid
// out left to right as "code, description..., price, ignored...".
type FieldExtractor struct {
	matchers []PriceMatcher
}

// NewFieldExtractor creates an extractor. With no matchers it uses
// DefaultPriceMatchers.
func NewFieldExtractor(matchers ...PriceMatcher) *FieldExtractor {
	if len(matchers) == 0 {
		matchers = DefaultPriceMatchers
	}
	return &FieldExtractor{matchers: matchers}
}

// PriceIndex returns the index of the first token, scanning from index 1,
// that any matcher accepts, or -1.
func (e *FieldExtractor) PriceIndex(tokens []PositionedToken) int {
	for i := 1; i < len(tokens); i++ {
		text := normalizer.StripPriceDecorations(tokens[i].Text)
		for _, m := range e.matchers {
			if m.Match(text) {
				return i
			}
		}
	}
	return -1
}

// Extract converts a row to a record. When the row cannot yield a record
// the returned reason explains why and ok is false.
func (e *FieldExtractor) Extract(row Row) (rec catalog.Record, reason RejectReason, ok bool) {
	if len(row.Tokens) == 0 {
		return catalog.Record{}, ReasonTooFewTokens, false
	}

	code := strings.TrimSpace(row.Tokens[0].Text)
	if code == "" {
		return catalog.Record{}, ReasonMissingCode, false
	}

	priceIdx := e.PriceIndex(row.Tokens)
	switch {
	case priceIdx < 0:
		return catalog.Record{}, ReasonNoPrice, false
	case priceIdx == 1:
		return catalog.Record{}, ReasonNoDescription, false
	}

	words := make([]string, 0, priceIdx-1)
	for _, tok := range row.Tokens[1:priceIdx] {
		words = append(words, tok.Text)
	}
	description := strings.Join(words, " ")
	if utf8.RuneCountInString(strings.TrimSpace(description)) < MinDescriptionLength {
		return catalog.Record{}, ReasonShortDescription, false
	}

	price := normalizer.NormalizePrice(row.Tokens[priceIdx].Text)
	return catalog.NewRecord(code, description, catalog.DefaultBrand, price), "", true
}

// DocumentParser runs the document path: layout extraction, row grouping,
// noise filtering and field extraction.
type DocumentParser struct {
	layout     LayoutExtractor
	grouper    *RowGrouper
	classifier *RowClassifier
	extractor  *FieldExtractor
	logger     *slog.Logger
}

// DocumentParserOption configures a DocumentParser.
type DocumentParserOption func(*DocumentParser)

// WithRowGrouper replaces the default row grouper.
func WithRowGrouper(g *RowGrouper) DocumentParserOption {
	return func(p *DocumentParser) { p.grouper = g }
}

// WithRowClassifier replaces the default noise classifier.
func WithRowClassifier(c *RowClassifier) DocumentParserOption {
	return func(p *DocumentParser) { p.classifier = c }
}

// WithFieldExtractor replaces the default field extractor.
func WithFieldExtractor(e *FieldExtractor) DocumentParserOption {
	return func(p *DocumentParser) { p.extractor = e }
}

// NewDocumentParser creates a document parser on top of a layout extractor.
func NewDocumentParser(layout LayoutExtractor, logger *slog.Logger, opts ...DocumentParserOption) *DocumentParser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &DocumentParser{
		layout:     layout,
		grouper:    NewRowGrouper(DefaultRowTolerance, false),
		classifier: NewRowClassifier(),
		extractor:  NewFieldExtractor(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts records from document bytes.
func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*DocumentResult, error) {
	if p.layout == nil {
		return nil, fmt.Errorf("%w: no layout extractor configured", ErrUnsupportedFormat)
	}
	tokens, err := p.layout.ExtractWords(ctx, data)
	if err != nil {
		return nil, err
	}
	return p.ParseTokens(ctx, tokens)
}

// ParseTokens extracts records from already positioned tokens.
func (p *DocumentParser) ParseTokens(ctx context.Context, tokens []PositionedToken) (*DocumentResult, error) {
	rows, rejections, err := p.grouper.Group(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to group rows: %w", err)
	}

	result := &DocumentResult{
		Records:    make([]catalog.Record, 0, len(rows)),
		Rejections: rejections,
		Rows:       len(rows) + len(rejections),
		Pages:      countPages(tokens),
	}

	for _, row := range rows {
		if p.classifier.IsNoise(row) {
			result.Rejections = append(result.Rejections, RowRejection{
				Page: row.Page, Row: row.Index, Reason: ReasonHeaderFooter, Text: row.Text(),
			})
			continue
		}
		rec, reason, ok := p.extractor.Extract(row)
		if !ok {
			result.Rejections = append(result.Rejections, RowRejection{
				Page: row.Page, Row: row.Index, Reason: reason, Text: row.Text(),
			})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	for _, rej := range result.Rejections {
		p.logger.Debug("document row rejected",
			"page", rej.Page, "row", rej.Row, "reason", rej.Reason, "text", rej.Text)
	}
	p.logger.Info("document parsed",
		"pages", result.Pages,
		"rows", result.Rows,
		"records", len(result.Records),
		"rejected", len(result.Rejections))

	return result, nil
}

func countPages(tokens []PositionedToken) int {
	pages := make(map[int]struct{})
	for _, t := range tokens {
		pages[t.Page] = struct{}{}
	}
	return len(pages)
}
