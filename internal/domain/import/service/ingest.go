// Package service provides the import orchestration logic: format
// dispatch, extraction, conversion and the catalog merge.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/normalizer"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/parser"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/sniffer"
)

// IngestResult is the outcome of extracting records from one file.
type IngestResult struct {
	Format      sniffer.Format           `json:"format"`
	Records     []catalog.Record         `json:"records"`
	Rejections  []parser.RowRejection    `json:"rejections,omitempty"`
	Pages       int                      `json:"pages,omitempty"`
	Rows        int                      `json:"rows"`
	Sheet       string                   `json:"sheet,omitempty"`
	Bindings    map[catalog.Field]string `json:"bindings,omitempty"`
	Fingerprint string                   `json:"fingerprint,omitempty"`
}

// RejectedByReason aggregates rejections for logs and metrics.
func (r *IngestResult) RejectedByReason() map[string]int {
	out := make(map[string]int)
	for reason, n := range parser.CountByReason(r.Rejections) {
		out[string(reason)] = n
	}
	return out
}

// IngestConfig tunes the extraction paths. Zero values select defaults.
type IngestConfig struct {
	RowTolerance  float64
	ParallelPages bool
	NoiseKeywords []string
	Synonyms      []parser.ColumnSynonyms
}

// Ingester routes a file to the document or spreadsheet path.
type Ingester struct {
	document  *parser.DocumentParser
	xlsx      *parser.SpreadsheetParser
	csv       *parser.SpreadsheetParser
	sanitizer *normalizer.BrandSanitizer
	logger    *slog.Logger
}

// NewIngester creates an ingester over a layout extractor for documents.
func NewIngester(layout parser.LayoutExtractor, cfg IngestConfig, logger *slog.Logger) *Ingester {
	classifier := parser.NewRowClassifier()
	if len(cfg.NoiseKeywords) > 0 {
		classifier.AddKeywords(cfg.NoiseKeywords...)
	}
	mapper := parser.NewColumnMapper(cfg.Synonyms...)

	return &Ingester{
		document: parser.NewDocumentParser(layout, logger,
			parser.WithRowGrouper(parser.NewRowGrouper(cfg.RowTolerance, cfg.ParallelPages)),
			parser.WithRowClassifier(classifier),
		),
		xlsx:   parser.NewSpreadsheetParser(parser.NewExcelReader(), mapper, logger),
		csv:    parser.NewSpreadsheetParser(parser.NewCSVReader(0), mapper, logger),
		logger: logger,
	}
}

// WithBrandSanitizer canonicalizes extracted brand names.
func (i *Ingester) WithBrandSanitizer(s *normalizer.BrandSanitizer) *Ingester {
	i.sanitizer = s
	return i
}

// Ingest detects the format of data and extracts its records.
func (i *Ingester) Ingest(ctx context.Context, data []byte, filename string) (*IngestResult, error) {
	det, err := sniffer.Detect(data, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", parser.ErrUnreadableInput, err)
	}

	i.logger.Debug("file format detected",
		slog.String("filename", filename),
		slog.String("format", string(det.Format)),
		slog.String("mime", det.MIME),
		slog.Bool("by_name", det.ByName))

	switch {
	case det.Format == sniffer.FormatPDF:
		return i.IngestDocument(ctx, data)
	case det.Format.IsSpreadsheet():
		return i.IngestSpreadsheet(ctx, data, det.Format)
	default:
		return nil, fmt.Errorf("%w: %s (%s)", parser.ErrUnsupportedFormat, filename, det.MIME)
	}
}

// IngestDocument runs the document path. Row problems never fail the file.
func (i *Ingester) IngestDocument(ctx context.Context, data []byte) (*IngestResult, error) {
	res, err := i.document.Parse(ctx, data)
	if err != nil {
		return nil, err
	}
	return &IngestResult{
		Format:     sniffer.FormatPDF,
		Records:    i.sanitize(res.Records),
		Rejections: res.Rejections,
		Pages:      res.Pages,
		Rows:       res.Rows,
	}, nil
}

// IngestSpreadsheet runs the spreadsheet path for an XLSX or CSV file. A
// missing required column fails the file with *parser.SchemaUnresolvedError.
func (i *Ingester) IngestSpreadsheet(ctx context.Context, data []byte, format sniffer.Format) (*IngestResult, error) {
	var p *parser.SpreadsheetParser
	switch format {
	case sniffer.FormatXLSX:
		p = i.xlsx
	case sniffer.FormatCSV:
		p = i.csv
	default:
		return nil, fmt.Errorf("%w: %q is not a spreadsheet", parser.ErrUnsupportedFormat, format)
	}

	res, err := p.Parse(ctx, data)
	if err != nil {
		return nil, err
	}

	return &IngestResult{
		Format:      format,
		Records:     i.sanitize(res.Records),
		Rejections:  res.Rejections,
		Rows:        res.TotalRows,
		Sheet:       res.Sheet,
		Bindings:    res.Bindings,
		Fingerprint: bindingFingerprint(res.Bindings),
	}, nil
}

func (i *Ingester) sanitize(records []catalog.Record) []catalog.Record {
	if i.sanitizer == nil {
		return records
	}
	for idx := range records {
		rec := &records[idx]
		if rec.Brand == nil {
			continue
		}
		brand := i.sanitizer.Sanitize(*rec.Brand)
		if normalizer.IsUnknownBrand(brand) {
			brand = catalog.DefaultBrand
		}
		rec.Brand = &brand
	}
	return records
}

func bindingFingerprint(bindings map[catalog.Field]string) string {
	if len(bindings) == 0 {
		return ""
	}
	fields := make([]string, 0, len(bindings))
	for f := range bindings {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	headers := make([]string, len(fields))
	for idx, f := range fields {
		headers[idx] = bindings[catalog.Field(f)]
	}
	return sniffer.Fingerprint(headers)
}

// IsInputError reports whether err is a whole-file problem the uploader
// can fix: an unreadable file or a missing required column.
func IsInputError(err error) bool {
	var schema *parser.SchemaUnresolvedError
	return errors.Is(err, parser.ErrUnreadableInput) || errors.As(err, &schema)
}
