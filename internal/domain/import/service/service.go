package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/search"
	catalogservice "github.com/emiliopc17/redmil-crm/internal/domain/catalog/service"
	"github.com/emiliopc17/redmil-crm/internal/domain/forex"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/parser"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/sniffer"
	"github.com/emiliopc17/redmil-crm/pkg/metrics"
	"github.com/emiliopc17/redmil-crm/pkg/storage"
)

const tracerName = "github.com/emiliopc17/redmil-crm/internal/domain/import/service"

// RateProvider supplies the exchange rate applied to a batch.
type RateProvider interface {
	CurrentRate(ctx context.Context) (*forex.Rate, error)
}

// BatchApplier merges converted records into the catalog.
type BatchApplier interface {
	ApplyBatch(ctx context.Context, records []catalog.Record, rate decimal.Decimal, opts catalogservice.ApplyOptions) (*catalogservice.BatchResult, error)
}

// ImportOptions are per-upload choices.
type ImportOptions struct {
	// BrandOverride replaces the brand of every record when set.
	BrandOverride string
	// ChangedBy is recorded on price history; the service default when empty.
	ChangedBy string
	// DryRun extracts and converts without touching the catalog.
	DryRun bool
	// Progress is called after each record; returning false stops the
	// batch after the current record.
	Progress func(done, total int) bool
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	BatchID  uuid.UUID                   `json:"batch_id"`
	Filename string                      `json:"filename"`
	Ingest   *IngestResult               `json:"ingest"`
	Rate     *forex.Rate                 `json:"rate"`
	Batch    *catalogservice.BatchResult `json:"batch,omitempty"`
	Preview  []catalog.PricedRecord      `json:"preview,omitempty"`
	Workbook *parser.ExcelFormatInfo     `json:"workbook,omitempty"`
	Archived *storage.FileInfo           `json:"archived,omitempty"`
	Duration time.Duration               `json:"duration"`
}

// ImportService orchestrates extraction, conversion and the catalog merge.
type ImportService struct {
	ingester  *Ingester
	rates     RateProvider
	applier   BatchApplier
	converter forex.CurrencyConverter
	changedBy string
	logger    *slog.Logger

	archive storage.Archive        // optional
	metrics *metrics.ImportMetrics // optional
	index   *search.Index          // optional
	entries search.EntryGetter
	tracer  trace.Tracer
}

// NewImportService creates a new import service
func NewImportService(ingester *Ingester, rates RateProvider, applier BatchApplier, converter forex.CurrencyConverter, logger *slog.Logger) *ImportService {
	return &ImportService{
		ingester:  ingester,
		rates:     rates,
		applier:   applier,
		converter: converter,
		changedBy: catalogservice.DefaultChangedBy,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// WithArchive stores every uploaded file under its batch id.
func (s *ImportService) WithArchive(a storage.Archive) *ImportService {
	s.archive = a
	return s
}

// WithMetrics records extraction and upsert counters.
func (s *ImportService) WithMetrics(m *metrics.ImportMetrics) *ImportService {
	s.metrics = m
	return s
}

// WithSearchIndex keeps idx current with the products each batch touches.
func (s *ImportService) WithSearchIndex(idx *search.Index, entries search.EntryGetter) *ImportService {
	s.index = idx
	s.entries = entries
	return s
}

// WithChangedBy sets the default author of price history entries.
func (s *ImportService) WithChangedBy(name string) *ImportService {
	if name = strings.TrimSpace(name); name != "" {
		s.changedBy = name
	}
	return s
}

// Ingest extracts records without converting or persisting them.
func (s *ImportService) Ingest(ctx context.Context, data []byte, filename string) (*IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.ingest", trace.WithAttributes(
		attribute.String("import.filename", filename),
		attribute.Int("import.bytes", len(data)),
	))
	defer span.End()

	res, err := s.ingester.Ingest(ctx, data, filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("import.format", string(res.Format)),
		attribute.Int("import.records", len(res.Records)),
		attribute.Int("import.rejected", len(res.Rejections)),
	)
	s.metrics.ObserveExtraction(string(res.Format), len(res.Records), res.RejectedByReason())
	return res, nil
}

// Import ingests a file, prices it at the current rate and merges it into
// the catalog. Whole-file problems are returned as errors; record problems
// are reported in the batch result.
func (s *ImportService) Import(ctx context.Context, data []byte, filename string, opts ImportOptions) (*ImportResult, error) {
	start := time.Now()
	batchID := uuid.New()

	ctx, span := s.tracer.Start(ctx, "import.Import", trace.WithAttributes(
		attribute.String("import.batch_id", batchID.String()),
		attribute.Bool("import.dry_run", opts.DryRun),
	))
	defer span.End()

	logger := s.logger.With(slog.String("batch_id", batchID.String()), slog.String("filename", filename))
	result := &ImportResult{BatchID: batchID, Filename: filename}

	if s.archive != nil && !opts.DryRun {
		info, err := s.archive.Put(ctx, batchID, filename, "", bytes.NewReader(data))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "archive failed")
			return nil, fmt.Errorf("failed to archive upload: %w", err)
		}
		result.Archived = info
	}

	ingested, err := s.Ingest(ctx, data, filename)
	if err != nil {
		logger.Warn("file rejected", slog.Any("error", err))
		span.SetStatus(codes.Error, "ingest failed")
		return nil, err
	}
	result.Ingest = ingested

	rate, err := s.rates.CurrentRate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate unavailable")
		return nil, fmt.Errorf("failed to get exchange rate: %w", err)
	}
	result.Rate = rate
	if s.metrics != nil {
		s.metrics.ExchangeRate.Set(rate.Value.InexactFloat64())
	}

	if opts.DryRun {
		result.Preview = s.converter.Convert(ingested.Records, rate.Value)
		if ingested.Format == sniffer.FormatXLSX {
			info, err := parser.DetectExcelFormat(data)
			if err != nil {
				logger.Debug("failed to summarize workbook", slog.Any("error", err))
			}
			result.Workbook = info
		}
		result.Duration = time.Since(start)
		logger.Info("import previewed",
			slog.String("format", string(ingested.Format)),
			slog.Int("records", len(ingested.Records)),
			slog.Int("rejected", len(ingested.Rejections)))
		return result, nil
	}

	batch, err := s.apply(ctx, ingested.Records, rate.Value, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return nil, err
	}
	result.Batch = batch
	result.Duration = time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveBatch(batch.Inserted, batch.Updated, batch.Failed, batch.PriceChanges)
		s.metrics.ImportDuration.WithLabelValues(string(ingested.Format)).Observe(result.Duration.Seconds())
	}
	s.refreshIndex(ctx, logger, ingested.Records)

	logger.Info("import completed",
		slog.String("format", string(ingested.Format)),
		slog.String("rate", rate.Value.String()),
		slog.String("rate_source", rate.Source),
		slog.Int("records", len(ingested.Records)),
		slog.Int("rejected", len(ingested.Rejections)),
		slog.Int("applied", batch.Applied),
		slog.Int("failed", batch.Failed),
		slog.Duration("took", result.Duration))

	return result, nil
}

func (s *ImportService) apply(ctx context.Context, records []catalog.Record, rate decimal.Decimal, opts ImportOptions) (*catalogservice.BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.apply", trace.WithAttributes(
		attribute.Int("import.records", len(records)),
	))
	defer span.End()

	changedBy := strings.TrimSpace(opts.ChangedBy)
	if changedBy == "" {
		changedBy = s.changedBy
	}

	batch, err := s.applier.ApplyBatch(ctx, records, rate, catalogservice.ApplyOptions{
		BrandOverride: opts.BrandOverride,
		ChangedBy:     changedBy,
		Progress:      opts.Progress,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("import.applied", batch.Applied),
		attribute.Int("import.failed", batch.Failed),
	)
	return batch, nil
}

func (s *ImportService) refreshIndex(ctx context.Context, logger *slog.Logger, records []catalog.Record) {
	if s.index == nil || s.entries == nil {
		return
	}
	touched := make([]string, 0, len(records))
	for _, rec := range records {
		touched = append(touched, rec.ProductCode)
	}
	if err := s.index.Refresh(ctx, s.entries, touched...); err != nil {
		logger.Warn("failed to refresh search index", slog.Any("error", err))
	}
}
