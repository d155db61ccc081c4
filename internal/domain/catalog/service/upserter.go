// Package service merges canonical records into the catalog and manages
// the brand registry.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/repository"
	"github.com/emiliopc17/redmil-crm/internal/domain/forex"
)

// DefaultChangedBy is recorded on price history written by imports.
const DefaultChangedBy = "Importador"

// PriceEpsilon is the smallest cost difference treated as a price change.
var PriceEpsilon = decimal.RequireFromString("0.001")

// ErrInvalidRecord rejects records that cannot be merged.
var ErrInvalidRecord = errors.New("invalid record")

// UpsertError reports why one record could not be merged.
type UpsertError struct {
	ProductCode string
	Err         error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert %q: %v", e.ProductCode, e.Err)
}

func (e *UpsertError) Unwrap() error {
	return e.Err
}

// Outcome describes what happened to one record.
type Outcome string

const (
	OutcomeInserted     Outcome = "inserted"
	OutcomeUpdated      Outcome = "updated"
	OutcomePriceChanged Outcome = "price_changed"
	OutcomeFailed       Outcome = "failed"
)

// ApplyOptions control a batch.
type ApplyOptions struct {
	// BrandOverride, when set, replaces every record's brand.
	BrandOverride string
	// ChangedBy is recorded on history entries; DefaultChangedBy when empty.
	ChangedBy string
	// Progress is called after each record with the number processed so
	// far. Returning false stops the batch after the current record.
	Progress func(done, total int) bool
}

// Failure pairs a record with the reason it was not applied.
type Failure struct {
	Record catalog.Record `json:"record"`
	Reason string         `json:"reason"`
}

// BatchResult summarizes a batch. Applied and Failed always add up to the
// number of records processed.
type BatchResult struct {
	Applied      int       `json:"applied"`
	Failed       int       `json:"failed"`
	Failures     []Failure `json:"failures,omitempty"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	PriceChanges int       `json:"price_changes"`
	Stopped      bool      `json:"stopped,omitempty"`
}

// Upserter merges records into the catalog one transaction per record.
// A failed record never rolls back records already applied.
type Upserter struct {
	store     repository.CatalogStore
	converter forex.CurrencyConverter
	logger    *slog.Logger
}

// NewUpserter creates an upserter.
func NewUpserter(store repository.CatalogStore, converter forex.CurrencyConverter, logger *slog.Logger) *Upserter {
	return &Upserter{store: store, converter: converter, logger: logger}
}

// ApplyBatch converts records at rate and merges them in order. The only
// error returned is for an unusable rate; per-record problems are reported
// in the result.
func (u *Upserter) ApplyBatch(ctx context.Context, records []catalog.Record, rate decimal.Decimal, opts ApplyOptions) (*BatchResult, error) {
	if !rate.IsPositive() {
		return nil, forex.ErrInvalidRate
	}

	changedBy := strings.TrimSpace(opts.ChangedBy)
	if changedBy == "" {
		changedBy = DefaultChangedBy
	}
	override := strings.TrimSpace(opts.BrandOverride)

	if override != "" {
		overridden := make([]catalog.Record, len(records))
		for i, rec := range records {
			overridden[i] = rec.WithBrand(override)
		}
		records = overridden
	}

	priced := u.converter.Convert(records, rate)
	result := &BatchResult{}

	for i, rec := range priced {
		if err := ctx.Err(); err != nil {
			result.Stopped = true
			break
		}

		outcome, err := u.Upsert(ctx, rec, changedBy)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, Failure{Record: rec.Record, Reason: err.Error()})
			u.logger.Warn("failed to upsert record",
				slog.String("product_code", rec.ProductCode),
				slog.Any("error", err))
		} else {
			result.Applied++
			switch outcome {
			case OutcomeInserted:
				result.Inserted++
			case OutcomePriceChanged:
				result.PriceChanges++
				result.Updated++
			default:
				result.Updated++
			}
		}

		if opts.Progress != nil && !opts.Progress(i+1, len(priced)) {
			result.Stopped = i+1 < len(priced)
			break
		}
	}

	u.logger.Info("batch applied",
		slog.Int("records", len(records)),
		slog.Int("applied", result.Applied),
		slog.Int("failed", result.Failed),
		slog.Int("inserted", result.Inserted),
		slog.Int("price_changes", result.PriceChanges),
		slog.Bool("stopped", result.Stopped))

	return result, nil
}

// Upsert merges one priced record in its own transaction. The history
// entry and the entry update commit together or not at all.
func (u *Upserter) Upsert(ctx context.Context, rec catalog.PricedRecord, changedBy string) (Outcome, error) {
	if err := validate(rec.Record); err != nil {
		return OutcomeFailed, &UpsertError{ProductCode: rec.ProductCode, Err: err}
	}

	outcome := OutcomeFailed
	err := u.store.WithinTx(ctx, func(tx repository.Tx) error {
		if rec.Brand != nil && strings.TrimSpace(*rec.Brand) != "" {
			if err := tx.RegisterBrand(ctx, strings.TrimSpace(*rec.Brand)); err != nil {
				return err
			}
		}

		existing, err := tx.Lookup(ctx, rec.ProductCode)
		if errors.Is(err, repository.ErrNotFound) {
			if _, err := tx.Insert(ctx, rec.Record, rec.CostLocal); err != nil {
				return err
			}
			if rec.Brand == nil || strings.TrimSpace(*rec.Brand) == "" {
				if err := tx.RegisterBrand(ctx, catalog.DefaultBrand); err != nil {
					return err
				}
			}
			outcome = OutcomeInserted
			return nil
		}
		if err != nil {
			return err
		}

		outcome = OutcomeUpdated
		if PriceChanged(existing.CostUSD, rec.CostUSD) {
			if err := tx.AppendHistory(ctx, catalog.PriceHistoryEntry{
				ProductID:  existing.ID,
				OldCostUSD: existing.CostUSD,
				NewCostUSD: rec.CostUSD,
				ChangedBy:  changedBy,
			}); err != nil {
				return err
			}
			outcome = OutcomePriceChanged
		}

		return tx.Update(ctx, existing.ID, catalog.EntryUpdate{
			Description:   rec.Description,
			CostUSD:       rec.CostUSD,
			CostLocal:     rec.CostLocal,
			Brand:         nonBlank(rec.Brand),
			Category:      nonBlank(rec.Category),
			StockQuantity: rec.StockQuantity,
		})
	})
	if err != nil {
		return OutcomeFailed, &UpsertError{ProductCode: rec.ProductCode, Err: err}
	}
	return outcome, nil
}

// PriceChanged reports whether two costs differ by more than PriceEpsilon.
func PriceChanged(old, incoming decimal.Decimal) bool {
	return old.Sub(incoming).Abs().GreaterThan(PriceEpsilon)
}

func validate(rec catalog.Record) error {
	if strings.TrimSpace(rec.ProductCode) == "" {
		return fmt.Errorf("%w: empty product code", ErrInvalidRecord)
	}
	if rec.CostUSD.IsNegative() {
		return fmt.Errorf("%w: negative cost %s", ErrInvalidRecord, rec.CostUSD)
	}
	return nil
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
