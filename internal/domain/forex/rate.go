// Package forex supplies the exchange rate used to price the catalog in the
// local currency: a Frankfurter client, persisted rate history with a
// fallback default, and the batch currency converter.
package forex

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrRateUnavailable means no rate could be fetched or none is stored.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	// ErrInvalidRate rejects zero or negative rates.
	ErrInvalidRate = errors.New("exchange rate must be positive")
)

// Rate sources recorded with each persisted rate.
const (
	SourceManual   = "Manual Update"
	SourceAPI      = "Frankfurter API"
	SourceFallback = "Default"
)

// DefaultFallbackRate is used when no rate has ever been stored.
var DefaultFallbackRate = decimal.RequireFromString("25.00")

// Rate is local-currency units per source-currency unit on a date.
type Rate struct {
	ID     uuid.UUID       `json:"id"`
	Value  decimal.Decimal `json:"rate_value"`
	Date   time.Time       `json:"rate_date"`
	Source string          `json:"source"`
}

// RateStore persists exchange rates.
type RateStore interface {
	// LatestRate returns the most recent rate or ErrRateUnavailable.
	LatestRate(ctx context.Context) (*Rate, error)
	SaveRate(ctx context.Context, rate Rate) error
	// ListRates returns rates newest first.
	ListRates(ctx context.Context, limit int) ([]Rate, error)
}

// DefaultHistoryLimit applies when ListRates is given no limit.
const DefaultHistoryLimit = 50

func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
