package forex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateFetcher fetches a rate from an external feed.
type RateFetcher interface {
	FetchRate(ctx context.Context) (decimal.Decimal, time.Time, error)
}

// Service is the rate collaborator used by imports. It never blocks an
// import on the feed: CurrentRate only reads persisted state.
type Service struct {
	store    RateStore
	fetcher  RateFetcher
	fallback decimal.Decimal
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates the rate service. A non-positive fallback uses
// DefaultFallbackRate. fetcher may be nil when no feed is configured.
func NewService(store RateStore, fetcher RateFetcher, fallback decimal.Decimal, logger *slog.Logger) *Service {
	if !fallback.IsPositive() {
		fallback = DefaultFallbackRate
	}
	return &Service{
		store:    store,
		fetcher:  fetcher,
		fallback: fallback,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CurrentRate returns the latest persisted rate, or the fallback when the
// store is empty or unreachable.
func (s *Service) CurrentRate(ctx context.Context) (*Rate, error) {
	latest, err := s.store.LatestRate(ctx)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, ErrRateUnavailable) {
		s.logger.Warn("failed to read exchange rate, using fallback",
			slog.Any("error", err),
			slog.String("fallback", s.fallback.String()))
	}
	return &Rate{Value: s.fallback, Date: s.now(), Source: SourceFallback}, nil
}

// Refresh fetches the feed and persists the result.
func (s *Service) Refresh(ctx context.Context) (*Rate, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no rate feed configured", ErrRateUnavailable)
	}

	value, date, err := s.fetcher.FetchRate(ctx)
	if err != nil {
		s.logger.Warn("exchange rate refresh failed", slog.Any("error", err))
		return nil, err
	}

	r := Rate{ID: uuid.New(), Value: value, Date: date, Source: SourceAPI}
	if err := s.store.SaveRate(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save exchange rate: %w", err)
	}

	s.logger.Info("exchange rate refreshed",
		slog.String("rate", value.String()),
		slog.String("rate_date", date.Format(time.DateOnly)))
	return &r, nil
}

// SetManualRate records an administrator-supplied rate.
func (s *Service) SetManualRate(ctx context.Context, value decimal.Decimal) (*Rate, error) {
	if !value.IsPositive() {
		return nil, ErrInvalidRate
	}

	r := Rate{ID: uuid.New(), Value: value, Date: s.now(), Source: SourceManual}
	if err := s.store.SaveRate(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save exchange rate: %w", err)
	}

	s.logger.Info("exchange rate set manually", slog.String("rate", value.String()))
	return &r, nil
}

// History returns persisted rates, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]Rate, error) {
	return s.store.ListRates(ctx, limit)
}
