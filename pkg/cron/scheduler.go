// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RateRefresher fetches and stores the current exchange rate.
type RateRefresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	refresher RateRefresher
	timeout   time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a scheduler that refreshes the exchange rate on
// spec, a standard 5-field cron expression.
func NewScheduler(spec string, refresher RateRefresher, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		spec:      spec,
		refresher: refresher,
		timeout:   time.Minute,
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.refreshRate); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("rate_refresh", s.spec),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers a rate refresh outside the schedule.
func (s *Scheduler) RunNow() {
	go s.refreshRate()
}

func (s *Scheduler) refreshRate() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Warn("scheduled rate refresh failed", slog.Any("error", err))
		return
	}
	s.logger.Info("scheduled rate refresh completed", slog.Duration("took", time.Since(start)))
}
