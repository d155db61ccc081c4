// Package app wires the catalog, forex and import domains into the
// dependency graph shared by the API server and the CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	cataloghandler "github.com/emiliopc17/redmil-crm/internal/domain/catalog/handler"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/repository"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/search"
	catalogservice "github.com/emiliopc17/redmil-crm/internal/domain/catalog/service"
	"github.com/emiliopc17/redmil-crm/internal/domain/forex"
	rateshandler "github.com/emiliopc17/redmil-crm/internal/domain/forex/handler"
	importhandler "github.com/emiliopc17/redmil-crm/internal/domain/import/handler"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/normalizer"
	"github.com/emiliopc17/redmil-crm/internal/domain/import/parser"
	importservice "github.com/emiliopc17/redmil-crm/internal/domain/import/service"

	"github.com/emiliopc17/redmil-crm/pkg/config"
	"github.com/emiliopc17/redmil-crm/pkg/cron"
	"github.com/emiliopc17/redmil-crm/pkg/db"
	"github.com/emiliopc17/redmil-crm/pkg/metrics"
	"github.com/emiliopc17/redmil-crm/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	// Exactly one of these is set, depending on the configured driver.
	DB       *db.DB
	SQLiteDB *sql.DB

	// Repositories
	CatalogStore repository.CatalogStore
	RateStore    forex.RateStore

	// Services
	RateService   *forex.Service
	Converter     forex.CurrencyConverter
	Upserter      *catalogservice.Upserter
	Brands        *catalogservice.BrandRegistry
	SearchIndex   *search.Index
	Archive       *storage.LocalArchive
	Registry      *prometheus.Registry
	Metrics       *metrics.ImportMetrics
	Ingester      *importservice.Ingester
	ImportService *importservice.ImportService
	Scheduler     *cron.Scheduler

	// Handlers
	ImportHandler  *importhandler.ImportHandler
	CatalogHandler *cataloghandler.CatalogHandler
	RatesHandler   *rateshandler.RatesHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase opens the configured store and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	switch d.Config.Database.Driver {
	case config.DriverPostgres:
		database, err := db.New(db.Config{
			DSN:             d.Config.Database.DSN(),
			MaxConns:        25,
			MinConns:        5,
			MaxConnLifetime: 5 * time.Minute,
			MaxConnIdleTime: 10 * time.Minute,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.DB = database

		if err := d.DB.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, d.Config.Database.SQLitePath, d.Logger)
		if err != nil {
			return err
		}
		d.SQLiteDB = sqlDB
	default:
		return fmt.Errorf("unsupported database driver %q", d.Config.Database.Driver)
	}

	d.Logger.Info("database connected and migrations completed successfully",
		slog.String("driver", d.Config.Database.Driver))
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	switch {
	case d.DB != nil:
		d.CatalogStore = repository.NewPostgresCatalogStore(d.DB.Pool)
		d.RateStore = forex.NewPostgresRateStore(d.DB.Pool)
	case d.SQLiteDB != nil:
		d.CatalogStore = repository.NewSQLiteCatalogStore(d.SQLiteDB)
		d.RateStore = forex.NewSQLiteRateStore(d.SQLiteDB)
	default:
		return fmt.Errorf("no database initialized")
	}

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	fc := d.Config.Forex

	client := forex.NewClient(fc.BaseURL, fc.From, fc.To, fc.Timeout,
		forex.WithRateLimiter(rate.NewLimiter(rate.Every(time.Second), 1)))
	d.RateService = forex.NewService(d.RateStore, client, decimal.NewFromFloat(fc.FallbackRate), d.Logger)
	d.Converter = forex.NewCurrencyConverter(fc.To)

	d.Upserter = catalogservice.NewUpserter(d.CatalogStore, d.Converter, d.Logger)
	d.Brands = catalogservice.NewBrandRegistry(d.CatalogStore)

	index, err := search.NewIndex()
	if err != nil {
		return fmt.Errorf("failed to create search index: %w", err)
	}
	d.SearchIndex = index
	n, err := d.SearchIndex.Rebuild(ctx, d.CatalogStore)
	if err != nil {
		return fmt.Errorf("failed to build search index: %w", err)
	}
	d.Logger.Info("search index built", slog.Int("entries", n))

	archive, err := storage.NewLocalArchive(d.Config.Import.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to init upload archive: %w", err)
	}
	d.Archive = archive

	var reg prometheus.Registerer
	if d.Config.Observability.MetricsEnabled {
		d.Registry = prometheus.NewRegistry()
		d.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg = d.Registry
	}
	d.Metrics = metrics.NewImportMetrics(reg)

	d.Ingester = importservice.NewIngester(
		parser.NewPDFParser(d.Config.Import.PdftotextPath),
		importservice.IngestConfig{
			RowTolerance:  d.Config.Import.RowTolerance,
			ParallelPages: d.Config.Import.ParallelPages,
		},
		d.Logger,
	).WithBrandSanitizer(normalizer.NewBrandSanitizer())

	d.ImportService = importservice.NewImportService(d.Ingester, d.RateService, d.Upserter, d.Converter, d.Logger).
		WithArchive(d.Archive).
		WithMetrics(d.Metrics).
		WithSearchIndex(d.SearchIndex, d.CatalogStore).
		WithChangedBy(d.Config.Import.ChangedBy)

	if fc.RefreshSpec != "" {
		d.Scheduler = cron.NewScheduler(fc.RefreshSpec, rateRefresher{rates: d.RateService}, d.Logger)
	}

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Config.Server.MaxUploadBytes, d.Logger)
	d.CatalogHandler = cataloghandler.NewCatalogHandler(d.SearchIndex, d.CatalogStore, d.Brands, d.Logger)
	d.RatesHandler = rateshandler.NewRatesHandler(d.RateService, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Health pings the configured database.
func (d *Dependencies) Health(ctx context.Context) error {
	if d.DB != nil {
		return d.DB.Health(ctx)
	}
	if d.SQLiteDB != nil {
		return d.SQLiteDB.PingContext(ctx)
	}
	return fmt.Errorf("no database initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("failed to close search index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.SQLiteDB != nil {
		if err := d.SQLiteDB.Close(); err != nil {
			d.Logger.Warn("failed to close sqlite database", slog.Any("error", err))
		}
	}
	d.Logger.Info("cleanup completed")
}

// rateRefresher adapts the forex service to the cron job.
type rateRefresher struct {
	rates *forex.Service
}

func (r rateRefresher) Refresh(ctx context.Context) error {
	_, err := r.rates.Refresh(ctx)
	return err
}
