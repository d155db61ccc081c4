package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/repository"
	"github.com/emiliopc17/redmil-crm/internal/domain/catalog/search"
	catalogservice "github.com/emiliopc17/redmil-crm/internal/domain/catalog/service"
	"github.com/emiliopc17/redmil-crm/internal/domain/forex"
	"github.com/emiliopc17/redmil-crm/pkg/db"
	"github.com/emiliopc17/redmil-crm/pkg/metrics"
	"github.com/emiliopc17/redmil-crm/pkg/storage"
)

type staticRates struct {
	rate *forex.Rate
	err  error
}

func (s staticRates) CurrentRate(context.Context) (*forex.Rate, error) {
	return s.rate, s.err
}

type harness struct {
	svc     *ImportService
	store   *repository.SQLiteCatalogStore
	index   *search.Index
	archive *storage.LocalArchive
	metrics *metrics.ImportMetrics
}

func newHarness(t *testing.T, rates RateProvider) *harness {
	t.Helper()
	ctx := context.Background()

	sqlDB, err := db.OpenSQLite(ctx, db.MemoryPath, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	store := repository.NewSQLiteCatalogStore(sqlDB)

	idx, err := search.NewIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	archive, err := storage.NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	m := metrics.NewImportMetrics(prometheus.NewRegistry())
	converter := forex.NewCurrencyConverter("HNL")
	upserter := catalogservice.NewUpserter(store, converter, discardLogger())

	svc := NewImportService(newTestIngester(nil), rates, upserter, converter, discardLogger()).
		WithArchive(archive).
		WithMetrics(m).
		WithSearchIndex(idx, store).
		WithChangedBy("Importador Nocturno")

	return &harness{svc: svc, store: store, index: idx, archive: archive, metrics: m}
}

func rateOf(v string) staticRates {
	return staticRates{rate: &forex.Rate{Value: decimal.RequireFromString(v), Date: time.Now(), Source: forex.SourceAPI}}
}

func TestImport_EndToEnd(t *testing.T) {
	h := newHarness(t, rateOf("25.00"))
	ctx := context.Background()
	data := workbook(t, [][]any{
		{"Código", "Descripcion", "Precio", "Marca"},
		{"ABC-1", "Mouse USB", "350.00", "Logitech"},
		{"ABC-2", "Teclado", "12.50", ""},
		{"", "Sin codigo", "1.00", ""},
	})

	res, err := h.svc.Import(ctx, data, "lista.xlsx", ImportOptions{})
	require.NoError(t, err)

	require.NotNil(t, res.Batch)
	assert.Equal(t, 2, res.Batch.Applied)
	assert.Equal(t, 2, res.Batch.Inserted)
	assert.Zero(t, res.Batch.Failed)
	assert.Equal(t, "25", res.Rate.Value.String())

	e, err := h.store.GetByCode(ctx, "ABC-1")
	require.NoError(t, err)
	assert.Equal(t, "Logitech", e.Brand)
	assert.Equal(t, "General", e.Category)
	assert.Equal(t, "8750.00", e.CostLocal.StringFixed(2))

	require.NotNil(t, res.Archived)
	info, err := h.archive.Info(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "lista.xlsx", info.Name)
	assert.Equal(t, int64(len(data)), info.Size)

	hits, err := h.index.Search("mouse", "", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ABC-1", hits[0].ProductCode)

	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.RecordsExtracted.WithLabelValues("xlsx")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.RowsRejected.WithLabelValues("missing_code")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.Upserts.WithLabelValues("inserted")), 1e-9)
	assert.InDelta(t, 25, testutil.ToFloat64(h.metrics.ExchangeRate), 1e-9)
}

func TestImport_PriceChangeUsesDefaultChangedBy(t *testing.T) {
	h := newHarness(t, rateOf("25.00"))
	ctx := context.Background()

	first := workbook(t, [][]any{{"Codigo", "Descripcion", "Precio"}, {"ABC-1", "Mouse USB", "350.00"}})
	second := workbook(t, [][]any{{"Codigo", "Descripcion", "Precio"}, {"ABC-1", "Mouse USB", "360.00"}})

	_, err := h.svc.Import(ctx, first, "a.xlsx", ImportOptions{})
	require.NoError(t, err)
	res, err := h.svc.Import(ctx, second, "b.xlsx", ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Batch.PriceChanges)

	e, err := h.store.GetByCode(ctx, "ABC-1")
	require.NoError(t, err)
	history, err := h.store.ListHistory(ctx, e.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Importador Nocturno", history[0].ChangedBy)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.PriceChanges), 1e-9)
}

func TestImport_BrandOverrideAndChangedBy(t *testing.T) {
	h := newHarness(t, rateOf("25.00"))
	ctx := context.Background()
	data := workbook(t, [][]any{{"Codigo", "Descripcion", "Precio", "Marca"}, {"T-85A", "Toner 85A", "45.00", "Generico"}})

	_, err := h.svc.Import(ctx, data, "hp.xlsx", ImportOptions{BrandOverride: "HP", ChangedBy: "ana"})
	require.NoError(t, err)

	e, err := h.store.GetByCode(ctx, "T-85A")
	require.NoError(t, err)
	assert.Equal(t, "HP", e.Brand)

	brands, err := h.store.ListBrands(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HP"}, brands)
}

func TestImport_DryRun(t *testing.T) {
	h := newHarness(t, rateOf("24.7512"))
	ctx := context.Background()
	data := workbook(t, [][]any{{"Codigo", "Descripcion", "Precio"}, {"ABC-1", "Mouse USB", "350.00"}})

	res, err := h.svc.Import(ctx, data, "lista.xlsx", ImportOptions{DryRun: true})
	require.NoError(t, err)

	assert.Nil(t, res.Batch)
	assert.Nil(t, res.Archived)
	require.Len(t, res.Preview, 1)
	assert.Equal(t, "8662.92", res.Preview[0].CostLocal.StringFixed(2))
	require.NotNil(t, res.Workbook)
	assert.Equal(t, []string{"Codigo", "Descripcion", "Precio"}, res.Workbook.Headers)
	assert.Equal(t, 1, res.Workbook.RowCount)
	assert.Equal(t, [][]string{{"ABC-1", "Mouse USB", "350.00"}}, res.Workbook.SampleRows)

	_, err = h.store.GetByCode(ctx, "ABC-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	files, err := h.archive.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestImport_Progress(t *testing.T) {
	h := newHarness(t, rateOf("25.00"))
	data := workbook(t, [][]any{
		{"Codigo", "Descripcion", "Precio"},
		{"A", "Uno", "1.00"},
		{"B", "Dos", "2.00"},
		{"C", "Tres", "3.00"},
	})

	res, err := h.svc.Import(context.Background(), data, "lista.xlsx", ImportOptions{
		Progress: func(done, _ int) bool { return done < 1 },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Batch.Applied)
	assert.True(t, res.Batch.Stopped)
}

func TestImport_Failures(t *testing.T) {
	good := workbook(t, [][]any{{"Codigo", "Descripcion", "Precio"}, {"A", "Uno", "1.00"}})

	tests := []struct {
		name     string
		rates    staticRates
		data     []byte
		filename string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "rate unavailable",
			rates:    staticRates{err: forex.ErrRateUnavailable},
			data:     good,
			filename: "lista.xlsx",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, forex.ErrRateUnavailable)
				assert.False(t, IsInputError(err))
			},
		},
		{
			name:     "zero rate",
			rates:    rateOf("0"),
			data:     good,
			filename: "lista.xlsx",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, forex.ErrInvalidRate)
			},
		},
		{
			name:     "unsupported upload",
			rates:    rateOf("25"),
			data:     []byte("hola"),
			filename: "notas.doc",
			check: func(t *testing.T, err error) {
				assert.True(t, IsInputError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.rates)
			_, err := h.svc.Import(context.Background(), tt.data, tt.filename, ImportOptions{})
			require.Error(t, err)
			tt.check(t, err)

			_, err = h.store.GetByCode(context.Background(), "A")
			assert.True(t, errors.Is(err, repository.ErrNotFound))
		})
	}
}
