package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewImportMetrics(reg)

	m.ObserveExtraction("pdf", 12, map[string]int{"noise": 3, "header": 1})
	m.ObserveExtraction("pdf", 2, nil)
	m.ObserveBatch(10, 3, 1, 2)

	assert.InDelta(t, 14, testutil.ToFloat64(m.RecordsExtracted.WithLabelValues("pdf")), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(m.RowsRejected.WithLabelValues("noise")), 1e-9)
	assert.InDelta(t, 10, testutil.ToFloat64(m.Upserts.WithLabelValues("inserted")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Upserts.WithLabelValues("failed")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.PriceChanges), 1e-9)

	n, err := testutil.GatherAndCount(reg, "redmil_import_rows_rejected_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImportMetrics_NilIsSafe(t *testing.T) {
	var m *ImportMetrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction("csv", 1, nil)
		m.ObserveBatch(1, 0, 0, 0)
	})
}

func TestNewImportMetrics_Unregistered(t *testing.T) {
	m := NewImportMetrics(nil)
	m.ExchangeRate.Set(24.75)
	assert.InDelta(t, 24.75, testutil.ToFloat64(m.ExchangeRate), 1e-9)
}
