// Package metrics exposes Prometheus collectors for catalog imports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "redmil"

// ImportMetrics counts what happens to price-list rows on their way into
// the catalog.
type ImportMetrics struct {
	RecordsExtracted *prometheus.CounterVec
	RowsRejected     *prometheus.CounterVec
	Upserts          *prometheus.CounterVec
	PriceChanges     prometheus.Counter
	ImportDuration   *prometheus.HistogramVec
	ExchangeRate     prometheus.Gauge
}

// NewImportMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		RecordsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "records_extracted_total",
			Help:      "Canonical records extracted, by source format.",
		}, []string{"format"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_rejected_total",
			Help:      "Source rows that produced no record, by reason.",
		}, []string{"reason"}),
		Upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "upserts_total",
			Help:      "Catalog upserts, by outcome.",
		}, []string{"outcome"}),
		PriceChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "price_changes_total",
			Help:      "Price history entries written.",
		}),
		ImportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "duration_seconds",
			Help:      "Wall time of an import, by source format.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"format"}),
		ExchangeRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "forex",
			Name:      "rate",
			Help:      "Exchange rate used by the most recent import.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RecordsExtracted,
			m.RowsRejected,
			m.Upserts,
			m.PriceChanges,
			m.ImportDuration,
			m.ExchangeRate,
		)
	}
	return m
}

// ObserveExtraction records an ingest outcome.
func (m *ImportMetrics) ObserveExtraction(format string, records int, rejected map[string]int) {
	if m == nil {
		return
	}
	m.RecordsExtracted.WithLabelValues(format).Add(float64(records))
	for reason, n := range rejected {
		m.RowsRejected.WithLabelValues(reason).Add(float64(n))
	}
}

// ObserveBatch records the outcome counts of an applied batch.
func (m *ImportMetrics) ObserveBatch(inserted, updated, failed, priceChanges int) {
	if m == nil {
		return
	}
	m.Upserts.WithLabelValues("inserted").Add(float64(inserted))
	m.Upserts.WithLabelValues("updated").Add(float64(updated))
	m.Upserts.WithLabelValues("failed").Add(float64(failed))
	m.PriceChanges.Add(float64(priceChanges))
}
