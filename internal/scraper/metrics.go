package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraping pipeline.
type Metrics struct {
	Registry          *prometheus.Registry
	FetchesTotal      *prometheus.CounterVec
	FetchFailures     *prometheus.CounterVec
	CardsExtracted    *prometheus.CounterVec
	RecordsRejected   *prometheus.CounterVec
	RecordsReconciled prometheus.Counter
	ReconcileFailures prometheus.Counter
	RunDuration       prometheus.Histogram
	RunsSkipped       prometheus.Counter
}

// NewMetrics constructs and registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetches_total",
			Help: "Category page fetch attempts.",
		},
		[]string{"category"},
	)
	fetchFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_failures_total",
			Help: "Category page fetch failures by reason.",
		},
		[]string{"category", "reason"},
	)
	cardsExtracted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_cards_extracted_total",
			Help: "Product cards extracted from category pages.",
		},
		[]string{"category"},
	)
	recordsRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_records_rejected_total",
			Help: "Scraped cards rejected by the normalizer.",
		},
		[]string{"category"},
	)
	recordsReconciled := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_records_reconciled_total",
			Help: "Normalized records merged into the catalog.",
		},
	)
	reconcileFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_reconcile_failures_total",
			Help: "Records that failed to persist.",
		},
	)
	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Wall time of one full pipeline run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
	runsSkipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_runs_skipped_total",
			Help: "Scheduled runs skipped because the previous run was still going.",
		},
	)

	registry.MustRegister(fetches, fetchFailures, cardsExtracted, recordsRejected,
		recordsReconciled, reconcileFailures, runDuration, runsSkipped)

	return &Metrics{
		Registry:          registry,
		FetchesTotal:      fetches,
		FetchFailures:     fetchFailures,
		CardsExtracted:    cardsExtracted,
		RecordsRejected:   recordsRejected,
		RecordsReconciled: recordsReconciled,
		ReconcileFailures: reconcileFailures,
		RunDuration:       runDuration,
		RunsSkipped:       runsSkipped,
	}
}

// IncFetch counts one category fetch attempt.
func (m *Metrics) IncFetch(category string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(category).Inc()
}

// IncFetchFailure counts a category fetch failure by reason.
func (m *Metrics) IncFetchFailure(category string, reason FailureReason) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(category, string(reason)).Inc()
}

// AddExtracted counts cards pulled from one category page.
func (m *Metrics) AddExtracted(category string, n int) {
	if m == nil {
		return
	}
	m.CardsExtracted.WithLabelValues(category).Add(float64(n))
}

// AddRejected counts normalizer rejections for a category.
func (m *Metrics) AddRejected(category string, n int) {
	if m == nil {
		return
	}
	m.RecordsRejected.WithLabelValues(category).Add(float64(n))
}

// AddReconcileResults counts persisted and failed records of one batch.
func (m *Metrics) AddReconcileResults(succeeded, failed int) {
	if m == nil {
		return
	}
	m.RecordsReconciled.Add(float64(succeeded))
	m.ReconcileFailures.Add(float64(failed))
}

// ObserveRun records the duration of one full run.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

// IncSkipped counts a scheduled run skipped by the overlap guard.
func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.RunsSkipped.Inc()
}
