package worker

import (
	"context"
	"sync"
	"time"

	"github.com/localsaver/backend/internal/catalog"
	"github.com/localsaver/backend/internal/scraper"
	"github.com/localsaver/backend/logger"
	"github.com/localsaver/backend/pkg/errors"
	"github.com/localsaver/backend/services/publisher"
)

// Worker drives the scrape pipeline on a fixed interval: fetch every
// category, extract and normalize the cards, and reconcile the records
// into the catalog. One run is a single logical unit; its failure is
// logged and the next scheduled run proceeds independently.
type Worker struct {
	fetcher    scraper.Fetcher
	extractor  *scraper.Extractor
	normalizer *scraper.Normalizer
	reconciler *catalog.Reconciler
	publisher  publisher.Publisher
	metrics    *scraper.Metrics
	interval   time.Duration
	log        *logger.Logger

	// held for the duration of one run; TryLock makes an overlapping
	// scheduled trigger skip instead of queue
	runMu sync.Mutex
}

// NewWorker creates a worker. publisher and metrics may be nil.
func NewWorker(
	fetcher scraper.Fetcher,
	extractor *scraper.Extractor,
	normalizer *scraper.Normalizer,
	reconciler *catalog.Reconciler,
	pub publisher.Publisher,
	metrics *scraper.Metrics,
	interval time.Duration,
) *Worker {
	return &Worker{
		fetcher:    fetcher,
		extractor:  extractor,
		normalizer: normalizer,
		reconciler: reconciler,
		publisher:  pub,
		metrics:    metrics,
		interval:   interval,
		log:        logger.ForWorker(),
	}
}

// Start runs the pipeline immediately and then on every interval tick
// until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Starting scrape worker")

	w.runSafely(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Scrape worker stopped")
			return
		case <-ticker.C:
			w.runSafely(ctx)
		}
	}
}

// runSafely wraps one run with panic recovery so a run-level failure
// never takes down the host process.
func (w *Worker) runSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.NewRun("panic during pipeline run", nil)
			w.log.Error().Interface("panic", r).Err(err).Msg("Pipeline run panicked")
		}
	}()

	report, err := w.RunOnce(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Pipeline run failed")
		return
	}
	w.log.Info().
		Dur("duration", report.Duration).
		Int("categoriesOk", report.CategoriesOK).
		Int("categoriesFailed", report.CategoriesFailed).
		Int("extracted", report.Extracted).
		Int("rejected", report.Rejected).
		Int("reconciled", report.Reconciled).
		Int("failed", report.Failed).
		Msg("Pipeline run completed")
}

// RunOnce executes one full pipeline run across all categories. If a
// previous run is still in progress the run is skipped.
func (w *Worker) RunOnce(ctx context.Context) (scraper.RunReport, error) {
	if !w.runMu.TryLock() {
		w.metrics.IncSkipped()
		w.log.Warn().Msg("Previous run still in progress, skipping this trigger")
		return scraper.RunReport{}, errors.NewRun("previous run still in progress", nil)
	}
	defer w.runMu.Unlock()

	report := scraper.RunReport{StartedAt: time.Now()}
	w.log.Info().Msg("Starting pipeline run")

	results := w.fetcher.FetchCategories(ctx)
	for _, result := range results {
		w.metrics.IncFetch(result.Category.Name)
		if result.Failed() {
			report.CategoriesFailed++
			w.metrics.IncFetchFailure(result.Category.Name, result.Reason)
			w.log.Warn().
				Str("category", result.Category.Name).
				Str("reason", string(result.Reason)).
				Err(result.Err).
				Msg("Category fetch failed, continuing with the rest")
			continue
		}

		extracted, rejected, reconciled, failed := w.processCategory(ctx, result)
		report.CategoriesOK++
		report.Extracted += extracted
		report.Rejected += rejected
		report.Reconciled += reconciled
		report.Failed += failed
	}

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(); err != nil {
			w.log.Error().Err(err).Msg("Stream trimming failed")
		}
	}

	report.Duration = time.Since(report.StartedAt)
	w.metrics.ObserveRun(report.Duration)
	return report, nil
}

// processCategory runs extract, normalize, and reconcile for one
// fetched category page.
func (w *Worker) processCategory(ctx context.Context, result scraper.CategoryResult) (extracted, rejected, reconciled, failed int) {
	category := result.Category.Name

	doc, err := scraper.ParseDocument(result.HTML)
	if err != nil {
		w.log.Error().Str("category", category).Err(err).Msg("Unparseable category page")
		return 0, 0, 0, 0
	}

	cards := w.extractor.Extract(doc, category)
	w.metrics.AddExtracted(category, len(cards))

	records, rejectedCount := w.normalizer.NormalizeBatch(cards)
	w.metrics.AddRejected(category, rejectedCount)

	succeeded, failedCount := w.reconciler.ReconcileAll(ctx, records)
	w.metrics.AddReconcileResults(succeeded, failedCount)

	w.log.Debug().
		Str("category", category).
		Int("cards", len(cards)).
		Int("rejected", rejectedCount).
		Int("reconciled", succeeded).
		Msg("Category processed")

	return len(cards), rejectedCount, succeeded, failedCount
}
