package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsaver/backend/internal/catalog"
	"github.com/localsaver/backend/internal/scraper"
)

type stubFetcher struct {
	results []scraper.CategoryResult
}

func (s *stubFetcher) FetchCategories(ctx context.Context) []scraper.CategoryResult {
	return s.results
}

func categoryPage(names map[string]string) string {
	page := `<html><body><div data-testid="product-grid">`
	for name, price := range names {
		page += `<a data-testid="product-card" href="/p/` + name + `">` +
			`<div data-testid="product-card-name">` + name + `</div>` +
			`<div data-testid="product-card-price">` + price + `</div></a>`
	}
	return page + `</div></body></html>`
}

func newTestWorker(t *testing.T, fetcher scraper.Fetcher) (*Worker, *catalog.Store) {
	t.Helper()
	store, err := catalog.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	site := scraper.NewZeptoSite("https://www.zeptonow.com", "Koramangala, Bengaluru")
	w := NewWorker(
		fetcher,
		scraper.NewExtractor(site, 20),
		scraper.NewNormalizer(site),
		catalog.NewReconciler(store, nil),
		nil,
		scraper.NewMetrics(),
		time.Hour,
	)
	return w, store
}

func TestRunOnce_FailedCategoryDoesNotAbortRun(t *testing.T) {
	fetcher := &stubFetcher{results: []scraper.CategoryResult{
		{
			Category: scraper.Category{Name: "Vegetables", Path: "/vegetables"},
			HTML:     categoryPage(map[string]string{"Tomato": "₹65", "Potato": "₹40"}),
		},
		{
			Category: scraper.Category{Name: "Fruits", Path: "/fruits"},
			HTML:     categoryPage(map[string]string{"Apple": "₹120"}),
		},
		{
			Category: scraper.Category{Name: "Dairy", Path: "/dairy-eggs"},
			Reason:   scraper.FailureTimeout,
		},
	}}
	w, store := newTestWorker(t, fetcher)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.CategoriesOK)
	assert.Equal(t, 1, report.CategoriesFailed)
	assert.Equal(t, 3, report.Extracted)
	assert.Equal(t, 3, report.Reconciled)
	assert.Equal(t, 0, report.Failed)

	// The failed category produced nothing, the others still reconciled
	_, err = store.FindByKey(context.Background(), "Tomato", "Vegetables")
	assert.NoError(t, err)
	_, err = store.FindByKey(context.Background(), "Apple", "Fruits")
	assert.NoError(t, err)
}

func TestRunOnce_RejectsCountedNotPersisted(t *testing.T) {
	fetcher := &stubFetcher{results: []scraper.CategoryResult{
		{
			Category: scraper.Category{Name: "Vegetables", Path: "/vegetables"},
			HTML:     categoryPage(map[string]string{"Tomato": "₹65", "Onion": "free"}),
		},
	}}
	w, store := newTestWorker(t, fetcher)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Extracted)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.Reconciled)

	_, err = store.FindByKey(context.Background(), "Onion", "Vegetables")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestRunOnce_SkipsWhenRunInProgress(t *testing.T) {
	w, _ := newTestWorker(t, &stubFetcher{})

	w.runMu.Lock()
	defer w.runMu.Unlock()

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
}
