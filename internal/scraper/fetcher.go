package scraper

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/localsaver/backend/helpers"
	"github.com/localsaver/backend/logger"
	pkgerr "github.com/localsaver/backend/pkg/errors"
	"github.com/localsaver/backend/services/cache"
)

// Fetcher obtains rendered category pages from the source site. One
// category's failure never aborts the others; each result carries its
// own failure marker instead.
type Fetcher interface {
	FetchCategories(ctx context.Context) []CategoryResult
}

// Options tunes fetch behavior independent of the target site.
type Options struct {
	NavigationTimeout time.Duration
	LocationTimeout   time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	CategoryDelay     time.Duration
	RateLimitBlock    time.Duration
}

// heavy resource patterns blocked in the browser to cut bandwidth
var blockedURLPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.otf", "*.css", "*.mp4",
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BrowserFetcher renders category pages in a headless Chrome session.
// The session is scoped to one FetchCategories call and always torn
// down, regardless of per-category outcomes.
type BrowserFetcher struct {
	site  Site
	cache cache.CacheService
	opts  Options
	log   *logger.Logger
}

// NewBrowserFetcher creates a fetcher for a site. cacheSvc may be nil;
// it is only used for cross-run rate-limit block keys.
func NewBrowserFetcher(site Site, cacheSvc cache.CacheService, opts Options) *BrowserFetcher {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 10 * time.Second
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = 5 * time.Second
	}
	if opts.RateLimitBlock <= 0 {
		opts.RateLimitBlock = 30 * time.Minute
	}
	return &BrowserFetcher{
		site:  site,
		cache: cacheSvc,
		opts:  opts,
		log:   logger.ForScraper(site.Vendor),
	}
}

// FetchCategories opens one browser session, performs the one-time
// location selection, then loads every category in configured order.
func (f *BrowserFetcher) FetchCategories(ctx context.Context) []CategoryResult {
	if cache.IsRateLimited(f.cache, f.site.Vendor) {
		f.log.Warn().Msg("Vendor is rate limited, skipping all categories")
		return f.failAll(FailureRateLimited, pkgerr.NewRateLimit(f.site.Vendor, f.opts.RateLimitBlock))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(browserUserAgent),
		chromedp.WindowSize(1280, 800),
		chromedp.NoSandbox,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	// Launch the browser and turn off heavy resource loading up front.
	startCtx, startCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer startCancel()
	err := chromedp.Run(startCtx,
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns),
	)
	if err != nil {
		f.log.Error().Err(err).Msg("Headless browser failed to start")
		return f.failAll(FailureBrowserStartup, pkgerr.NewRun("browser launch failed", err))
	}

	if err := f.setupLocation(browserCtx); err != nil {
		f.log.Error().Err(err).Msg("Could not reach the site for location setup")
		return f.failAll(FailureLocationSetup, err)
	}

	results := make([]CategoryResult, 0, len(f.site.Categories))
	for i, category := range f.site.Categories {
		if i > 0 && f.opts.CategoryDelay > 0 {
			select {
			case <-ctx.Done():
				results = append(results, CategoryResult{Category: category, Reason: FailureNavigation, Err: ctx.Err()})
				continue
			case <-time.After(f.opts.CategoryDelay):
			}
		}
		results = append(results, f.fetchCategory(browserCtx, category))
	}
	return results
}

// setupLocation navigates to the home page and tries the location
// prompt once, typing the configured locality and picking the first
// suggestion. An absent prompt is normal and tolerated; only failing
// to load the home page at all fails the run.
func (f *BrowserFetcher) setupLocation(browserCtx context.Context) error {
	sel := f.site.Selectors

	navCtx, cancel := context.WithTimeout(browserCtx, f.opts.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(f.site.BaseURL)); err != nil {
		return pkgerr.NewFetch("home", "home page navigation failed", err)
	}

	locCtx, locCancel := context.WithTimeout(browserCtx, f.opts.LocationTimeout)
	defer locCancel()
	err := chromedp.Run(locCtx,
		chromedp.WaitVisible(sel.LocationButton, chromedp.ByQuery),
		chromedp.Click(sel.LocationButton, chromedp.ByQuery),
		chromedp.WaitVisible(sel.LocationInput, chromedp.ByQuery),
		chromedp.SendKeys(sel.LocationInput, f.site.Locality, chromedp.ByQuery),
		chromedp.WaitVisible(sel.LocationSuggestion, chromedp.ByQuery),
		chromedp.Click(sel.LocationSuggestion, chromedp.ByQuery),
	)
	if err != nil {
		// Sessions that already carry a location never show the prompt.
		f.log.Debug().Err(err).Msg("Location prompt not completed, continuing without it")
	}
	return nil
}

// fetchCategory loads one category page with bounded retries. Only
// fetch-class failures are retried; the last failure is returned.
func (f *BrowserFetcher) fetchCategory(browserCtx context.Context, category Category) CategoryResult {
	url := f.site.CategoryURL(category)

	var lastErr error
	var reason FailureReason
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			f.log.Info().
				Str("category", category.Name).
				Int("attempt", attempt+1).
				Msg("Retrying category fetch")
			select {
			case <-browserCtx.Done():
				return CategoryResult{Category: category, Reason: FailureNavigation, Err: browserCtx.Err()}
			case <-time.After(f.opts.RetryBackoff):
			}
		}

		html, err := f.loadPage(browserCtx, url)
		if err == nil {
			f.log.Debug().Str("category", category.Name).Int("bytes", len(html)).Msg("Category page loaded")
			return CategoryResult{Category: category, HTML: html}
		}

		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			reason = FailureTimeout
		} else {
			reason = FailureNavigation
		}
		f.log.Warn().
			Str("category", category.Name).
			Str("reason", string(reason)).
			Err(err).
			Msg("Category fetch failed")
	}

	return CategoryResult{
		Category: category,
		Reason:   reason,
		Err:      pkgerr.NewFetch(category.Name, "category fetch failed after retries", lastErr),
	}
}

// loadPage navigates to a URL, waits for the product grid, and returns
// the rendered document.
func (f *BrowserFetcher) loadPage(browserCtx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(browserCtx, f.opts.NavigationTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(f.site.Selectors.GridRoot, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

func (f *BrowserFetcher) failAll(reason FailureReason, err error) []CategoryResult {
	results := make([]CategoryResult, 0, len(f.site.Categories))
	for _, category := range f.site.Categories {
		results = append(results, CategoryResult{Category: category, Reason: reason, Err: err})
	}
	return results
}

// PlainFetcher fetches category pages over plain HTTP with rotating
// browser headers. It cannot run client-side rendering, so it only
// works while the site serves server-rendered markup; it exists for
// environments without Chrome and for local development.
type PlainFetcher struct {
	site  Site
	cache cache.CacheService
	opts  Options
	log   *logger.Logger
}

// NewPlainFetcher creates the no-browser fallback fetcher.
func NewPlainFetcher(site Site, cacheSvc cache.CacheService, opts Options) *PlainFetcher {
	if opts.RateLimitBlock <= 0 {
		opts.RateLimitBlock = 30 * time.Minute
	}
	return &PlainFetcher{
		site:  site,
		cache: cacheSvc,
		opts:  opts,
		log:   logger.ForScraper(site.Vendor),
	}
}

// FetchCategories fetches every category page sequentially. A rate
// limit response blocks the vendor in cache and fails the remaining
// categories immediately.
func (f *PlainFetcher) FetchCategories(ctx context.Context) []CategoryResult {
	results := make([]CategoryResult, 0, len(f.site.Categories))
	blocked := cache.IsRateLimited(f.cache, f.site.Vendor)

	for i, category := range f.site.Categories {
		if blocked {
			results = append(results, CategoryResult{
				Category: category,
				Reason:   FailureRateLimited,
				Err:      pkgerr.NewRateLimit(f.site.Vendor, f.opts.RateLimitBlock),
			})
			continue
		}
		if i > 0 && f.opts.CategoryDelay > 0 {
			select {
			case <-ctx.Done():
				results = append(results, CategoryResult{Category: category, Reason: FailureNavigation, Err: ctx.Err()})
				continue
			case <-time.After(f.opts.CategoryDelay):
			}
		}

		body, err := helpers.FetchWithRandomHeaders(f.site.CategoryURL(category))
		if err != nil {
			if errors.Is(err, helpers.ErrRateLimited) {
				blocked = true
				if cErr := cache.MarkRateLimited(f.cache, f.site.Vendor, f.opts.RateLimitBlock); cErr != nil {
					f.log.Warn().Err(cErr).Msg("Failed to store rate limit block")
				}
				results = append(results, CategoryResult{Category: category, Reason: FailureRateLimited, Err: err})
				continue
			}
			results = append(results, CategoryResult{Category: category, Reason: FailureNavigation, Err: err})
			continue
		}

		html, err := readAll(body)
		if err != nil {
			results = append(results, CategoryResult{Category: category, Reason: FailureNavigation, Err: err})
			continue
		}
		results = append(results, CategoryResult{Category: category, HTML: html})
	}
	return results
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseDocument turns fetched HTML into a goquery document for the
// extractor.
func ParseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
