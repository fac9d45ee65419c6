package scraper

import (
	"time"
)

// FailureReason classifies why a category fetch produced no page.
type FailureReason string

const (
	FailureTimeout        FailureReason = "timeout"
	FailureNavigation     FailureReason = "navigation-error"
	FailureLocationSetup  FailureReason = "location-setup-failed"
	FailureRateLimited    FailureReason = "rate-limited"
	FailureBrowserStartup FailureReason = "browser-startup-failed"
)

// Category is one scrape target on the source site.
type Category struct {
	Name string
	Path string
}

// ScrapedRecord is a raw product card pulled off a category page.
// Fields a selector could not find are left empty rather than failing
// the card; the normalizer decides what is usable.
type ScrapedRecord struct {
	Name        string
	Category    string
	RawPrice    string
	RawUnit     string
	Description string
	ImageURL    string
	ProductURL  string
	OutOfStock  bool
}

// CategoryResult is the outcome of fetching one category page. Exactly
// one of HTML or Reason is meaningful.
type CategoryResult struct {
	Category Category
	HTML     string
	Reason   FailureReason
	Err      error
}

// Failed reports whether the category produced no usable page.
func (r CategoryResult) Failed() bool {
	return r.Reason != ""
}

// Selectors holds every site-specific CSS selector and the price
// pattern, so the pipeline itself stays markup-agnostic. Swapping the
// target site means swapping this struct, not the pipeline.
type Selectors struct {
	// Location prompt, attempted once per browser session.
	LocationButton     string
	LocationInput      string
	LocationSuggestion string

	// Category page structure.
	GridRoot    string
	ProductCard string

	// Per-card fields.
	Name        string
	Price       string
	Unit        string
	Image       string
	ProductLink string
	OutOfStock  string

	// First capture group is the numeric price.
	PriceRegex string
}

// Site describes one scrape source: its identity, vendor-level quote
// metadata, categories, and markup selectors.
type Site struct {
	Vendor       string
	BaseURL      string
	Locality     string
	DeliveryFee  float64
	DeliveryTime string
	Categories   []Category
	Selectors    Selectors
}

// CategoryURL returns the absolute URL for a category path.
func (s Site) CategoryURL(c Category) string {
	return s.BaseURL + c.Path
}

// RunReport summarizes one full pipeline run for logging and metrics.
type RunReport struct {
	StartedAt        time.Time
	Duration         time.Duration
	CategoriesOK     int
	CategoriesFailed int
	Extracted        int
	Rejected         int
	Reconciled       int
	Failed           int
}
