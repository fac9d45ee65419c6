package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/localsaver/backend/internal/catalog"
	"github.com/localsaver/backend/logger"
	"github.com/localsaver/backend/pkg/errors"
)

// placeholder names the site renders while a card is still loading.
var placeholderNames = map[string]bool{
	"unknown product": true,
	"loading":         true,
}

// fallbackPriceRegex matches a bare decimal when the site regex finds
// nothing, so a missing currency symbol alone does not drop a card.
var fallbackPriceRegex = regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d+)?)`)

// Normalizer converts raw scraped cards into validated records,
// dropping anything without a usable name and positive price.
type Normalizer struct {
	site       Site
	priceRegex *regexp.Regexp
	log        *logger.Logger
}

// NewNormalizer creates a normalizer for a site. An invalid price
// pattern falls back to plain decimal matching.
func NewNormalizer(site Site) *Normalizer {
	re, err := regexp.Compile(site.Selectors.PriceRegex)
	if err != nil {
		re = fallbackPriceRegex
	}
	return &Normalizer{
		site:       site,
		priceRegex: re,
		log:        logger.ForScraper(site.Vendor),
	}
}

// Normalize validates one scraped card. The returned error is an
// errors.TypeNormalize pipeline error when the card is rejected.
func (n *Normalizer) Normalize(rec ScrapedRecord) (catalog.NormalizedRecord, error) {
	name := strings.TrimSpace(rec.Name)
	if name == "" || placeholderNames[strings.ToLower(name)] {
		return catalog.NormalizedRecord{}, errors.NewNormalize(rec.Category, "card has no usable product name")
	}

	price, err := n.parsePrice(rec.RawPrice)
	if err != nil {
		return catalog.NormalizedRecord{}, err
	}

	return catalog.NormalizedRecord{
		Name:         name,
		Category:     strings.TrimSpace(rec.Category),
		Vendor:       n.site.Vendor,
		Price:        price,
		Unit:         strings.TrimSpace(rec.RawUnit),
		InStock:      !rec.OutOfStock,
		DeliveryFee:  n.site.DeliveryFee,
		DeliveryTime: n.site.DeliveryTime,
		URL:          rec.ProductURL,
		Description:  strings.TrimSpace(rec.Description),
		Image:        rec.ImageURL,
	}, nil
}

// NormalizeBatch runs Normalize over a page of cards, returning the
// accepted records and the rejection count. Rejects are logged at
// debug level and dropped.
func (n *Normalizer) NormalizeBatch(recs []ScrapedRecord) ([]catalog.NormalizedRecord, int) {
	out := make([]catalog.NormalizedRecord, 0, len(recs))
	rejected := 0
	for _, rec := range recs {
		normalized, err := n.Normalize(rec)
		if err != nil {
			rejected++
			n.log.Debug().
				Str("category", rec.Category).
				Str("name", rec.Name).
				Str("rawPrice", rec.RawPrice).
				Err(err).
				Msg("Rejected scraped card")
			continue
		}
		out = append(out, normalized)
	}
	return out, rejected
}

// parsePrice extracts a positive decimal from raw price text using the
// site's pattern first, then a bare-decimal fallback.
func (n *Normalizer) parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.NewNormalize("price", "price text is empty")
	}

	match := n.priceRegex.FindStringSubmatch(raw)
	if len(match) < 2 {
		match = fallbackPriceRegex.FindStringSubmatch(raw)
	}
	if len(match) < 2 {
		return 0, errors.NewNormalize("price", "no price in "+strconv.Quote(raw))
	}

	// Indian price text often carries thousands separators
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, errors.NewNormalize("price", "unparseable price "+strconv.Quote(match[1]))
	}
	if value <= 0 {
		return 0, errors.NewNormalize("price", "non-positive price in "+strconv.Quote(raw))
	}
	return value, nil
}
