package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/localsaver/backend/logger"
)

// Extractor pulls product cards from a rendered category page using
// the site's selectors. Missing fields degrade to empty values; a card
// is only skipped entirely when it has no name at all.
type Extractor struct {
	site     Site
	maxCards int
	log      *logger.Logger
}

// NewExtractor creates an extractor for a site. maxCards bounds how
// many cards are taken per page.
func NewExtractor(site Site, maxCards int) *Extractor {
	if maxCards <= 0 {
		maxCards = 20
	}
	return &Extractor{
		site:     site,
		maxCards: maxCards,
		log:      logger.ForScraper(site.Vendor),
	}
}

// Extract parses a category page and returns its product cards in DOM
// order, capped at maxCards.
func (e *Extractor) Extract(doc *goquery.Document, category string) []ScrapedRecord {
	sel := e.site.Selectors
	records := make([]ScrapedRecord, 0, e.maxCards)

	doc.Find(sel.ProductCard).EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= e.maxCards {
			return false
		}

		rec := ScrapedRecord{
			Category:   category,
			Name:       fieldText(card, sel.Name),
			RawPrice:   fieldText(card, sel.Price),
			RawUnit:    fieldText(card, sel.Unit),
			OutOfStock: sel.OutOfStock != "" && card.Find(sel.OutOfStock).Length() > 0,
		}

		if img := card.Find(sel.Image); img.Length() > 0 {
			if src, ok := img.Attr("src"); ok {
				rec.ImageURL = src
			}
		}

		rec.ProductURL = e.cardURL(card)

		if rec.Name == "" {
			e.log.Debug().Int("index", i).Str("category", category).Msg("Skipping card without a name")
			return true
		}

		records = append(records, rec)
		return true
	})

	e.log.Debug().
		Str("category", category).
		Int("cards", len(records)).
		Msg("Extracted product cards")

	return records
}

// cardURL resolves a card's product link against the site base URL.
func (e *Extractor) cardURL(card *goquery.Selection) string {
	link := card
	if s := e.site.Selectors.ProductLink; s != "" {
		link = card.Find(s)
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return e.site.BaseURL + href
}

func fieldText(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	found := card.Find(selector)
	if found.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(found.First().Text())
}
