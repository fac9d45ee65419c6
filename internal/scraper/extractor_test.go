package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardHTML = `
<a data-testid="product-card" href="/p/tomato-local">
  <img src="https://cdn.example.com/tomato.jpg" />
  <div data-testid="product-card-name">Tomato</div>
  <div data-testid="product-card-quantity">500 g</div>
  <div data-testid="product-card-price">₹65</div>
</a>`

func pageWithCards(cards ...string) string {
	return `<html><body><div data-testid="product-grid">` + strings.Join(cards, "\n") + `</div></body></html>`
}

func testSite() Site {
	return NewZeptoSite("https://www.zeptonow.com", "Koramangala, Bengaluru")
}

func TestExtract_SingleCard(t *testing.T) {
	doc, err := ParseDocument(pageWithCards(cardHTML))
	require.NoError(t, err)

	extractor := NewExtractor(testSite(), 20)
	records := extractor.Extract(doc, "Vegetables")

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "Tomato", rec.Name)
	assert.Equal(t, "Vegetables", rec.Category)
	assert.Equal(t, "₹65", rec.RawPrice)
	assert.Equal(t, "500 g", rec.RawUnit)
	assert.Equal(t, "https://cdn.example.com/tomato.jpg", rec.ImageURL)
	assert.Equal(t, "https://www.zeptonow.com/p/tomato-local", rec.ProductURL)
	assert.False(t, rec.OutOfStock)
}

func TestExtract_CapsCardsPerPage(t *testing.T) {
	cards := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		cards = append(cards, strings.Replace(cardHTML, "Tomato", fmt.Sprintf("Item %d", i), 1))
	}
	doc, err := ParseDocument(pageWithCards(cards...))
	require.NoError(t, err)

	extractor := NewExtractor(testSite(), 20)
	records := extractor.Extract(doc, "Vegetables")

	assert.Len(t, records, 20)
	// DOM order is preserved
	assert.Equal(t, "Item 0", records[0].Name)
	assert.Equal(t, "Item 19", records[19].Name)
}

func TestExtract_MissingFieldsDegrade(t *testing.T) {
	bare := `<a data-testid="product-card"><div data-testid="product-card-name">Paneer</div></a>`
	doc, err := ParseDocument(pageWithCards(bare))
	require.NoError(t, err)

	extractor := NewExtractor(testSite(), 20)
	records := extractor.Extract(doc, "Dairy")

	require.Len(t, records, 1)
	assert.Equal(t, "Paneer", records[0].Name)
	assert.Empty(t, records[0].RawPrice)
	assert.Empty(t, records[0].RawUnit)
	assert.Empty(t, records[0].ImageURL)
	assert.Empty(t, records[0].ProductURL)
}

func TestExtract_SkipsNamelessCards(t *testing.T) {
	nameless := `<a data-testid="product-card"><div data-testid="product-card-price">₹99</div></a>`
	doc, err := ParseDocument(pageWithCards(nameless, cardHTML))
	require.NoError(t, err)

	extractor := NewExtractor(testSite(), 20)
	records := extractor.Extract(doc, "Vegetables")

	require.Len(t, records, 1)
	assert.Equal(t, "Tomato", records[0].Name)
}

func TestExtract_OutOfStockMarker(t *testing.T) {
	oos := strings.Replace(cardHTML, "</a>", `<div data-testid="out-of-stock">Out of Stock</div></a>`, 1)
	doc, err := ParseDocument(pageWithCards(oos))
	require.NoError(t, err)

	extractor := NewExtractor(testSite(), 20)
	records := extractor.Extract(doc, "Vegetables")

	require.Len(t, records, 1)
	assert.True(t, records[0].OutOfStock)
}

func TestExtract_EmptyPage(t *testing.T) {
	doc, err := ParseDocument(`<html><body><div>nothing here</div></body></html>`)
	require.NoError(t, err)

	extractor := NewExtractor(testSite(), 20)
	assert.Empty(t, extractor.Extract(doc, "Fruits"))
}
