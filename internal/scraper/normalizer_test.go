package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_ValidCard(t *testing.T) {
	n := NewNormalizer(testSite())

	rec, err := n.Normalize(ScrapedRecord{
		Name:       "Tomato",
		Category:   "Vegetables",
		RawPrice:   "₹65",
		RawUnit:    " 500 g ",
		ImageURL:   "https://cdn.example.com/tomato.jpg",
		ProductURL: "https://www.zeptonow.com/p/tomato-local",
	})
	require.NoError(t, err)

	assert.Equal(t, "Tomato", rec.Name)
	assert.Equal(t, "Vegetables", rec.Category)
	assert.Equal(t, "Zepto", rec.Vendor)
	assert.Equal(t, 65.0, rec.Price)
	assert.Equal(t, "500 g", rec.Unit)
	assert.True(t, rec.InStock)
	assert.Equal(t, 10.0, rec.DeliveryFee)
	assert.Equal(t, "10-15 min", rec.DeliveryTime)
}

func TestNormalize_PriceParsing(t *testing.T) {
	n := NewNormalizer(testSite())

	cases := []struct {
		raw  string
		want float64
	}{
		{"₹65", 65},
		{"₹ 120.50", 120.50},
		{"₹1,299", 1299},
		{"MRP ₹80 ₹65", 80}, // first match wins
		{"48.5", 48.5},      // bare decimal fallback
	}
	for _, tc := range cases {
		rec, err := n.Normalize(ScrapedRecord{Name: "Milk", Category: "Dairy", RawPrice: tc.raw})
		require.NoError(t, err, "raw price %q", tc.raw)
		assert.Equal(t, tc.want, rec.Price, "raw price %q", tc.raw)
	}
}

func TestNormalize_RejectsBadPrices(t *testing.T) {
	n := NewNormalizer(testSite())

	for _, raw := range []string{"", "₹0", "free", "out of stock", "0"} {
		_, err := n.Normalize(ScrapedRecord{Name: "Milk", Category: "Dairy", RawPrice: raw})
		assert.Error(t, err, "raw price %q", raw)
	}
}

func TestNormalize_RejectsBadNames(t *testing.T) {
	n := NewNormalizer(testSite())

	for _, name := range []string{"", "   ", "Unknown Product", "unknown product"} {
		_, err := n.Normalize(ScrapedRecord{Name: name, Category: "Dairy", RawPrice: "₹50"})
		assert.Error(t, err, "name %q", name)
	}
}

func TestNormalize_OutOfStockPassthrough(t *testing.T) {
	n := NewNormalizer(testSite())

	rec, err := n.Normalize(ScrapedRecord{Name: "Paneer", Category: "Dairy", RawPrice: "₹90", OutOfStock: true})
	require.NoError(t, err)
	assert.False(t, rec.InStock)
}

func TestNormalizeBatch_CountsRejects(t *testing.T) {
	n := NewNormalizer(testSite())

	records, rejected := n.NormalizeBatch([]ScrapedRecord{
		{Name: "Tomato", Category: "Vegetables", RawPrice: "₹65"},
		{Name: "", Category: "Vegetables", RawPrice: "₹40"},
		{Name: "Potato", Category: "Vegetables", RawPrice: "n/a"},
		{Name: "Onion", Category: "Vegetables", RawPrice: "₹30"},
	})

	assert.Equal(t, 2, rejected)
	require.Len(t, records, 2)
	assert.Equal(t, "Tomato", records[0].Name)
	assert.Equal(t, "Onion", records[1].Name)
}
