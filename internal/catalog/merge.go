package catalog

import "time"

// NewProduct seeds a catalog entry from the first observation of a
// (name, category) pair. Prices and history start empty; ApplyQuote adds
// the first quote.
func NewProduct(id string, rec NormalizedRecord, now time.Time) Product {
	return Product{
		ID:          id,
		Name:        rec.Name,
		Category:    rec.Category,
		Unit:        rec.Unit,
		PackSize:    "",
		Description: rec.Description,
		Image:       rec.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyQuote merges one normalized record into a product value and returns
// the result. The input product is not mutated: current prices are copied
// with the vendor's entry replaced (or appended), one history point is
// appended, and descriptive metadata is overwritten where the record
// observed a value.
func ApplyQuote(p Product, rec NormalizedRecord, now time.Time) Product {
	quote := VendorQuote{
		Vendor:       rec.Vendor,
		Price:        rec.Price,
		InStock:      rec.InStock,
		DeliveryFee:  rec.DeliveryFee,
		DeliveryTime: rec.DeliveryTime,
		URL:          rec.URL,
		ObservedAt:   now,
	}

	prices := make([]VendorQuote, 0, len(p.CurrentPrices)+1)
	replaced := false
	for _, existing := range p.CurrentPrices {
		if existing.Vendor == rec.Vendor {
			prices = append(prices, quote)
			replaced = true
			continue
		}
		prices = append(prices, existing)
	}
	if !replaced {
		prices = append(prices, quote)
	}
	p.CurrentPrices = prices

	history := make([]PricePoint, len(p.PriceHistory), len(p.PriceHistory)+1)
	copy(history, p.PriceHistory)
	p.PriceHistory = append(history, PricePoint{
		ObservedAt:   now,
		Vendor:       rec.Vendor,
		Price:        rec.Price,
		InStock:      rec.InStock,
		DeliveryFee:  rec.DeliveryFee,
		DeliveryTime: rec.DeliveryTime,
	})

	if rec.Unit != "" {
		p.Unit = rec.Unit
	}
	if rec.Description != "" {
		p.Description = rec.Description
	}
	if rec.Image != "" {
		p.Image = rec.Image
	}
	p.UpdatedAt = now

	return p
}

// QuoteFor returns the current quote for a vendor, if any.
func QuoteFor(p Product, vendor string) (VendorQuote, bool) {
	for _, q := range p.CurrentPrices {
		if q.Vendor == vendor {
			return q, true
		}
	}
	return VendorQuote{}, false
}
