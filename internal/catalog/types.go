package catalog

import (
	"fmt"
	"strings"
	"time"
)

// VendorQuote is the latest observed offer from one vendor for a product.
// A product holds at most one quote per vendor; each scrape replaces it.
type VendorQuote struct {
	Vendor       string    `json:"vendor"`
	Price        float64   `json:"price"`
	InStock      bool      `json:"inStock"`
	DeliveryFee  float64   `json:"deliveryFee"`
	DeliveryTime string    `json:"deliveryTime,omitempty"`
	URL          string    `json:"url,omitempty"`
	ObservedAt   time.Time `json:"observedAt"`
}

// PricePoint is one immutable entry in a product's price history.
type PricePoint struct {
	ObservedAt   time.Time `json:"observedAt"`
	Vendor       string    `json:"vendor"`
	Price        float64   `json:"price"`
	InStock      bool      `json:"inStock"`
	DeliveryFee  float64   `json:"deliveryFee"`
	DeliveryTime string    `json:"deliveryTime,omitempty"`
}

// Product is the canonical catalog record for one real-world item,
// keyed by case-insensitive name plus exact category.
type Product struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Category      string        `json:"category"`
	Unit          string        `json:"unit,omitempty"`
	PackSize      string        `json:"packSize,omitempty"`
	Description   string        `json:"description,omitempty"`
	Image         string        `json:"image,omitempty"`
	CurrentPrices []VendorQuote `json:"currentPrices"`
	PriceHistory  []PricePoint  `json:"priceHistory"`
	SearchCount   int64         `json:"searchCount"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// NormalizedRecord is a fully validated price observation, the sole input
// to reconciliation. The normalizer guarantees Price > 0 and a non-empty
// Name before one of these is built.
type NormalizedRecord struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Vendor       string  `json:"vendor"`
	Price        float64 `json:"price"`
	Unit         string  `json:"unit,omitempty"`
	InStock      bool    `json:"inStock"`
	DeliveryFee  float64 `json:"deliveryFee"`
	DeliveryTime string  `json:"deliveryTime,omitempty"`
	URL          string  `json:"url,omitempty"`
	Description  string  `json:"description,omitempty"`
	Image        string  `json:"image,omitempty"`
}

// Key returns the catalog identity key for the record.
func (r NormalizedRecord) Key() string {
	return ProductKey(r.Name, r.Category)
}

// Validate checks the reconciler's input contract.
func (r NormalizedRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("record name is empty")
	}
	if strings.TrimSpace(r.Vendor) == "" {
		return fmt.Errorf("record vendor is empty")
	}
	if r.Price <= 0 {
		return fmt.Errorf("record price %v is not positive", r.Price)
	}
	return nil
}

// ProductKey builds the case-insensitive (name, category) identity key.
func ProductKey(name, category string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "\x00" + strings.TrimSpace(category)
}

// Vendor is a registered local merchant submitting its own price listings.
type Vendor struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone"`
	StoreName           string    `json:"storeName"`
	Pincode             string    `json:"pincode"`
	ServiceablePincodes []string  `json:"serviceablePincodes"`
	CreatedAt           time.Time `json:"createdAt"`
}

// VendorProduct is one entry of a vendor's own submitted listing.
type VendorProduct struct {
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Unit      string    `json:"unit,omitempty"`
	PackSize  string    `json:"packSize,omitempty"`
	InStock   bool      `json:"inStock"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PriceAlert is a user's subscription to price drops on one product.
type PriceAlert struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ProductID   string    `json:"productId"`
	TargetPrice float64   `json:"targetPrice"`
	Notified    bool      `json:"notified"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PriceEvent is published to the event stream after each successful
// reconciliation; the alert notifier consumes it out of process.
type PriceEvent struct {
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Vendor     string    `json:"vendor"`
	Price      float64   `json:"price"`
	OldPrice   float64   `json:"old_price,omitempty"`
	InStock    bool      `json:"in_stock"`
	ObservedAt time.Time `json:"observed_at"`
}
