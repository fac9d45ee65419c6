package scraper

// VendorZepto is the vendor name written into every quote this scraper
// produces.
const VendorZepto = "Zepto"

// NewZeptoSite builds the site adapter for zeptonow.com. Selectors
// track the current markup and are expected to break when the site
// ships a redesign; nothing outside this file knows about them.
func NewZeptoSite(baseURL, locality string) Site {
	return Site{
		Vendor:       VendorZepto,
		BaseURL:      baseURL,
		Locality:     locality,
		DeliveryFee:  10,
		DeliveryTime: "10-15 min",
		Categories: []Category{
			{Name: "Vegetables", Path: "/vegetables"},
			{Name: "Fruits", Path: "/fruits"},
			{Name: "Dairy", Path: "/dairy-eggs"},
		},
		Selectors: Selectors{
			LocationButton:     "button[aria-label='Select Location']",
			LocationInput:      "input[placeholder*='Search']",
			LocationSuggestion: "div[data-testid='address-search-item']",

			GridRoot:    "div[data-testid='product-grid']",
			ProductCard: "a[data-testid='product-card']",

			Name:        "div[data-testid='product-card-name']",
			Price:       "div[data-testid='product-card-price']",
			Unit:        "div[data-testid='product-card-quantity']",
			Image:       "img",
			ProductLink: "",
			OutOfStock:  "div[data-testid='out-of-stock']",

			PriceRegex: `₹\s*(\d+(?:,\d{3})*(?:\.\d+)?)`,
		},
	}
}
