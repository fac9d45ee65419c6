package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/localsaver/backend/internal/catalog"
	"github.com/localsaver/backend/logger"
)

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	store      *catalog.Store
	reconciler *catalog.Reconciler
	log        *logger.Logger
}

// NewHandler creates a handler over the catalog store. The reconciler
// is shared with the scrape worker so vendor submissions go through
// the same merge path as scraped records.
func NewHandler(store *catalog.Store, reconciler *catalog.Reconciler) *Handler {
	return &Handler{
		store:      store,
		reconciler: reconciler,
		log:        logger.ForAPI(),
	}
}

// HealthCheck reports service liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "localsaver-backend",
	})
}

// SearchPrices handles GET /api/prices. Every matched product's search
// counter is incremented as a side effect, feeding the trending list.
func (h *Handler) SearchPrices(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Search query is required"})
		return
	}
	category := c.Query("category")
	// pincode is accepted for forward compatibility; vendor
	// serviceability filtering is not applied yet
	_ = c.Query("pincode")

	products, err := h.store.Search(c.Request.Context(), query, category)
	if err != nil {
		h.serverError(c, err)
		return
	}
	if len(products) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No products found matching your search"})
		return
	}

	ids := make([]string, 0, len(products))
	for i := range products {
		ids = append(ids, products[i].ID)
		products[i].SearchCount++
	}
	if err := h.store.IncrementSearchCount(c.Request.Context(), ids); err != nil {
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

// TrendingPrices handles GET /api/prices/trending.
func (h *Handler) TrendingPrices(c *gin.Context) {
	products, err := h.store.Trending(c.Request.Context(), 10)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// PriceHistory handles GET /api/prices/:productId/history.
func (h *Handler) PriceHistory(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "days must be a non-negative integer"})
			return
		}
		days = parsed
	}

	history, err := h.store.History(c.Request.Context(), c.Param("productId"), days)
	if err == catalog.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

type registerVendorRequest struct {
	Name                string   `json:"name" binding:"required"`
	Email               string   `json:"email" binding:"required,email"`
	Phone               string   `json:"phone"`
	StoreName           string   `json:"storeName" binding:"required"`
	Pincode             string   `json:"pincode"`
	ServiceablePincodes []string `json:"serviceablePincodes"`
}

// RegisterVendor handles POST /api/vendor/register.
func (h *Handler) RegisterVendor(c *gin.Context) {
	var req registerVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid input"})
		return
	}

	vendor := catalog.Vendor{
		ID:                  uuid.NewString(),
		Name:                req.Name,
		Email:               req.Email,
		Phone:               req.Phone,
		StoreName:           req.StoreName,
		Pincode:             req.Pincode,
		ServiceablePincodes: req.ServiceablePincodes,
		CreatedAt:           time.Now(),
	}

	err := h.store.CreateVendor(c.Request.Context(), vendor)
	if err == catalog.ErrDuplicateVendor {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Vendor with this email already exists"})
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Vendor registered successfully",
		"vendorId": vendor.ID,
	})
}

type submitProductRequest struct {
	Name     string  `json:"name" binding:"required"`
	Category string  `json:"category" binding:"required"`
	Price    float64 `json:"price" binding:"required"`
	Unit     string  `json:"unit"`
	PackSize string  `json:"packSize"`
	InStock  *bool   `json:"inStock"`
}

type submitPricesRequest struct {
	VendorID string                 `json:"vendorId" binding:"required"`
	Products []submitProductRequest `json:"products" binding:"required,min=1"`
}

// SubmitPrices handles POST /api/vendor/submit. The submitted listing
// replaces the vendor's previous one and every entry is merged into
// the catalog under the vendor's store name.
func (h *Handler) SubmitPrices(c *gin.Context) {
	var req submitPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid input"})
		return
	}

	vendor, err := h.store.GetVendor(c.Request.Context(), req.VendorID)
	if err == catalog.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"message": "Vendor not found"})
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}

	now := time.Now()
	listing := make([]catalog.VendorProduct, 0, len(req.Products))
	records := make([]catalog.NormalizedRecord, 0, len(req.Products))
	for _, p := range req.Products {
		inStock := p.InStock == nil || *p.InStock
		listing = append(listing, catalog.VendorProduct{
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price,
			Unit:      p.Unit,
			PackSize:  p.PackSize,
			InStock:   inStock,
			UpdatedAt: now,
		})
		records = append(records, catalog.NormalizedRecord{
			Name:     p.Name,
			Category: p.Category,
			Vendor:   vendor.StoreName,
			Price:    p.Price,
			Unit:     p.Unit,
			InStock:  inStock,
		})
	}

	if err := h.store.ReplaceVendorProducts(c.Request.Context(), vendor.ID, listing); err != nil {
		h.serverError(c, err)
		return
	}

	succeeded, failed := h.reconciler.ReconcileAll(c.Request.Context(), records)
	if failed > 0 {
		h.log.Warn().
			Str("vendorId", vendor.ID).
			Int("failed", failed).
			Msg("Some vendor submissions failed to reconcile")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Prices submitted successfully",
		"reconciled": succeeded,
	})
}

// VendorProducts handles GET /api/vendor/:vendorId/products.
func (h *Handler) VendorProducts(c *gin.Context) {
	vendorID := c.Param("vendorId")
	if _, err := h.store.GetVendor(c.Request.Context(), vendorID); err != nil {
		if err == catalog.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"message": "Vendor not found"})
			return
		}
		h.serverError(c, err)
		return
	}

	products, err := h.store.VendorProducts(c.Request.Context(), vendorID)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

type subscribeRequest struct {
	UserID      string  `json:"userId" binding:"required"`
	ProductID   string  `json:"productId" binding:"required"`
	TargetPrice float64 `json:"targetPrice"`
}

// Subscribe handles POST /api/subscribe. Subscribing twice to the same
// product updates the existing alert instead of creating a second one.
func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User ID and product ID are required"})
		return
	}

	if _, err := h.store.GetProduct(c.Request.Context(), req.ProductID); err != nil {
		if err == catalog.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		h.serverError(c, err)
		return
	}

	alert := catalog.PriceAlert{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		ProductID:   req.ProductID,
		TargetPrice: req.TargetPrice,
		CreatedAt:   time.Now(),
	}
	if err := h.store.UpsertAlert(c.Request.Context(), alert); err != nil {
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Price alert subscription updated successfully"})
}

// UserAlerts handles GET /api/subscribe/:userId.
func (h *Handler) UserAlerts(c *gin.Context) {
	alerts, err := h.store.AlertsForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// DeleteAlert handles DELETE /api/subscribe/:userId/:alertId.
func (h *Handler) DeleteAlert(c *gin.Context) {
	err := h.store.DeleteAlert(c.Request.Context(), c.Param("userId"), c.Param("alertId"))
	if err == catalog.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"message": "Price alert not found"})
		return
	}
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Price alert deleted successfully"})
}

func (h *Handler) serverError(c *gin.Context, err error) {
	h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
}
