package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsaver/backend/config"
	"github.com/localsaver/backend/internal/catalog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *catalog.Store, *catalog.Reconciler) {
	t.Helper()
	store, err := catalog.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
		cfg.RateLimitBurst = 100
	}
	reconciler := catalog.NewReconciler(store, nil)
	router := NewRouter(cfg, NewHandler(store, reconciler), nil)
	return router, store, reconciler
}

func seedProduct(t *testing.T, reconciler *catalog.Reconciler, name, category string, price float64) string {
	t.Helper()
	_, err := reconciler.Reconcile(context.Background(), catalog.NormalizedRecord{
		Name:     name,
		Category: category,
		Vendor:   "Zepto",
		Price:    price,
		InStock:  true,
	})
	require.NoError(t, err)
	return name
}

func doJSON(router *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSearchPrices(t *testing.T) {
	router, store, reconciler := newTestRouter(t, config.Config{})
	seedProduct(t, reconciler, "Tomato", "Vegetables", 65)
	seedProduct(t, reconciler, "Potato", "Vegetables", 40)

	t.Run("missing query", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/prices", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no match", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/prices?query=durian", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("match increments search count", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/prices?query=tomato", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var products []catalog.Product
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
		require.Len(t, products, 1)
		assert.Equal(t, "Tomato", products[0].Name)
		assert.Equal(t, int64(1), products[0].SearchCount)

		// Every repeated search counts again
		doJSON(router, http.MethodGet, "/api/prices?query=tomato", nil, nil)
		p, err := store.FindByKey(context.Background(), "Tomato", "Vegetables")
		require.NoError(t, err)
		assert.Equal(t, int64(2), p.SearchCount)
	})

	t.Run("category filter", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/prices?query=tomato&category=Fruits", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTrendingPrices(t *testing.T) {
	router, _, reconciler := newTestRouter(t, config.Config{})
	seedProduct(t, reconciler, "Tomato", "Vegetables", 65)
	seedProduct(t, reconciler, "Apple", "Fruits", 120)

	// Two searches for apples, one for tomatoes
	doJSON(router, http.MethodGet, "/api/prices?query=apple", nil, nil)
	doJSON(router, http.MethodGet, "/api/prices?query=apple", nil, nil)
	doJSON(router, http.MethodGet, "/api/prices?query=tomato", nil, nil)

	rec := doJSON(router, http.MethodGet, "/api/prices/trending", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var products []catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Apple", products[0].Name)
	assert.Equal(t, "Tomato", products[1].Name)
}

func TestPriceHistory(t *testing.T) {
	router, store, reconciler := newTestRouter(t, config.Config{})
	seedProduct(t, reconciler, "Milk", "Dairy", 55)
	seedProduct(t, reconciler, "Milk", "Dairy", 58)

	p, err := store.FindByKey(context.Background(), "Milk", "Dairy")
	require.NoError(t, err)

	t.Run("unknown product", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/prices/nope/history", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("full history", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/prices/"+p.ID+"/history", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var history []catalog.PricePoint
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
		assert.Len(t, history, 2)
	})

	t.Run("windowed history", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/prices/"+p.ID+"/history?days=30", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var history []catalog.PricePoint
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
		assert.Len(t, history, 2)
	})

	t.Run("bad days value", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/prices/"+p.ID+"/history?days=soon", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVendorEndpoints(t *testing.T) {
	router, store, _ := newTestRouter(t, config.Config{})

	register := map[string]any{
		"name":      "Ravi Kumar",
		"email":     "ravi@freshmart.in",
		"phone":     "9876543210",
		"storeName": "FreshMart",
		"pincode":   "560034",
	}

	rec := doJSON(router, http.MethodPost, "/api/vendor/register", register, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		VendorID string `json:"vendorId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.VendorID)

	t.Run("duplicate email", func(t *testing.T) {
		rec := doJSON(router, http.MethodPost, "/api/vendor/register", register, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("submit merges into catalog", func(t *testing.T) {
		submit := map[string]any{
			"vendorId": created.VendorID,
			"products": []map[string]any{
				{"name": "Tomato", "category": "Vegetables", "price": 60, "unit": "kg"},
				{"name": "Onion", "category": "Vegetables", "price": 35, "unit": "kg"},
			},
		}
		rec := doJSON(router, http.MethodPost, "/api/vendor/submit", submit, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		p, err := store.FindByKey(context.Background(), "Tomato", "Vegetables")
		require.NoError(t, err)
		require.Len(t, p.CurrentPrices, 1)
		assert.Equal(t, "FreshMart", p.CurrentPrices[0].Vendor)
		assert.Equal(t, 60.0, p.CurrentPrices[0].Price)
	})

	t.Run("submit replaces listing", func(t *testing.T) {
		submit := map[string]any{
			"vendorId": created.VendorID,
			"products": []map[string]any{
				{"name": "Carrot", "category": "Vegetables", "price": 70, "unit": "kg"},
			},
		}
		rec := doJSON(router, http.MethodPost, "/api/vendor/submit", submit, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(router, http.MethodGet, "/api/vendor/"+created.VendorID+"/products", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var listing []catalog.VendorProduct
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
		require.Len(t, listing, 1)
		assert.Equal(t, "Carrot", listing[0].Name)
	})

	t.Run("unknown vendor", func(t *testing.T) {
		rec := doJSON(router, http.MethodGet, "/api/vendor/nope/products", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		submit := map[string]any{
			"vendorId": "nope",
			"products": []map[string]any{{"name": "X", "category": "Y", "price": 1}},
		}
		rec = doJSON(router, http.MethodPost, "/api/vendor/submit", submit, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSubscriptionEndpoints(t *testing.T) {
	router, store, reconciler := newTestRouter(t, config.Config{})
	seedProduct(t, reconciler, "Tomato", "Vegetables", 65)
	p, err := store.FindByKey(context.Background(), "Tomato", "Vegetables")
	require.NoError(t, err)

	t.Run("unknown product", func(t *testing.T) {
		body := map[string]any{"userId": "user-1", "productId": "nope", "targetPrice": 50}
		rec := doJSON(router, http.MethodPost, "/api/subscribe", body, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("subscribe list delete", func(t *testing.T) {
		body := map[string]any{"userId": "user-1", "productId": p.ID, "targetPrice": 50}
		rec := doJSON(router, http.MethodPost, "/api/subscribe", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		// Subscribing again to the same product updates, not duplicates
		body["targetPrice"] = 45
		rec = doJSON(router, http.MethodPost, "/api/subscribe", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(router, http.MethodGet, "/api/subscribe/user-1", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var alerts []catalog.PriceAlert
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
		require.Len(t, alerts, 1)
		assert.Equal(t, 45.0, alerts[0].TargetPrice)

		rec = doJSON(router, http.MethodDelete, "/api/subscribe/user-1/"+alerts[0].ID, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(router, http.MethodDelete, "/api/subscribe/user-1/"+alerts[0].ID, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTokenAuth(t *testing.T) {
	router, _, _ := newTestRouter(t, config.Config{APIToken: "sekrit"})

	body := map[string]any{
		"name": "Ravi", "email": "ravi@freshmart.in", "storeName": "FreshMart",
	}

	rec := doJSON(router, http.MethodPost, "/api/vendor/register", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(router, http.MethodPost, "/api/vendor/register", body,
		map[string]string{"Authorization": "Bearer sekrit"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Read endpoints stay public
	rec = doJSON(router, http.MethodGet, "/api/prices/trending", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
