package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/localsaver/backend/config"
)

// NewRouter builds the HTTP API. registry may be nil when the scrape
// pipeline is not running in this process.
func NewRouter(cfg config.Config, handler *Handler, registry *prometheus.Registry) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORSMiddleware(cfg.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	router.GET("/healthz", handler.HealthCheck)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	prices := router.Group("/api/prices")
	{
		prices.GET("", handler.SearchPrices)
		prices.GET("/trending", handler.TrendingPrices)
		prices.GET("/:productId/history", handler.PriceHistory)
	}

	vendor := router.Group("/api/vendor", TokenAuthMiddleware(cfg.APIToken))
	{
		vendor.POST("/register", handler.RegisterVendor)
		vendor.POST("/submit", handler.SubmitPrices)
		vendor.GET("/:vendorId/products", handler.VendorProducts)
	}

	subscribe := router.Group("/api/subscribe", TokenAuthMiddleware(cfg.APIToken))
	{
		subscribe.POST("", handler.Subscribe)
		subscribe.GET("/:userId", handler.UserAlerts)
		subscribe.DELETE("/:userId/:alertId", handler.DeleteAlert)
	}

	return router
}
