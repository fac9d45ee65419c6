package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/localsaver/backend/config"
	"github.com/localsaver/backend/internal/catalog"
	"github.com/localsaver/backend/internal/scraper"
	"github.com/localsaver/backend/logger"
	"github.com/localsaver/backend/services/api"
	"github.com/localsaver/backend/services/cache"
	"github.com/localsaver/backend/services/publisher"
	"github.com/localsaver/backend/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("scrape_interval", cfg.ScrapeInterval).
		Str("listen_addr", cfg.ListenAddr).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// Build the scrape pipeline
	site := scraper.NewZeptoSite(cfg.ZeptoBaseURL, cfg.Locality)
	metrics := scraper.NewMetrics()
	fetchOpts := scraper.Options{
		NavigationTimeout: cfg.NavigationTimeout,
		LocationTimeout:   cfg.LocationTimeout,
		MaxRetries:        cfg.MaxFetchRetries,
		RetryBackoff:      cfg.RetryBackoff,
		CategoryDelay:     cfg.CategoryDelay,
	}
	var fetcher scraper.Fetcher
	if cfg.BrowserDisabled {
		log.Warn().Msg("Headless browser disabled, using plain HTTP fetcher")
		fetcher = scraper.NewPlainFetcher(site, services.Cache, fetchOpts)
	} else {
		fetcher = scraper.NewBrowserFetcher(site, services.Cache, fetchOpts)
	}

	reconciler := catalog.NewReconciler(services.Store, services.Publisher)
	w := worker.NewWorker(
		fetcher,
		scraper.NewExtractor(site, cfg.MaxCardsPerPage),
		scraper.NewNormalizer(site),
		reconciler,
		services.Publisher,
		metrics,
		cfg.ScrapeInterval,
	)

	// Start worker in a goroutine
	go w.Start(ctx)

	// Start HTTP API
	router := api.NewRouter(cfg, api.NewHandler(services.Store, reconciler), metrics.Registry)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	serverDone := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Starting HTTP API")
		serverDone <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case err := <-serverDone:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server exited with error")
		}
	}
	cancel()

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

// Services holds all the initialized services
type Services struct {
	Store     *catalog.Store
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	store, err := catalog.OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}
	services.Store = store
	logger.Info("Opened catalog store at %s", cfg.DatabasePath)

	cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	services.Cache = cacheService
	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)

	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	services.Publisher = redisPublisher
	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	return services, nil
}
