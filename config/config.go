package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// HTTP API configuration
	ListenAddr     string
	AllowedOrigins []string
	APIToken       string
	RateLimitRPS   float64
	RateLimitBurst int

	// Catalog store configuration
	DatabasePath string

	// Redis configuration (price event stream)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration (fetch block keys)
	MemcacheAddr string

	// Scraper configuration
	ScrapeInterval    time.Duration
	CategoryDelay     time.Duration
	NavigationTimeout time.Duration
	LocationTimeout   time.Duration
	MaxCardsPerPage   int
	MaxFetchRetries   int
	RetryBackoff      time.Duration
	BrowserDisabled   bool

	// Target site
	ZeptoBaseURL string
	Locality     string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	scrapeInterval, _ := strconv.Atoi(getEnv("SCRAPE_INTERVAL_SECONDS", "10800"))
	categoryDelayMs, _ := strconv.Atoi(getEnv("CATEGORY_DELAY_MS", "2500"))
	navTimeout, _ := strconv.Atoi(getEnv("NAVIGATION_TIMEOUT_SECONDS", "10"))
	locTimeout, _ := strconv.Atoi(getEnv("LOCATION_TIMEOUT_SECONDS", "5"))
	maxCards, _ := strconv.Atoi(getEnv("MAX_CARDS_PER_PAGE", "20"))
	maxRetries, _ := strconv.Atoi(getEnv("MAX_FETCH_RETRIES", "2"))
	retryBackoffMs, _ := strconv.Atoi(getEnv("RETRY_BACKOFF_MS", "2000"))
	rateLimitRPS, _ := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	rateLimitBurst, _ := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "40"))

	return Config{
		ListenAddr:           getEnv("LISTEN_ADDR", ":5000"),
		AllowedOrigins:       splitCSV(getEnv("ALLOWED_ORIGINS", "*")),
		APIToken:             getEnv("API_TOKEN", ""),
		RateLimitRPS:         rateLimitRPS,
		RateLimitBurst:       rateLimitBurst,
		DatabasePath:         getEnv("DATABASE_PATH", "localsaver.db"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "price-events"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		ScrapeInterval:       time.Duration(scrapeInterval) * time.Second,
		CategoryDelay:        time.Duration(categoryDelayMs) * time.Millisecond,
		NavigationTimeout:    time.Duration(navTimeout) * time.Second,
		LocationTimeout:      time.Duration(locTimeout) * time.Second,
		MaxCardsPerPage:      maxCards,
		MaxFetchRetries:      maxRetries,
		RetryBackoff:         time.Duration(retryBackoffMs) * time.Millisecond,
		BrowserDisabled:      getEnv("BROWSER_DISABLED", "") == "true",
		ZeptoBaseURL:         getEnv("ZEPTO_BASE_URL", "https://www.zeptonow.com"),
		Locality:             getEnv("LOCALITY", "Koramangala, Bengaluru"),
		Environment:          getEnv("LOCALSAVER_ENVIRONMENT", "development"),
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.ScrapeInterval <= 0 {
		return fmt.Errorf("scrape interval must be positive")
	}
	if c.CategoryDelay < 0 {
		return fmt.Errorf("category delay cannot be negative")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.MaxCardsPerPage <= 0 {
		return fmt.Errorf("max cards per page must be positive")
	}
	if c.MaxFetchRetries < 0 {
		return fmt.Errorf("max fetch retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive")
	}
	if c.RedisStreamCount <= 0 {
		return fmt.Errorf("redis stream count must be positive")
	}
	if c.ZeptoBaseURL == "" {
		return fmt.Errorf("zepto base URL cannot be empty")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
