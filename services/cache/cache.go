package cache

import (
	"fmt"
	"strings"
	"time"
)

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// RateLimitKey returns the cache key used to block a vendor after the
// site responded with a rate-limit status.
func RateLimitKey(vendor string) string {
	return fmt.Sprintf("%s_rate_limited", strings.ToLower(vendor))
}

// MarkRateLimited blocks scraping for a vendor for the given duration.
func MarkRateLimited(c CacheService, vendor string, d time.Duration) error {
	return c.Set(RateLimitKey(vendor), []byte("1"), d)
}

// IsRateLimited reports whether a vendor is currently blocked.
func IsRateLimited(c CacheService, vendor string) bool {
	if c == nil {
		return false
	}
	v, err := c.Get(RateLimitKey(vendor))
	return err == nil && len(v) > 0
}
