package geoip

import (
	"context"

	"frameworks/cartographer/pkg/cache"
)

// CountryLookup is the subset of Reader used by CachedLocator.
type CountryLookup interface {
	CountryCode(ip string) string
}

// CachedLocator memoizes IP → country lookups. Misses (private or unknown
// IPs) are cached too when the cache has a NegativeTTL.
type CachedLocator struct {
	lookup CountryLookup
	cache  *cache.Cache[string]
}

func NewCachedLocator(lookup CountryLookup, c *cache.Cache[string]) *CachedLocator {
	return &CachedLocator{lookup: lookup, cache: c}
}

// CountryCode returns the country for ip, or "" when it cannot be resolved.
func (l *CachedLocator) CountryCode(ctx context.Context, ip string) string {
	if l == nil || l.lookup == nil {
		return ""
	}
	if l.cache == nil {
		return l.lookup.CountryCode(ip)
	}
	code, ok, _ := l.cache.Get(ctx, ip, func(_ context.Context, key string) (string, bool, error) {
		code := l.lookup.CountryCode(key)
		return code, code != "", nil
	})
	if !ok {
		return ""
	}
	return code
}
