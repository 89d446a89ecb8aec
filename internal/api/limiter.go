package api

import (
	"sync"

	"autoservice/internal/config"

	"golang.org/x/time/rate"
)

// clientLimits keeps one token bucket per API client. A configured key may
// carry its own rate_limit; any other caller (or a key without one) gets the
// global api.rate_limit. An RPS of zero or less means no limit.
type clientLimits struct {
	defaults config.APIRateLimitConfig
	perKey   map[string]config.APIRateLimitConfig

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newClientLimits(cfg config.APIConfig) *clientLimits {
	perKey := make(map[string]config.APIRateLimitConfig)
	for _, k := range cfg.Auth.APIKeys {
		if k.RateLimit != nil {
			perKey[k.Key] = *k.RateLimit
		}
	}
	return &clientLimits{
		defaults: cfg.RateLimit,
		perKey:   perKey,
		buckets:  make(map[string]*rate.Limiter),
	}
}

func (l *clientLimits) limitFor(clientKey string) config.APIRateLimitConfig {
	if lim, ok := l.perKey[clientKey]; ok {
		return lim
	}
	return l.defaults
}

func (l *clientLimits) allow(clientKey string) bool {
	lim := l.limitFor(clientKey)
	if lim.RPS <= 0 {
		return true
	}

	l.mu.Lock()
	bucket, ok := l.buckets[clientKey]
	if !ok {
		burst := lim.Burst
		if burst <= 0 {
			burst = 5
		}
		bucket = rate.NewLimiter(rate.Limit(lim.RPS), burst)
		l.buckets[clientKey] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}
