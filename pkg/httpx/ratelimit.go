package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/medportal/phoneauth/pkg/slogx"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a request could not be paced within its
// context deadline.
var ErrRateLimited = errors.New("httpx: client rate limit exceeded")

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// Outbound pacing profiles. The login service protects its OTP endpoints with
// strict per-client limits, so we stay under them instead of collecting 429s.
// These can be overridden via environment variables (see init() below).
var (
	// StrictLimit for the session-issuance and code-exchange endpoints.
	// Override with: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC, RATELIMIT_STRICT_BURST
	StrictLimit = RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		Burst:             5,
	}

	// ModerateLimit for identity provider calls.
	// Override with: RATELIMIT_MODERATE_REQUESTS, RATELIMIT_MODERATE_WINDOW_SEC, RATELIMIT_MODERATE_BURST
	ModerateLimit = RateLimitConfig{
		RequestsPerWindow: 30,
		Window:            time.Minute,
		Burst:             10,
	}
)

func init() {
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", ModerateLimit)
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC, RATELIMIT_STRICT_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor groups outbound requests into rate limiting buckets.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor buckets requests by target host.
func HostKeyExtractor(r *http.Request) string {
	return r.URL.Host
}

// EndpointKeyExtractor buckets requests by target host and path.
func EndpointKeyExtractor(r *http.Request) string {
	return r.URL.Host + r.URL.Path
}

// rateLimiter manages rate limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	mu       sync.Mutex
	// Cleanup old limiters periodically
	lastCleanup time.Time
}

// getLimiter retrieves or creates a rate limiter for the given key
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup removes limiters whose buckets are full again, i.e. keys that
// have been idle for a while.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit paces outbound requests per key. A request waits for a token
// instead of being rejected; if the wait would outlive the request context it
// fails with ErrRateLimited without reaching the network.
func RateLimit(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()

	rl := &rateLimiter{
		rate:        rate.Limit(ratePerSecond),
		burst:       config.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			ctx := r.Context()

			key := keyExtractor(r)
			if key == "" {
				return next.RoundTrip(r)
			}

			if err := rl.getLimiter(key).Wait(ctx); err != nil {
				slogx.FromContext(ctx).Warn("client rate limit wait failed",
					"key", key,
					"error", err,
				)
				return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
			}

			return next.RoundTrip(r)
		})
	}
}

// RateLimitByEndpoint paces requests per host and path.
func RateLimitByEndpoint(config RateLimitConfig) Middleware {
	return RateLimit(config, EndpointKeyExtractor)
}
