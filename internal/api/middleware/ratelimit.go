package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/greenyield/greenyield/internal/api/models"
)

// RateLimitConfig holds a request budget per window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Rate limits per endpoint class.
var (
	// PreviewRateLimit applies to the unauthenticated preview endpoints.
	PreviewRateLimit = RateLimitConfig{RequestLimit: 60, WindowLength: time.Minute}

	// WeatherRateLimit applies to forecasts that call the weather provider.
	WeatherRateLimit = RateLimitConfig{RequestLimit: 20, WindowLength: time.Minute}

	// StandardRateLimit applies to authenticated grower endpoints.
	StandardRateLimit = RateLimitConfig{RequestLimit: 120, WindowLength: time.Minute}
)

// RateLimitByIP limits by client IP (as resolved by chi's RealIP).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

// RateLimitByGrower limits by authenticated grower, falling back to client IP.
func RateLimitByGrower(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByGrowerOrIP),
		httprate.WithLimitHandler(limitExceeded(cfg)),
	)
}

func keyByGrowerOrIP(r *http.Request) (string, error) {
	if growerID := GetGrowerID(r.Context()); growerID != "" {
		return "grower:" + growerID, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitExceeded writes a 429 problem. httprate does not expose the reset
// time, so Retry-After is the full window.
func limitExceeded(cfg RateLimitConfig) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, try again later").
			WithInstance(r.URL.Path).
			Write(w)
	}
}
