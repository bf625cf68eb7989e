package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, config RateLimitConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

// TestIsAllowed_PerIPLimit tests the fixed window per client IP
func TestIsAllowed_PerIPLimit(t *testing.T) {
	// Arrange
	rl := newTestLimiter(t, RateLimitConfig{
		Enabled:           true,
		Type:              RateLimitTypeIP,
		RequestsPerMinute: 3,
		WindowMinutes:     1,
	})

	// Act & Assert
	for i := 0; i < 3; i++ {
		allowed, info := rl.IsAllowed("10.0.0.1", false)
		assert.True(t, allowed)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := rl.IsAllowed("10.0.0.1", false)
	assert.False(t, allowed, "Fourth request in the window should be blocked")
	assert.Equal(t, 0, info.Remaining)

	allowed, _ = rl.IsAllowed("10.0.0.2", false)
	assert.True(t, allowed, "A different IP has its own window")
}

// TestIsAllowed_GlobalLimit tests the shared window across IPs
func TestIsAllowed_GlobalLimit(t *testing.T) {
	// Arrange
	rl := newTestLimiter(t, RateLimitConfig{
		Enabled:           true,
		Type:              RateLimitTypeGlobal,
		RequestsPerMinute: 2,
		WindowMinutes:     1,
	})

	// Act
	allowed1, _ := rl.IsAllowed("10.0.0.1", false)
	allowed2, _ := rl.IsAllowed("10.0.0.2", false)
	allowed3, _ := rl.IsAllowed("10.0.0.3", false)

	// Assert
	assert.True(t, allowed1)
	assert.True(t, allowed2)
	assert.False(t, allowed3, "Global window is shared across client IPs")
}

// TestIsAllowed_Disabled tests that a disabled limiter admits everything
func TestIsAllowed_Disabled(t *testing.T) {
	rl := newTestLimiter(t, RateLimitConfig{Enabled: false})

	for i := 0; i < 100; i++ {
		allowed, info := rl.IsAllowed("10.0.0.1", false)
		require.True(t, allowed)
		require.Equal(t, -1, info.Limit)
	}
}

// TestIsAllowed_AdminLimit tests the separate admin allowance
func TestIsAllowed_AdminLimit(t *testing.T) {
	// Arrange
	rl := newTestLimiter(t, RateLimitConfig{
		Enabled:                true,
		Type:                   RateLimitTypeIP,
		RequestsPerMinute:      1,
		WindowMinutes:          1,
		AdminRequestsPerMinute: 5,
	})

	// Act & Assert: the admin limit applies to admin traffic
	for i := 0; i < 5; i++ {
		allowed, info := rl.IsAllowed("10.0.0.1", true)
		require.True(t, allowed)
		assert.Equal(t, 5, info.Limit)
	}
	allowed, _ := rl.IsAllowed("10.0.0.1", true)
	assert.False(t, allowed)
}

// TestResetRateLimits tests clearing the counters
func TestResetRateLimits(t *testing.T) {
	// Arrange
	rl := newTestLimiter(t, RateLimitConfig{
		Enabled:           true,
		Type:              RateLimitTypeIP,
		RequestsPerMinute: 1,
		WindowMinutes:     1,
	})
	_, _ = rl.IsAllowed("10.0.0.1", false)
	allowed, _ := rl.IsAllowed("10.0.0.1", false)
	require.False(t, allowed)

	// Act
	rl.ResetRateLimits()

	// Assert
	allowed, _ = rl.IsAllowed("10.0.0.1", false)
	assert.True(t, allowed, "Counters should start over after a reset")
}

// TestGetRateLimitStats tests the monitoring snapshot
func TestGetRateLimitStats(t *testing.T) {
	// Arrange
	rl := newTestLimiter(t, RateLimitConfig{
		Enabled:           true,
		Type:              RateLimitTypeBoth,
		RequestsPerMinute: 10,
		WindowMinutes:     1,
	})
	_, _ = rl.IsAllowed("10.0.0.1", false)
	_, _ = rl.IsAllowed("10.0.0.2", false)

	// Act
	stats := rl.GetRateLimitStats()

	// Assert
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, "both", stats["type"])
	assert.Equal(t, 2, stats["active_ip_limits"])
	assert.Equal(t, 2, stats["global_count"])
}

// TestRateLimitMiddleware_Headers tests the X-RateLimit-* headers on
// admitted and blocked requests
func TestRateLimitMiddleware_Headers(t *testing.T) {
	// Arrange
	rl := newTestLimiter(t, RateLimitConfig{
		Enabled:           true,
		Type:              RateLimitTypeIP,
		RequestsPerMinute: 1,
		WindowMinutes:     1,
	})
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Act: first request passes
	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	// second request from the same IP is blocked
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

// TestRateLimitMiddleware_SkipsHealthCheck tests that /health is never
// rate limited
func TestRateLimitMiddleware_SkipsHealthCheck(t *testing.T) {
	// Arrange
	rl := newTestLimiter(t, RateLimitConfig{
		Enabled:           true,
		Type:              RateLimitTypeIP,
		RequestsPerMinute: 1,
		WindowMinutes:     1,
	})
	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Act & Assert
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

// TestGetClientIP tests the forwarded header precedence
func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.4, 203.0.113.7")
	assert.Equal(t, "198.51.100.4", getClientIP(req), "First X-Forwarded-For hop wins")

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	assert.Equal(t, "203.0.113.7", getClientIP(req), "Unparseable forwarded value falls through to X-Real-IP")
}

// TestParseRateLimitType tests type parsing with fallback
func TestParseRateLimitType(t *testing.T) {
	assert.Equal(t, RateLimitTypeIP, parseRateLimitType(""))
	assert.Equal(t, RateLimitTypeIP, parseRateLimitType("ip"))
	assert.Equal(t, RateLimitTypeGlobal, parseRateLimitType("GLOBAL"))
	assert.Equal(t, RateLimitTypeBoth, parseRateLimitType("both"))
	assert.Equal(t, RateLimitTypeIP, parseRateLimitType("per-user"))
}

// TestParseBool tests boolean parsing with fallback
func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("", true))
	assert.True(t, parseBool("true", false))
	assert.True(t, parseBool("ON", false))
	assert.False(t, parseBool("disabled", true))
	assert.True(t, parseBool("maybe", true))
}
