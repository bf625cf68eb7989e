package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"biolink-storefront-api/internal/models"
)

// RateLimitType defines the type of rate limiting
type RateLimitType string

const (
	RateLimitTypeIP     RateLimitType = "ip"
	RateLimitTypeGlobal RateLimitType = "global"
	RateLimitTypeBoth   RateLimitType = "both"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled                bool
	Type                   RateLimitType
	RequestsPerMinute      int
	WindowMinutes          int
	AdminRequestsPerMinute int
}

// rateLimitEntry tracks request counts within a fixed window.
type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimiter implements fixed-window rate limiting per client IP and/or
// globally across all clients. All entries are guarded by a single mutex;
// the windows are coarse enough that contention is not a concern here.
type RateLimiter struct {
	config        RateLimitConfig
	mutex         sync.Mutex
	ipLimits      map[string]*rateLimitEntry
	globalLimit   rateLimitEntry
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// RateLimitInfo carries the values exposed via X-RateLimit-* headers.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:      config,
		ipLimits:    make(map[string]*rateLimitEntry),
		stopCleanup: make(chan struct{}),
	}

	rl.cleanupTicker = time.NewTicker(time.Minute)
	go rl.cleanupExpiredEntries()

	slog.Info("Rate limiter initialized",
		"enabled", config.Enabled,
		"type", config.Type,
		"requests_per_minute", config.RequestsPerMinute,
		"window_minutes", config.WindowMinutes,
		"admin_requests_per_minute", config.AdminRequestsPerMinute)

	return rl
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}
	close(rl.stopCleanup)
}

func (rl *RateLimiter) cleanupExpiredEntries() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			now := time.Now()
			rl.mutex.Lock()
			for ip, entry := range rl.ipLimits {
				if now.After(entry.resetTime) {
					delete(rl.ipLimits, ip)
				}
			}
			if now.After(rl.globalLimit.resetTime) {
				rl.globalLimit = rateLimitEntry{}
			}
			rl.mutex.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}

// IsAllowed checks whether a request from clientIP may proceed. Admin
// requests use the separate admin limit when one is configured.
func (rl *RateLimiter) IsAllowed(clientIP string, isAdmin bool) (bool, *RateLimitInfo) {
	if !rl.config.Enabled {
		return true, &RateLimitInfo{Limit: -1, Remaining: -1}
	}

	now := time.Now()
	window := time.Duration(rl.config.WindowMinutes) * time.Minute

	limit := rl.config.RequestsPerMinute
	if isAdmin && rl.config.AdminRequestsPerMinute > 0 {
		limit = rl.config.AdminRequestsPerMinute
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	ipAllowed, globalAllowed := true, true
	var ipInfo, globalInfo *RateLimitInfo

	if rl.config.Type == RateLimitTypeIP || rl.config.Type == RateLimitTypeBoth {
		entry, exists := rl.ipLimits[clientIP]
		if !exists {
			entry = &rateLimitEntry{}
			rl.ipLimits[clientIP] = entry
		}
		ipAllowed, ipInfo = consumeSlot(entry, limit, window, now)
	}

	if rl.config.Type == RateLimitTypeGlobal || rl.config.Type == RateLimitTypeBoth {
		globalAllowed, globalInfo = consumeSlot(&rl.globalLimit, limit, window, now)
	}

	switch rl.config.Type {
	case RateLimitTypeIP:
		return ipAllowed, ipInfo
	case RateLimitTypeGlobal:
		return globalAllowed, globalInfo
	default:
		// "both" reports the most restrictive of the two limits
		info := ipInfo
		if globalInfo != nil && (ipInfo == nil || globalInfo.Remaining < ipInfo.Remaining) {
			info = globalInfo
		}
		return ipAllowed && globalAllowed, info
	}
}

// consumeSlot resets an expired window and claims one request slot if any
// remain. The caller must hold the limiter mutex.
func consumeSlot(entry *rateLimitEntry, limit int, window time.Duration, now time.Time) (bool, *RateLimitInfo) {
	if now.After(entry.resetTime) {
		entry.count = 0
		entry.resetTime = now.Add(window)
	}

	info := &RateLimitInfo{
		Limit:     limit,
		Remaining: limit - entry.count - 1,
		ResetTime: entry.resetTime,
	}

	if entry.count >= limit {
		info.Remaining = 0
		return false, info
	}

	entry.count++
	info.Remaining = limit - entry.count
	return true, info
}

// RateLimitMiddleware creates a rate limiting middleware using an existing rate limiter
func RateLimitMiddleware(rateLimiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip rate limiting for health check
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := getClientIP(r)
			isAdmin := strings.HasPrefix(r.URL.Path, "/v1/admin")

			allowed, info := rateLimiter.IsAllowed(clientIP, isAdmin)

			setRateLimitHeaders(w, info)

			if !allowed {
				slog.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"path", r.URL.Path,
					"method", r.Method,
					"is_admin", isAdmin,
					"limit", info.Limit,
					"reset_time", info.ResetTime.Format(time.RFC3339))

				writeRateLimitErrorResponse(w, info)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func setRateLimitHeaders(w http.ResponseWriter, info *RateLimitInfo) {
	if info.Limit >= 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))

		if !info.ResetTime.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}
	}
}

func writeRateLimitErrorResponse(w http.ResponseWriter, info *RateLimitInfo) {
	w.Header().Set("Content-Type", "application/json")

	retryAfter := ""
	if !info.ResetTime.IsZero() {
		retryAfter = fmt.Sprintf("%.0f", time.Until(info.ResetTime).Seconds())
		w.Header().Set("Retry-After", retryAfter)
	}

	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    "rate_limit_exceeded",
		Message: "Rate limit exceeded. Please try again later.",
		Details: []models.ErrorDetail{
			{
				Field: "rate_limit",
				Issue: fmt.Sprintf("Exceeded %d requests per window", info.Limit),
			},
			{
				Field: "retry_after",
				Issue: fmt.Sprintf("Retry after %s seconds", retryAfter),
			},
		},
	})
}
