package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"biolink-storefront-api/internal/models"
)

// AuthMiddleware authenticates storefront API clients via the X-API-Key header.
// Valid keys come from the API_KEYS environment variable (comma-separated).
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			slog.Warn("Authentication failed: missing API key", "remote_addr", r.RemoteAddr)
			writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "API key required", nil)
			return
		}

		if !isValidAPIKey(apiKey) {
			slog.Warn("Authentication failed: invalid API key", "remote_addr", r.RemoteAddr, "provided_key", apiKey)
			writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid API key", nil)
			return
		}

		slog.Debug("Authentication successful", "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func isValidAPIKey(apiKey string) bool {
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr == "" {
		apiKeysStr = "demo" // Default fallback
	}

	for _, validKey := range strings.Split(apiKeysStr, ",") {
		if strings.TrimSpace(validKey) == apiKey {
			return true
		}
	}
	return false
}

// AdminAuthMiddleware guards the catalog and payout management endpoints.
// Admin keys come from ADMIN_API_KEYS; without that variable set, regular
// keys with an "admin-" prefix are accepted.
func AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			slog.Warn("Admin authentication failed: missing API key", "remote_addr", r.RemoteAddr)
			writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Admin API key required", nil)
			return
		}

		if !isValidAdminAPIKey(apiKey) {
			slog.Warn("Admin authentication failed: invalid admin API key", "remote_addr", r.RemoteAddr)
			writeErrorResponse(w, http.StatusForbidden, "forbidden", "Admin access required", nil)
			return
		}

		slog.Debug("Admin authentication successful", "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func isValidAdminAPIKey(apiKey string) bool {
	adminKeysStr := os.Getenv("ADMIN_API_KEYS")
	if adminKeysStr == "" {
		if strings.HasPrefix(apiKey, "admin-") {
			return isValidAPIKey(apiKey)
		}
		return false
	}

	for _, validKey := range strings.Split(adminKeysStr, ",") {
		if strings.TrimSpace(validKey) == apiKey {
			return true
		}
	}
	return false
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
