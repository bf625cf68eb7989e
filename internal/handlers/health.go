package handlers

import (
	"net/http"
)

// HealthHandler serves the storefront liveness probe
type HealthHandler struct{}

// NewHealthHandler creates the health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health handles GET /health - liveness check, no auth required
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}
