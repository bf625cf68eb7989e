package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"biolink-storefront-api/internal/catalog"
	"biolink-storefront-api/internal/checkout"
	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/telemetry"

	"github.com/gorilla/mux"
)

// CheckoutHandler handles checkout and order HTTP requests
type CheckoutHandler struct {
	checkoutService *checkout.Service
	catalogService  *catalog.Service
	telemetry       *telemetry.StorefrontApiTelemetry
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *checkout.Service, catalogService *catalog.Service, tel *telemetry.StorefrontApiTelemetry) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		catalogService:  catalogService,
		telemetry:       tel,
	}
}

// Checkout handles POST /v1/checkout - Convert a cart into an order
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in checkout request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if req.CartID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Cart ID is required", []models.ErrorDetail{
			{Field: "cartId", Issue: "cannot be empty"},
		})
		return
	}

	slog.Info("Processing checkout",
		"cart_id", req.CartID,
		"referral_code", req.ReferralCode,
		"remote_addr", r.RemoteAddr)

	order, err := h.checkoutService.Checkout(req.CartID, req.Customer, req.ReferralCode)
	if err != nil {
		switch {
		case errIsAny(err, checkout.ErrCartEmpty, checkout.ErrMissingCustomerInfo):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		case errors.Is(err, catalog.ErrInsufficientStock):
			writeErrorResponse(w, http.StatusConflict, "conflict", err.Error(), nil)
		default:
			slog.Error("Checkout failed", "cart_id", req.CartID, "error", err)
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Checkout failed", nil)
		}
		return
	}

	if h.telemetry != nil {
		h.telemetry.RecordCheckout(r.Context(), order.ResellerID)
	}

	slog.Info("Checkout completed",
		"order_id", order.ID,
		"reseller_id", order.ResellerID,
		"total", order.Total,
		"total_commission", order.TotalCommission)

	writeJSONResponse(w, http.StatusCreated, models.CheckoutResponse{
		OrderID: order.ID,
		Order:   order,
	})
}

// GetOrder handles GET /v1/orders/{orderId}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["orderId"]

	order, err := h.catalogService.GetOrder(orderID)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Order not found: %s", orderID), nil)
		return
	}

	writeJSONResponse(w, http.StatusOK, order)
}
