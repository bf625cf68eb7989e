package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"biolink-storefront-api/internal/catalog"
	"biolink-storefront-api/internal/checkout"
	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/telemetry"
	"biolink-storefront-api/internal/wallet"

	"github.com/gorilla/mux"
)

// AdminHandler handles administrative HTTP requests: catalog management,
// payout approval, order fulfilment and manual commission distribution.
type AdminHandler struct {
	catalogService  *catalog.Service
	walletService   *wallet.Service
	checkoutService *checkout.Service
	telemetry       *telemetry.StorefrontApiTelemetry
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(catalogService *catalog.Service, walletService *wallet.Service, checkoutService *checkout.Service, tel *telemetry.StorefrontApiTelemetry) *AdminHandler {
	return &AdminHandler{
		catalogService:  catalogService,
		walletService:   walletService,
		checkoutService: checkoutService,
		telemetry:       tel,
	}
}

// SetProducts handles POST /v1/admin/products/set - Batch partial updates
func (h *AdminHandler) SetProducts(w http.ResponseWriter, r *http.Request) {
	var req models.AdminSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in admin set request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if len(req.Products) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "No products provided", []models.ErrorDetail{
			{Field: "products", Issue: "cannot be empty"},
		})
		return
	}

	slog.Info("Processing admin product set",
		"product_count", len(req.Products),
		"remote_addr", r.RemoteAddr)

	response := h.catalogService.AdminSetProducts(req.Products)

	// Batch responses are 200 even with partial failures; callers check
	// the per-item results.
	writeJSONResponse(w, http.StatusOK, response)
}

// CreateProducts handles POST /v1/admin/products/create - Batch create
func (h *AdminHandler) CreateProducts(w http.ResponseWriter, r *http.Request) {
	var req models.AdminCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in admin create request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if len(req.Products) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "No products provided", []models.ErrorDetail{
			{Field: "products", Issue: "cannot be empty"},
		})
		return
	}

	slog.Info("Processing admin product create",
		"product_count", len(req.Products),
		"remote_addr", r.RemoteAddr)

	response := h.catalogService.AdminCreateProducts(req.Products)

	writeJSONResponse(w, http.StatusOK, response)
}

// DeleteProducts handles POST /v1/admin/products/delete - Batch delete
func (h *AdminHandler) DeleteProducts(w http.ResponseWriter, r *http.Request) {
	var req models.AdminDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in admin delete request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if len(req.ProductIDs) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "No product IDs provided", []models.ErrorDetail{
			{Field: "productIds", Issue: "cannot be empty"},
		})
		return
	}

	slog.Info("Processing admin product delete",
		"product_count", len(req.ProductIDs),
		"remote_addr", r.RemoteAddr)

	response := h.catalogService.AdminDeleteProducts(req.ProductIDs)

	writeJSONResponse(w, http.StatusOK, response)
}

// UpdatePayoutStatus handles PATCH /v1/admin/wallets/{userId}/payouts/{payoutId}/status
func (h *AdminHandler) UpdatePayoutStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]
	payoutID := vars["payoutId"]

	var req models.UpdatePayoutStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in payout status request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	payout, err := h.walletService.UpdatePayoutStatus(userID, payoutID, req.Status, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrPayoutNotFound):
			writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error(), nil)
		case errors.Is(err, wallet.ErrInvalidStatus):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), []models.ErrorDetail{
				{Field: "status", Issue: "must be pending, approved, rejected, processing, completed or failed"},
			})
		case errors.Is(err, wallet.ErrInvalidTransition):
			writeErrorResponse(w, http.StatusConflict, "conflict", err.Error(), nil)
		default:
			slog.Error("Failed to update payout status",
				"user_id", userID,
				"payout_id", payoutID,
				"error", err)
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to update payout status", nil)
		}
		return
	}

	slog.Info("Payout status updated",
		"user_id", userID,
		"payout_id", payoutID,
		"status", payout.Status)

	writeJSONResponse(w, http.StatusOK, payout)
}

// UpdateOrderStatus handles PATCH /v1/admin/orders/{orderId}/status.
// Marking an order paid triggers commission distribution.
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["orderId"]

	var req models.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in order status request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	order, err := h.checkoutService.UpdateOrderStatus(orderID, req.Status, req.PaymentStatus)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrOrderNotFound):
			writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error(), nil)
		case errIsAny(err, checkout.ErrInvalidOrderStatus, checkout.ErrInvalidPaymentStatus):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		case errors.Is(err, checkout.ErrOrderTransition):
			writeErrorResponse(w, http.StatusConflict, "conflict", err.Error(), nil)
		default:
			slog.Error("Failed to update order status", "order_id", orderID, "error", err)
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to update order status", nil)
		}
		return
	}

	slog.Info("Order status updated",
		"order_id", orderID,
		"status", order.Status,
		"payment_status", order.PaymentStatus)

	writeJSONResponse(w, http.StatusOK, order)
}

// ProcessCommission handles POST /v1/admin/commissions - Distribute an
// order's commission explicitly across reseller, community and referrer.
// Processing the same order ID twice returns the cached result.
func (h *AdminHandler) ProcessCommission(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in commission request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	result, err := h.walletService.ProcessCommission(req.OrderID, req.Components)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrMissingOrderID):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), []models.ErrorDetail{
				{Field: "orderId", Issue: "cannot be empty"},
			})
		case errors.Is(err, wallet.ErrInvalidAmount):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		default:
			slog.Error("Failed to process commission", "order_id", req.OrderID, "error", err)
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to process commission", nil)
		}
		return
	}

	if h.telemetry != nil {
		h.telemetry.RecordCommissionProcessed(r.Context(), result.Duplicate)
	}

	slog.Info("Commission processed",
		"order_id", req.OrderID,
		"total_amount", result.TotalAmount,
		"transaction_count", len(result.Transactions),
		"duplicate", result.Duplicate)

	writeJSONResponse(w, http.StatusOK, result)
}
