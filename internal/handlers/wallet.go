package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/telemetry"
	"biolink-storefront-api/internal/wallet"

	"github.com/gorilla/mux"
)

// WalletHandler handles wallet and payout HTTP requests
type WalletHandler struct {
	walletService *wallet.Service
	telemetry     *telemetry.StorefrontApiTelemetry
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletService *wallet.Service, tel *telemetry.StorefrontApiTelemetry) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		telemetry:     tel,
	}
}

// GetWallet handles GET /v1/wallets/{userId} - Balance summary
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]

	info := h.walletService.GetWallet(userID)

	writeJSONResponse(w, http.StatusOK, models.WalletResponse{
		UserID:           userID,
		Wallet:           info,
		AvailableBalance: h.walletService.AvailableBalance(userID),
	})
}

// ListTransactions handles GET /v1/wallets/{userId}/transactions
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]

	transactions := h.walletService.ListTransactions(userID)

	slog.Debug("Listing wallet transactions",
		"user_id", userID,
		"count", len(transactions))

	writeJSONResponse(w, http.StatusOK, models.TransactionListResponse{Items: transactions})
}

// CreatePayout handles POST /v1/wallets/{userId}/payouts - Request a withdrawal
func (h *WalletHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]

	var req models.CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in payout request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	payout, err := h.walletService.CreatePayoutRequest(userID, req.Amount, req.Method, req.AccountDetails)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrInvalidAmount):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), []models.ErrorDetail{
				{Field: "amount", Issue: "must be positive"},
			})
		case errors.Is(err, wallet.ErrInvalidMethod):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), []models.ErrorDetail{
				{Field: "method", Issue: "must be bank or ewallet"},
			})
		case errors.Is(err, wallet.ErrInsufficientBalance):
			writeErrorResponse(w, http.StatusConflict, "conflict", err.Error(), nil)
		default:
			slog.Error("Failed to create payout request", "user_id", userID, "error", err)
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create payout request", nil)
		}
		return
	}

	if h.telemetry != nil {
		h.telemetry.RecordPayoutRequest(r.Context(), payout.Method)
	}

	slog.Info("Payout request created",
		"user_id", userID,
		"payout_id", payout.ID,
		"amount", payout.Amount,
		"method", payout.Method)

	writeJSONResponse(w, http.StatusCreated, payout)
}

// ListPayouts handles GET /v1/wallets/{userId}/payouts
func (h *WalletHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]

	payouts := h.walletService.ListPayouts(userID)

	writeJSONResponse(w, http.StatusOK, models.PayoutListResponse{Items: payouts})
}

// GetPayout handles GET /v1/wallets/{userId}/payouts/{payoutId}
func (h *WalletHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]
	payoutID := vars["payoutId"]

	payout, err := h.walletService.GetPayout(userID, payoutID)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error(), nil)
		return
	}

	writeJSONResponse(w, http.StatusOK, payout)
}
