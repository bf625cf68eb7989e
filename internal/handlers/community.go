package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"biolink-storefront-api/internal/community"
	"biolink-storefront-api/internal/events"
	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/telemetry"

	"github.com/gorilla/mux"
)

// CommunityHandler handles voucher and share tracking HTTP requests
type CommunityHandler struct {
	communityService *community.Service
	eventQueue       *events.EventQueue
	telemetry        *telemetry.StorefrontApiTelemetry
}

// NewCommunityHandler creates a new community handler
func NewCommunityHandler(communityService *community.Service, eventQueue *events.EventQueue, tel *telemetry.StorefrontApiTelemetry) *CommunityHandler {
	return &CommunityHandler{
		communityService: communityService,
		eventQueue:       eventQueue,
		telemetry:        tel,
	}
}

// CreateVoucher handles POST /v1/vouchers - Mint a community voucher
func (h *CommunityHandler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in create voucher request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid validFrom timestamp", []models.ErrorDetail{
			{Field: "validFrom", Issue: "must be RFC3339"},
		})
		return
	}

	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid validUntil timestamp", []models.ErrorDetail{
			{Field: "validUntil", Issue: "must be RFC3339"},
		})
		return
	}

	if !validUntil.After(validFrom) {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Validity window is empty", []models.ErrorDetail{
			{Field: "validUntil", Issue: "must be after validFrom"},
		})
		return
	}

	voucher, err := h.communityService.CreateVoucher(models.CommunityVoucher{
		Code:           req.Code,
		Type:           req.Type,
		Title:          req.Title,
		CommunityID:    req.CommunityID,
		ProductID:      req.ProductID,
		DiscountAmount: req.DiscountAmount,
		CommissionPct:  req.CommissionPct,
		MaxRedemptions: req.MaxRedemptions,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
	})
	if err != nil {
		switch {
		case errors.Is(err, community.ErrInvalidVoucherType):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), []models.ErrorDetail{
				{Field: "type", Issue: "must be event, product or discount"},
			})
		case errors.Is(err, community.ErrDuplicateCode):
			writeErrorResponse(w, http.StatusConflict, "conflict", err.Error(), nil)
		default:
			slog.Error("Failed to create voucher", "error", err)
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create voucher", nil)
		}
		return
	}

	slog.Info("Voucher created",
		"voucher_id", voucher.ID,
		"code", voucher.Code,
		"type", voucher.Type,
		"max_redemptions", voucher.MaxRedemptions)

	writeJSONResponse(w, http.StatusCreated, voucher)
}

// ListVouchers handles GET /v1/vouchers
func (h *CommunityHandler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers := h.communityService.ListVouchers()

	writeJSONResponse(w, http.StatusOK, models.VoucherListResponse{Items: vouchers})
}

// UpdateVoucherStatus handles PATCH /v1/vouchers/{voucherId}/status
func (h *CommunityHandler) UpdateVoucherStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	voucherID := vars["voucherId"]

	var req models.UpdateVoucherStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in voucher status request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	voucher, err := h.communityService.UpdateVoucherStatus(voucherID, req.IsActive)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Voucher not found: %s", voucherID), nil)
		return
	}

	slog.Info("Voucher status updated", "voucher_id", voucherID, "is_active", req.IsActive)

	writeJSONResponse(w, http.StatusOK, voucher)
}

// RedeemVoucher handles GET /v1/scan/{code} - QR scan redemption path
func (h *CommunityHandler) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	code := vars["code"]

	voucher, err := h.communityService.RedeemVoucher(code)
	if err != nil {
		if h.telemetry != nil {
			// The voucher is zero-valued on failure; keep the type label
			// meaningful for the failure series.
			h.telemetry.RecordVoucherRedemption(r.Context(), "unknown", false)
		}
		switch {
		case errors.Is(err, community.ErrVoucherNotFound):
			writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error(), nil)
		case errIsAny(err, community.ErrVoucherInactive, community.ErrVoucherNotYetValid,
			community.ErrVoucherExpired, community.ErrVoucherExhausted):
			writeErrorResponse(w, http.StatusConflict, "conflict", err.Error(), nil)
		default:
			slog.Error("Failed to redeem voucher", "code", code, "error", err)
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to redeem voucher", nil)
		}
		return
	}

	if h.telemetry != nil {
		h.telemetry.RecordVoucherRedemption(r.Context(), voucher.Type, true)
	}
	if h.eventQueue != nil {
		h.eventQueue.Publish(models.EventTypeVoucherRedeemed, voucher.ID, map[string]any{
			"code":               voucher.Code,
			"type":               voucher.Type,
			"currentRedemptions": voucher.CurrentRedemptions,
		})
	}

	response := models.RedeemResponse{Voucher: voucher}
	if voucher.MaxRedemptions > 0 {
		remaining := voucher.MaxRedemptions - voucher.CurrentRedemptions
		response.RemainingRedemptions = &remaining
	}

	slog.Info("Voucher redeemed",
		"voucher_id", voucher.ID,
		"code", voucher.Code,
		"current_redemptions", voucher.CurrentRedemptions)

	writeJSONResponse(w, http.StatusOK, response)
}

// CreateShare handles POST /v1/users/{userId}/shares - Mint a referral artifact
func (h *CommunityHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]

	var req models.CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in create share request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	share, err := h.communityService.CreateShare(userID, req.Type, req.ProductID, req.Platform)
	if err != nil {
		if errors.Is(err, community.ErrInvalidShareType) {
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), []models.ErrorDetail{
				{Field: "type", Issue: "must be qr_voucher, link_share or social_share"},
			})
			return
		}
		slog.Error("Failed to create share", "user_id", userID, "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create share", nil)
		return
	}

	slog.Info("Share created",
		"share_id", share.ID,
		"user_id", userID,
		"type", share.Type,
		"referral_code", share.ReferralCode)

	writeJSONResponse(w, http.StatusCreated, share)
}

// ListShares handles GET /v1/users/{userId}/shares
func (h *CommunityHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["userId"]

	shares := h.communityService.ListShares(userID)

	writeJSONResponse(w, http.StatusOK, models.ShareListResponse{Items: shares})
}

// TrackClick handles POST /v1/shares/{shareId}/clicks - Count a scan/click
func (h *CommunityHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shareID := vars["shareId"]

	share, err := h.communityService.TrackShareClick(shareID)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Share not found: %s", shareID), nil)
		return
	}

	writeJSONResponse(w, http.StatusOK, share)
}

// TrackConversion handles POST /v1/shares/{shareId}/conversions
func (h *CommunityHandler) TrackConversion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	shareID := vars["shareId"]

	var req models.TrackConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in track conversion request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	share, err := h.communityService.TrackShareConversion(shareID, req.Earnings)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Share not found: %s", shareID), nil)
		return
	}

	slog.Info("Share conversion tracked",
		"share_id", shareID,
		"earnings", req.Earnings,
		"total_conversions", share.TotalConversions)

	writeJSONResponse(w, http.StatusOK, share)
}
