package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"biolink-storefront-api/internal/cart"
	"biolink-storefront-api/internal/catalog"
	"biolink-storefront-api/internal/models"

	"github.com/gorilla/mux"
)

// CartHandler handles shopping cart HTTP requests. Adding an item snapshots
// the product's pricing from the reseller's listing at add time.
type CartHandler struct {
	cartService    *cart.Service
	catalogService *catalog.Service
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service, catalogService *catalog.Service) *CartHandler {
	return &CartHandler{
		cartService:    cartService,
		catalogService: catalogService,
	}
}

// GetCart handles GET /v1/carts/{cartId}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cartID := vars["cartId"]

	c := h.cartService.Get(cartID)

	writeJSONResponse(w, http.StatusOK, models.CartResponse{
		Cart:      c,
		Total:     h.cartService.Total(cartID),
		ItemCount: h.cartService.ItemCount(cartID),
	})
}

// AddItem handles POST /v1/carts/{cartId}/items - Add a listed product.
// The reseller is resolved from the query parameter so the pricing snapshot
// comes from that reseller's listing.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cartID := vars["cartId"]
	resellerID := r.URL.Query().Get("resellerId")

	var req models.AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in add cart item request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if resellerID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Reseller ID is required", []models.ErrorDetail{
			{Field: "resellerId", Issue: "query parameter cannot be empty"},
		})
		return
	}

	if req.ProductID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Product ID is required", []models.ErrorDetail{
			{Field: "productId", Issue: "cannot be empty"},
		})
		return
	}

	listing, err := h.catalogService.GetListing(resellerID, req.ProductID)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "not_found",
			fmt.Sprintf("Product %s is not listed by reseller %s", req.ProductID, resellerID), nil)
		return
	}

	product, err := h.catalogService.GetProduct(req.ProductID)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Product not found: %s", req.ProductID), nil)
		return
	}
	if !product.IsActive {
		writeErrorResponse(w, http.StatusConflict, "conflict", fmt.Sprintf("Product is not active: %s", req.ProductID), nil)
		return
	}

	updated := h.cartService.AddItem(cartID, models.CartItem{
		ProductID:     product.ID,
		Name:          product.Name,
		BasePrice:     product.BasePrice,
		ResellerPrice: listing.SellingPrice,
		CommissionPct: product.CommissionPct,
		Quantity:      req.Quantity,
		ResellerID:    resellerID,
	})

	slog.Info("Cart item added",
		"cart_id", cartID,
		"product_id", product.ID,
		"reseller_id", resellerID,
		"quantity", req.Quantity)

	writeJSONResponse(w, http.StatusOK, models.CartResponse{
		Cart:      updated,
		Total:     h.cartService.Total(cartID),
		ItemCount: h.cartService.ItemCount(cartID),
	})
}

// UpdateItem handles PATCH /v1/carts/{cartId}/items/{productId} - Set quantity.
// Quantities of zero or below remove the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cartID := vars["cartId"]
	productID := vars["productId"]

	var req models.UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in update cart item request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	updated := h.cartService.UpdateQuantity(cartID, productID, req.Quantity)

	writeJSONResponse(w, http.StatusOK, models.CartResponse{
		Cart:      updated,
		Total:     h.cartService.Total(cartID),
		ItemCount: h.cartService.ItemCount(cartID),
	})
}

// RemoveItem handles DELETE /v1/carts/{cartId}/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cartID := vars["cartId"]
	productID := vars["productId"]

	updated := h.cartService.RemoveItem(cartID, productID)

	writeJSONResponse(w, http.StatusOK, models.CartResponse{
		Cart:      updated,
		Total:     h.cartService.Total(cartID),
		ItemCount: h.cartService.ItemCount(cartID),
	})
}

// ClearCart handles DELETE /v1/carts/{cartId}
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	cartID := vars["cartId"]

	h.cartService.Clear(cartID)

	slog.Info("Cart cleared", "cart_id", cartID)

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// errIsAny reports whether err matches any of the given sentinel errors.
func errIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
