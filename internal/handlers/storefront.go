package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"biolink-storefront-api/internal/catalog"
	"biolink-storefront-api/internal/models"

	"github.com/gorilla/mux"
)

// StorefrontHandler handles catalog and bio-link storefront HTTP requests
type StorefrontHandler struct {
	catalogService *catalog.Service
}

// NewStorefrontHandler creates a new storefront handler
func NewStorefrontHandler(catalogService *catalog.Service) *StorefrontHandler {
	return &StorefrontHandler{
		catalogService: catalogService,
	}
}

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// ListProducts handles GET /v1/products - List active catalog products
func (h *StorefrontHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
			if limit > 200 {
				limit = 200
			}
		}
	}

	if brandID := r.URL.Query().Get("brandId"); brandID != "" {
		products, err := h.catalogService.ListProductsByBrand(brandID)
		if err != nil {
			writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Brand not found: %s", brandID), nil)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.ProductListResponse{Items: products})
		return
	}

	products := h.catalogService.ListProducts(limit)

	slog.Debug("Listing catalog products",
		"count", len(products),
		"limit", limit,
		"remote_addr", r.RemoteAddr)

	writeJSONResponse(w, http.StatusOK, models.ProductListResponse{Items: products})
}

// GetProduct handles GET /v1/products/{productId} - Read a single product
func (h *StorefrontHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID := vars["productId"]

	if productID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Product ID is required", []models.ErrorDetail{
			{Field: "productId", Issue: "cannot be empty"},
		})
		return
	}

	product, err := h.catalogService.GetProduct(productID)
	if err != nil {
		// Fall back to slug lookup so shared links keep working
		product, err = h.catalogService.GetProductBySlug(productID)
		if err != nil {
			writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Product not found: %s", productID), nil)
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, product)
}

// GetStorefront handles GET /v1/storefront/{username} - Public bio-link page
func (h *StorefrontHandler) GetStorefront(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	username := vars["username"]

	profile, err := h.catalogService.GetUserByUsername(username)
	if err != nil {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Storefront not found: %s", username), nil)
		return
	}

	listings := h.catalogService.ListListings(profile.ID)
	storefrontListings := make([]models.StorefrontListing, 0, len(listings))
	for _, listing := range listings {
		product, err := h.catalogService.GetProduct(listing.ProductID)
		if err != nil || !product.IsActive {
			continue
		}
		storefrontListings = append(storefrontListings, models.StorefrontListing{
			Product:      product,
			SellingPrice: listing.SellingPrice,
			Markup:       listing.Markup,
		})
	}

	slog.Debug("Serving storefront page",
		"username", username,
		"listing_count", len(storefrontListings),
		"remote_addr", r.RemoteAddr)

	writeJSONResponse(w, http.StatusOK, models.StorefrontResponse{
		Profile:  profile,
		Listings: storefrontListings,
	})
}

// AddListing handles POST /v1/resellers/{resellerId}/listings - Curate a product
func (h *StorefrontHandler) AddListing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	resellerID := vars["resellerId"]

	var req models.AddListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid JSON in add listing request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if req.ProductID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Product ID is required", []models.ErrorDetail{
			{Field: "productId", Issue: "cannot be empty"},
		})
		return
	}

	listing, err := h.catalogService.AddListing(resellerID, req.ProductID, req.SellingPrice)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error(), nil)
		case errors.Is(err, catalog.ErrProductInactive):
			writeErrorResponse(w, http.StatusConflict, "conflict", err.Error(), nil)
		case errors.Is(err, catalog.ErrPriceBelowBase):
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), []models.ErrorDetail{
				{Field: "sellingPrice", Issue: "must be at least the product base price"},
			})
		default:
			slog.Error("Failed to add listing", "reseller_id", resellerID, "product_id", req.ProductID, "error", err)
			writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to add listing", nil)
		}
		return
	}

	slog.Info("Listing added",
		"reseller_id", resellerID,
		"product_id", req.ProductID,
		"selling_price", listing.SellingPrice,
		"markup", listing.Markup)

	writeJSONResponse(w, http.StatusCreated, listing)
}

// RemoveListing handles DELETE /v1/resellers/{resellerId}/listings/{productId}
func (h *StorefrontHandler) RemoveListing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	resellerID := vars["resellerId"]
	productID := vars["productId"]

	// Removal is a no-op when the listing does not exist
	h.catalogService.RemoveListing(resellerID, productID)

	slog.Info("Listing removed", "reseller_id", resellerID, "product_id", productID)

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ListResellerOrders handles GET /v1/resellers/{resellerId}/orders
func (h *StorefrontHandler) ListResellerOrders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	resellerID := vars["resellerId"]

	orders := h.catalogService.GetOrdersByReseller(resellerID)

	slog.Debug("Listing reseller orders",
		"reseller_id", resellerID,
		"count", len(orders))

	writeJSONResponse(w, http.StatusOK, models.OrderListResponse{Items: orders})
}
