package models

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// Request/Response types for cart operations

type AddCartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity,omitempty"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Cart      Cart  `json:"cart"`
	Total     int64 `json:"total"`
	ItemCount int   `json:"itemCount"`
}

// Request/Response types for checkout

type CheckoutRequest struct {
	CartID       string       `json:"cartId"`
	Customer     CustomerInfo `json:"customer"`
	ReferralCode string       `json:"referralCode,omitempty"`
}

type CheckoutResponse struct {
	OrderID string `json:"orderId"`
	Order   Order  `json:"order"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status,omitempty"`
	// PaymentStatus moves independently of fulfilment status.
	PaymentStatus string `json:"paymentStatus,omitempty"`
}

type OrderListResponse struct {
	Items      []Order `json:"items"`
	NextCursor string  `json:"nextCursor"`
}

// Request/Response types for wallet operations

type WalletResponse struct {
	UserID           string     `json:"userId"`
	Wallet           WalletInfo `json:"wallet"`
	AvailableBalance int64      `json:"availableBalance"`
}

type TransactionListResponse struct {
	Items []Transaction `json:"items"`
}

type CreatePayoutRequest struct {
	Amount         int64  `json:"amount"`
	Method         string `json:"method"`
	AccountDetails string `json:"accountDetails"`
}

type UpdatePayoutStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type PayoutListResponse struct {
	Items []PayoutRequest `json:"items"`
}

// Request/Response types for the community voucher domain

type CreateVoucherRequest struct {
	Code           string  `json:"code,omitempty"`
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	CommunityID    string  `json:"communityId,omitempty"`
	ProductID      string  `json:"productId,omitempty"`
	DiscountAmount int64   `json:"discountAmount,omitempty"`
	CommissionPct  float64 `json:"commissionPct,omitempty"`
	MaxRedemptions int     `json:"maxRedemptions,omitempty"`
	ValidFrom      string  `json:"validFrom"`
	ValidUntil     string  `json:"validUntil"`
}

type UpdateVoucherStatusRequest struct {
	IsActive bool `json:"isActive"`
}

type VoucherListResponse struct {
	Items []CommunityVoucher `json:"items"`
}

type RedeemResponse struct {
	Voucher              CommunityVoucher `json:"voucher"`
	RemainingRedemptions *int             `json:"remainingRedemptions,omitempty"`
}

type CreateShareRequest struct {
	Type      string `json:"type"`
	ProductID string `json:"productId,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

type ShareListResponse struct {
	Items []CommunityShare `json:"items"`
}

type TrackConversionRequest struct {
	Earnings int64 `json:"earnings,omitempty"`
}

// Request/Response types for the catalog

type ProductListResponse struct {
	Items      []Product `json:"items"`
	NextCursor string    `json:"nextCursor"`
}

type StorefrontListing struct {
	Product      Product `json:"product"`
	SellingPrice int64   `json:"sellingPrice"`
	Markup       int64   `json:"markup"`
}

// StorefrontResponse is the public bio-link page payload: the reseller's
// profile plus their curated listings.
type StorefrontResponse struct {
	Profile  UserProfile         `json:"profile"`
	Listings []StorefrontListing `json:"listings"`
}

type AddListingRequest struct {
	ProductID    string `json:"productId"`
	SellingPrice int64  `json:"sellingPrice"`
}

// Admin catalog management types

type AdminProductSet struct {
	ProductID        string   `json:"productId"`
	Name             *string  `json:"name,omitempty"`
	BasePrice        *int64   `json:"basePrice,omitempty"`
	RecommendedPrice *int64   `json:"recommendedPrice,omitempty"`
	CommissionPct    *float64 `json:"commissionPct,omitempty"`
	Stock            *int     `json:"stock,omitempty"`
	IsActive         *bool    `json:"isActive,omitempty"`
}

type AdminSetRequest struct {
	Products []AdminProductSet `json:"products"`
}

type AdminCreateRequest struct {
	Products []Product `json:"products"`
}

type AdminDeleteRequest struct {
	ProductIDs []string `json:"productIds"`
}

type AdminProductResult struct {
	ProductID string `json:"productId"`
	Applied   bool   `json:"applied"`
	Error     string `json:"error,omitempty"`
}

type AdminBatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type AdminBatchResponse struct {
	Results []AdminProductResult `json:"results"`
	Summary AdminBatchSummary    `json:"summary"`
}

type ProcessCommissionRequest struct {
	OrderID    string               `json:"orderId"`
	Components CommissionComponents `json:"components"`
}

// EventsResponse represents the response for the events endpoint
type EventsResponse struct {
	Events     []Event `json:"events"`
	NextOffset int64   `json:"nextOffset"`
	HasMore    bool    `json:"hasMore"`
	Count      int     `json:"count"`
}
