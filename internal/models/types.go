package models

import "time"

// Role constants for UserProfile
const (
	RoleReseller = "reseller"
	RoleBrand    = "brand"
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Order status constants
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment status constants
const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// Transaction type constants
const (
	TransactionTypeCredit         = "credit"
	TransactionTypeDebit          = "debit"
	TransactionTypePayout         = "payout"
	TransactionTypeCommission     = "commission"
	TransactionTypeCommunityShare = "community_share"
	TransactionTypeReferral       = "referral"
)

// Transaction status constants
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// PayoutRequest status constants
const (
	PayoutStatusPending    = "pending"
	PayoutStatusApproved   = "approved"
	PayoutStatusRejected   = "rejected"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusFailed     = "failed"
)

// Payout method constants
const (
	PayoutMethodBank    = "bank"
	PayoutMethodEwallet = "ewallet"
)

// Voucher type constants
const (
	VoucherTypeEvent    = "event"
	VoucherTypeProduct  = "product"
	VoucherTypeDiscount = "discount"
)

// Community share type constants
const (
	ShareTypeQRVoucher   = "qr_voucher"
	ShareTypeLinkShare   = "link_share"
	ShareTypeSocialShare = "social_share"
)

// Product is a brand-supplied catalog item. All monetary amounts across the
// domain are int64 minor currency units.
type Product struct {
	ID               string  `json:"id"`
	Slug             string  `json:"slug"`
	Name             string  `json:"name"`
	BasePrice        int64   `json:"basePrice"`
	RecommendedPrice int64   `json:"recommendedPrice"`
	CommissionPct    float64 `json:"commissionPct"`
	BrandID          string  `json:"brandId"`
	Stock            int     `json:"stock"`
	Sold             int     `json:"sold"`
	IsActive         bool    `json:"isActive"`
}

// Brand supplies products at a base price and commission rate.
type Brand struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// ProfileLink is a single entry on a reseller's bio-link page.
type ProfileLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// UserProfile is a platform user (reseller, brand operator, customer or admin).
type UserProfile struct {
	ID          string        `json:"id"`
	Username    string        `json:"username"`
	DisplayName string        `json:"displayName"`
	Role        string        `json:"role"`
	Email       string        `json:"email,omitempty"`
	Bio         string        `json:"bio,omitempty"`
	AvatarURL   string        `json:"avatarUrl,omitempty"`
	Links       []ProfileLink `json:"links,omitempty"`
}

// ResellerProduct links a reseller to a catalog product at a chosen selling
// price. Markup is derived as SellingPrice - BasePrice and kept in sync by
// the catalog service.
type ResellerProduct struct {
	ResellerID   string    `json:"resellerId"`
	ProductID    string    `json:"productId"`
	SellingPrice int64     `json:"sellingPrice"`
	Markup       int64     `json:"markup"`
	AddedAt      time.Time `json:"addedAt"`
}

// CartItem is one line in a cart. The product fields are a snapshot taken at
// add time; ResellerPrice is the reseller's selling price for the product.
type CartItem struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	BasePrice     int64   `json:"basePrice"`
	ResellerPrice int64   `json:"resellerPrice"`
	CommissionPct float64 `json:"commissionPct"`
	Quantity      int     `json:"quantity"`
	ResellerID    string  `json:"resellerId"`
}

// Cart holds the line items bound to a single reseller. Adding an item from
// a different reseller replaces the whole cart.
type Cart struct {
	ID         string     `json:"id"`
	ResellerID string     `json:"resellerId"`
	Items      []CartItem `json:"items"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// CustomerInfo is the shipping/contact block captured at checkout.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// OrderItem is one priced line of an order.
type OrderItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	BasePrice  int64  `json:"basePrice"`
	Quantity   int    `json:"quantity"`
	Commission int64  `json:"commission"`
	LineTotal  int64  `json:"lineTotal"`
}

// Order is a persisted checkout result.
type Order struct {
	ID              string       `json:"id"`
	ResellerID      string       `json:"resellerId"`
	Customer        CustomerInfo `json:"customer"`
	Items           []OrderItem  `json:"items"`
	Subtotal        int64        `json:"subtotal"`
	ShippingCost    int64        `json:"shippingCost"`
	Total           int64        `json:"total"`
	TotalCommission int64        `json:"totalCommission"`
	Status          string       `json:"status"`
	PaymentStatus   string       `json:"paymentStatus"`
	ReferralCode    string       `json:"referralCode,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// WalletInfo is the per-user balance summary. Debits floor Balance at zero
// and do not touch TotalEarnings, so the two can drift after debit/credit
// cycles; the source system never reconciled them and neither do we.
type WalletInfo struct {
	Balance        int64     `json:"balance"`
	PendingBalance int64     `json:"pendingBalance"`
	TotalEarnings  int64     `json:"totalEarnings"`
	TotalWithdrawn int64     `json:"totalWithdrawn"`
	LastActivity   time.Time `json:"lastActivity"`
}

// Transaction is one entry in a wallet's append-only log. The log is
// prepend-ordered (newest first) and capped at the persistence layer.
type Transaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PayoutRequest is a withdrawal moving through the approval pipeline:
// pending -> approved|rejected, approved -> processing,
// processing -> completed|failed. Rejected, completed and failed are
// terminal. Transitions outside this table are rejected.
type PayoutRequest struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	Method         string     `json:"method"`
	AccountDetails string     `json:"accountDetails"`
	Notes          string     `json:"notes,omitempty"`
	RequestedAt    time.Time  `json:"requestedAt"`
	ProcessedAt    *time.Time `json:"processedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// CommunityVoucher grants limited-redemption access to a product or
// discount within a validity window. MaxRedemptions of 0 means unlimited.
type CommunityVoucher struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	Type               string    `json:"type"`
	Title              string    `json:"title"`
	CommunityID        string    `json:"communityId,omitempty"`
	ProductID          string    `json:"productId,omitempty"`
	DiscountAmount     int64     `json:"discountAmount,omitempty"`
	CommissionPct      float64   `json:"commissionPct"`
	IsActive           bool      `json:"isActive"`
	MaxRedemptions     int       `json:"maxRedemptions"`
	CurrentRedemptions int       `json:"currentRedemptions"`
	ValidFrom          time.Time `json:"validFrom"`
	ValidUntil         time.Time `json:"validUntil"`
	QRPayload          string    `json:"qrPayload"`
	CreatedAt          time.Time `json:"createdAt"`
}

// CommunityShare is a tracked referral artifact (QR, link or social post).
// TotalConversions is not capped by TotalScans; the counters are advanced
// by independent tracking calls.
type CommunityShare struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Type             string    `json:"type"`
	ProductID        string    `json:"productId,omitempty"`
	Platform         string    `json:"platform,omitempty"`
	ReferralCode     string    `json:"referralCode"`
	ShareURL         string    `json:"shareUrl"`
	TotalScans       int       `json:"totalScans"`
	TotalConversions int       `json:"totalConversions"`
	TotalEarnings    int64     `json:"totalEarnings"`
	CreatedAt        time.Time `json:"createdAt"`
}

// QRVoucherPayload is the JSON document embedded in a voucher QR image.
// Redemption looks the voucher up by code only; the rest of the payload is
// informational.
type QRVoucherPayload struct {
	Type        string `json:"type"`
	VoucherID   string `json:"voucherId"`
	Code        string `json:"code"`
	CommunityID string `json:"communityId,omitempty"`
	ProductID   string `json:"productId,omitempty"`
}

// CommissionComponents are the per-party splits credited when an order is
// paid. Zero components are skipped.
type CommissionComponents struct {
	ResellerID  string `json:"resellerId"`
	Reseller    int64  `json:"reseller"`
	CommunityID string `json:"communityId,omitempty"`
	Community   int64  `json:"community,omitempty"`
	ReferrerID  string `json:"referrerId,omitempty"`
	Referrer    int64  `json:"referrer,omitempty"`
}

// Event represents a change event in the storefront system.
type Event struct {
	Offset    int64          `json:"offset"`
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"eventType"`
	EntityID  string         `json:"entityId"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventType constants
const (
	EventTypeOrderCreated        = "order_created"
	EventTypeOrderPaid           = "order_paid"
	EventTypeOrderStatusChanged  = "order_status_changed"
	EventTypeVoucherRedeemed     = "voucher_redeemed"
	EventTypePayoutUpdated       = "payout_updated"
	EventTypeCommissionProcessed = "commission_processed"
)
