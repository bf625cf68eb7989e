package checkout

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"biolink-storefront-api/internal/cache"
	"biolink-storefront-api/internal/cart"
	"biolink-storefront-api/internal/catalog"
	"biolink-storefront-api/internal/community"
	"biolink-storefront-api/internal/events"
	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/storage"
	"biolink-storefront-api/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = `{
  "products": [
    {
      "id": "prod-serum-01",
      "slug": "vitamin-c-serum",
      "name": "Vitamin C Serum",
      "basePrice": 85000,
      "recommendedPrice": 120000,
      "commissionPct": 10,
      "brandId": "brand-glowlab",
      "stock": 40,
      "sold": 0,
      "isActive": true
    },
    {
      "id": "prod-tote-02",
      "slug": "canvas-tote",
      "name": "Canvas Tote",
      "basePrice": 50000,
      "recommendedPrice": 75000,
      "commissionPct": 10,
      "brandId": "brand-glowlab",
      "stock": 1,
      "sold": 0,
      "isActive": true
    }
  ],
  "brands": [{"id": "brand-glowlab", "name": "GlowLab", "slug": "glowlab"}],
  "users": [{"id": "user-ayu", "username": "ayubeauty", "role": "reseller"}],
  "listings": [],
  "orders": []
}`

type fixture struct {
	checkout  *Service
	carts     *cart.Service
	catalog   *catalog.Service
	wallets   *wallet.Service
	community *community.Service
	queue     *events.EventQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seedPath, []byte(testSeed), 0644))

	snapshots, err := storage.NewSnapshotStore(dir, false)
	require.NoError(t, err)

	cat, err := catalog.NewService(seedPath, snapshots)
	require.NoError(t, err)

	idempotency := cache.NewTTLCache(time.Minute, 30*time.Second)
	t.Cleanup(idempotency.Stop)

	queue, err := events.NewEventQueue(events.EventQueueConfig{
		FilePath:  filepath.Join(dir, "events.json"),
		MaxEvents: 100,
		Logger:    slog.Default(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	carts := cart.NewService(snapshots)
	wallets := wallet.NewService(snapshots, idempotency)
	comm := community.NewService("https://toko.link", snapshots)

	return &fixture{
		checkout:  NewService(carts, cat, wallets, comm, queue, 15000),
		carts:     carts,
		catalog:   cat,
		wallets:   wallets,
		community: comm,
		queue:     queue,
	}
}

func (f *fixture) addSerum(cartID string, quantity int) {
	f.carts.AddItem(cartID, models.CartItem{
		ProductID:     "prod-serum-01",
		Name:          "Vitamin C Serum",
		BasePrice:     85000,
		ResellerPrice: 125000,
		CommissionPct: 10,
		Quantity:      quantity,
		ResellerID:    "user-ayu",
	})
}

var customer = models.CustomerInfo{
	Name:    "Citra",
	Phone:   "0812000111",
	Address: "Jl. Melati 5, Bandung",
}

// TestCheckout tests the happy path: pricing, stock commitment, cart
// clearing and the order_created event
func TestCheckout(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.addSerum("cart-1", 2)

	// Act
	order, err := f.checkout.Checkout("cart-1", customer, "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "user-ayu", order.ResellerID)
	assert.Equal(t, int64(250000), order.Subtotal)
	assert.Equal(t, int64(15000), order.ShippingCost)
	assert.Equal(t, int64(265000), order.Total)
	// 10% of base (8500) plus markup (40000), per unit
	assert.Equal(t, int64(97000), order.TotalCommission)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)

	product, _ := f.catalog.GetProduct("prod-serum-01")
	assert.Equal(t, 38, product.Stock)
	assert.Equal(t, 2, product.Sold)

	assert.Empty(t, f.carts.Get("cart-1").Items, "Checkout should clear the cart")

	evts, _, _ := f.queue.GetEvents(0, 10)
	require.Len(t, evts, 1)
	assert.Equal(t, models.EventTypeOrderCreated, evts[0].EventType)
	assert.Equal(t, order.ID, evts[0].EntityID)
}

// TestCheckout_EmptyCart tests checkout against an empty cart
func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.checkout.Checkout("cart-empty", customer, "")

	assert.ErrorIs(t, err, ErrCartEmpty)
}

// TestCheckout_MissingCustomerInfo tests customer validation
func TestCheckout_MissingCustomerInfo(t *testing.T) {
	f := newFixture(t)
	f.addSerum("cart-1", 1)

	_, err := f.checkout.Checkout("cart-1", models.CustomerInfo{Name: "Citra"}, "")

	assert.ErrorIs(t, err, ErrMissingCustomerInfo)
	assert.Len(t, f.carts.Get("cart-1").Items, 1, "Failed checkout must not clear the cart")
}

// TestCheckout_InsufficientStockRollsBack tests that a failing line releases
// the stock already committed for earlier lines
func TestCheckout_InsufficientStockRollsBack(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.addSerum("cart-1", 2)
	f.carts.AddItem("cart-1", models.CartItem{
		ProductID:     "prod-tote-02",
		Name:          "Canvas Tote",
		BasePrice:     50000,
		ResellerPrice: 75000,
		CommissionPct: 10,
		Quantity:      5, // only 1 in stock
		ResellerID:    "user-ayu",
	})

	// Act
	_, err := f.checkout.Checkout("cart-1", customer, "")

	// Assert
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	serum, _ := f.catalog.GetProduct("prod-serum-01")
	assert.Equal(t, 40, serum.Stock, "Committed stock must be released on rollback")
	assert.Equal(t, 0, serum.Sold)
	assert.Len(t, f.carts.Get("cart-1").Items, 2, "Cart survives a failed checkout")
}

// TestCheckout_UnresolvableReferralCodeIsDropped tests that a bad referral
// code never fails the checkout
func TestCheckout_UnresolvableReferralCodeIsDropped(t *testing.T) {
	f := newFixture(t)
	f.addSerum("cart-1", 1)

	order, err := f.checkout.Checkout("cart-1", customer, "zzzzzzzz")

	require.NoError(t, err)
	assert.Empty(t, order.ReferralCode)
}

// TestUpdateOrderStatus_FulfilmentPipeline walks an order through
// pending -> processing -> shipped -> delivered
func TestUpdateOrderStatus_FulfilmentPipeline(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.addSerum("cart-1", 1)
	order, err := f.checkout.Checkout("cart-1", customer, "")
	require.NoError(t, err)

	// Act & Assert
	for _, status := range []string{
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	} {
		updated, stepErr := f.checkout.UpdateOrderStatus(order.ID, status, "")
		require.NoError(t, stepErr)
		assert.Equal(t, status, updated.Status)
	}

	// delivered is terminal
	_, err = f.checkout.UpdateOrderStatus(order.ID, models.OrderStatusProcessing, "")
	assert.ErrorIs(t, err, ErrOrderTransition)
}

// TestUpdateOrderStatus_InvalidInputs tests status validation and unknown
// orders
func TestUpdateOrderStatus_InvalidInputs(t *testing.T) {
	f := newFixture(t)
	f.addSerum("cart-1", 1)
	order, err := f.checkout.Checkout("cart-1", customer, "")
	require.NoError(t, err)

	_, err = f.checkout.UpdateOrderStatus(order.ID, "lost", "")
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)

	_, err = f.checkout.UpdateOrderStatus(order.ID, models.OrderStatusShipped, "")
	assert.ErrorIs(t, err, ErrOrderTransition, "Pending cannot skip straight to shipped")

	_, err = f.checkout.UpdateOrderStatus(order.ID, "", "voided")
	assert.ErrorIs(t, err, ErrInvalidPaymentStatus)

	_, err = f.checkout.UpdateOrderStatus("order-missing", models.OrderStatusProcessing, "")
	assert.ErrorIs(t, err, catalog.ErrOrderNotFound)
}

// TestUpdateOrderStatus_CancelReleasesStock tests cancellation from a
// non-terminal state
func TestUpdateOrderStatus_CancelReleasesStock(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.addSerum("cart-1", 3)
	order, err := f.checkout.Checkout("cart-1", customer, "")
	require.NoError(t, err)

	// Act
	updated, err := f.checkout.UpdateOrderStatus(order.ID, models.OrderStatusCancelled, "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)

	product, _ := f.catalog.GetProduct("prod-serum-01")
	assert.Equal(t, 40, product.Stock)
}

// TestUpdateOrderStatus_PaidProcessesCommission tests that the unpaid to
// paid transition credits the reseller exactly once
func TestUpdateOrderStatus_PaidProcessesCommission(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.addSerum("cart-1", 2)
	order, err := f.checkout.Checkout("cart-1", customer, "")
	require.NoError(t, err)

	// Act
	updated, err := f.checkout.UpdateOrderStatus(order.ID, "", models.PaymentStatusPaid)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	info := f.wallets.GetWallet("user-ayu")
	assert.Equal(t, order.TotalCommission, info.Balance)
	assert.Equal(t, order.TotalCommission, info.TotalEarnings)

	txs := f.wallets.ListTransactions("user-ayu")
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionTypeCommission, txs[0].Type)
	assert.Equal(t, order.ID, txs[0].Reference)

	// re-marking paid must not double-credit
	_, err = f.checkout.UpdateOrderStatus(order.ID, "", models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, order.TotalCommission, f.wallets.GetWallet("user-ayu").Balance)

	// order_created, order_paid, commission_processed
	evts, _, _ := f.queue.GetEvents(0, 10)
	types := make([]string, 0, len(evts))
	for _, e := range evts {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, models.EventTypeOrderPaid)
	assert.Contains(t, types, models.EventTypeCommissionProcessed)
}

// TestUpdateOrderStatus_PaidTracksReferralConversion tests that a paid order
// carrying a referral code counts the conversion on the share
func TestUpdateOrderStatus_PaidTracksReferralConversion(t *testing.T) {
	// Arrange
	f := newFixture(t)
	share, err := f.community.CreateShare("user-ayu", models.ShareTypeLinkShare, "prod-serum-01", "instagram")
	require.NoError(t, err)

	f.addSerum("cart-1", 1)
	order, err := f.checkout.Checkout("cart-1", customer, share.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, share.ReferralCode, order.ReferralCode)

	// Act
	_, err = f.checkout.UpdateOrderStatus(order.ID, "", models.PaymentStatusPaid)
	require.NoError(t, err)

	// Assert
	updated, err := f.community.GetShareByReferralCode(share.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalConversions)
	assert.Equal(t, order.TotalCommission, updated.TotalEarnings)
}
