package cart

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/storage"
)

const snapshotName = "cart"

var ErrCartEmpty = errors.New("cart is empty")

// Service owns all carts, keyed by cart ID. A cart is bound to exactly one
// reseller: adding an item from a different reseller wipes the cart and
// starts over with the new item (last-writer-wins, no merge).
type Service struct {
	mu        sync.RWMutex
	carts     map[string]*models.Cart
	snapshots *storage.SnapshotStore
}

// NewService creates the cart service, restoring persisted carts if present
func NewService(snapshots *storage.SnapshotStore) *Service {
	s := &Service{
		carts:     make(map[string]*models.Cart),
		snapshots: snapshots,
	}

	var persisted map[string]*models.Cart
	err := snapshots.Load(snapshotName, &persisted)
	if err != nil {
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			slog.Warn("Failed to restore cart snapshot, starting empty", "error", err)
		}
	} else {
		s.carts = persisted
	}

	slog.Info("Cart service initialized", "carts_count", len(s.carts))

	return s
}

// persist saves all carts. Called with the write lock held.
func (s *Service) persist() {
	if err := s.snapshots.Save(snapshotName, s.carts); err != nil {
		slog.Error("Failed to persist cart snapshot", "error", err)
	}
}

// AddItem adds a product snapshot to the cart. A quantity below 1 is treated
// as 1. When the cart already holds items from a different reseller the
// whole cart is replaced with this single item.
func (s *Service) AddItem(cartID string, item models.CartItem) models.Cart {
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		cart = &models.Cart{ID: cartID}
		s.carts[cartID] = cart
	}

	if len(cart.Items) > 0 && cart.ResellerID != item.ResellerID {
		slog.Info("Cart reseller switch, replacing cart",
			"cart_id", cartID,
			"previous_reseller", cart.ResellerID,
			"new_reseller", item.ResellerID)
		cart.Items = nil
	}

	cart.ResellerID = item.ResellerID

	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			cart.Items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, item)
	}

	cart.UpdatedAt = time.Now().UTC()
	s.persist()

	slog.Debug("Cart item added",
		"cart_id", cartID,
		"product_id", item.ProductID,
		"quantity", item.Quantity,
		"merged", merged)

	return *cart
}

// RemoveItem filters the product out of the cart. Removing an absent product
// is a no-op.
func (s *Service) RemoveItem(cartID, productID string) models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return models.Cart{ID: cartID}
	}

	filtered := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			filtered = append(filtered, item)
		}
	}
	cart.Items = filtered
	cart.UpdatedAt = time.Now().UTC()
	s.persist()

	return *cart
}

// UpdateQuantity sets the quantity for a product in the cart. A quantity of
// zero or less removes the item. Stock limits are checked at checkout, not
// here.
func (s *Service) UpdateQuantity(cartID, productID string, quantity int) models.Cart {
	if quantity <= 0 {
		return s.RemoveItem(cartID, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return models.Cart{ID: cartID}
	}

	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			break
		}
	}
	cart.UpdatedAt = time.Now().UTC()
	s.persist()

	return *cart
}

// Get returns the cart for the given ID, empty if it does not exist yet
func (s *Service) Get(cartID string) models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return models.Cart{ID: cartID}
	}
	return *cart
}

// Total sums resellerPrice * quantity over all items
func (s *Service) Total(cartID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return 0
	}

	var total int64
	for _, item := range cart.Items {
		total += item.ResellerPrice * int64(item.Quantity)
	}
	return total
}

// ItemCount sums the quantities over all items
func (s *Service) ItemCount(cartID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, exists := s.carts[cartID]
	if !exists {
		return 0
	}

	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
	}
	return count
}

// Clear empties the cart after a completed checkout
func (s *Service) Clear(cartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, cartID)
	s.persist()
}
