package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/storage"
)

const snapshotName = "catalog"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product is not active")
	ErrUserNotFound      = errors.New("user not found")
	ErrBrandNotFound     = errors.New("brand not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrListingNotFound   = errors.New("listing not found")
	ErrPriceBelowBase    = errors.New("selling price below base price")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateProduct  = errors.New("product already exists")
)

// SeedData is the shape of the seed JSON file. It replaces the mock arrays
// the storefront UI used to ship with.
type SeedData struct {
	Products []models.Product         `json:"products"`
	Brands   []models.Brand           `json:"brands"`
	Users    []models.UserProfile     `json:"users"`
	Listings []models.ResellerProduct `json:"listings"`
	Orders   []models.Order           `json:"orders"`
}

// catalogState is the mutable part of the catalog persisted between runs.
// Brands and users stay seed-defined.
type catalogState struct {
	Products map[string]models.Product           `json:"products"`
	Listings map[string][]models.ResellerProduct `json:"listings"`
	Orders   map[string]models.Order             `json:"orders"`
}

// Service owns the product catalog, user directory, reseller listings and
// order records behind a single RWMutex.
type Service struct {
	mu        sync.RWMutex
	products  map[string]models.Product
	brands    map[string]models.Brand
	users     map[string]models.UserProfile
	listings  map[string][]models.ResellerProduct // keyed by reseller ID
	orders    map[string]models.Order
	snapshots *storage.SnapshotStore
}

// NewService loads the seed file, overlays any persisted snapshot and
// returns the catalog service.
func NewService(seedPath string, snapshots *storage.SnapshotStore) (*Service, error) {
	s := &Service{
		products:  make(map[string]models.Product),
		brands:    make(map[string]models.Brand),
		users:     make(map[string]models.UserProfile),
		listings:  make(map[string][]models.ResellerProduct),
		orders:    make(map[string]models.Order),
		snapshots: snapshots,
	}

	if err := s.loadSeedData(seedPath); err != nil {
		return nil, fmt.Errorf("error loading seed data: %w", err)
	}

	s.restoreSnapshot()

	slog.Info("Catalog service initialized",
		"products_count", len(s.products),
		"brands_count", len(s.brands),
		"users_count", len(s.users),
		"orders_count", len(s.orders))

	return s, nil
}

// loadSeedData loads catalog seed data from the JSON file
func (s *Service) loadSeedData(seedPath string) error {
	slog.Debug("Loading seed data", "path", seedPath)

	data, err := os.ReadFile(seedPath)
	if err != nil {
		slog.Error("Failed to read seed data file", "path", seedPath, "error", err)
		return fmt.Errorf("error reading seed data file: %w", err)
	}

	var seed SeedData
	if err := json.Unmarshal(data, &seed); err != nil {
		slog.Error("Failed to parse seed data JSON", "path", seedPath, "error", err)
		return fmt.Errorf("error parsing seed data JSON: %w", err)
	}

	for _, p := range seed.Products {
		s.products[p.ID] = p
	}
	for _, b := range seed.Brands {
		s.brands[b.ID] = b
	}
	for _, u := range seed.Users {
		s.users[u.ID] = u
	}
	for _, l := range seed.Listings {
		l.Markup = l.SellingPrice - s.products[l.ProductID].BasePrice
		s.listings[l.ResellerID] = append(s.listings[l.ResellerID], l)
	}
	for _, o := range seed.Orders {
		s.orders[o.ID] = o
	}

	return nil
}

// restoreSnapshot overlays persisted catalog mutations over the seed.
func (s *Service) restoreSnapshot() {
	var state catalogState
	err := s.snapshots.Load(snapshotName, &state)
	if err != nil {
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			slog.Warn("Failed to restore catalog snapshot, using seed only", "error", err)
		}
		return
	}

	s.products = state.Products
	s.listings = state.Listings
	s.orders = state.Orders
}

// persist saves the mutable catalog state. Called with the write lock held;
// a failed save is logged and tolerated, in-memory state stays authoritative.
func (s *Service) persist() {
	state := catalogState{
		Products: s.products,
		Listings: s.listings,
		Orders:   s.orders,
	}
	if err := s.snapshots.Save(snapshotName, &state); err != nil {
		slog.Error("Failed to persist catalog snapshot", "error", err)
	}
}

// GetProduct retrieves a product by its ID
func (s *Service) GetProduct(productID string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[productID]
	if !exists {
		return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return product, nil
}

// GetProductBySlug retrieves a product by its URL slug with a linear scan
func (s *Service) GetProductBySlug(slug string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if product.Slug == slug {
			return product, nil
		}
	}
	return models.Product{}, fmt.Errorf("%w: slug %s", ErrProductNotFound, slug)
}

// ListProducts returns active products ordered by ID, up to limit (0 = all)
func (s *Service) ListProducts(limit int) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.Product, 0, len(s.products))
	for _, product := range s.products {
		if product.IsActive {
			items = append(items, product)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// ListProductsByBrand returns all products supplied by a brand
func (s *Service) ListProductsByBrand(brandID string) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.brands[brandID]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrBrandNotFound, brandID)
	}

	var items []models.Product
	for _, product := range s.products {
		if product.BrandID == brandID {
			items = append(items, product)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// GetUser retrieves a user profile by ID
func (s *Service) GetUser(userID string) (models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return models.UserProfile{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return user, nil
}

// GetUserByUsername retrieves a user profile by username with a linear scan
func (s *Service) GetUserByUsername(username string) (models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.UserProfile{}, fmt.Errorf("%w: username %s", ErrUserNotFound, username)
}

// GetBrand retrieves a brand by ID
func (s *Service) GetBrand(brandID string) (models.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	brand, exists := s.brands[brandID]
	if !exists {
		return models.Brand{}, fmt.Errorf("%w: %s", ErrBrandNotFound, brandID)
	}
	return brand, nil
}

// AddListing curates a product onto a reseller's storefront at the chosen
// selling price. The price floor check lives here, not in the UI.
func (s *Service) AddListing(resellerID, productID string, sellingPrice int64) (models.ResellerProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[resellerID]; !exists {
		return models.ResellerProduct{}, fmt.Errorf("%w: %s", ErrUserNotFound, resellerID)
	}

	product, exists := s.products[productID]
	if !exists {
		return models.ResellerProduct{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if !product.IsActive {
		return models.ResellerProduct{}, fmt.Errorf("%w: %s", ErrProductInactive, productID)
	}
	if sellingPrice < product.BasePrice {
		return models.ResellerProduct{}, fmt.Errorf("%w: selling %d, base %d",
			ErrPriceBelowBase, sellingPrice, product.BasePrice)
	}

	listing := models.ResellerProduct{
		ResellerID:   resellerID,
		ProductID:    productID,
		SellingPrice: sellingPrice,
		Markup:       sellingPrice - product.BasePrice,
		AddedAt:      time.Now().UTC(),
	}

	// Replace an existing listing for the same product
	existing := s.listings[resellerID]
	replaced := false
	for i, l := range existing {
		if l.ProductID == productID {
			existing[i] = listing
			replaced = true
			break
		}
	}
	if !replaced {
		s.listings[resellerID] = append(existing, listing)
	}

	s.persist()

	slog.Info("Listing added",
		"reseller_id", resellerID,
		"product_id", productID,
		"selling_price", sellingPrice,
		"markup", listing.Markup)

	return listing, nil
}

// RemoveListing removes a product from a reseller's storefront. Removing a
// listing that does not exist is a no-op.
func (s *Service) RemoveListing(resellerID, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.listings[resellerID]
	filtered := existing[:0]
	for _, l := range existing {
		if l.ProductID != productID {
			filtered = append(filtered, l)
		}
	}
	s.listings[resellerID] = filtered
	s.persist()
}

// GetListing returns a reseller's listing for one product
func (s *Service) GetListing(resellerID, productID string) (models.ResellerProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.listings[resellerID] {
		if l.ProductID == productID {
			return l, nil
		}
	}
	return models.ResellerProduct{}, fmt.Errorf("%w: reseller %s, product %s",
		ErrListingNotFound, resellerID, productID)
}

// ListListings returns all listings for a reseller
func (s *Service) ListListings(resellerID string) []models.ResellerProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.ResellerProduct, len(s.listings[resellerID]))
	copy(items, s.listings[resellerID])
	return items
}

// CommitSale decrements stock and increments sold counters for a purchased
// line. Fails without mutating anything when stock is short.
func (s *Service) CommitSale(productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if product.Stock < quantity {
		return fmt.Errorf("%w: product %s, stock %d, requested %d",
			ErrInsufficientStock, productID, product.Stock, quantity)
	}

	product.Stock -= quantity
	product.Sold += quantity
	s.products[productID] = product
	s.persist()

	return nil
}

// ReleaseSale restores stock for a cancelled order line
func (s *Service) ReleaseSale(productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	product.Stock += quantity
	if product.Sold >= quantity {
		product.Sold -= quantity
	}
	s.products[productID] = product
	s.persist()

	return nil
}

// SaveOrder persists an order record
func (s *Service) SaveOrder(order models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ID] = order
	s.persist()
}

// GetOrder retrieves an order by ID
func (s *Service) GetOrder(orderID string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[orderID]
	if !exists {
		return models.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

// GetOrdersByReseller returns a reseller's orders, newest first
func (s *Service) GetOrdersByReseller(resellerID string) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.Order
	for _, order := range s.orders {
		if order.ResellerID == resellerID {
			items = append(items, order)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}
