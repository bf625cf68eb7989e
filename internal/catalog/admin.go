package catalog

import (
	"fmt"
	"log/slog"

	"biolink-storefront-api/internal/models"
)

// AdminSetProducts applies partial updates to existing products. Each item
// succeeds or fails independently; the summary reports both counts.
func (s *Service) AdminSetProducts(updates []models.AdminProductSet) models.AdminBatchResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]models.AdminProductResult, 0, len(updates))
	succeeded := 0

	for _, update := range updates {
		product, exists := s.products[update.ProductID]
		if !exists {
			results = append(results, models.AdminProductResult{
				ProductID: update.ProductID,
				Applied:   false,
				Error:     fmt.Sprintf("product not found: %s", update.ProductID),
			})
			continue
		}

		if update.Name != nil {
			product.Name = *update.Name
		}
		if update.BasePrice != nil {
			product.BasePrice = *update.BasePrice
		}
		if update.RecommendedPrice != nil {
			product.RecommendedPrice = *update.RecommendedPrice
		}
		if update.CommissionPct != nil {
			product.CommissionPct = *update.CommissionPct
		}
		if update.Stock != nil {
			product.Stock = *update.Stock
		}
		if update.IsActive != nil {
			product.IsActive = *update.IsActive
		}

		if product.RecommendedPrice < product.BasePrice {
			results = append(results, models.AdminProductResult{
				ProductID: update.ProductID,
				Applied:   false,
				Error: fmt.Sprintf("recommended price %d below base price %d",
					product.RecommendedPrice, product.BasePrice),
			})
			continue
		}

		s.products[update.ProductID] = product
		results = append(results, models.AdminProductResult{
			ProductID: update.ProductID,
			Applied:   true,
		})
		succeeded++
	}

	s.persist()

	slog.Info("Admin set products completed",
		"total", len(updates),
		"succeeded", succeeded,
		"failed", len(updates)-succeeded)

	return models.AdminBatchResponse{
		Results: results,
		Summary: models.AdminBatchSummary{
			Total:     len(updates),
			Succeeded: succeeded,
			Failed:    len(updates) - succeeded,
		},
	}
}

// AdminCreateProducts adds new products to the catalog
func (s *Service) AdminCreateProducts(products []models.Product) models.AdminBatchResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]models.AdminProductResult, 0, len(products))
	succeeded := 0

	for _, product := range products {
		if product.ID == "" {
			results = append(results, models.AdminProductResult{
				Applied: false,
				Error:   "product ID is required",
			})
			continue
		}
		if _, exists := s.products[product.ID]; exists {
			results = append(results, models.AdminProductResult{
				ProductID: product.ID,
				Applied:   false,
				Error:     fmt.Sprintf("product already exists: %s", product.ID),
			})
			continue
		}
		if product.RecommendedPrice < product.BasePrice {
			results = append(results, models.AdminProductResult{
				ProductID: product.ID,
				Applied:   false,
				Error: fmt.Sprintf("recommended price %d below base price %d",
					product.RecommendedPrice, product.BasePrice),
			})
			continue
		}
		if _, exists := s.brands[product.BrandID]; !exists {
			results = append(results, models.AdminProductResult{
				ProductID: product.ID,
				Applied:   false,
				Error:     fmt.Sprintf("brand not found: %s", product.BrandID),
			})
			continue
		}

		s.products[product.ID] = product
		results = append(results, models.AdminProductResult{
			ProductID: product.ID,
			Applied:   true,
		})
		succeeded++
	}

	s.persist()

	slog.Info("Admin create products completed",
		"total", len(products),
		"succeeded", succeeded,
		"failed", len(products)-succeeded)

	return models.AdminBatchResponse{
		Results: results,
		Summary: models.AdminBatchSummary{
			Total:     len(products),
			Succeeded: succeeded,
			Failed:    len(products) - succeeded,
		},
	}
}

// AdminDeleteProducts removes products from the catalog along with any
// reseller listings that reference them.
func (s *Service) AdminDeleteProducts(productIDs []string) models.AdminBatchResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]models.AdminProductResult, 0, len(productIDs))
	succeeded := 0

	for _, productID := range productIDs {
		if _, exists := s.products[productID]; !exists {
			results = append(results, models.AdminProductResult{
				ProductID: productID,
				Applied:   false,
				Error:     fmt.Sprintf("product not found: %s", productID),
			})
			continue
		}

		delete(s.products, productID)

		for resellerID, listings := range s.listings {
			filtered := listings[:0]
			for _, l := range listings {
				if l.ProductID != productID {
					filtered = append(filtered, l)
				}
			}
			s.listings[resellerID] = filtered
		}

		results = append(results, models.AdminProductResult{
			ProductID: productID,
			Applied:   true,
		})
		succeeded++
	}

	s.persist()

	slog.Info("Admin delete products completed",
		"total", len(productIDs),
		"succeeded", succeeded,
		"failed", len(productIDs)-succeeded)

	return models.AdminBatchResponse{
		Results: results,
		Summary: models.AdminBatchSummary{
			Total:     len(productIDs),
			Succeeded: succeeded,
			Failed:    len(productIDs) - succeeded,
		},
	}
}
