package wallet

import (
	"errors"
	"fmt"
	"log/slog"

	"biolink-storefront-api/internal/models"
)

var ErrMissingOrderID = errors.New("order ID is required")

// CommissionResult reports the transactions recorded for one order's
// commission split.
type CommissionResult struct {
	OrderID      string               `json:"orderId"`
	Transactions []models.Transaction `json:"transactions"`
	TotalAmount  int64                `json:"totalAmount"`
	Duplicate    bool                 `json:"duplicate"`
}

// ProcessCommission credits each non-zero commission component to its target
// wallet and appends a matching completed transaction in the same locked
// step, keeping balance and log in lockstep. Processing is idempotent per
// order: a repeated call within the idempotency window returns the original
// result without crediting again.
func (s *Service) ProcessCommission(orderID string, components models.CommissionComponents) (*CommissionResult, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}

	idempotencyKey := "commission:" + orderID
	if cached, exists := s.idempotency.Get(idempotencyKey); exists {
		if result, ok := cached.(*CommissionResult); ok {
			slog.Info("Duplicate commission processing detected, returning cached result",
				"order_id", orderID)
			dup := *result
			dup.Duplicate = true
			return &dup, nil
		}
	}

	result := &CommissionResult{OrderID: orderID}

	type split struct {
		userID string
		amount int64
		txType string
	}
	splits := []split{
		{components.ResellerID, components.Reseller, models.TransactionTypeCommission},
		{components.CommunityID, components.Community, models.TransactionTypeCommunityShare},
		{components.ReferrerID, components.Referrer, models.TransactionTypeReferral},
	}

	// Every component must be valid before any wallet is touched, so a
	// rejected call leaves no partial credits behind and a corrected retry
	// starts from a clean slate.
	for _, sp := range splits {
		if sp.amount < 0 {
			return nil, fmt.Errorf("%w: %s component %d", ErrInvalidAmount, sp.txType, sp.amount)
		}
	}

	for _, sp := range splits {
		if sp.amount == 0 || sp.userID == "" {
			continue
		}

		acc := s.getOrCreateAccount(sp.userID)

		var tx models.Transaction
		s.lockManager.WithUserWriteLock(sp.userID, func() {
			s.applyBalance(acc, sp.amount, BalanceCredit)
			tx = s.appendTransaction(acc, models.Transaction{
				Type:        sp.txType,
				Amount:      sp.amount,
				Status:      models.TransactionStatusCompleted,
				Description: fmt.Sprintf("Commission for order %s", orderID),
				Reference:   orderID,
			})
		})

		result.Transactions = append(result.Transactions, tx)
		result.TotalAmount += sp.amount

		slog.Info("Commission component credited",
			"order_id", orderID,
			"user_id", sp.userID,
			"type", sp.txType,
			"amount", sp.amount)
	}

	s.idempotency.Set(idempotencyKey, result)
	s.persist()

	return result, nil
}
