package wallet

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"biolink-storefront-api/internal/cache"
	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/storage"
)

const snapshotName = "wallet"

// Retention caps from the persisted wallet layout. Entries beyond the cap
// are discarded oldest-first; payouts still reserving balance are exempt.
const (
	maxTransactions   = 100
	maxPayoutRequests = 50
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidType         = errors.New("invalid balance update type")
	ErrInvalidMethod       = errors.New("invalid payout method")
	ErrInsufficientBalance = errors.New("amount exceeds available balance")
	ErrPayoutNotFound      = errors.New("payout request not found")
	ErrInvalidStatus       = errors.New("invalid payout status")
	ErrInvalidTransition   = errors.New("invalid payout status transition")
)

// Balance update type constants
const (
	BalanceCredit = "credit"
	BalanceDebit  = "debit"
)

// account is one user's wallet state. Mutated only under the user's lock.
type account struct {
	Info         models.WalletInfo      `json:"info"`
	Transactions []models.Transaction   `json:"transactions"`
	Payouts      []models.PayoutRequest `json:"payouts"`
}

// Service owns all wallets. The global mutex guards the accounts map;
// account state is read and mutated only under the user lock manager,
// including the copies taken for snapshot saves.
type Service struct {
	globalMu    sync.RWMutex
	accounts    map[string]*account
	lockManager *UserLockManager
	idempotency *cache.TTLCache
	snapshots   *storage.SnapshotStore
}

// NewService creates the wallet service, restoring persisted wallets if
// present. The idempotency cache deduplicates commission processing per
// order.
func NewService(snapshots *storage.SnapshotStore, idempotency *cache.TTLCache) *Service {
	s := &Service{
		accounts:    make(map[string]*account),
		lockManager: NewUserLockManager(),
		idempotency: idempotency,
		snapshots:   snapshots,
	}

	var persisted map[string]*account
	err := snapshots.Load(snapshotName, &persisted)
	if err != nil {
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			slog.Warn("Failed to restore wallet snapshot, starting empty", "error", err)
		}
	} else {
		s.accounts = persisted
	}

	slog.Info("Wallet service initialized", "accounts_count", len(s.accounts))

	return s
}

// getOrCreateAccount returns the account for a user, creating it on first use
func (s *Service) getOrCreateAccount(userID string) *account {
	s.globalMu.RLock()
	if acc, exists := s.accounts[userID]; exists {
		s.globalMu.RUnlock()
		return acc
	}
	s.globalMu.RUnlock()

	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	if acc, exists := s.accounts[userID]; exists {
		return acc
	}

	acc := &account{}
	s.accounts[userID] = acc
	return acc
}

// persist saves all wallet state. Accounts mutate under per-user locks, so
// each one is copied under its lock before encoding; marshaling the live map
// directly would race with concurrent updates for other users.
func (s *Service) persist() {
	s.globalMu.RLock()
	refs := make(map[string]*account, len(s.accounts))
	for id, acc := range s.accounts {
		refs[id] = acc
	}
	s.globalMu.RUnlock()

	snapshot := make(map[string]account, len(refs))
	for id, acc := range refs {
		s.lockManager.WithUserReadLock(id, func() {
			snapshot[id] = copyAccount(acc)
		})
	}

	if err := s.snapshots.Save(snapshotName, snapshot); err != nil {
		slog.Error("Failed to persist wallet snapshot", "error", err)
	}
}

// copyAccount clones an account's state. Called with the user lock held.
func copyAccount(acc *account) account {
	clone := account{Info: acc.Info}
	clone.Transactions = make([]models.Transaction, len(acc.Transactions))
	copy(clone.Transactions, acc.Transactions)
	clone.Payouts = make([]models.PayoutRequest, len(acc.Payouts))
	copy(clone.Payouts, acc.Payouts)
	return clone
}

// GetWallet returns the balance summary for a user
func (s *Service) GetWallet(userID string) models.WalletInfo {
	acc := s.getOrCreateAccount(userID)

	var info models.WalletInfo
	s.lockManager.WithUserReadLock(userID, func() {
		info = acc.Info
	})
	return info
}

// UpdateBalance applies a credit or debit to a user's wallet. Credits add to
// both Balance and TotalEarnings; debits subtract from Balance only, floored
// at zero. TotalEarnings is deliberately left untouched by debits.
func (s *Service) UpdateBalance(userID string, amount int64, updateType string) (models.WalletInfo, error) {
	if amount <= 0 {
		return models.WalletInfo{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if updateType != BalanceCredit && updateType != BalanceDebit {
		return models.WalletInfo{}, fmt.Errorf("%w: %s", ErrInvalidType, updateType)
	}

	acc := s.getOrCreateAccount(userID)

	var info models.WalletInfo
	s.lockManager.WithUserWriteLock(userID, func() {
		s.applyBalance(acc, amount, updateType)
		info = acc.Info
	})
	s.persist()

	slog.Debug("Balance updated",
		"user_id", userID,
		"type", updateType,
		"amount", amount,
		"balance", info.Balance)

	return info, nil
}

// applyBalance mutates an account's balance. Called with the user lock held.
func (s *Service) applyBalance(acc *account, amount int64, updateType string) {
	switch updateType {
	case BalanceCredit:
		acc.Info.Balance += amount
		acc.Info.TotalEarnings += amount
	case BalanceDebit:
		acc.Info.Balance -= amount
		if acc.Info.Balance < 0 {
			acc.Info.Balance = 0
		}
	}
	acc.Info.LastActivity = time.Now().UTC()
}

// appendTransaction prepends a transaction and enforces the retention cap.
// Called with the user lock held.
func (s *Service) appendTransaction(acc *account, tx models.Transaction) models.Transaction {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	acc.Transactions = append([]models.Transaction{tx}, acc.Transactions...)
	if len(acc.Transactions) > maxTransactions {
		acc.Transactions = acc.Transactions[:maxTransactions]
	}
	return tx
}

// AddTransaction records a transaction in a user's log. It does not touch
// the balance; callers pairing a balance change with a log entry should
// prefer ProcessCommission, which does both under one lock.
func (s *Service) AddTransaction(userID string, tx models.Transaction) models.Transaction {
	acc := s.getOrCreateAccount(userID)

	var added models.Transaction
	s.lockManager.WithUserWriteLock(userID, func() {
		added = s.appendTransaction(acc, tx)
	})
	s.persist()

	return added
}

// ListTransactions returns a user's transaction log, newest first
func (s *Service) ListTransactions(userID string) []models.Transaction {
	acc := s.getOrCreateAccount(userID)

	var items []models.Transaction
	s.lockManager.WithUserReadLock(userID, func() {
		items = make([]models.Transaction, len(acc.Transactions))
		copy(items, acc.Transactions)
	})
	return items
}

// AvailableBalance returns the balance minus payouts currently pending or
// processing, floored at zero.
func (s *Service) AvailableBalance(userID string) int64 {
	acc := s.getOrCreateAccount(userID)

	var available int64
	s.lockManager.WithUserReadLock(userID, func() {
		available = availableLocked(acc)
	})
	return available
}

// trimPayouts enforces the retention cap on a newest-first payout list,
// dropping the oldest terminal requests first. Pending and processing
// payouts still reserve balance and are kept even when the list runs over
// the cap. Called with the user lock held.
func trimPayouts(payouts []models.PayoutRequest) []models.PayoutRequest {
	excess := len(payouts) - maxPayoutRequests
	if excess <= 0 {
		return payouts
	}

	kept := make([]models.PayoutRequest, 0, maxPayoutRequests)
	for i := len(payouts) - 1; i >= 0; i-- {
		p := payouts[i]
		if excess > 0 && p.Status != models.PayoutStatusPending && p.Status != models.PayoutStatusProcessing {
			excess--
			continue
		}
		kept = append(kept, p)
	}

	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}
	return kept
}

// availableLocked computes available balance with the user lock held
func availableLocked(acc *account) int64 {
	reserved := int64(0)
	for _, p := range acc.Payouts {
		if p.Status == models.PayoutStatusPending || p.Status == models.PayoutStatusProcessing {
			reserved += p.Amount
		}
	}
	available := acc.Info.Balance - reserved
	if available < 0 {
		available = 0
	}
	return available
}

// CreatePayoutRequest opens a withdrawal request. The amount must not exceed
// the available balance; this check lives in the service, not the UI.
func (s *Service) CreatePayoutRequest(userID string, amount int64, method, accountDetails string) (models.PayoutRequest, error) {
	if amount <= 0 {
		return models.PayoutRequest{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if method != models.PayoutMethodBank && method != models.PayoutMethodEwallet {
		return models.PayoutRequest{}, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}

	acc := s.getOrCreateAccount(userID)

	var request models.PayoutRequest
	var err error
	s.lockManager.WithUserWriteLock(userID, func() {
		available := availableLocked(acc)
		if amount > available {
			err = fmt.Errorf("%w: requested %d, available %d", ErrInsufficientBalance, amount, available)
			return
		}

		request = models.PayoutRequest{
			ID:             uuid.NewString(),
			UserID:         userID,
			Amount:         amount,
			Status:         models.PayoutStatusPending,
			Method:         method,
			AccountDetails: accountDetails,
			RequestedAt:    time.Now().UTC(),
		}

		acc.Payouts = trimPayouts(append([]models.PayoutRequest{request}, acc.Payouts...))
		acc.Info.PendingBalance += amount
	})
	if err != nil {
		return models.PayoutRequest{}, err
	}
	s.persist()

	slog.Info("Payout request created",
		"user_id", userID,
		"payout_id", request.ID,
		"amount", amount,
		"method", method)

	return request, nil
}

// ListPayouts returns a user's payout requests, newest first
func (s *Service) ListPayouts(userID string) []models.PayoutRequest {
	acc := s.getOrCreateAccount(userID)

	var items []models.PayoutRequest
	s.lockManager.WithUserReadLock(userID, func() {
		items = make([]models.PayoutRequest, len(acc.Payouts))
		copy(items, acc.Payouts)
	})
	return items
}

// GetPayout returns one payout request by ID
func (s *Service) GetPayout(userID, payoutID string) (models.PayoutRequest, error) {
	acc := s.getOrCreateAccount(userID)

	var found *models.PayoutRequest
	s.lockManager.WithUserReadLock(userID, func() {
		for i := range acc.Payouts {
			if acc.Payouts[i].ID == payoutID {
				p := acc.Payouts[i]
				found = &p
				return
			}
		}
	})
	if found == nil {
		return models.PayoutRequest{}, fmt.Errorf("%w: %s", ErrPayoutNotFound, payoutID)
	}
	return *found, nil
}

// UpdatePayoutStatus moves a payout request through the approval pipeline.
// Transitions outside the table are rejected. Completing a payout debits the
// balance and records a payout transaction in the same locked step.
func (s *Service) UpdatePayoutStatus(userID, payoutID, status, notes string) (models.PayoutRequest, error) {
	if !isValidPayoutStatus(status) {
		return models.PayoutRequest{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	acc := s.getOrCreateAccount(userID)

	var updated models.PayoutRequest
	var err error
	s.lockManager.WithUserWriteLock(userID, func() {
		var payout *models.PayoutRequest
		for i := range acc.Payouts {
			if acc.Payouts[i].ID == payoutID {
				payout = &acc.Payouts[i]
				break
			}
		}
		if payout == nil {
			err = fmt.Errorf("%w: %s", ErrPayoutNotFound, payoutID)
			return
		}

		if !isValidPayoutTransition(payout.Status, status) {
			err = fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, payout.Status, status)
			return
		}

		now := time.Now().UTC()
		payout.Status = status
		if notes != "" {
			payout.Notes = notes
		}

		switch status {
		case models.PayoutStatusApproved:
			payout.ProcessedAt = &now
		case models.PayoutStatusRejected:
			payout.ProcessedAt = &now
			acc.Info.PendingBalance -= payout.Amount
		case models.PayoutStatusCompleted:
			payout.CompletedAt = &now
			acc.Info.PendingBalance -= payout.Amount
			acc.Info.TotalWithdrawn += payout.Amount
			s.applyBalance(acc, payout.Amount, BalanceDebit)
			s.appendTransaction(acc, models.Transaction{
				Type:        models.TransactionTypePayout,
				Amount:      payout.Amount,
				Status:      models.TransactionStatusCompleted,
				Description: fmt.Sprintf("Payout via %s", payout.Method),
				Reference:   payout.ID,
			})
		case models.PayoutStatusFailed:
			payout.CompletedAt = &now
			acc.Info.PendingBalance -= payout.Amount
		}
		if acc.Info.PendingBalance < 0 {
			acc.Info.PendingBalance = 0
		}
		acc.Info.LastActivity = now

		updated = *payout
	})
	if err != nil {
		return models.PayoutRequest{}, err
	}
	s.persist()

	slog.Info("Payout status updated",
		"user_id", userID,
		"payout_id", payoutID,
		"status", status)

	return updated, nil
}

// isValidPayoutStatus reports whether s is a known payout status
func isValidPayoutStatus(s string) bool {
	switch s {
	case models.PayoutStatusPending, models.PayoutStatusApproved, models.PayoutStatusRejected,
		models.PayoutStatusProcessing, models.PayoutStatusCompleted, models.PayoutStatusFailed:
		return true
	default:
		return false
	}
}

// isValidPayoutTransition encodes the payout approval pipeline. Rejected,
// completed and failed are terminal.
func isValidPayoutTransition(from, to string) bool {
	switch from {
	case models.PayoutStatusPending:
		return to == models.PayoutStatusApproved || to == models.PayoutStatusRejected
	case models.PayoutStatusApproved:
		return to == models.PayoutStatusProcessing
	case models.PayoutStatusProcessing:
		return to == models.PayoutStatusCompleted || to == models.PayoutStatusFailed
	default:
		return false
	}
}

// LockStats exposes lock manager statistics for monitoring
func (s *Service) LockStats() map[string]interface{} {
	return s.lockManager.LockStats()
}
