package wallet

import (
	"sync"
	"testing"
	"time"

	"biolink-storefront-api/internal/cache"
	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	snapshots, err := storage.NewSnapshotStore(t.TempDir(), false)
	require.NoError(t, err)
	idempotency := cache.NewTTLCache(time.Minute, 30*time.Second)
	t.Cleanup(idempotency.Stop)
	return NewService(snapshots, idempotency)
}

// TestUpdateBalance_Credit tests that a credit raises both the balance and
// the lifetime earnings
func TestUpdateBalance_Credit(t *testing.T) {
	// Arrange
	svc := newTestService(t)

	// Act
	info, err := svc.UpdateBalance("user-ayu", 150000, BalanceCredit)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(150000), info.Balance)
	assert.Equal(t, int64(150000), info.TotalEarnings)
	assert.False(t, info.LastActivity.IsZero())
}

// TestUpdateBalance_DebitLeavesEarningsUntouched tests that a debit lowers
// only the balance
func TestUpdateBalance_DebitLeavesEarningsUntouched(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 200000, BalanceCredit)
	require.NoError(t, err)

	// Act
	info, err := svc.UpdateBalance("user-ayu", 50000, BalanceDebit)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(150000), info.Balance)
	assert.Equal(t, int64(200000), info.TotalEarnings)
}

// TestUpdateBalance_DebitFloorsAtZero tests that over-debiting clamps the
// balance instead of going negative
func TestUpdateBalance_DebitFloorsAtZero(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 30000, BalanceCredit)
	require.NoError(t, err)

	// Act
	info, err := svc.UpdateBalance("user-ayu", 99999999, BalanceDebit)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Balance)
	assert.Equal(t, int64(30000), info.TotalEarnings)
}

// TestUpdateBalance_Validation tests amount and type validation
func TestUpdateBalance_Validation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpdateBalance("user-ayu", 0, BalanceCredit)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.UpdateBalance("user-ayu", -100, BalanceDebit)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.UpdateBalance("user-ayu", 100, "transfer")
	assert.ErrorIs(t, err, ErrInvalidType)
}

// TestListTransactions_NewestFirst tests transaction ordering
func TestListTransactions_NewestFirst(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	svc.AddTransaction("user-ayu", models.Transaction{Type: models.TransactionTypeCommission, Amount: 1000, Description: "first"})
	svc.AddTransaction("user-ayu", models.Transaction{Type: models.TransactionTypeCommission, Amount: 2000, Description: "second"})

	// Act
	txs := svc.ListTransactions("user-ayu")

	// Assert
	require.Len(t, txs, 2)
	assert.Equal(t, "second", txs[0].Description)
	assert.Equal(t, "first", txs[1].Description)
	assert.NotEmpty(t, txs[0].ID)
}

// TestListTransactions_RetentionCap tests that the log keeps only the most
// recent 100 entries
func TestListTransactions_RetentionCap(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	for i := 0; i < 105; i++ {
		svc.AddTransaction("user-ayu", models.Transaction{
			Type:   models.TransactionTypeCommission,
			Amount: int64(i + 1),
		})
	}

	// Act
	txs := svc.ListTransactions("user-ayu")

	// Assert
	require.Len(t, txs, 100)
	assert.Equal(t, int64(105), txs[0].Amount, "Newest entry should survive the cap")
	assert.Equal(t, int64(6), txs[99].Amount, "Oldest five entries should be discarded")
}

// TestAvailableBalance_ReservesPendingPayouts tests that pending payout
// amounts are held back from the available balance
func TestAvailableBalance_ReservesPendingPayouts(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 500000, BalanceCredit)
	require.NoError(t, err)

	_, err = svc.CreatePayoutRequest("user-ayu", 100000, models.PayoutMethodBank, "BCA 1234567890")
	require.NoError(t, err)

	// Act & Assert
	assert.Equal(t, int64(400000), svc.AvailableBalance("user-ayu"))
	assert.Equal(t, int64(500000), svc.GetWallet("user-ayu").Balance, "Balance itself is debited only on completion")
	assert.Equal(t, int64(100000), svc.GetWallet("user-ayu").PendingBalance)
}

// TestCreatePayoutRequest_Validation tests amount, method and balance checks
func TestCreatePayoutRequest_Validation(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 50000, BalanceCredit)
	require.NoError(t, err)

	_, err = svc.CreatePayoutRequest("user-ayu", 0, models.PayoutMethodBank, "BCA 123")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreatePayoutRequest("user-ayu", 10000, "paypal", "acct")
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, err = svc.CreatePayoutRequest("user-ayu", 60000, models.PayoutMethodEwallet, "gopay 0812")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

// TestCreatePayoutRequest_SecondRequestLimitedByReservation tests that a
// pending payout shrinks the room for the next one
func TestCreatePayoutRequest_SecondRequestLimitedByReservation(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 100000, BalanceCredit)
	require.NoError(t, err)
	_, err = svc.CreatePayoutRequest("user-ayu", 70000, models.PayoutMethodBank, "BCA 123")
	require.NoError(t, err)

	// Act
	_, err = svc.CreatePayoutRequest("user-ayu", 40000, models.PayoutMethodBank, "BCA 123")

	// Assert
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = svc.CreatePayoutRequest("user-ayu", 30000, models.PayoutMethodBank, "BCA 123")
	assert.NoError(t, err, "Request within the remaining room should pass")
}

// TestUpdatePayoutStatus_FullPipeline walks a payout through
// pending -> approved -> processing -> completed and checks the settlement
func TestUpdatePayoutStatus_FullPipeline(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 500000, BalanceCredit)
	require.NoError(t, err)
	payout, err := svc.CreatePayoutRequest("user-ayu", 200000, models.PayoutMethodBank, "BCA 123")
	require.NoError(t, err)

	// Act
	updated, err := svc.UpdatePayoutStatus("user-ayu", payout.ID, models.PayoutStatusApproved, "verified")
	require.NoError(t, err)
	assert.NotNil(t, updated.ProcessedAt)
	assert.Equal(t, "verified", updated.Notes)

	_, err = svc.UpdatePayoutStatus("user-ayu", payout.ID, models.PayoutStatusProcessing, "")
	require.NoError(t, err)

	updated, err = svc.UpdatePayoutStatus("user-ayu", payout.ID, models.PayoutStatusCompleted, "")
	require.NoError(t, err)

	// Assert
	assert.NotNil(t, updated.CompletedAt)

	info := svc.GetWallet("user-ayu")
	assert.Equal(t, int64(300000), info.Balance, "Completion debits the balance")
	assert.Equal(t, int64(0), info.PendingBalance)
	assert.Equal(t, int64(200000), info.TotalWithdrawn)
	assert.Equal(t, int64(500000), info.TotalEarnings, "Withdrawals never reduce lifetime earnings")

	txs := svc.ListTransactions("user-ayu")
	require.NotEmpty(t, txs)
	assert.Equal(t, models.TransactionTypePayout, txs[0].Type)
	assert.Equal(t, payout.ID, txs[0].Reference)
}

// TestUpdatePayoutStatus_RejectedReleasesReservation tests that a rejection
// frees the held amount without touching the balance
func TestUpdatePayoutStatus_RejectedReleasesReservation(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 500000, BalanceCredit)
	require.NoError(t, err)
	payout, err := svc.CreatePayoutRequest("user-ayu", 200000, models.PayoutMethodBank, "BCA 123")
	require.NoError(t, err)

	// Act
	_, err = svc.UpdatePayoutStatus("user-ayu", payout.ID, models.PayoutStatusRejected, "account mismatch")
	require.NoError(t, err)

	// Assert
	info := svc.GetWallet("user-ayu")
	assert.Equal(t, int64(500000), info.Balance)
	assert.Equal(t, int64(0), info.PendingBalance)
	assert.Equal(t, int64(500000), svc.AvailableBalance("user-ayu"))
}

// TestUpdatePayoutStatus_InvalidTransitions tests that the pipeline rejects
// shortcuts and moves out of terminal states
func TestUpdatePayoutStatus_InvalidTransitions(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 500000, BalanceCredit)
	require.NoError(t, err)
	payout, err := svc.CreatePayoutRequest("user-ayu", 100000, models.PayoutMethodBank, "BCA 123")
	require.NoError(t, err)

	// pending cannot jump straight to completed
	_, err = svc.UpdatePayoutStatus("user-ayu", payout.ID, models.PayoutStatusCompleted, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// rejected is terminal
	_, err = svc.UpdatePayoutStatus("user-ayu", payout.ID, models.PayoutStatusRejected, "")
	require.NoError(t, err)
	_, err = svc.UpdatePayoutStatus("user-ayu", payout.ID, models.PayoutStatusApproved, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// unknown status string
	_, err = svc.UpdatePayoutStatus("user-ayu", payout.ID, "paused", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// unknown payout ID
	_, err = svc.UpdatePayoutStatus("user-ayu", "payout-missing", models.PayoutStatusApproved, "")
	assert.ErrorIs(t, err, ErrPayoutNotFound)
}

// TestGetPayout tests single payout lookup
func TestGetPayout(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 500000, BalanceCredit)
	require.NoError(t, err)
	created, err := svc.CreatePayoutRequest("user-ayu", 100000, models.PayoutMethodEwallet, "gopay 0812")
	require.NoError(t, err)

	// Act
	found, err := svc.GetPayout("user-ayu", created.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, models.PayoutMethodEwallet, found.Method)

	_, err = svc.GetPayout("user-ayu", "payout-missing")
	assert.ErrorIs(t, err, ErrPayoutNotFound)
}

// TestPersistence_RoundTrip tests that wallet state survives a restart when
// persistence is enabled
func TestPersistence_RoundTrip(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	snapshots, err := storage.NewSnapshotStore(dir, true)
	require.NoError(t, err)
	idempotency := cache.NewTTLCache(time.Minute, 30*time.Second)
	t.Cleanup(idempotency.Stop)

	svc := NewService(snapshots, idempotency)
	_, err = svc.UpdateBalance("user-ayu", 500000, BalanceCredit)
	require.NoError(t, err)
	_, err = svc.CreatePayoutRequest("user-ayu", 100000, models.PayoutMethodBank, "BCA 123")
	require.NoError(t, err)

	// Act
	restored := NewService(snapshots, idempotency)

	// Assert
	info := restored.GetWallet("user-ayu")
	assert.Equal(t, int64(500000), info.Balance)
	assert.Equal(t, int64(100000), info.PendingBalance)
	assert.Equal(t, int64(400000), restored.AvailableBalance("user-ayu"))
	assert.Len(t, restored.ListPayouts("user-ayu"), 1)
}

// TestUpdateBalance_ConcurrentUsersWithPersistence tests that updates for
// different users with persistence enabled never corrupt balances or the
// snapshot; each account is copied under its own lock before encoding
func TestUpdateBalance_ConcurrentUsersWithPersistence(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	snapshots, err := storage.NewSnapshotStore(dir, true)
	require.NoError(t, err)
	idempotency := cache.NewTTLCache(time.Minute, 30*time.Second)
	t.Cleanup(idempotency.Stop)
	svc := NewService(snapshots, idempotency)

	// Act
	var wg sync.WaitGroup
	for _, userID := range []string{"user-ayu", "user-bima"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := svc.UpdateBalance(id, 1000, BalanceCredit)
				assert.NoError(t, err)
			}
		}(userID)
	}
	wg.Wait()

	// Assert
	assert.Equal(t, int64(25000), svc.GetWallet("user-ayu").Balance)
	assert.Equal(t, int64(25000), svc.GetWallet("user-bima").Balance)

	restored := NewService(snapshots, idempotency)
	assert.Equal(t, int64(25000), restored.GetWallet("user-ayu").Balance)
	assert.Equal(t, int64(25000), restored.GetWallet("user-bima").Balance)
}

// TestCreatePayoutRequest_TrimKeepsReservedPayouts tests that the retention
// cap only drops terminal payout records; pending requests keep their place
// and their balance reservation even when the list runs over the cap
func TestCreatePayoutRequest_TrimKeepsReservedPayouts(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	_, err := svc.UpdateBalance("user-ayu", 100000, BalanceCredit)
	require.NoError(t, err)

	var firstID string
	for i := 0; i < 51; i++ {
		payout, err := svc.CreatePayoutRequest("user-ayu", 1000, models.PayoutMethodBank, "BCA 123")
		require.NoError(t, err)
		if i == 0 {
			firstID = payout.ID
		}
	}

	// All 51 are pending, so none may be dropped despite the cap of 50.
	require.Len(t, svc.ListPayouts("user-ayu"), 51)

	_, err = svc.UpdatePayoutStatus("user-ayu", firstID, models.PayoutStatusRejected, "duplicate request")
	require.NoError(t, err)

	// Act: the next creation trims, and only the rejected record is eligible
	_, err = svc.CreatePayoutRequest("user-ayu", 1000, models.PayoutMethodBank, "BCA 123")
	require.NoError(t, err)

	// Assert
	payouts := svc.ListPayouts("user-ayu")
	require.Len(t, payouts, 51)
	for _, p := range payouts {
		assert.Equal(t, models.PayoutStatusPending, p.Status)
		assert.NotEqual(t, firstID, p.ID)
	}
	assert.Equal(t, int64(51000), svc.GetWallet("user-ayu").PendingBalance)
	assert.Equal(t, int64(49000), svc.AvailableBalance("user-ayu"))
}
