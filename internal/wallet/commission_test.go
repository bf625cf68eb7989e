package wallet

import (
	"testing"

	"biolink-storefront-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProcessCommission_SplitsComponents tests that each non-zero component
// lands in its target wallet with a matching transaction
func TestProcessCommission_SplitsComponents(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	components := models.CommissionComponents{
		Reseller:    25000,
		ResellerID:  "user-ayu",
		Community:   5000,
		CommunityID: "community-jkt",
		Referrer:    2500,
		ReferrerID:  "user-bima",
	}

	// Act
	result, err := svc.ProcessCommission("order-001", components)

	// Assert
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, int64(32500), result.TotalAmount)
	require.Len(t, result.Transactions, 3)

	assert.Equal(t, int64(25000), svc.GetWallet("user-ayu").Balance)
	assert.Equal(t, int64(5000), svc.GetWallet("community-jkt").Balance)
	assert.Equal(t, int64(2500), svc.GetWallet("user-bima").Balance)

	resellerTxs := svc.ListTransactions("user-ayu")
	require.Len(t, resellerTxs, 1)
	assert.Equal(t, models.TransactionTypeCommission, resellerTxs[0].Type)
	assert.Equal(t, "order-001", resellerTxs[0].Reference)

	communityTxs := svc.ListTransactions("community-jkt")
	require.Len(t, communityTxs, 1)
	assert.Equal(t, models.TransactionTypeCommunityShare, communityTxs[0].Type)

	referrerTxs := svc.ListTransactions("user-bima")
	require.Len(t, referrerTxs, 1)
	assert.Equal(t, models.TransactionTypeReferral, referrerTxs[0].Type)
}

// TestProcessCommission_Idempotent tests that replaying the same order does
// not double-credit
func TestProcessCommission_Idempotent(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	components := models.CommissionComponents{Reseller: 25000, ResellerID: "user-ayu"}

	first, err := svc.ProcessCommission("order-001", components)
	require.NoError(t, err)

	// Act
	second, err := svc.ProcessCommission("order-001", components)

	// Assert
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.TotalAmount, second.TotalAmount)
	assert.Equal(t, int64(25000), svc.GetWallet("user-ayu").Balance, "Balance must not change on replay")
	assert.Len(t, svc.ListTransactions("user-ayu"), 1)
}

// TestProcessCommission_SkipsZeroAndUnassignedComponents tests that empty
// recipients and zero amounts are skipped rather than rejected
func TestProcessCommission_SkipsZeroAndUnassignedComponents(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	components := models.CommissionComponents{
		Reseller:   25000,
		ResellerID: "user-ayu",
		Community:  5000,
		// CommunityID left empty: nowhere to credit
		Referrer:   0,
		ReferrerID: "user-bima",
	}

	// Act
	result, err := svc.ProcessCommission("order-002", components)

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, int64(25000), result.TotalAmount)
	assert.Equal(t, int64(0), svc.GetWallet("user-bima").Balance)
}

// TestProcessCommission_RejectsNegativeComponent tests negative amount
// validation
func TestProcessCommission_RejectsNegativeComponent(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	components := models.CommissionComponents{Reseller: -1000, ResellerID: "user-ayu"}

	// Act
	_, err := svc.ProcessCommission("order-003", components)

	// Assert
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, int64(0), svc.GetWallet("user-ayu").Balance)
}

// TestProcessCommission_NegativeLaterComponentCreditsNothing tests that a
// negative component after a valid one rejects the whole call without
// touching any wallet, and that a corrected retry credits exactly once
func TestProcessCommission_NegativeLaterComponentCreditsNothing(t *testing.T) {
	// Arrange
	svc := newTestService(t)
	bad := models.CommissionComponents{
		Reseller:    1000,
		ResellerID:  "user-ayu",
		Community:   -200,
		CommunityID: "community-jkt",
	}

	// Act
	_, err := svc.ProcessCommission("order-007", bad)

	// Assert
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, int64(0), svc.GetWallet("user-ayu").Balance)
	assert.Empty(t, svc.ListTransactions("user-ayu"))

	// Act: retry the same order with the component corrected
	good := bad
	good.Community = 200
	result, err := svc.ProcessCommission("order-007", good)

	// Assert: the retry is a first processing, credited exactly once
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, int64(1200), result.TotalAmount)
	assert.Equal(t, int64(1000), svc.GetWallet("user-ayu").Balance)
	assert.Equal(t, int64(200), svc.GetWallet("community-jkt").Balance)
	require.Len(t, svc.ListTransactions("user-ayu"), 1)
}

// TestProcessCommission_RequiresOrderID tests the order ID guard
func TestProcessCommission_RequiresOrderID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ProcessCommission("", models.CommissionComponents{Reseller: 1000, ResellerID: "user-ayu"})

	assert.ErrorIs(t, err, ErrMissingOrderID)
}
