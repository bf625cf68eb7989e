package community

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/storage"
)

const snapshotName = "community"

// Retention caps from the persisted community layout, oldest-first discard.
const (
	maxVouchers        = 50
	maxShares          = 100
	maxTrackingRecords = 200
)

var (
	ErrVoucherNotFound    = errors.New("voucher not found")
	ErrVoucherInactive    = errors.New("voucher is not active")
	ErrVoucherNotYetValid = errors.New("voucher is not yet valid")
	ErrVoucherExpired     = errors.New("voucher has expired")
	ErrVoucherExhausted   = errors.New("voucher redemption limit reached")
	ErrDuplicateCode      = errors.New("voucher code already exists")
	ErrInvalidVoucherType = errors.New("invalid voucher type")
	ErrShareNotFound      = errors.New("share not found")
	ErrInvalidShareType   = errors.New("invalid share type")
)

// TrackingRecord is one scan or conversion event attributed to a share.
type TrackingRecord struct {
	ID        string    `json:"id"`
	ShareID   string    `json:"shareId"`
	Kind      string    `json:"kind"` // "scan" or "conversion"
	Earnings  int64     `json:"earnings,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// communityState is the persisted shape of the community blob.
type communityState struct {
	Vouchers []models.CommunityVoucher `json:"vouchers"`
	Shares   []models.CommunityShare   `json:"shares"`
	Tracking []TrackingRecord          `json:"tracking"`
}

// Service owns community vouchers, shares and their tracking records.
// Redemption runs under the write lock, so the redemption ceiling cannot be
// exceeded by near-simultaneous calls.
type Service struct {
	mu        sync.RWMutex
	vouchers  []models.CommunityVoucher
	shares    []models.CommunityShare
	tracking  []TrackingRecord
	baseURL   string
	snapshots *storage.SnapshotStore
	now       func() time.Time
}

// NewService creates the community service, restoring persisted state if
// present. baseURL is the public origin share URLs are built against.
func NewService(baseURL string, snapshots *storage.SnapshotStore) *Service {
	s := &Service{
		baseURL:   strings.TrimRight(baseURL, "/"),
		snapshots: snapshots,
		now:       time.Now,
	}

	var state communityState
	err := snapshots.Load(snapshotName, &state)
	if err != nil {
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			slog.Warn("Failed to restore community snapshot, starting empty", "error", err)
		}
	} else {
		s.vouchers = state.Vouchers
		s.shares = state.Shares
		s.tracking = state.Tracking
	}

	slog.Info("Community service initialized",
		"vouchers_count", len(s.vouchers),
		"shares_count", len(s.shares))

	return s
}

// persist saves community state with retention caps applied. Called with the
// write lock held.
func (s *Service) persist() {
	state := communityState{
		Vouchers: capNewest(s.vouchers, maxVouchers),
		Shares:   capNewest(s.shares, maxShares),
		Tracking: capNewest(s.tracking, maxTrackingRecords),
	}
	if err := s.snapshots.Save(snapshotName, &state); err != nil {
		slog.Error("Failed to persist community snapshot", "error", err)
	}
}

// capNewest keeps the newest n entries of a prepend-ordered slice
func capNewest[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// CreateVoucher creates a community voucher. A missing code is
// auto-generated as VCH plus the base36 millisecond timestamp; the QR
// payload embeds the voucher identity as a JSON document.
func (s *Service) CreateVoucher(voucher models.CommunityVoucher) (models.CommunityVoucher, error) {
	switch voucher.Type {
	case models.VoucherTypeEvent, models.VoucherTypeProduct, models.VoucherTypeDiscount:
	default:
		return models.CommunityVoucher{}, fmt.Errorf("%w: %s", ErrInvalidVoucherType, voucher.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if voucher.Code == "" {
		voucher.Code = "VCH" + strconv.FormatInt(s.now().UnixMilli(), 36)
	}
	for _, v := range s.vouchers {
		if v.Code == voucher.Code {
			return models.CommunityVoucher{}, fmt.Errorf("%w: %s", ErrDuplicateCode, voucher.Code)
		}
	}

	voucher.ID = uuid.NewString()
	voucher.CurrentRedemptions = 0
	voucher.CreatedAt = s.now().UTC()

	payload, err := json.Marshal(models.QRVoucherPayload{
		Type:        voucher.Type,
		VoucherID:   voucher.ID,
		Code:        voucher.Code,
		CommunityID: voucher.CommunityID,
		ProductID:   voucher.ProductID,
	})
	if err != nil {
		return models.CommunityVoucher{}, fmt.Errorf("error building QR payload: %w", err)
	}
	voucher.QRPayload = string(payload)

	s.vouchers = append([]models.CommunityVoucher{voucher}, s.vouchers...)
	if len(s.vouchers) > maxVouchers {
		s.vouchers = s.vouchers[:maxVouchers]
	}
	s.persist()

	slog.Info("Voucher created",
		"voucher_id", voucher.ID,
		"code", voucher.Code,
		"type", voucher.Type,
		"max_redemptions", voucher.MaxRedemptions)

	return voucher, nil
}

// RedeemVoucher redeems a voucher by code. The voucher must be active,
// inside its validity window and below its redemption ceiling; the check and
// the counter increment happen under one write lock.
func (s *Service) RedeemVoucher(code string) (models.CommunityVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var voucher *models.CommunityVoucher
	for i := range s.vouchers {
		if s.vouchers[i].Code == code {
			voucher = &s.vouchers[i]
			break
		}
	}
	if voucher == nil {
		return models.CommunityVoucher{}, fmt.Errorf("%w: %s", ErrVoucherNotFound, code)
	}

	if !voucher.IsActive {
		return models.CommunityVoucher{}, fmt.Errorf("%w: %s", ErrVoucherInactive, code)
	}

	now := s.now().UTC()
	if now.Before(voucher.ValidFrom) {
		return models.CommunityVoucher{}, fmt.Errorf("%w: valid from %s",
			ErrVoucherNotYetValid, voucher.ValidFrom.Format(time.RFC3339))
	}
	if now.After(voucher.ValidUntil) {
		return models.CommunityVoucher{}, fmt.Errorf("%w: valid until %s",
			ErrVoucherExpired, voucher.ValidUntil.Format(time.RFC3339))
	}

	if voucher.MaxRedemptions > 0 && voucher.CurrentRedemptions >= voucher.MaxRedemptions {
		return models.CommunityVoucher{}, fmt.Errorf("%w: %d of %d used",
			ErrVoucherExhausted, voucher.CurrentRedemptions, voucher.MaxRedemptions)
	}

	voucher.CurrentRedemptions++
	s.persist()

	slog.Info("Voucher redeemed",
		"voucher_id", voucher.ID,
		"code", code,
		"current_redemptions", voucher.CurrentRedemptions,
		"max_redemptions", voucher.MaxRedemptions)

	return *voucher, nil
}

// UpdateVoucherStatus toggles a voucher's active flag
func (s *Service) UpdateVoucherStatus(voucherID string, isActive bool) (models.CommunityVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.vouchers {
		if s.vouchers[i].ID == voucherID {
			s.vouchers[i].IsActive = isActive
			s.persist()
			return s.vouchers[i], nil
		}
	}
	return models.CommunityVoucher{}, fmt.Errorf("%w: %s", ErrVoucherNotFound, voucherID)
}

// GetVoucherByCode returns a voucher by code without redeeming it
func (s *Service) GetVoucherByCode(code string) (models.CommunityVoucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.vouchers {
		if v.Code == code {
			return v, nil
		}
	}
	return models.CommunityVoucher{}, fmt.Errorf("%w: %s", ErrVoucherNotFound, code)
}

// ListVouchers returns all vouchers, newest first
func (s *Service) ListVouchers() []models.CommunityVoucher {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.CommunityVoucher, len(s.vouchers))
	copy(items, s.vouchers)
	return items
}

// CreateShare records a referral artifact for a user. The referral code is a
// random token, not a timestamp derivative, so concurrent calls cannot
// collide.
func (s *Service) CreateShare(userID, shareType, productID, platform string) (models.CommunityShare, error) {
	switch shareType {
	case models.ShareTypeQRVoucher, models.ShareTypeLinkShare, models.ShareTypeSocialShare:
	default:
		return models.CommunityShare{}, fmt.Errorf("%w: %s", ErrInvalidShareType, shareType)
	}

	referralCode := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	share := models.CommunityShare{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         shareType,
		ProductID:    productID,
		Platform:     platform,
		ReferralCode: referralCode,
		ShareURL:     s.GenerateShareURL(productID, referralCode, platform),
		CreatedAt:    s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.shares = append([]models.CommunityShare{share}, s.shares...)
	if len(s.shares) > maxShares {
		s.shares = s.shares[:maxShares]
	}
	s.persist()

	slog.Info("Community share created",
		"share_id", share.ID,
		"user_id", userID,
		"type", shareType,
		"referral_code", referralCode)

	return share, nil
}

// GenerateShareURL builds a product share URL carrying the referral code and
// optional utm_source for the platform.
func (s *Service) GenerateShareURL(productID, referralCode, platform string) string {
	values := url.Values{}
	values.Set("ref", referralCode)
	if platform != "" {
		values.Set("utm_source", platform)
	}
	return fmt.Sprintf("%s/p/%s?%s", s.baseURL, productID, values.Encode())
}

// TrackShareClick increments a share's scan counter
func (s *Service) TrackShareClick(shareID string) (models.CommunityShare, error) {
	return s.track(shareID, "scan", 0)
}

// TrackShareConversion increments a share's conversion counter and adds the
// attributed earnings. Conversions are not capped by scans; the two
// counters move independently.
func (s *Service) TrackShareConversion(shareID string, earnings int64) (models.CommunityShare, error) {
	return s.track(shareID, "conversion", earnings)
}

func (s *Service) track(shareID, kind string, earnings int64) (models.CommunityShare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var share *models.CommunityShare
	for i := range s.shares {
		if s.shares[i].ID == shareID {
			share = &s.shares[i]
			break
		}
	}
	if share == nil {
		return models.CommunityShare{}, fmt.Errorf("%w: %s", ErrShareNotFound, shareID)
	}

	switch kind {
	case "scan":
		share.TotalScans++
	case "conversion":
		share.TotalConversions++
		share.TotalEarnings += earnings
	}

	s.tracking = append([]TrackingRecord{{
		ID:        uuid.NewString(),
		ShareID:   shareID,
		Kind:      kind,
		Earnings:  earnings,
		CreatedAt: s.now().UTC(),
	}}, s.tracking...)
	if len(s.tracking) > maxTrackingRecords {
		s.tracking = s.tracking[:maxTrackingRecords]
	}

	s.persist()

	return *share, nil
}

// ListShares returns a user's shares, newest first
func (s *Service) ListShares(userID string) []models.CommunityShare {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.CommunityShare
	for _, share := range s.shares {
		if share.UserID == userID {
			items = append(items, share)
		}
	}
	return items
}

// GetShareByReferralCode resolves a referral code back to its share record
func (s *Service) GetShareByReferralCode(referralCode string) (models.CommunityShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, share := range s.shares {
		if share.ReferralCode == referralCode {
			return share, nil
		}
	}
	return models.CommunityShare{}, fmt.Errorf("%w: referral code %s", ErrShareNotFound, referralCode)
}
