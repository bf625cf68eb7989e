package checkout

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"biolink-storefront-api/internal/cart"
	"biolink-storefront-api/internal/catalog"
	"biolink-storefront-api/internal/community"
	"biolink-storefront-api/internal/events"
	"biolink-storefront-api/internal/models"
	"biolink-storefront-api/internal/wallet"
)

var (
	ErrCartEmpty            = errors.New("cart is empty")
	ErrMissingCustomerInfo  = errors.New("customer name, phone and address are required")
	ErrInvalidOrderStatus   = errors.New("invalid order status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrOrderTransition      = errors.New("invalid order status transition")
)

// Service orchestrates cart to order: pricing, stock commitment, order
// persistence, cart clearing and commission processing on payment.
type Service struct {
	carts     *cart.Service
	catalog   *catalog.Service
	wallets   *wallet.Service
	community *community.Service
	queue     *events.EventQueue
	shipping  int64
}

// NewService wires the checkout orchestrator
func NewService(carts *cart.Service, cat *catalog.Service, wallets *wallet.Service, comm *community.Service, queue *events.EventQueue, shippingFlatRate int64) *Service {
	return &Service{
		carts:     carts,
		catalog:   cat,
		wallets:   wallets,
		community: comm,
		queue:     queue,
		shipping:  shippingFlatRate,
	}
}

// Checkout turns a cart into a pending, unpaid order. Stock is committed per
// line; a line failing the stock check aborts the checkout and releases the
// lines already committed.
func (s *Service) Checkout(cartID string, customer models.CustomerInfo, referralCode string) (models.Order, error) {
	if customer.Name == "" || customer.Phone == "" || customer.Address == "" {
		return models.Order{}, ErrMissingCustomerInfo
	}

	c := s.carts.Get(cartID)
	if len(c.Items) == 0 {
		return models.Order{}, fmt.Errorf("%w: %s", ErrCartEmpty, cartID)
	}

	var committed []models.OrderItem
	var subtotal, totalCommission int64
	for _, item := range c.Items {
		if err := s.catalog.CommitSale(item.ProductID, item.Quantity); err != nil {
			s.rollbackStock(committed)
			return models.Order{}, err
		}

		lineTotal := item.ResellerPrice * int64(item.Quantity)
		commission := int64(float64(item.BasePrice)*item.CommissionPct/100)*int64(item.Quantity) +
			(item.ResellerPrice-item.BasePrice)*int64(item.Quantity)

		committed = append(committed, models.OrderItem{
			ProductID:  item.ProductID,
			Name:       item.Name,
			Price:      item.ResellerPrice,
			BasePrice:  item.BasePrice,
			Quantity:   item.Quantity,
			Commission: commission,
			LineTotal:  lineTotal,
		})
		subtotal += lineTotal
		totalCommission += commission
	}

	now := time.Now().UTC()
	order := models.Order{
		ID:              uuid.NewString(),
		ResellerID:      c.ResellerID,
		Customer:        customer,
		Items:           committed,
		Subtotal:        subtotal,
		ShippingCost:    s.shipping,
		Total:           subtotal + s.shipping,
		TotalCommission: totalCommission,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusUnpaid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// A referral code that does not resolve is dropped silently; checkout
	// never fails on attribution.
	if referralCode != "" {
		if _, err := s.community.GetShareByReferralCode(referralCode); err == nil {
			order.ReferralCode = referralCode
		} else {
			slog.Warn("Checkout referral code did not resolve, ignoring",
				"referral_code", referralCode)
		}
	}

	s.catalog.SaveOrder(order)
	s.carts.Clear(cartID)

	s.queue.Publish(models.EventTypeOrderCreated, order.ID, map[string]any{
		"resellerId": order.ResellerID,
		"total":      order.Total,
		"items":      len(order.Items),
	})

	slog.Info("Checkout completed",
		"order_id", order.ID,
		"reseller_id", order.ResellerID,
		"subtotal", subtotal,
		"total", order.Total,
		"total_commission", totalCommission)

	return order, nil
}

// rollbackStock releases stock committed before a failed checkout line
func (s *Service) rollbackStock(items []models.OrderItem) {
	for _, item := range items {
		if err := s.catalog.ReleaseSale(item.ProductID, item.Quantity); err != nil {
			slog.Error("Failed to release stock during checkout rollback",
				"product_id", item.ProductID,
				"quantity", item.Quantity,
				"error", err)
		}
	}
}

// UpdateOrderStatus moves an order's fulfilment and/or payment status.
// Transitioning payment to paid processes the reseller commission; moving
// fulfilment to cancelled releases the order's stock.
func (s *Service) UpdateOrderStatus(orderID, status, paymentStatus string) (models.Order, error) {
	order, err := s.catalog.GetOrder(orderID)
	if err != nil {
		return models.Order{}, err
	}

	if status != "" {
		if !isValidOrderStatus(status) {
			return models.Order{}, fmt.Errorf("%w: %s", ErrInvalidOrderStatus, status)
		}
		if !isValidOrderTransition(order.Status, status) {
			return models.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderTransition, order.Status, status)
		}
		if status == models.OrderStatusCancelled {
			s.rollbackStock(order.Items)
		}
		order.Status = status
	}

	if paymentStatus != "" {
		if !isValidPaymentStatus(paymentStatus) {
			return models.Order{}, fmt.Errorf("%w: %s", ErrInvalidPaymentStatus, paymentStatus)
		}
		becamePaid := order.PaymentStatus == models.PaymentStatusUnpaid &&
			paymentStatus == models.PaymentStatusPaid
		order.PaymentStatus = paymentStatus

		if becamePaid {
			if err := s.processOrderCommission(order); err != nil {
				slog.Error("Failed to process commission for paid order",
					"order_id", order.ID, "error", err)
			}
			s.queue.Publish(models.EventTypeOrderPaid, order.ID, map[string]any{
				"resellerId": order.ResellerID,
				"commission": order.TotalCommission,
			})
		}
	}

	order.UpdatedAt = time.Now().UTC()
	s.catalog.SaveOrder(order)

	if status != "" {
		s.queue.Publish(models.EventTypeOrderStatusChanged, order.ID, map[string]any{
			"status": order.Status,
		})
	}

	return order, nil
}

// processOrderCommission credits the reseller commission and, when the order
// carries a resolvable referral code, counts the conversion on the share.
func (s *Service) processOrderCommission(order models.Order) error {
	result, err := s.wallets.ProcessCommission(order.ID, models.CommissionComponents{
		ResellerID: order.ResellerID,
		Reseller:   order.TotalCommission,
	})
	if err != nil {
		return err
	}
	if result.Duplicate {
		return nil
	}

	if order.ReferralCode != "" {
		share, err := s.community.GetShareByReferralCode(order.ReferralCode)
		if err == nil {
			if _, err := s.community.TrackShareConversion(share.ID, order.TotalCommission); err != nil {
				slog.Warn("Failed to track referral conversion",
					"share_id", share.ID, "error", err)
			}
		}
	}

	s.queue.Publish(models.EventTypeCommissionProcessed, order.ID, map[string]any{
		"totalAmount":  result.TotalAmount,
		"transactions": len(result.Transactions),
	})

	return nil
}

func isValidOrderStatus(status string) bool {
	switch status {
	case models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusShipped,
		models.OrderStatusDelivered, models.OrderStatusCancelled:
		return true
	default:
		return false
	}
}

func isValidPaymentStatus(status string) bool {
	switch status {
	case models.PaymentStatusUnpaid, models.PaymentStatusPaid, models.PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// isValidOrderTransition encodes the fulfilment pipeline. Cancellation is
// allowed from any non-terminal state; delivered and cancelled are terminal.
func isValidOrderTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case models.OrderStatusPending:
		return to == models.OrderStatusProcessing || to == models.OrderStatusCancelled
	case models.OrderStatusProcessing:
		return to == models.OrderStatusShipped || to == models.OrderStatusCancelled
	case models.OrderStatusShipped:
		return to == models.OrderStatusDelivered || to == models.OrderStatusCancelled
	default:
		return false
	}
}
