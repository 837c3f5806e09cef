package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

var (
	ErrOrderNotFound             = errors.New("order not found")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
)

type OrderServiceDeps struct {
	Orders   store.OrderStore
	Products store.ProductStore
	Verifier SignatureVerifier
	Notifier *OrderNotifier
	Logger   *logrus.Logger
}

// OrderService manages orders after placement: reads, admin status changes
// and payment confirmation.
type OrderService struct {
	orders   store.OrderStore
	products store.ProductStore
	verifier SignatureVerifier
	notifier *OrderNotifier
	logger   *logrus.Logger
	now      func() time.Time
}

func NewOrderService(deps OrderServiceDeps) *OrderService {
	return &OrderService{
		orders:   deps.Orders,
		products: deps.Products,
		verifier: deps.Verifier,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// GetForUser returns the order only when it belongs to userID.
func (s *OrderService) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.get(ctx, orderID)
}

func (s *OrderService) get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *OrderService) List(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	return s.orders.ListOrders(ctx, f)
}

type StatusUpdate struct {
	Status         string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	TrackingNumber string `json:"trackingNumber" validate:"max=100"`
	Carrier        string `json:"carrier" validate:"max=100"`
}

// UpdateStatus moves the order along the status machine. Cancelling an order
// whose stock was taken puts the stock back.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, upd StatusUpdate) (*models.Order, error) {
	if err := validate.Struct(upd); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, describeValidation(err))
	}

	order, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	if !models.CanTransition(previous, upd.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, previous, upd.Status)
	}

	order.Status = upd.Status
	if upd.TrackingNumber != "" {
		order.TrackingNumber = upd.TrackingNumber
	}
	if upd.Carrier != "" {
		order.Carrier = upd.Carrier
	}
	if upd.Status == models.OrderStatusCancelled && order.StockClaimed {
		s.restock(ctx, order)
		order.StockClaimed = false
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"from":         previous,
		"to":           order.Status,
	}).Info("order status updated")
	s.statusChanged(order, previous)
	return order, nil
}

func (s *OrderService) restock(ctx context.Context, order *models.Order) {
	for _, item := range order.Items {
		ref := store.StockRef{ProductID: item.ProductID, VariantID: item.VariantID}
		if err := s.products.AdjustStock(ctx, ref, item.Quantity); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"order_number": order.OrderNumber,
				"product_id":   item.ProductID,
			}).Error("restock after cancellation failed")
		}
	}
}

// PaymentVerification is what the client returns from the gateway checkout.
type PaymentVerification struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required"`
	PaymentID      string `json:"paymentId" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}

// VerifyPayment checks the gateway signature for an order of userID and marks
// it paid. Verifying an order that is already paid with the same payment id
// returns it unchanged.
func (s *OrderService) VerifyPayment(ctx context.Context, userID uuid.UUID, req PaymentVerification) (*models.Order, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPaymentVerificationFailed, describeValidation(err))
	}

	order, err := s.orders.GetOrderByGatewayID(ctx, req.GatewayOrderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	if order.Payment.Status == models.PaymentStatusPaid {
		if order.Payment.TransactionID == req.PaymentID {
			return order, nil
		}
		return nil, fmt.Errorf("%w: order already paid", ErrPaymentVerificationFailed)
	}

	if s.verifier == nil || !s.verifier.VerifySignature(req.GatewayOrderID, req.PaymentID, req.Signature) {
		order.Payment.Status = models.PaymentStatusFailed
		if err := s.orders.UpdateOrder(ctx, order); err != nil {
			s.logger.WithError(err).WithField("order_number", order.OrderNumber).Error("recording failed payment")
		}
		s.logger.WithField("order_number", order.OrderNumber).Warn("payment signature mismatch")
		return nil, fmt.Errorf("%w: invalid signature", ErrPaymentVerificationFailed)
	}

	return s.markPaid(ctx, order, req.PaymentID)
}

// ConfirmGatewayPayment applies a gateway webhook event.
func (s *OrderService) ConfirmGatewayPayment(ctx context.Context, event GatewayPaymentEvent) (*models.Order, error) {
	order, err := s.orders.GetOrderByGatewayID(ctx, event.GatewayOrderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.Payment.Status == models.PaymentStatusPaid {
		return order, nil
	}

	if !event.Succeeded {
		order.Payment.Status = models.PaymentStatusFailed
		if err := s.orders.UpdateOrder(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	}
	return s.markPaid(ctx, order, event.PaymentID)
}

func (s *OrderService) markPaid(ctx context.Context, order *models.Order, paymentID string) (*models.Order, error) {
	paidAt := s.now().UTC()
	previous := order.Status

	order.Payment.Status = models.PaymentStatusPaid
	order.Payment.TransactionID = paymentID
	order.Payment.PaidAt = &paidAt
	if order.Status == models.OrderStatusPending {
		order.Status = models.OrderStatusConfirmed
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"payment_id":   paymentID,
	}).Info("payment confirmed")
	if order.Status != previous {
		s.statusChanged(order, previous)
	}
	return order, nil
}

func (s *OrderService) statusChanged(order *models.Order, previous string) {
	if s.notifier != nil {
		s.notifier.StatusChanged(order, previous)
	}
}
