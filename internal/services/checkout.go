package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/pricing"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

const defaultOrderNumberAttempts = 5

// OrderNumberSource yields candidate order numbers.
type OrderNumberSource interface {
	Next() (string, error)
}

// Buyer identifies the authenticated customer placing an order.
type Buyer struct {
	UserID uuid.UUID
	Email  string
}

type CheckoutDeps struct {
	Products store.ProductStore
	Orders   store.OrderStore
	Settings *SettingsService
	Gateway  PaymentGateway
	Holds    *ReservationService
	Numbers  OrderNumberSource
	Notifier *OrderNotifier
	Logger   *logrus.Logger

	// StrictInventory claims stock with conditional decrements before the
	// order is written. When false, stock is decremented after the insert
	// without a guard or compensation.
	StrictInventory bool
}

type CheckoutService struct {
	products    store.ProductStore
	orders      store.OrderStore
	settings    *SettingsService
	gateway     PaymentGateway
	holds       *ReservationService
	numbers     OrderNumberSource
	notifier    *OrderNotifier
	logger      *logrus.Logger
	strict      bool
	maxAttempts int
	now         func() time.Time
}

func NewCheckoutService(deps CheckoutDeps) *CheckoutService {
	numbers := deps.Numbers
	if numbers == nil {
		numbers = NewOrderNumberGenerator()
	}
	return &CheckoutService{
		products:    deps.Products,
		orders:      deps.Orders,
		settings:    deps.Settings,
		gateway:     deps.Gateway,
		holds:       deps.Holds,
		numbers:     numbers,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		strict:      deps.StrictInventory,
		maxAttempts: defaultOrderNumberAttempts,
		now:         time.Now,
	}
}

// PlaceOrderResult is what the client needs to finish checkout.
type PlaceOrderResult struct {
	OrderID       uuid.UUID         `json:"orderId"`
	OrderNumber   string            `json:"orderNumber"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"paymentMethod"`
	Currency      string            `json:"currency"`
	Pricing       pricing.Breakdown `json:"pricing"`
	GatewayOrder  *GatewayOrder     `json:"gatewayOrder,omitempty"`
	Order         *models.Order     `json:"order"`
}

// PlaceOrder validates the cart, initiates online payment when requested,
// writes the order and adjusts inventory. Every failure is a *CheckoutError.
func (s *CheckoutService) PlaceOrder(ctx context.Context, buyer Buyer, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	cart, err := s.validateCart(ctx, buyer, req)
	if err != nil {
		return nil, err
	}

	number, err := s.nextOrderNumber(ctx)
	if err != nil {
		return nil, &CheckoutError{Kind: KindPersistence, Message: "could not allocate an order number", Err: err}
	}

	order := s.buildOrder(buyer, req, cart, number)
	log := s.logger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"user_id":      buyer.UserID,
		"method":       order.Payment.Method,
	})

	var gatewayOrder *GatewayOrder
	if order.Payment.Method == models.PaymentMethodOnline {
		gatewayOrder, err = s.initiatePayment(ctx, order, cart)
		if err != nil {
			log.WithError(err).Warn("payment gateway unavailable")
			return nil, &CheckoutError{
				Kind:       KindPaymentUnavailable,
				Message:    "online payment is temporarily unavailable, please choose cash on delivery",
				SuggestCOD: cart.settings.CODEnabled,
				Err:        err,
			}
		}
		order.Payment.Provider = gatewayOrder.Provider
		order.Payment.GatewayOrderID = gatewayOrder.ID
		order.Payment.Status = models.PaymentStatusCreated
	}

	if s.strict {
		err = s.persistClaimed(ctx, order, cart)
	} else {
		err = s.persistThenDecrement(ctx, order, cart)
	}
	if err != nil {
		log.WithError(err).Error("order placement failed")
		return nil, err
	}

	if req.HoldSession != "" && s.holds != nil {
		if err := s.holds.Release(ctx, buyer.UserID, req.HoldSession); err != nil {
			log.WithError(err).Warn("releasing checkout holds failed")
		}
	}
	if s.notifier != nil {
		s.notifier.OrderPlaced(order)
	}

	log.WithField("total", order.Pricing.Total).Info("order placed")

	return &PlaceOrderResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentMethod: order.Payment.Method,
		Currency:      order.Currency,
		Pricing:       cart.breakdown,
		GatewayOrder:  gatewayOrder,
		Order:         order,
	}, nil
}

func (s *CheckoutService) initiatePayment(ctx context.Context, order *models.Order, cart *validatedCart) (*GatewayOrder, error) {
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	return s.gateway.CreateOrder(ctx, GatewayOrderRequest{
		AmountMinor: pricing.ToMinorUnits(cart.breakdown.Total),
		Currency:    cart.currency,
		Receipt:     order.OrderNumber,
		Notes: map[string]string{
			"order_number": order.OrderNumber,
			"user_id":      order.UserID.String(),
		},
	})
}

// nextOrderNumber skips candidates that already exist. Uniqueness is still
// enforced at insert time.
func (s *CheckoutService) nextOrderNumber(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		number, err := s.numbers.Next()
		if err != nil {
			lastErr = err
			continue
		}
		exists, err := s.orders.OrderNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		lastErr = store.ErrDuplicate
	}
	return "", lastErr
}

func (s *CheckoutService) buildOrder(buyer Buyer, req PlaceOrderRequest, cart *validatedCart, number string) *models.Order {
	items := make([]models.OrderItem, len(cart.lines))
	for i, line := range cart.lines {
		items[i] = line.item
	}
	return &models.Order{
		OrderNumber:     number,
		UserID:          buyer.UserID,
		Email:           buyer.Email,
		Status:          models.OrderStatusPending,
		PlacedAt:        s.now().UTC(),
		Currency:        cart.currency,
		ShippingAddress: *req.ShippingAddress,
		BillingAddress:  *req.BillingAddress,
		Payment: models.PaymentInfo{
			Method: req.PaymentMethod,
			Status: models.PaymentStatusPending,
		},
		Pricing: cart.breakdown.ToModel(),
		Notes:   req.Notes,
		Items:   items,
	}
}

// insertOrder writes the order, regenerating the number when another order
// took it in the meantime. Once a gateway order carries the number as its
// receipt the number is kept and a collision fails the insert.
func (s *CheckoutService) insertOrder(ctx context.Context, order *models.Order) error {
	for attempt := 1; ; attempt++ {
		err := s.orders.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicate) || attempt >= s.maxAttempts || order.Payment.GatewayOrderID != "" {
			return err
		}
		number, genErr := s.numbers.Next()
		if genErr != nil {
			return genErr
		}
		s.logger.WithFields(logrus.Fields{
			"order_number": order.OrderNumber,
			"replacement":  number,
		}).Warn("order number collision, retrying")
		order.OrderNumber = number
	}
}

// persistClaimed claims every line with a conditional decrement, then writes
// the order. Any failure restores what was claimed.
func (s *CheckoutService) persistClaimed(ctx context.Context, order *models.Order, cart *validatedCart) error {
	claimed := make([]cartLine, 0, len(cart.lines))

	for _, line := range cart.lines {
		var err error
		if line.tracked {
			err = s.products.ClaimStock(ctx, line.ref, line.item.Quantity)
		} else {
			err = s.products.AdjustStock(ctx, line.ref, -line.item.Quantity)
		}
		if err != nil {
			s.restore(ctx, claimed)
			return s.claimError(ctx, line, err)
		}
		claimed = append(claimed, line)
	}

	order.StockClaimed = true
	if err := s.insertOrder(ctx, order); err != nil {
		s.restore(ctx, claimed)
		return &CheckoutError{Kind: KindPersistence, Message: "could not save the order", Err: err}
	}
	return nil
}

// persistThenDecrement writes the order and then decrements each line
// unconditionally. A failed decrement leaves the order and earlier
// decrements in place.
func (s *CheckoutService) persistThenDecrement(ctx context.Context, order *models.Order, cart *validatedCart) error {
	order.StockClaimed = true
	if err := s.insertOrder(ctx, order); err != nil {
		return &CheckoutError{Kind: KindPersistence, Message: "could not save the order", Err: err}
	}

	for _, line := range cart.lines {
		if _, err := s.products.GetProduct(ctx, line.ref.ProductID); err != nil {
			return &CheckoutError{Kind: KindPersistence, Message: "could not update inventory", ProductID: line.ref.ProductID.String(), Err: err}
		}
		if err := s.products.AdjustStock(ctx, line.ref, -line.item.Quantity); err != nil {
			return &CheckoutError{Kind: KindPersistence, Message: "could not update inventory", ProductID: line.ref.ProductID.String(), Err: err}
		}
	}
	return nil
}

func (s *CheckoutService) claimError(ctx context.Context, line cartLine, err error) error {
	productID := line.ref.ProductID.String()
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		available := 0
		if product, getErr := s.products.GetProduct(ctx, line.ref.ProductID); getErr == nil {
			available = product.Available(variantOf(product, line.ref))
		}
		return insufficientStock(productID, line.name, available, line.item.Quantity)
	case errors.Is(err, store.ErrNotFound):
		return unavailable(productID, line.name+" is no longer available")
	}
	return &CheckoutError{Kind: KindPersistence, Message: "could not reserve inventory", ProductID: productID, Err: err}
}

func (s *CheckoutService) restore(ctx context.Context, lines []cartLine) {
	for _, line := range lines {
		if err := s.products.AdjustStock(ctx, line.ref, line.item.Quantity); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"product_id": line.ref.ProductID,
				"quantity":   line.item.Quantity,
			}).Error("restoring claimed stock failed")
		}
	}
}

func variantOf(product *models.Product, ref store.StockRef) *models.ProductVariant {
	if ref.VariantID == nil {
		return nil
	}
	for i := range product.Variants {
		if product.Variants[i].ID == *ref.VariantID {
			return &product.Variants[i]
		}
	}
	return nil
}
