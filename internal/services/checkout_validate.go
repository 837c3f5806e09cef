package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/pricing"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

// CheckoutItem is one requested cart line. Price is accepted for client
// convenience and ignored.
type CheckoutItem struct {
	ProductID     string  `json:"productId" validate:"required,uuid"`
	Quantity      int     `json:"quantity" validate:"gt=0"`
	SelectedSize  string  `json:"selectedSize"`
	SelectedColor string  `json:"selectedColor"`
	Price         float64 `json:"price"`
}

// ClientPricing is the client's own price computation. Only Total is
// compared against the server result.
type ClientPricing struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total" validate:"gte=0"`
}

type PlaceOrderRequest struct {
	Items           []CheckoutItem  `json:"items" validate:"required,min=1,dive"`
	ShippingAddress *models.Address `json:"shippingAddress" validate:"required"`
	BillingAddress  *models.Address `json:"billingAddress" validate:"required"`
	PaymentMethod   string          `json:"paymentMethod" validate:"required,oneof=online cod"`
	Pricing         ClientPricing   `json:"pricing"`
	Currency        string          `json:"currency" validate:"omitempty,len=3"`
	HoldSession     string          `json:"holdSession" validate:"max=128"`
	Notes           string          `json:"notes" validate:"max=500"`
}

type cartLine struct {
	item models.OrderItem
	ref     store.StockRef
	name    string
	tracked bool
}

type validatedCart struct {
	lines     []cartLine
	breakdown pricing.Breakdown
	settings  models.Settings
	currency  string
}

// validateCart runs every check that does not write: request shape, payment
// method and currency against settings, per-item availability, and the
// recomputed total against the client total.
func (s *CheckoutService) validateCart(ctx context.Context, buyer Buyer, req PlaceOrderRequest) (*validatedCart, error) {
	if err := validate.Struct(req); err != nil {
		return nil, newCheckoutError(KindValidation, describeValidation(err))
	}

	cfg, settings, err := s.settings.Pricing(ctx)
	if err != nil {
		return nil, &CheckoutError{Kind: KindPersistence, Message: "could not load store settings", Err: err}
	}

	switch req.PaymentMethod {
	case models.PaymentMethodOnline:
		if !settings.OnlinePaymentEnabled {
			return nil, &CheckoutError{
				Kind:       KindValidation,
				Message:    "online payment is disabled",
				SuggestCOD: settings.CODEnabled,
			}
		}
	case models.PaymentMethodCOD:
		if !settings.CODEnabled {
			return nil, newCheckoutError(KindValidation, "cash on delivery is disabled")
		}
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = settings.DefaultCurrency
	}
	if !settings.SupportsCurrency(currency) {
		return nil, newCheckoutError(KindValidation, fmt.Sprintf("currency %s is not supported", currency))
	}

	cart := &validatedCart{settings: settings, currency: currency}
	requested := make(map[string]int)
	session := HoldKey(buyer.UserID, req.HoldSession)
	var subtotal float64

	for _, item := range req.Items {
		line, err := s.validateItem(ctx, item, session, requested)
		if err != nil {
			return nil, err
		}
		subtotal += line.item.LineTotal
		cart.lines = append(cart.lines, *line)
	}

	cart.breakdown = pricing.Compute(cfg, subtotal, 0)
	if !pricing.WithinTolerance(cart.breakdown.Total, req.Pricing.Total) {
		s.logger.WithFields(logrus.Fields{
			"expected_total":  cart.breakdown.Total,
			"submitted_total": req.Pricing.Total,
		}).Warn("checkout total mismatch")
		return nil, newCheckoutError(KindIntegrity, fmt.Sprintf(
			"order total mismatch: expected %.2f, received %.2f", cart.breakdown.Total, req.Pricing.Total))
	}

	return cart, nil
}

// validateItem resolves the product and variant, checks availability net of
// other sessions' holds and of earlier lines for the same stock counter, and
// prices the line from stored data.
func (s *CheckoutService) validateItem(ctx context.Context, item CheckoutItem, session string, requested map[string]int) (*cartLine, error) {
	productID, _ := uuid.Parse(item.ProductID)

	product, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, unavailable(item.ProductID, fmt.Sprintf("product %s not found", item.ProductID))
	}
	if err != nil {
		return nil, &CheckoutError{Kind: KindPersistence, Message: "could not load product", ProductID: item.ProductID, Err: err}
	}
	if !product.IsActive {
		return nil, unavailable(item.ProductID, fmt.Sprintf("%s is no longer available", product.Name))
	}

	ref := store.StockRef{ProductID: product.ID}
	var variant *models.ProductVariant
	if product.HasVariants() {
		variant = product.FindVariant(item.SelectedSize, item.SelectedColor)
		if variant == nil {
			return nil, unavailable(item.ProductID, fmt.Sprintf(
				"%s is not available in size %q and color %q", product.Name, item.SelectedSize, item.SelectedColor))
		}
		ref.VariantID = &variant.ID
	}

	key := holdItemKey(ref)
	requested[key] += item.Quantity

	if product.TrackQuantity {
		available := product.Available(variant)
		if s.holds != nil {
			held, err := s.holds.HeldByOthers(ctx, ref, session)
			if err != nil {
				s.logger.WithError(err).WithField("product_id", item.ProductID).Warn("hold lookup failed, ignoring holds")
			} else {
				available -= held
			}
		}
		if requested[key] > available {
			return nil, insufficientStock(item.ProductID, product.Name, available-(requested[key]-item.Quantity), item.Quantity)
		}
	}

	unit := product.UnitPrice(variant)
	orderItem := models.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    item.Quantity,
		UnitPrice:   unit,
		LineTotal:   pricing.Round2(unit * float64(item.Quantity)),
	}
	if variant != nil {
		id := variant.ID
		orderItem.VariantID = &id
		orderItem.Size = variant.Size
		orderItem.Color = variant.Color
	}

	return &cartLine{item: orderItem, ref: ref, name: product.Name, tracked: product.TrackQuantity}, nil
}
