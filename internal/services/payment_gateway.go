package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/circuitbreaker"
)

// ErrGatewayNotConfigured is returned when the gateway credentials are
// missing or still set to placeholders. No network call is made.
var ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

// GatewayOrderRequest describes the amount to collect for one store order.
type GatewayOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the gateway-side record the client completes payment against.
type GatewayOrder struct {
	ID           string `json:"id"`
	Provider     string `json:"provider"`
	AmountMinor  int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	KeyID        string `json:"keyId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// PaymentGateway creates payment orders with an external provider.
type PaymentGateway interface {
	Name() string
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
}

// SignatureVerifier checks the signature the client returns after paying.
type SignatureVerifier interface {
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// GuardedGateway runs gateway calls through a circuit breaker. Configuration
// errors do not count as gateway failures.
type GuardedGateway struct {
	gateway PaymentGateway
	breaker *circuitbreaker.Breaker
}

func NewGuardedGateway(gateway PaymentGateway, logger *logrus.Logger) *GuardedGateway {
	return &GuardedGateway{
		gateway: gateway,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:        "payment-gateway-" + gateway.Name(),
			MaxFailures: 5,
			IsFailure: func(err error) bool {
				return !errors.Is(err, ErrGatewayNotConfigured) && !errors.Is(err, context.Canceled)
			},
		}, logger),
	}
}

func (g *GuardedGateway) Name() string { return g.gateway.Name() }

func (g *GuardedGateway) CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	var order *GatewayOrder
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		order, err = g.gateway.CreateOrder(ctx, req)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, fmt.Errorf("%s: %w", g.gateway.Name(), err)
	}
	return order, err
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedGateway) Breaker() *circuitbreaker.Breaker { return g.breaker }
