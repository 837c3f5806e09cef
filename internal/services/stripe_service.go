package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeService creates PaymentIntents; completion is reported through the
// signed webhook.
type StripeService struct {
	secretKey     string
	webhookSecret string
}

func NewStripeService(secretKey, webhookSecret string) *StripeService {
	if secretKey != "" {
		stripe.Key = secretKey
	}
	return &StripeService{secretKey: secretKey, webhookSecret: webhookSecret}
}

func (s *StripeService) Name() string { return "stripe" }

func (s *StripeService) CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error) {
	if isPlaceholderCredential(s.secretKey) {
		return nil, ErrGatewayNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(req.Receipt),
	}
	params.Context = ctx
	params.AddMetadata("receipt", req.Receipt)
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}

	return &GatewayOrder{
		ID:           intent.ID,
		Provider:     s.Name(),
		AmountMinor:  intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Status:       string(intent.Status),
		ClientSecret: intent.ClientSecret,
	}, nil
}

// GatewayPaymentEvent is a verified payment notification.
type GatewayPaymentEvent struct {
	GatewayOrderID string
	PaymentID      string
	Succeeded      bool
}

var ErrUnhandledEvent = errors.New("unhandled webhook event")

// ParseWebhook verifies the Stripe-Signature header and extracts the
// payment outcome of payment_intent.succeeded and payment_intent.payment_failed.
func (s *StripeService) ParseWebhook(payload []byte, signature string) (*GatewayPaymentEvent, error) {
	if s.webhookSecret == "" {
		return nil, ErrGatewayNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("verify stripe webhook: %w", err)
	}

	var succeeded bool
	switch event.Type {
	case "payment_intent.succeeded":
		succeeded = true
	case "payment_intent.payment_failed":
	default:
		return nil, ErrUnhandledEvent
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	paymentID := intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		paymentID = intent.LatestCharge.ID
	}

	return &GatewayPaymentEvent{
		GatewayOrderID: intent.ID,
		PaymentID:      paymentID,
		Succeeded:      succeeded,
	}, nil
}
