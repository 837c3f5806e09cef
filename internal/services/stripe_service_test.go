package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedWebhook(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Header, signed.Payload
}

func TestStripeWebhookSucceeded(t *testing.T) {
	svc := NewStripeService("", testWebhookSecret)
	header, body := signedWebhook(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "object": "payment_intent", "latest_charge": "ch_456"}}
	}`)

	event, err := svc.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", event.GatewayOrderID)
	assert.Equal(t, "ch_456", event.PaymentID)
	assert.True(t, event.Succeeded)
}

func TestStripeWebhookFailedPayment(t *testing.T) {
	svc := NewStripeService("", testWebhookSecret)
	header, body := signedWebhook(t, `{
		"id": "evt_2",
		"object": "event",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_789", "object": "payment_intent"}}
	}`)

	event, err := svc.ParseWebhook(body, header)
	require.NoError(t, err)
	assert.Equal(t, "pi_789", event.PaymentID)
	assert.False(t, event.Succeeded)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	svc := NewStripeService("", testWebhookSecret)
	_, body := signedWebhook(t, `{"id":"evt_3","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

	_, err := svc.ParseWebhook(body, "t=1,v1=deadbeef")
	assert.Error(t, err)
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	svc := NewStripeService("", testWebhookSecret)
	header, body := signedWebhook(t, `{"id":"evt_4","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	_, err := svc.ParseWebhook(body, header)
	assert.ErrorIs(t, err, ErrUnhandledEvent)
}

func TestStripeWithoutKeyIsNotConfigured(t *testing.T) {
	svc := NewStripeService("", "")
	_, err := svc.CreateOrder(t.Context(), GatewayOrderRequest{AmountMinor: 100, Currency: "INR"})
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)

	_, err = svc.ParseWebhook([]byte(`{}`), "")
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
}
