package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/middleware"
	"github.com/IAmShivay/ANIME-sub001/internal/services"
)

// PaymentHandler confirms online payments.
type PaymentHandler struct {
	orders *services.OrderService
	stripe *services.StripeService
	logger *logrus.Logger
}

// NewPaymentHandler constructs PaymentHandler. stripe may be nil.
func NewPaymentHandler(orders *services.OrderService, stripe *services.StripeService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{orders: orders, stripe: stripe, logger: logger}
}

// Verify checks the signature returned by the gateway checkout.
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.PaymentVerification
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.VerifyPayment(c.UserContext(), userID, req)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// StripeWebhook applies payment_intent events.
func (h *PaymentHandler) StripeWebhook(c *fiber.Ctx) error {
	if h.stripe == nil {
		return fiber.NewError(fiber.StatusNotFound, "stripe is not enabled")
	}

	event, err := h.stripe.ParseWebhook(c.Body(), c.Get("Stripe-Signature"))
	if errors.Is(err, services.ErrUnhandledEvent) {
		return c.JSON(fiber.Map{"received": true})
	}
	if err != nil {
		h.logger.WithError(err).Warn("rejected stripe webhook")
		return fiber.NewError(fiber.StatusBadRequest, "invalid webhook")
	}

	if _, err := h.orders.ConfirmGatewayPayment(c.UserContext(), *event); err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			// not one of ours; acknowledge so Stripe stops retrying
			h.logger.WithField("gateway_order_id", event.GatewayOrderID).Warn("webhook for unknown order")
			return c.JSON(fiber.Map{"received": true})
		}
		return err
	}
	return c.JSON(fiber.Map{"received": true})
}
