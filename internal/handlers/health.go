package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/IAmShivay/ANIME-sub001/internal/services"
)

// HealthHandler reports liveness and the payment gateway breaker.
type HealthHandler struct {
	gateway *services.GuardedGateway
}

func NewHealthHandler(gateway *services.GuardedGateway) *HealthHandler {
	return &HealthHandler{gateway: gateway}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	data := fiber.Map{"status": "ok"}
	if h.gateway != nil {
		data["paymentGateway"] = h.gateway.Breaker().Metrics()
	}
	return c.JSON(fiber.Map{"success": true, "data": data})
}
