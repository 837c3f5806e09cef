package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/IAmShivay/ANIME-sub001/internal/middleware"
	"github.com/IAmShivay/ANIME-sub001/internal/services"
)

// HoldHandler places short-lived stock holds for a checkout session.
type HoldHandler struct {
	holds *services.ReservationService
}

func NewHoldHandler(holds *services.ReservationService) *HoldHandler {
	return &HoldHandler{holds: holds}
}

func (h *HoldHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.HoldRequest
	if err := c.BodyParser(&req); err != nil {
		return checkoutFailure(c, &services.CheckoutError{Kind: services.KindValidation, Message: "invalid request body", Err: err})
	}

	until, err := h.holds.Hold(c.UserContext(), userID, req)
	if err != nil {
		return checkoutFailure(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"session": req.Session, "expiresAt": until},
	})
}

// Release drops the caller's own holds for the session.
func (h *HoldHandler) Release(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.holds.Release(c.UserContext(), userID, c.Params("session")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}
