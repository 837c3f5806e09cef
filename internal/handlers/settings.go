package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/IAmShivay/ANIME-sub001/internal/services"
)

// SettingsHandler manages the store-wide settings singleton.
type SettingsHandler struct {
	settings *services.SettingsService
}

// NewSettingsHandler constructs SettingsHandler.
func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings returns the current settings, creating defaults on first use.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": settings})
}

// UpdateSettings applies a partial update.
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var req services.SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := h.settings.Update(c.UserContext(), req)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": settings})
}
