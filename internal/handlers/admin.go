package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/IAmShivay/ANIME-sub001/internal/services"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
	"github.com/IAmShivay/ANIME-sub001/internal/utils"
)

// AdminHandler manages admin-only order endpoints.
type AdminHandler struct {
	orders *services.OrderService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(orders *services.OrderService) *AdminHandler {
	return &AdminHandler{orders: orders}
}

// ListAllOrders returns all orders with pagination and an optional status filter.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.List(c.UserContext(), store.OrderFilter{
		Status: c.Query("status"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders, "pagination": pg.Meta(total)})
}

// RecentOrders returns the most recent 5 orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	orders, _, err := h.orders.List(c.UserContext(), store.OrderFilter{Limit: 5})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

func (h *AdminHandler) GetOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

// UpdateOrderStatus moves an order along its status machine.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req services.StatusUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), id, req)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}
