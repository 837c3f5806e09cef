package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/IAmShivay/ANIME-sub001/internal/middleware"
	"github.com/IAmShivay/ANIME-sub001/internal/services"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
	"github.com/IAmShivay/ANIME-sub001/internal/utils"
)

// OrderHandler manages buyer order endpoints.
type OrderHandler struct {
	checkout *services.CheckoutService
	orders   *services.OrderService
	users    store.UserStore
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(checkout *services.CheckoutService, orders *services.OrderService, users store.UserStore) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders, users: users}
}

// CreateOrder validates the cart against current stock and prices and
// places the order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.users.GetUser(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown user")
	}

	var req services.PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return checkoutFailure(c, &services.CheckoutError{Kind: services.KindValidation, Message: "invalid request body", Err: err})
	}

	res, err := h.checkout.PlaceOrder(c.UserContext(), services.Buyer{UserID: user.ID, Email: user.Email}, req)
	if err != nil {
		return checkoutFailure(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": res})
}

// ListOrders returns the caller's orders, newest first.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.List(c.UserContext(), store.OrderFilter{
		UserID: &userID,
		Status: c.Query("status"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders, "pagination": pg.Meta(total)})
}

// GetOrder returns one of the caller's orders.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.GetForUser(c.UserContext(), userID, orderID)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}
