package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/IAmShivay/ANIME-sub001/internal/middleware"
	"github.com/IAmShivay/ANIME-sub001/internal/services"
	"github.com/IAmShivay/ANIME-sub001/internal/utils"
)

// ReviewHandler exposes product reviews.
type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req services.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	review, err := h.reviews.Create(c.UserContext(), userID, productID, req)
	if err != nil {
		return serviceError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    review,
		"message": "review submitted for moderation",
	})
}

// ListForProduct returns approved reviews only.
func (h *ReviewHandler) ListForProduct(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	pg := utils.ParsePagination(c)
	reviews, total, err := h.reviews.ListApproved(c.UserContext(), productID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": reviews, "pagination": pg.Meta(total)})
}

func (h *ReviewHandler) ListPending(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	reviews, total, err := h.reviews.ListPending(c.UserContext(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": reviews, "pagination": pg.Meta(total)})
}

func (h *ReviewHandler) Approve(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	review, err := h.reviews.Approve(c.UserContext(), id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": review})
}
