package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/IAmShivay/ANIME-sub001/internal/services"
)

var serviceErrorStatus = []struct {
	err    error
	status int
}{
	{services.ErrOrderNotFound, fiber.StatusNotFound},
	{services.ErrProductNotFound, fiber.StatusNotFound},
	{services.ErrReviewNotFound, fiber.StatusNotFound},
	{services.ErrInvalidTransition, fiber.StatusBadRequest},
	{services.ErrPaymentVerificationFailed, fiber.StatusBadRequest},
	{services.ErrInvalidSettings, fiber.StatusBadRequest},
	{services.ErrInvalidProduct, fiber.StatusBadRequest},
	{services.ErrInvalidReview, fiber.StatusBadRequest},
	{services.ErrInvalidAuthRequest, fiber.StatusBadRequest},
	{services.ErrInvalidOTPPurpose, fiber.StatusBadRequest},
	{services.ErrOTPNotFound, fiber.StatusBadRequest},
	{services.ErrOTPInvalid, fiber.StatusBadRequest},
	{services.ErrOTPExpired, fiber.StatusBadRequest},
	{services.ErrOTPUsed, fiber.StatusBadRequest},
	{services.ErrUnsupportedImageExt, fiber.StatusBadRequest},
	{services.ErrOTPTooManyAttempts, fiber.StatusTooManyRequests},
	{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
	{services.ErrEmailNotVerified, fiber.StatusForbidden},
	{services.ErrReviewNotEligible, fiber.StatusForbidden},
	{services.ErrEmailTaken, fiber.StatusConflict},
	{services.ErrSlugTaken, fiber.StatusConflict},
	{services.ErrReviewExists, fiber.StatusConflict},
	{services.ErrOTPDelivery, fiber.StatusServiceUnavailable},
	{services.ErrImageStoreDisabled, fiber.StatusServiceUnavailable},
}

// serviceError maps known service errors onto HTTP errors. Anything else is
// returned unchanged and ends up as a 500.
func serviceError(err error) error {
	for _, m := range serviceErrorStatus {
		if errors.Is(err, m.err) {
			return fiber.NewError(m.status, err.Error())
		}
	}
	return err
}

// checkoutFailure writes the structured body of a checkout error, or falls
// back to serviceError.
func checkoutFailure(c *fiber.Ctx, err error) error {
	var cerr *services.CheckoutError
	if errors.As(err, &cerr) {
		return c.Status(cerr.StatusCode()).JSON(cerr.Body())
	}
	return serviceError(err)
}

// ErrorHandler renders every error as {"success":false,"error":...}.
func ErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("request failed")
		}

		return c.Status(code).JSON(fiber.Map{"success": false, "error": message})
	}
}
