package services

import (
	"fmt"
	"net/http"
)

type CheckoutErrorKind string

const (
	KindValidation         CheckoutErrorKind = "validation"
	KindAvailability       CheckoutErrorKind = "availability"
	KindIntegrity          CheckoutErrorKind = "integrity"
	KindPaymentUnavailable CheckoutErrorKind = "payment_unavailable"
	KindPersistence        CheckoutErrorKind = "persistence"
)

// CheckoutError is a checkout failure with a machine-readable reason.
type CheckoutError struct {
	Kind       CheckoutErrorKind
	Message    string
	ProductID  string
	Available  int
	Requested  int
	SuggestCOD bool
	Err        error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// StatusCode maps the failure kind to an HTTP status.
func (e *CheckoutError) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindIntegrity:
		return http.StatusBadRequest
	case KindAvailability:
		return http.StatusConflict
	case KindPaymentUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Body renders the JSON failure payload.
func (e *CheckoutError) Body() map[string]any {
	body := map[string]any{
		"success": false,
		"error":   e.Message,
		"reason":  string(e.Kind),
	}
	if e.SuggestCOD {
		body["suggestCOD"] = true
	}
	if e.ProductID != "" {
		body["productId"] = e.ProductID
	}
	if e.Requested > 0 {
		body["available"] = e.Available
		body["requested"] = e.Requested
	}
	return body
}

func newCheckoutError(kind CheckoutErrorKind, msg string) *CheckoutError {
	return &CheckoutError{Kind: kind, Message: msg}
}

func unavailable(productID, msg string) *CheckoutError {
	return &CheckoutError{Kind: KindAvailability, Message: msg, ProductID: productID}
}

func insufficientStock(productID, name string, available, requested int) *CheckoutError {
	if available < 0 {
		available = 0
	}
	return &CheckoutError{
		Kind:      KindAvailability,
		Message:   fmt.Sprintf("insufficient stock for %s: %d available, %d requested", name, available, requested),
		ProductID: productID,
		Available: available,
		Requested: requested,
	}
}
