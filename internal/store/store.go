// Package store defines the persistence contracts shared by the postgres,
// mongo and in-memory backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOTPSpent means the code was consumed, superseded or ran out of attempts.
	ErrOTPSpent = errors.New("one-time code no longer usable")
)

// StockRef addresses an inventory counter: a variant when VariantID is set,
// the product-level stock otherwise.
type StockRef struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

type ProductFilter struct {
	Category   string
	Search     string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type OrderFilter struct {
	UserID *uuid.UUID
	Status string
	Limit  int
	Offset int
}

type ReviewFilter struct {
	ProductID *uuid.UUID
	Approved  *bool
	Limit     int
	Offset    int
}

type ProductStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int64, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	// AdjustStock adds delta to the counter without any bound check.
	AdjustStock(ctx context.Context, ref StockRef, delta int) error
	// ClaimStock decrements the counter by qty only when at least qty is
	// available, returning ErrInsufficientStock otherwise.
	ClaimStock(ctx context.Context, ref StockRef, qty int) error
	SetRating(ctx context.Context, id uuid.UUID, average float64, count int) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	// UpdateOrder persists the order header; items are immutable.
	UpdateOrder(ctx context.Context, o *models.Order) error
	FindDeliveredOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (*models.Order, error)
}

type SettingsStore interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error
}

type ReviewStore interface {
	CreateReview(ctx context.Context, r *models.Review) error
	GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListReviews(ctx context.Context, f ReviewFilter) ([]models.Review, int64, error)
	UpdateReview(ctx context.Context, r *models.Review) error
}

type OTPStore interface {
	CreateOTP(ctx context.Context, o *models.OTP) error
	// LatestOTP returns the newest code that has not been superseded.
	LatestOTP(ctx context.Context, email, purpose string) (*models.OTP, error)
	InvalidateOTPs(ctx context.Context, email, purpose string) error
	// RecordOTPAttempt increments the attempt counter of a live code while it
	// is below max and returns the new count, or ErrOTPSpent.
	RecordOTPAttempt(ctx context.Context, id uuid.UUID, max int) (int, error)
	// ConsumeOTP marks a live code used, or returns ErrOTPSpent when another
	// caller got there first.
	ConsumeOTP(ctx context.Context, id uuid.UUID, at time.Time) error
	DeleteOTP(ctx context.Context, id uuid.UUID) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

// Store bundles every repository a backend provides.
type Store interface {
	ProductStore
	OrderStore
	SettingsStore
	ReviewStore
	OTPStore
	UserStore
	Close(ctx context.Context) error
}
