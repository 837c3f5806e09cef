package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

var (
	ErrReviewNotFound    = errors.New("review not found")
	ErrReviewExists      = errors.New("you have already reviewed this product")
	ErrReviewNotEligible = errors.New("only buyers with a delivered order can review this product")
	ErrInvalidReview     = errors.New("invalid review")
)

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Title   string `json:"title" validate:"max=120"`
	Comment string `json:"comment" validate:"required,min=10,max=2000"`
}

type ReviewService struct {
	reviews  store.ReviewStore
	orders   store.OrderStore
	products store.ProductStore
	users    store.UserStore
	now      func() time.Time
}

func NewReviewService(reviews store.ReviewStore, orders store.OrderStore, products store.ProductStore, users store.UserStore) *ReviewService {
	return &ReviewService{reviews: reviews, orders: orders, products: products, users: users, now: time.Now}
}

// Create stores an unapproved review. The buyer needs a delivered order
// containing the product, and may review each product once.
func (s *ReviewService) Create(ctx context.Context, userID, productID uuid.UUID, req ReviewRequest) (*models.Review, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReview, describeValidation(err))
	}

	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	order, err := s.orders.FindDeliveredOrderWithProduct(ctx, userID, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrReviewNotEligible
	}
	if err != nil {
		return nil, err
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: productID,
		OrderID:   order.ID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	}
	if user, err := s.users.GetUser(ctx, userID); err == nil {
		review.UserName = user.Name
	}

	if err := s.reviews.CreateReview(ctx, review); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrReviewExists
		}
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) ListApproved(ctx context.Context, productID uuid.UUID, limit, offset int) ([]models.Review, int64, error) {
	approved := true
	return s.reviews.ListReviews(ctx, store.ReviewFilter{ProductID: &productID, Approved: &approved, Limit: limit, Offset: offset})
}

func (s *ReviewService) ListPending(ctx context.Context, limit, offset int) ([]models.Review, int64, error) {
	approved := false
	return s.reviews.ListReviews(ctx, store.ReviewFilter{Approved: &approved, Limit: limit, Offset: offset})
}

// Approve publishes a review and refreshes the product's rating.
func (s *ReviewService) Approve(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	review, err := s.reviews.GetReview(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, err
	}
	if review.Approved {
		return review, nil
	}

	now := s.now().UTC()
	review.Approved = true
	review.ApprovedAt = &now
	if err := s.reviews.UpdateReview(ctx, review); err != nil {
		return nil, err
	}

	if err := s.refreshRating(ctx, review.ProductID); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) refreshRating(ctx context.Context, productID uuid.UUID) error {
	approved := true
	reviews, _, err := s.reviews.ListReviews(ctx, store.ReviewFilter{ProductID: &productID, Approved: &approved})
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		return s.products.SetRating(ctx, productID, 0, 0)
	}

	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	average := math.Round(float64(sum)/float64(len(reviews))*100) / 100
	return s.products.SetRating(ctx, productID, average, len(reviews))
}
