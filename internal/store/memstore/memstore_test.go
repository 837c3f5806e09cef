package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

func TestClaimStockIsConditional(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &models.Product{Name: "Akatsuki Hoodie", Stock: 2, TrackQuantity: true, IsActive: true}
	require.NoError(t, s.CreateProduct(ctx, p))
	ref := store.StockRef{ProductID: p.ID}

	require.NoError(t, s.ClaimStock(ctx, ref, 2))
	assert.ErrorIs(t, s.ClaimStock(ctx, ref, 1), store.ErrInsufficientStock)

	require.NoError(t, s.AdjustStock(ctx, ref, -1))
	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, got.Stock, "unconditional adjustments may go negative")
}

func TestClaimStockVariant(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &models.Product{
		Name:     "Survey Corps Tee",
		Variants: []models.ProductVariant{{Size: "M", Color: "Green", Inventory: 1, IsActive: true}},
	}
	require.NoError(t, s.CreateProduct(ctx, p))
	ref := store.StockRef{ProductID: p.ID, VariantID: &p.Variants[0].ID}

	require.NoError(t, s.ClaimStock(ctx, ref, 1))
	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Variants[0].Inventory)

	missing := store.StockRef{ProductID: p.ID, VariantID: &p.ID}
	assert.ErrorIs(t, s.ClaimStock(ctx, missing, 1), store.ErrNotFound)
}

func TestGetProductReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := &models.Product{Name: "Pikachu Cap", Variants: []models.ProductVariant{{Size: "OS", Inventory: 4, IsActive: true}}}
	require.NoError(t, s.CreateProduct(ctx, p))

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	got.Variants[0].Inventory = 100

	again, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Variants[0].Inventory)
}

func TestOrderNumberUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateOrder(ctx, &models.Order{OrderNumber: "ORD-1-AAAA"}))
	assert.ErrorIs(t, s.CreateOrder(ctx, &models.Order{OrderNumber: "ORD-1-AAAA"}), store.ErrDuplicate)

	exists, err := s.OrderNumberExists(ctx, "ORD-1-AAAA")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLatestOTPSkipsInvalidated(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &models.OTP{Email: "a@b.c", Purpose: models.OTPPurposeSignup}
	require.NoError(t, s.CreateOTP(ctx, first))
	require.NoError(t, s.InvalidateOTPs(ctx, "a@b.c", models.OTPPurposeSignup))

	_, err := s.LatestOTP(ctx, "a@b.c", models.OTPPurposeSignup)
	assert.ErrorIs(t, err, store.ErrNotFound)

	second := &models.OTP{Email: "a@b.c", Purpose: models.OTPPurposeSignup}
	require.NoError(t, s.CreateOTP(ctx, second))
	got, err := s.LatestOTP(ctx, "a@b.c", models.OTPPurposeSignup)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestRecordOTPAttemptIsBounded(t *testing.T) {
	ctx := context.Background()
	s := New()

	otp := &models.OTP{Email: "a@b.c", Purpose: models.OTPPurposeReset}
	require.NoError(t, s.CreateOTP(ctx, otp))

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted []int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.RecordOTPAttempt(ctx, otp.ID, 3)
			if err != nil {
				assert.ErrorIs(t, err, store.ErrOTPSpent)
				return
			}
			mu.Lock()
			granted = append(granted, n)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{1, 2, 3}, granted)

	_, err := s.RecordOTPAttempt(ctx, uuid.New(), 3)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsumeOTPOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	otp := &models.OTP{Email: "a@b.c", Purpose: models.OTPPurposeSignup}
	require.NoError(t, s.CreateOTP(ctx, otp))

	var consumed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ConsumeOTP(ctx, otp.ID, time.Now()); err == nil {
				consumed.Add(1)
			} else {
				assert.ErrorIs(t, err, store.ErrOTPSpent)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, consumed.Load())

	_, err := s.RecordOTPAttempt(ctx, otp.ID, 5)
	assert.ErrorIs(t, err, store.ErrOTPSpent, "a used code accepts no further attempts")
}

func TestConsumeInvalidatedOTP(t *testing.T) {
	ctx := context.Background()
	s := New()

	otp := &models.OTP{Email: "a@b.c", Purpose: models.OTPPurposeReset}
	require.NoError(t, s.CreateOTP(ctx, otp))
	require.NoError(t, s.InvalidateOTPs(ctx, "a@b.c", models.OTPPurposeReset))

	assert.ErrorIs(t, s.ConsumeOTP(ctx, otp.ID, time.Now()), store.ErrOTPSpent)
}

func TestConcurrentReviewInsertKeepsOne(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID, productID := uuid.New(), uuid.New()

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateReview(ctx, &models.Review{UserID: userID, ProductID: productID, Rating: 5})
			if err == nil {
				created.Add(1)
			} else {
				assert.ErrorIs(t, err, store.ErrDuplicate)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, created.Load())
}
