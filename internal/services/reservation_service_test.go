package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
	"github.com/IAmShivay/ANIME-sub001/internal/store/memstore"
)

func TestMemoryHoldStoreExpiry(t *testing.T) {
	holds := NewMemoryHoldStore()
	now := time.Now()
	holds.now = func() time.Time { return now }
	ctx := context.Background()

	ref := store.StockRef{ProductID: hoodie(1).ID}
	require.NoError(t, holds.Place(ctx, "a", ref, 2, time.Minute))
	require.NoError(t, holds.Place(ctx, "b", ref, 1, time.Minute))

	held, err := holds.HeldByOthers(ctx, ref, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, held)

	now = now.Add(2 * time.Minute)
	held, err = holds.HeldByOthers(ctx, ref, "c")
	require.NoError(t, err)
	assert.Zero(t, held)
}

func TestReservationHold(t *testing.T) {
	st := memstore.New()
	svc := NewReservationService(NewMemoryHoldStore(), st, time.Minute)
	ctx := context.Background()
	user := uuid.New()

	p := hoodie(3)
	require.NoError(t, st.CreateProduct(ctx, p))

	until, err := svc.Hold(ctx, user, HoldRequest{Session: "s1", Items: []HoldItem{{ProductID: p.ID.String(), Quantity: 2}}})
	require.NoError(t, err)
	assert.True(t, until.After(time.Now()))

	_, err = svc.Hold(ctx, user, HoldRequest{Session: "s2", Items: []HoldItem{{ProductID: p.ID.String(), Quantity: 2}}})
	cerr := requireCheckoutError(t, err, KindAvailability)
	assert.Equal(t, 1, cerr.Available)

	// Re-holding replaces the session's own hold.
	_, err = svc.Hold(ctx, user, HoldRequest{Session: "s1", Items: []HoldItem{{ProductID: p.ID.String(), Quantity: 3}}})
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, user, "s1"))
	_, err = svc.Hold(ctx, user, HoldRequest{Session: "s2", Items: []HoldItem{{ProductID: p.ID.String(), Quantity: 3}}})
	assert.NoError(t, err)

	_, err = svc.Hold(ctx, user, HoldRequest{Session: "", Items: []HoldItem{{ProductID: p.ID.String(), Quantity: 1}}})
	requireCheckoutError(t, err, KindValidation)
}

func TestReservationHoldInactiveProduct(t *testing.T) {
	st := memstore.New()
	svc := NewReservationService(NewMemoryHoldStore(), st, time.Minute)
	ctx := context.Background()

	p := &models.Product{Name: "Retired Tee", Price: 500, Stock: 10, IsActive: false}
	require.NoError(t, st.CreateProduct(ctx, p))

	_, err := svc.Hold(ctx, user, HoldRequest{Session: "s1", Items: []HoldItem{{ProductID: p.ID.String(), Quantity: 1}}})
	requireCheckoutError(t, err, KindAvailability)
}

func TestHoldsAreScopedToTheirUser(t *testing.T) {
	st := memstore.New()
	svc := NewReservationService(NewMemoryHoldStore(), st, time.Minute)
	ctx := context.Background()
	alice, mallory := uuid.New(), uuid.New()

	p := hoodie(3)
	require.NoError(t, st.CreateProduct(ctx, p))
	cart := []HoldItem{{ProductID: p.ID.String(), Quantity: 3}}

	_, err := svc.Hold(ctx, alice, HoldRequest{Session: "cart", Items: cart})
	require.NoError(t, err)

	// same session name, different user: alice's hold still counts
	_, err = svc.Hold(ctx, mallory, HoldRequest{Session: "cart", Items: []HoldItem{{ProductID: p.ID.String(), Quantity: 1}}})
	cerr := requireCheckoutError(t, err, KindAvailability)
	assert.Equal(t, 0, cerr.Available)

	require.NoError(t, svc.Release(ctx, mallory, "cart"))
	held, err := svc.HeldByOthers(ctx, store.StockRef{ProductID: p.ID}, HoldKey(mallory, "cart"))
	require.NoError(t, err)
	assert.Equal(t, 3, held, "releasing another user's session name leaves their hold")

	require.NoError(t, svc.Release(ctx, alice, "cart"))
	held, err = svc.HeldByOthers(ctx, store.StockRef{ProductID: p.ID}, HoldKey(mallory, "cart"))
	require.NoError(t, err)
	assert.Zero(t, held)
}

func TestHoldSessionsPerUserAreCapped(t *testing.T) {
	st := memstore.New()
	svc := NewReservationService(NewMemoryHoldStore(), st, time.Minute)
	ctx := context.Background()
	user := uuid.New()

	p := hoodie(100)
	require.NoError(t, st.CreateProduct(ctx, p))
	cart := []HoldItem{{ProductID: p.ID.String(), Quantity: 1}}

	for _, session := range []string{"s1", "s2", "s3"} {
		_, err := svc.Hold(ctx, user, HoldRequest{Session: session, Items: cart})
		require.NoError(t, err)
	}

	_, err := svc.Hold(ctx, user, HoldRequest{Session: "s4", Items: cart})
	requireCheckoutError(t, err, KindValidation)

	// refreshing an existing session is allowed
	_, err = svc.Hold(ctx, user, HoldRequest{Session: "s2", Items: cart})
	require.NoError(t, err)

	_, err = svc.Hold(ctx, uuid.New(), HoldRequest{Session: "s4", Items: cart})
	require.NoError(t, err, "the cap is per user")

	require.NoError(t, svc.Release(ctx, user, "s1"))
	_, err = svc.Hold(ctx, user, HoldRequest{Session: "s4", Items: cart})
	assert.NoError(t, err)
}

func TestMemoryHoldStoreSessionsSkipExpired(t *testing.T) {
	holds := NewMemoryHoldStore()
	now := time.Now()
	holds.now = func() time.Time { return now }
	ctx := context.Background()
	ref := store.StockRef{ProductID: uuid.New()}

	require.NoError(t, holds.Place(ctx, "u1:a", ref, 1, time.Minute))
	require.NoError(t, holds.Place(ctx, "u1:b", ref, 1, 3*time.Minute))
	require.NoError(t, holds.Place(ctx, "u2:a", ref, 1, time.Minute))

	sessions, err := holds.Sessions(ctx, "u1:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1:a", "u1:b"}, sessions)

	now = now.Add(2 * time.Minute)
	sessions, err = holds.Sessions(ctx, "u1:")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1:b"}, sessions)
}
