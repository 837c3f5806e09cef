package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

// HoldStore keeps short-lived stock reservations per checkout session.
type HoldStore interface {
	// Place sets the held quantity for session on ref, replacing any earlier hold.
	Place(ctx context.Context, session string, ref store.StockRef, qty int, ttl time.Duration) error
	// HeldByOthers sums live holds on ref from sessions other than session.
	HeldByOthers(ctx context.Context, ref store.StockRef, session string) (int, error)
	// Release drops every hold of session.
	Release(ctx context.Context, session string) error
	// Sessions lists sessions starting with prefix that still hold stock.
	Sessions(ctx context.Context, prefix string) ([]string, error)
}

func holdItemKey(ref store.StockRef) string {
	if ref.VariantID != nil {
		return ref.ProductID.String() + ":" + ref.VariantID.String()
	}
	return ref.ProductID.String()
}

// ---- memory ----

type memoryHold struct {
	qty     int
	expires time.Time
}

// MemoryHoldStore is a process-local HoldStore.
type MemoryHoldStore struct {
	mu    sync.Mutex
	holds map[string]map[string]memoryHold
	now   func() time.Time
}

func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{holds: make(map[string]map[string]memoryHold), now: time.Now}
}

func (m *MemoryHoldStore) Place(_ context.Context, session string, ref store.StockRef, qty int, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := holdItemKey(ref)
	if m.holds[item] == nil {
		m.holds[item] = make(map[string]memoryHold)
	}
	m.holds[item][session] = memoryHold{qty: qty, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryHoldStore) HeldByOthers(_ context.Context, ref store.StockRef, session string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	item := holdItemKey(ref)
	total := 0
	for owner, h := range m.holds[item] {
		if !now.Before(h.expires) {
			delete(m.holds[item], owner)
			continue
		}
		if owner != session {
			total += h.qty
		}
	}
	return total, nil
}

func (m *MemoryHoldStore) Sessions(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	seen := make(map[string]bool)
	var out []string
	for _, owners := range m.holds {
		for owner, h := range owners {
			if seen[owner] || !strings.HasPrefix(owner, prefix) || !now.Before(h.expires) {
				continue
			}
			seen[owner] = true
			out = append(out, owner)
		}
	}
	return out, nil
}

func (m *MemoryHoldStore) Release(_ context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for item, owners := range m.holds {
		delete(owners, session)
		if len(owners) == 0 {
			delete(m.holds, item)
		}
	}
	return nil
}

// ---- redis ----

// RedisHoldStore keeps each hold under hold:<item>:<session> with a TTL and
// indexes holders in the holds:<item> set.
type RedisHoldStore struct {
	client *redis.Client
}

func NewRedisHoldStore(client *redis.Client) *RedisHoldStore {
	return &RedisHoldStore{client: client}
}

func redisHoldKey(item, session string) string { return "hold:" + item + ":" + session }
func redisHoldersKey(item string) string { return "holds:" + item }
func redisSessionKey(session string) string { return "hold-session:" + session }

func (r *RedisHoldStore) Place(ctx context.Context, session string, ref store.StockRef, qty int, ttl time.Duration) error {
	item := holdItemKey(ref)

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisHoldKey(item, session), qty, ttl)
	pipe.SAdd(ctx, redisHoldersKey(item), session)
	pipe.Expire(ctx, redisHoldersKey(item), ttl)
	pipe.SAdd(ctx, redisSessionKey(session), item)
	pipe.Expire(ctx, redisSessionKey(session), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisHoldStore) HeldByOthers(ctx context.Context, ref store.StockRef, session string) (int, error) {
	item := holdItemKey(ref)

	owners, err := r.client.SMembers(ctx, redisHoldersKey(item)).Result()
	if err != nil {
		return 0, err
	}

	total := 0
	var expired []interface{}
	for _, owner := range owners {
		if owner == session {
			continue
		}
		raw, err := r.client.Get(ctx, redisHoldKey(item, owner)).Result()
		if errors.Is(err, redis.Nil) {
			expired = append(expired, owner)
			continue
		}
		if err != nil {
			return 0, err
		}
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("corrupt hold %s: %w", redisHoldKey(item, owner), err)
		}
		total += qty
	}

	if len(expired) > 0 {
		r.client.SRem(ctx, redisHoldersKey(item), expired...)
	}
	return total, nil
}

func (r *RedisHoldStore) Sessions(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := r.client.Scan(ctx, 0, redisSessionKey(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), redisSessionKey("")))
	}
	return out, iter.Err()
}

func (r *RedisHoldStore) Release(ctx context.Context, session string) error {
	items, err := r.client.SMembers(ctx, redisSessionKey(session)).Result()
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	for _, item := range items {
		pipe.Del(ctx, redisHoldKey(item, session))
		pipe.SRem(ctx, redisHoldersKey(item), session)
	}
	pipe.Del(ctx, redisSessionKey(session))
	_, err = pipe.Exec(ctx)
	return err
}

// ---- service ----

// HoldItem is one cart line to reserve.
type HoldItem struct {
	ProductID     string `json:"productId" validate:"required,uuid"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	SelectedSize  string `json:"selectedSize"`
	SelectedColor string `json:"selectedColor"`
}

type HoldRequest struct {
	Session string     `json:"session" validate:"required,max=128"`
	Items   []HoldItem `json:"items" validate:"required,min=1,dive"`
}

// maxHoldSessions caps the checkout sessions one user may hold stock with.
const maxHoldSessions = 3

// HoldKey scopes a client-chosen session name to its user. An empty session
// yields an empty key, which matches no holds.
func HoldKey(userID uuid.UUID, session string) string {
	if session == "" {
		return ""
	}
	return userID.String() + ":" + session
}

// ReservationService places holds for a cart after checking that the stock
// not already held by other sessions covers it.
type ReservationService struct {
	holds       HoldStore
	products    store.ProductStore
	ttl         time.Duration
	maxSessions int
}

func NewReservationService(holds HoldStore, products store.ProductStore, ttl time.Duration) *ReservationService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ReservationService{holds: holds, products: products, ttl: ttl, maxSessions: maxHoldSessions}
}

// Hold reserves every item for the user's session or returns a CheckoutError
// naming the first item that cannot be reserved. Holds placed before the
// failure are kept until they expire or the session is released.
func (s *ReservationService) Hold(ctx context.Context, userID uuid.UUID, req HoldRequest) (time.Time, error) {
	if err := validate.Struct(req); err != nil {
		return time.Time{}, newCheckoutError(KindValidation, describeValidation(err))
	}

	session := HoldKey(userID, req.Session)
	active, err := s.holds.Sessions(ctx, userID.String()+":")
	if err != nil {
		return time.Time{}, err
	}
	if len(active) >= s.maxSessions && !slices.Contains(active, session) {
		return time.Time{}, newCheckoutError(KindValidation, fmt.Sprintf(
			"at most %d checkout sessions may hold stock at once, release one first", s.maxSessions))
	}

	for _, item := range req.Items {
		productID, _ := uuid.Parse(item.ProductID)
		product, err := s.products.GetProduct(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, unavailable(item.ProductID, "product not found")
		}
		if err != nil {
			return time.Time{}, err
		}
		if !product.IsActive {
			return time.Time{}, unavailable(item.ProductID, product.Name+" is no longer available")
		}

		ref := store.StockRef{ProductID: product.ID}
		variant := product.FindVariant(item.SelectedSize, item.SelectedColor)
		if product.HasVariants() {
			if variant == nil {
				return time.Time{}, unavailable(item.ProductID, fmt.Sprintf("%s is not available in %s/%s", product.Name, item.SelectedSize, item.SelectedColor))
			}
			ref.VariantID = &variant.ID
		}

		if product.TrackQuantity {
			held, err := s.holds.HeldByOthers(ctx, ref, session)
			if err != nil {
				return time.Time{}, err
			}
			available := product.Available(variant) - held
			if item.Quantity > available {
				return time.Time{}, insufficientStock(item.ProductID, product.Name, available, item.Quantity)
			}
		}

		if err := s.holds.Place(ctx, session, ref, item.Quantity, s.ttl); err != nil {
			return time.Time{}, err
		}
	}

	return time.Now().Add(s.ttl), nil
}

// Release drops every hold of the user's session.
func (s *ReservationService) Release(ctx context.Context, userID uuid.UUID, session string) error {
	key := HoldKey(userID, session)
	if key == "" {
		return nil
	}
	return s.holds.Release(ctx, key)
}

// HeldByOthers reports the quantity of ref reserved by sessions other than
// the scoped key, see HoldKey.
func (s *ReservationService) HeldByOthers(ctx context.Context, ref store.StockRef, key string) (int, error) {
	return s.holds.HeldByOthers(ctx, ref, key)
}
