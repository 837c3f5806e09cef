// Package memstore is an in-process implementation of store.Store used by
// tests and by STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	products map[uuid.UUID]models.Product
	orders   map[uuid.UUID]models.Order
	reviews  map[uuid.UUID]models.Review
	otps     map[uuid.UUID]models.OTP
	users    map[uuid.UUID]models.User
	settings *models.Settings
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products: make(map[uuid.UUID]models.Product),
		orders:   make(map[uuid.UUID]models.Order),
		reviews:  make(map[uuid.UUID]models.Review),
		otps:     make(map[uuid.UUID]models.OTP),
		users:    make(map[uuid.UUID]models.User),
		now:      time.Now,
	}
}

func (s *Store) Close(context.Context) error { return nil }

// ---- products ----

func (s *Store) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyProduct(p)
	return &out, nil
}

func (s *Store) ListProducts(_ context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var matched []models.Product
	for _, p := range s.products {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, copyProduct(p))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	return page(matched, f.Offset, f.Limit), total, nil
}

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p.Touch(now)
	for _, existing := range s.products {
		if p.Slug != "" && existing.Slug == p.Slug {
			return store.ErrDuplicate
		}
	}
	for i := range p.Variants {
		p.Variants[i].Touch(now)
		p.Variants[i].ProductID = p.ID
	}
	s.products[p.ID] = copyProduct(*p)
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	now := s.now()
	p.Touch(now)
	for i := range p.Variants {
		p.Variants[i].Touch(now)
		p.Variants[i].ProductID = p.ID
	}
	s.products[p.ID] = copyProduct(*p)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, ref store.StockRef, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, counter, err := s.counter(ref)
	if err != nil {
		return err
	}
	*counter += delta
	s.products[p.ID] = p
	return nil
}

func (s *Store) ClaimStock(_ context.Context, ref store.StockRef, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, counter, err := s.counter(ref)
	if err != nil {
		return err
	}
	if *counter < qty {
		return store.ErrInsufficientStock
	}
	*counter -= qty
	s.products[p.ID] = p
	return nil
}

// counter returns a private copy of the product and a pointer into it.
func (s *Store) counter(ref store.StockRef) (models.Product, *int, error) {
	stored, ok := s.products[ref.ProductID]
	if !ok {
		return models.Product{}, nil, store.ErrNotFound
	}
	p := copyProduct(stored)
	if ref.VariantID == nil {
		return p, &p.Stock, nil
	}
	for i := range p.Variants {
		if p.Variants[i].ID == *ref.VariantID {
			return p, &p.Variants[i].Inventory, nil
		}
	}
	return models.Product{}, nil, store.ErrNotFound
}

func (s *Store) SetRating(_ context.Context, id uuid.UUID, average float64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.RatingAverage = average
	p.RatingCount = count
	s.products[id] = p
	return nil
}

// ---- orders ----

func (s *Store) CreateOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return store.ErrDuplicate
		}
	}
	now := s.now()
	o.Touch(now)
	for i := range o.Items {
		o.Items[i].Touch(now)
		o.Items[i].OrderID = o.ID
	}
	s.orders[o.ID] = copyOrder(*o)
	return nil
}

func (s *Store) OrderNumberExists(_ context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (s *Store) GetOrderByGatewayID(_ context.Context, gatewayOrderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if gatewayOrderID != "" && o.Payment.GatewayOrderID == gatewayOrderID {
			out := copyOrder(o)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListOrders(_ context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Order
	for _, o := range s.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].PlacedAt.After(matched[j].PlacedAt) })

	total := int64(len(matched))
	return page(matched, f.Offset, f.Limit), total, nil
}

func (s *Store) UpdateOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[o.ID]
	if !ok {
		return store.ErrNotFound
	}
	o.Touch(s.now())
	updated := copyOrder(*o)
	updated.Items = existing.Items
	s.orders[o.ID] = updated
	return nil
}

func (s *Store) FindDeliveredOrderWithProduct(_ context.Context, userID, productID uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.UserID != userID || o.Status != models.OrderStatusDelivered {
			continue
		}
		for _, item := range o.Items {
			if item.ProductID == productID {
				out := copyOrder(o)
				return &out, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

// ---- settings ----

func (s *Store) GetSettings(context.Context) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, store.ErrNotFound
	}
	out := *s.settings
	out.SupportedCurrencies = append([]string(nil), s.settings.SupportedCurrencies...)
	return &out, nil
}

func (s *Store) SaveSettings(_ context.Context, settings *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.Touch(s.now())
	cp := *settings
	cp.SupportedCurrencies = append([]string(nil), settings.SupportedCurrencies...)
	s.settings = &cp
	return nil
}

// ---- reviews ----

func (s *Store) CreateReview(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reviews {
		if existing.UserID == r.UserID && existing.ProductID == r.ProductID {
			return store.ErrDuplicate
		}
	}
	r.Touch(s.now())
	s.reviews[r.ID] = *r
	return nil
}

func (s *Store) GetReview(_ context.Context, id uuid.UUID) (*models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reviews[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListReviews(_ context.Context, f store.ReviewFilter) ([]models.Review, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Review
	for _, r := range s.reviews {
		if f.ProductID != nil && r.ProductID != *f.ProductID {
			continue
		}
		if f.Approved != nil && r.Approved != *f.Approved {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	return page(matched, f.Offset, f.Limit), total, nil
}

func (s *Store) UpdateReview(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[r.ID]; !ok {
		return store.ErrNotFound
	}
	r.Touch(s.now())
	s.reviews[r.ID] = *r
	return nil
}

// ---- otp ----

func (s *Store) CreateOTP(_ context.Context, o *models.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.Touch(s.now())
	s.otps[o.ID] = *o
	return nil
}

func (s *Store) LatestOTP(_ context.Context, email, purpose string) (*models.OTP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.OTP
	for _, o := range s.otps {
		if o.Email != email || o.Purpose != purpose || o.Invalidated {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			cp := o
			latest = &cp
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (s *Store) InvalidateOTPs(_ context.Context, email, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, o := range s.otps {
		if o.Email == email && o.Purpose == purpose && o.UsedAt == nil {
			o.Invalidated = true
			s.otps[id] = o
		}
	}
	return nil
}

func (s *Store) RecordOTPAttempt(_ context.Context, id uuid.UUID, max int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.otps[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	if o.UsedAt != nil || o.Invalidated || o.Attempts >= max {
		return o.Attempts, store.ErrOTPSpent
	}
	o.Attempts++
	o.Touch(s.now())
	s.otps[id] = o
	return o.Attempts, nil
}

func (s *Store) ConsumeOTP(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.otps[id]
	if !ok {
		return store.ErrNotFound
	}
	if o.UsedAt != nil || o.Invalidated {
		return store.ErrOTPSpent
	}
	o.UsedAt = &at
	o.Touch(s.now())
	s.otps[id] = o
	return nil
}

func (s *Store) DeleteOTP(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.otps, id)
	return nil
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	if u.Role == "" {
		u.Role = models.RoleCustomer
	}
	u.Touch(s.now())
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	u.Touch(s.now())
	s.users[u.ID] = *u
	return nil
}

func copyProduct(p models.Product) models.Product {
	p.Variants = append([]models.ProductVariant(nil), p.Variants...)
	p.Images = append([]string(nil), p.Images...)
	p.Tags = append([]string(nil), p.Tags...)
	return p
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
