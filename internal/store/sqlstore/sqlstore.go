// Package sqlstore implements store.Store on PostgreSQL through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an initialized connection; see database.Connect.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

// ---- products ----

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	if f.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if f.Category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(f.Category))
	}
	if f.Search != "" {
		query = query.Where("name ILIKE ?", "%"+f.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	q := query.Preload("Variants").Order("created_at desc").Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	return translate(s.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(p).Error)
}

func (s *Store) AdjustStock(ctx context.Context, ref store.StockRef, delta int) error {
	var res *gorm.DB
	if ref.VariantID != nil {
		res = s.db.WithContext(ctx).Model(&models.ProductVariant{}).
			Where("id = ? AND product_id = ?", *ref.VariantID, ref.ProductID).
			UpdateColumn("inventory", gorm.Expr("inventory + ?", delta))
	} else {
		res = s.db.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", ref.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClaimStock runs a single conditional UPDATE so concurrent claims cannot
// both pass the availability check.
func (s *Store) ClaimStock(ctx context.Context, ref store.StockRef, qty int) error {
	var (
		res    *gorm.DB
		exists int64
	)
	db := s.db.WithContext(ctx)
	if ref.VariantID != nil {
		res = db.Model(&models.ProductVariant{}).
			Where("id = ? AND product_id = ? AND inventory >= ?", *ref.VariantID, ref.ProductID, qty).
			UpdateColumn("inventory", gorm.Expr("inventory - ?", qty))
		if res.Error == nil && res.RowsAffected == 0 {
			res.Error = db.Model(&models.ProductVariant{}).
				Where("id = ? AND product_id = ?", *ref.VariantID, ref.ProductID).Count(&exists).Error
		}
	} else {
		res = db.Model(&models.Product{}).
			Where("id = ? AND stock >= ?", ref.ProductID, qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", qty))
		if res.Error == nil && res.RowsAffected == 0 {
			res.Error = db.Model(&models.Product{}).Where("id = ?", ref.ProductID).Count(&exists).Error
		}
	}

	switch {
	case res.Error != nil:
		return res.Error
	case res.RowsAffected > 0:
		return nil
	case exists == 0:
		return store.ErrNotFound
	}
	return store.ErrInsufficientStock
}

func (s *Store) SetRating(ctx context.Context, id uuid.UUID, average float64, count int) error {
	return s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"rating_average": average, "rating_count": count}).Error
}

// ---- orders ----

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	return translate(s.db.WithContext(ctx).Create(o).Error)
}

func (s *Store) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Order{}).Where("order_number = ?", number).Count(&count).Error
	return count > 0, err
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *Store) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").
		First(&order, "payment_gateway_order_id = ?", gatewayOrderID).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	q := query.Preload("Items").Order("placed_at desc").Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o *models.Order) error {
	res := s.db.WithContext(ctx).Omit(clause.Associations).Save(o)
	return translate(res.Error)
}

func (s *Store) FindDeliveredOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.product_id = ?",
			userID, models.OrderStatusDelivered, productID).
		Order("orders.placed_at desc").
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// ---- settings ----

func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	if err := s.db.WithContext(ctx).Order("created_at asc").First(&settings).Error; err != nil {
		return nil, translate(err)
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings *models.Settings) error {
	return translate(s.db.WithContext(ctx).Save(settings).Error)
}

// ---- reviews ----

func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *Store) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).First(&review, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &review, nil
}

func (s *Store) ListReviews(ctx context.Context, f store.ReviewFilter) ([]models.Review, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Review{})
	if f.ProductID != nil {
		query = query.Where("product_id = ?", *f.ProductID)
	}
	if f.Approved != nil {
		query = query.Where("approved = ?", *f.Approved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.Review
	q := query.Order("created_at desc").Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&reviews).Error; err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (s *Store) UpdateReview(ctx context.Context, r *models.Review) error {
	return translate(s.db.WithContext(ctx).Save(r).Error)
}

// ---- otp ----

func (s *Store) CreateOTP(ctx context.Context, o *models.OTP) error {
	return translate(s.db.WithContext(ctx).Create(o).Error)
}

func (s *Store) LatestOTP(ctx context.Context, email, purpose string) (*models.OTP, error) {
	var otp models.OTP
	err := s.db.WithContext(ctx).
		Where("email = ? AND purpose = ? AND invalidated = ?", email, purpose, false).
		Order("created_at desc").
		First(&otp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &otp, nil
}

func (s *Store) InvalidateOTPs(ctx context.Context, email, purpose string) error {
	return s.db.WithContext(ctx).Model(&models.OTP{}).
		Where("email = ? AND purpose = ? AND used_at IS NULL", email, purpose).
		Update("invalidated", true).Error
}

func (s *Store) RecordOTPAttempt(ctx context.Context, id uuid.UUID, max int) (int, error) {
	var otp models.OTP
	res := s.db.WithContext(ctx).Model(&otp).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "attempts"}}}).
		Where("id = ? AND attempts < ? AND used_at IS NULL AND invalidated = ?", id, max, false).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, s.otpMissOrSpent(ctx, id)
	}
	return otp.Attempts, nil
}

func (s *Store) ConsumeOTP(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.OTP{}).
		Where("id = ? AND used_at IS NULL AND invalidated = ?", id, false).
		UpdateColumns(map[string]any{"used_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.otpMissOrSpent(ctx, id)
	}
	return nil
}

func (s *Store) otpMissOrSpent(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.OTP{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return store.ErrOTPSpent
}

func (s *Store) DeleteOTP(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&models.OTP{}, "id = ?", id).Error
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	return translate(s.db.WithContext(ctx).Save(u).Error)
}
