// Package mongostore implements store.Store on MongoDB. Variants and order
// items are embedded in their parent documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

type collections struct {
	products *mongo.Collection
	orders   *mongo.Collection
	settings *mongo.Collection
	reviews  *mongo.Collection
	otps     *mongo.Collection
	users    *mongo.Collection
}

type Store struct {
	client *mongo.Client
	cols   collections
}

var _ store.Store = (*Store)(nil)

// New binds the store to the named database and ensures its indexes.
func New(ctx context.Context, client *mongo.Client, dbName string) (*Store, error) {
	db := client.Database(dbName)
	s := &Store{
		client: client,
		cols: collections{
			products: db.Collection("products"),
			orders:   db.Collection("orders"),
			settings: db.Collection("settings"),
			reviews:  db.Collection("reviews"),
			otps:     db.Collection("otps"),
			users:    db.Collection("users"),
		},
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		col   *mongo.Collection
		model mongo.IndexModel
	}{
		{s.cols.orders, mongo.IndexModel{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: unique}},
		{s.cols.orders, mongo.IndexModel{Keys: bson.D{{Key: "payment.gatewayOrderId", Value: 1}}}},
		{s.cols.orders, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "placedAt", Value: -1}}}},
		{s.cols.products, mongo.IndexModel{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique}},
		{s.cols.reviews, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}}, Options: unique}},
		{s.cols.otps, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}, {Key: "purpose", Value: 1}, {Key: "createdAt", Value: -1}}}},
		{s.cols.users, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
	}
	for _, idx := range indexes {
		if _, err := idx.col.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.col.Name(), err)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func findOptions(offset, limit int, sortKey string) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: sortKey, Value: -1}}).SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, int64, error) {
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func replaceByID(ctx context.Context, col *mongo.Collection, id uuid.UUID, doc any) error {
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- products ----

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.cols.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	filter := bson.M{}
	if f.ActiveOnly {
		filter["isActive"] = true
	}
	if f.Category != "" {
		filter["category"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.Category) + "$", "$options": "i"}
	}
	if f.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
	}
	return findAll[models.Product](ctx, s.cols.products, filter, findOptions(f.Offset, f.Limit, "createdAt"))
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	now := time.Now()
	p.Touch(now)
	for i := range p.Variants {
		p.Variants[i].Touch(now)
		p.Variants[i].ProductID = p.ID
	}
	_, err := s.cols.products.InsertOne(ctx, p)
	return translate(err)
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	now := time.Now()
	p.Touch(now)
	for i := range p.Variants {
		p.Variants[i].Touch(now)
		p.Variants[i].ProductID = p.ID
	}
	return replaceByID(ctx, s.cols.products, p.ID, p)
}

func stockFilter(ref store.StockRef) (bson.M, string) {
	if ref.VariantID != nil {
		return bson.M{"_id": ref.ProductID, "variants._id": *ref.VariantID}, "variants.$.inventory"
	}
	return bson.M{"_id": ref.ProductID}, "stock"
}

func (s *Store) AdjustStock(ctx context.Context, ref store.StockRef, delta int) error {
	filter, field := stockFilter(ref)
	res, err := s.cols.products.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClaimStock matches only documents whose counter still covers qty, so the
// check and the decrement are one atomic document update.
func (s *Store) ClaimStock(ctx context.Context, ref store.StockRef, qty int) error {
	var filter bson.M
	field := "stock"
	if ref.VariantID != nil {
		filter = bson.M{
			"_id":      ref.ProductID,
			"variants": bson.M{"$elemMatch": bson.M{"_id": *ref.VariantID, "inventory": bson.M{"$gte": qty}}},
		}
		field = "variants.$.inventory"
	} else {
		filter = bson.M{"_id": ref.ProductID, "stock": bson.M{"$gte": qty}}
	}

	res, err := s.cols.products.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: -qty}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	existsFilter, _ := stockFilter(ref)
	count, err := s.cols.products.CountDocuments(ctx, existsFilter)
	if err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return store.ErrInsufficientStock
}

func (s *Store) SetRating(ctx context.Context, id uuid.UUID, average float64, count int) error {
	_, err := s.cols.products.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"ratingAverage": average, "ratingCount": count}})
	return err
}

// ---- orders ----

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	now := time.Now()
	o.Touch(now)
	for i := range o.Items {
		o.Items[i].Touch(now)
		o.Items[i].OrderID = o.ID
	}
	_, err := s.cols.orders.InsertOne(ctx, o)
	return translate(err)
}

func (s *Store) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	count, err := s.cols.orders.CountDocuments(ctx, bson.M{"orderNumber": number}, options.Count().SetLimit(1))
	return count > 0, err
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.cols.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *Store) GetOrderByGatewayID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := s.cols.orders.FindOne(ctx, bson.M{"payment.gatewayOrderId": gatewayOrderID}).Decode(&order); err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["userId"] = *f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return findAll[models.Order](ctx, s.cols.orders, filter, findOptions(f.Offset, f.Limit, "placedAt"))
}

func (s *Store) UpdateOrder(ctx context.Context, o *models.Order) error {
	o.Touch(time.Now())
	res, err := s.cols.orders.UpdateOne(ctx, bson.M{"_id": o.ID}, bson.M{"$set": bson.M{
		"status":         o.Status,
		"payment":        o.Payment,
		"stockClaimed":   o.StockClaimed,
		"trackingNumber": o.TrackingNumber,
		"carrier":        o.Carrier,
		"notes":          o.Notes,
		"updatedAt":      o.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindDeliveredOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.cols.orders.FindOne(ctx, bson.M{
		"userId":          userID,
		"status":          models.OrderStatusDelivered,
		"items.productId": productID,
	}, options.FindOne().SetSort(bson.D{{Key: "placedAt", Value: -1}})).Decode(&order)
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// ---- settings ----

func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := s.cols.settings.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})).Decode(&settings)
	if err != nil {
		return nil, translate(err)
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings *models.Settings) error {
	settings.Touch(time.Now())
	_, err := s.cols.settings.ReplaceOne(ctx, bson.M{"_id": settings.ID}, settings, options.Replace().SetUpsert(true))
	return translate(err)
}

// ---- reviews ----

func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	r.Touch(time.Now())
	_, err := s.cols.reviews.InsertOne(ctx, r)
	return translate(err)
}

func (s *Store) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := s.cols.reviews.FindOne(ctx, bson.M{"_id": id}).Decode(&review); err != nil {
		return nil, translate(err)
	}
	return &review, nil
}

func (s *Store) ListReviews(ctx context.Context, f store.ReviewFilter) ([]models.Review, int64, error) {
	filter := bson.M{}
	if f.ProductID != nil {
		filter["productId"] = *f.ProductID
	}
	if f.Approved != nil {
		filter["approved"] = *f.Approved
	}
	return findAll[models.Review](ctx, s.cols.reviews, filter, findOptions(f.Offset, f.Limit, "createdAt"))
}

func (s *Store) UpdateReview(ctx context.Context, r *models.Review) error {
	r.Touch(time.Now())
	return replaceByID(ctx, s.cols.reviews, r.ID, r)
}

// ---- otp ----

func (s *Store) CreateOTP(ctx context.Context, o *models.OTP) error {
	o.Touch(time.Now())
	_, err := s.cols.otps.InsertOne(ctx, o)
	return translate(err)
}

func (s *Store) LatestOTP(ctx context.Context, email, purpose string) (*models.OTP, error) {
	var otp models.OTP
	err := s.cols.otps.FindOne(ctx, bson.M{
		"email":       email,
		"purpose":     purpose,
		"invalidated": false,
	}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&otp)
	if err != nil {
		return nil, translate(err)
	}
	return &otp, nil
}

func (s *Store) InvalidateOTPs(ctx context.Context, email, purpose string) error {
	_, err := s.cols.otps.UpdateMany(ctx,
		bson.M{"email": email, "purpose": purpose, "usedAt": nil},
		bson.M{"$set": bson.M{"invalidated": true}})
	return err
}

func (s *Store) RecordOTPAttempt(ctx context.Context, id uuid.UUID, max int) (int, error) {
	var otp models.OTP
	err := s.cols.otps.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "attempts": bson.M{"$lt": max}, "usedAt": nil, "invalidated": false},
		bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&otp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, s.otpMissOrSpent(ctx, id)
	}
	if err != nil {
		return 0, err
	}
	return otp.Attempts, nil
}

func (s *Store) ConsumeOTP(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.cols.otps.UpdateOne(ctx,
		bson.M{"_id": id, "usedAt": nil, "invalidated": false},
		bson.M{"$set": bson.M{"usedAt": at, "updatedAt": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return s.otpMissOrSpent(ctx, id)
	}
	return nil
}

func (s *Store) otpMissOrSpent(ctx context.Context, id uuid.UUID) error {
	count, err := s.cols.otps.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return store.ErrOTPSpent
}

func (s *Store) DeleteOTP(ctx context.Context, id uuid.UUID) error {
	_, err := s.cols.otps.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleCustomer
	}
	u.Touch(time.Now())
	_, err := s.cols.users.InsertOne(ctx, u)
	return translate(err)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.cols.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	filter := bson.M{"email": bson.M{"$regex": "^" + regexp.QuoteMeta(email) + "$", "$options": "i"}}
	if err := s.cols.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	u.Touch(time.Now())
	return replaceByID(ctx, s.cols.users, u.ID, u)
}
