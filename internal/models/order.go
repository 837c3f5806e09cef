package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment methods and payment statuses.
const (
	PaymentMethodOnline = "online"
	PaymentMethodCOD    = "cod"

	PaymentStatusPending = "pending"
	PaymentStatusCreated = "created"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

var statusRank = map[string]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// ValidOrderStatus reports whether status is a known order status.
func ValidOrderStatus(status string) bool {
	_, ok := statusRank[status]
	return ok || status == OrderStatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Orders only move forward; cancellation is allowed until delivery.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	if to == OrderStatusCancelled {
		_, open := statusRank[from]
		return open && from != OrderStatusDelivered
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	return ok && toRank > fromRank
}

type Address struct {
	FullName   string `json:"fullName" bson:"fullName" validate:"required"`
	Phone      string `json:"phone" bson:"phone" validate:"required"`
	Line1      string `json:"line1" bson:"line1" validate:"required"`
	Line2      string `json:"line2" bson:"line2"`
	City       string `json:"city" bson:"city" validate:"required"`
	State      string `json:"state" bson:"state"`
	PostalCode string `json:"postalCode" bson:"postalCode" validate:"required"`
	Country    string `json:"country" bson:"country"`
}

type PaymentInfo struct {
	Method         string     `json:"method" bson:"method"`
	Provider       string     `json:"provider,omitempty" bson:"provider"`
	GatewayOrderID string     `gorm:"index" json:"gatewayOrderId,omitempty" bson:"gatewayOrderId"`
	TransactionID  string     `json:"transactionId,omitempty" bson:"transactionId"`
	Status         string     `json:"status" bson:"status"`
	PaidAt         *time.Time `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
}

type Pricing struct {
	Subtotal float64 `json:"subtotal" bson:"subtotal"`
	Shipping float64 `json:"shipping" bson:"shipping"`
	Tax      float64 `json:"tax" bson:"tax"`
	Discount float64 `json:"discount" bson:"discount"`
	Total    float64 `json:"total" bson:"total"`
}

type Order struct {
	BaseModel       `bson:",inline"`
	OrderNumber     string      `gorm:"uniqueIndex" json:"orderNumber" bson:"orderNumber"`
	UserID          uuid.UUID   `gorm:"type:uuid;index" json:"userId" bson:"userId"`
	Email           string      `json:"email" bson:"email"`
	Status          string      `gorm:"index" json:"status" bson:"status"`
	PlacedAt        time.Time   `json:"placedAt" bson:"placedAt"`
	Currency        string      `json:"currency" bson:"currency"`
	ShippingAddress Address     `gorm:"embedded;embeddedPrefix:shipping_" json:"shippingAddress" bson:"shippingAddress"`
	BillingAddress  Address     `gorm:"embedded;embeddedPrefix:billing_" json:"billingAddress" bson:"billingAddress"`
	Payment         PaymentInfo `gorm:"embedded;embeddedPrefix:payment_" json:"payment" bson:"payment"`
	Pricing         Pricing     `gorm:"embedded;embeddedPrefix:price_" json:"pricing" bson:"pricing"`
	StockClaimed    bool        `json:"-" bson:"stockClaimed"`
	TrackingNumber  string      `json:"trackingNumber,omitempty" bson:"trackingNumber"`
	Carrier         string      `json:"carrier,omitempty" bson:"carrier"`
	Notes           string      `json:"notes,omitempty" bson:"notes"`
	Items           []OrderItem `json:"items,omitempty" bson:"items"`
}

type OrderItem struct {
	BaseModel   `bson:",inline"`
	OrderID     uuid.UUID  `gorm:"type:uuid;index" json:"orderId" bson:"orderId"`
	ProductID   uuid.UUID  `gorm:"type:uuid;index" json:"productId" bson:"productId"`
	VariantID   *uuid.UUID `gorm:"type:uuid" json:"variantId,omitempty" bson:"variantId,omitempty"`
	ProductName string     `json:"productName" bson:"productName"`
	Size        string     `json:"size,omitempty" bson:"size"`
	Color       string     `json:"color,omitempty" bson:"color"`
	Quantity    int        `json:"quantity" bson:"quantity"`
	UnitPrice   float64    `json:"unitPrice" bson:"unitPrice"`
	LineTotal   float64    `json:"lineTotal" bson:"lineTotal"`
}
