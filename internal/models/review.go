package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a buyer's rating of a product they received.
type Review struct {
	BaseModel  `bson:",inline"`
	UserID     uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_review_user_product" json:"userId" bson:"userId"`
	ProductID  uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_review_user_product;index" json:"productId" bson:"productId"`
	OrderID    uuid.UUID  `gorm:"type:uuid" json:"orderId" bson:"orderId"`
	UserName   string     `json:"userName" bson:"userName"`
	Rating     int        `json:"rating" bson:"rating"`
	Title      string     `json:"title" bson:"title"`
	Comment    string     `json:"comment" bson:"comment"`
	Approved   bool       `gorm:"index" json:"approved" bson:"approved"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty" bson:"approvedAt,omitempty"`
}
