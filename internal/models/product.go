package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel      `bson:",inline"`
	Slug           string           `gorm:"uniqueIndex" json:"slug" bson:"slug"`
	Name           string           `json:"name" bson:"name"`
	Description    string           `json:"description" bson:"description"`
	Category       string           `gorm:"index" json:"category" bson:"category"`
	Series         string           `json:"series" bson:"series"`
	Price          float64          `json:"price" bson:"price"`
	CompareAtPrice float64          `json:"compareAtPrice" bson:"compareAtPrice"`
	Currency       string           `json:"currency" bson:"currency"`
	Stock          int              `json:"stock" bson:"stock"`
	TrackQuantity  bool             `json:"trackQuantity" bson:"trackQuantity"`
	IsActive       bool             `gorm:"index" json:"isActive" bson:"isActive"`
	Images         pq.StringArray   `gorm:"type:text[]" json:"images" bson:"images"`
	Tags           pq.StringArray   `gorm:"type:text[]" json:"tags" bson:"tags"`
	RatingAverage  float64          `json:"ratingAverage" bson:"ratingAverage"`
	RatingCount    int              `json:"ratingCount" bson:"ratingCount"`
	Variants       []ProductVariant `gorm:"constraint:OnDelete:CASCADE" json:"variants,omitempty" bson:"variants"`
}

type ProductVariant struct {
	BaseModel `bson:",inline"`
	ProductID uuid.UUID `gorm:"type:uuid;index" json:"productId" bson:"productId"`
	SKU       string    `json:"sku" bson:"sku"`
	Size      string    `json:"size" bson:"size"`
	Color     string    `json:"color" bson:"color"`
	Price     float64   `json:"price" bson:"price"`
	Inventory int       `json:"inventory" bson:"inventory"`
	IsActive  bool      `json:"isActive" bson:"isActive"`
}

// HasVariants reports whether purchases must name a size/color combination.
func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// FindVariant returns the active variant matching size and color,
// compared case-insensitively, or nil.
func (p *Product) FindVariant(size, color string) *ProductVariant {
	for i := range p.Variants {
		v := &p.Variants[i]
		if !v.IsActive {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(v.Size), strings.TrimSpace(size)) &&
			strings.EqualFold(strings.TrimSpace(v.Color), strings.TrimSpace(color)) {
			return v
		}
	}
	return nil
}

// UnitPrice is the variant price when set, the product price otherwise.
func (p *Product) UnitPrice(v *ProductVariant) float64 {
	if v != nil && v.Price > 0 {
		return v.Price
	}
	return p.Price
}

// Available is the stored inventory for the variant, or the product stock
// when v is nil.
func (p *Product) Available(v *ProductVariant) int {
	if v != nil {
		return v.Inventory
	}
	return p.Stock
}
