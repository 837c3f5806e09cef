// Package pricing derives order totals from the store settings.
package pricing

import (
	"math"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
)

// Tolerance is the largest accepted difference between a client-submitted
// total and the recomputed one.
const Tolerance = 0.01

// Config holds the inputs for price calculations.
type Config struct {
	TaxRate               float64
	ShippingRate          float64
	FreeShippingThreshold float64
	Currency              string
}

// FromSettings builds a Config from the settings record.
func FromSettings(s models.Settings) Config {
	return Config{
		TaxRate:               s.TaxRate,
		ShippingRate:          s.ShippingRate,
		FreeShippingThreshold: s.FreeShippingThreshold,
		Currency:              s.DefaultCurrency,
	}
}

// Breakdown is a fully computed price summary.
type Breakdown struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// Shipping is free strictly above the threshold.
func Shipping(cfg Config, subtotal float64) float64 {
	if subtotal > cfg.FreeShippingThreshold {
		return 0
	}
	return cfg.ShippingRate
}

// Tax returns subtotal × rate rounded to two decimals.
func Tax(cfg Config, subtotal float64) float64 {
	return Round2(subtotal * cfg.TaxRate)
}

// Compute returns the full breakdown for subtotal after discount.
func Compute(cfg Config, subtotal, discount float64) Breakdown {
	if discount < 0 {
		discount = 0
	}
	b := Breakdown{
		Subtotal: Round2(subtotal),
		Shipping: Shipping(cfg, subtotal),
		Tax:      Tax(cfg, subtotal),
		Discount: Round2(discount),
	}
	b.Total = Round2(b.Subtotal + b.Shipping + b.Tax - b.Discount)
	if b.Total < 0 {
		b.Total = 0
	}
	return b
}

// WithinTolerance reports whether a and b differ by at most Tolerance.
func WithinTolerance(a, b float64) bool {
	// The epsilon keeps 0.01 differences from failing on float noise.
	return math.Abs(a-b) <= Tolerance+1e-9
}

// ToMinorUnits converts an amount to paise/cents.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ToModel converts the breakdown into the persisted pricing block.
func (b Breakdown) ToModel() models.Pricing {
	return models.Pricing{
		Subtotal: b.Subtotal,
		Shipping: b.Shipping,
		Tax:      b.Tax,
		Discount: b.Discount,
		Total:    b.Total,
	}
}
