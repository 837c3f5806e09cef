package models

import "github.com/lib/pq"

// Settings stores store-wide commerce configuration managed via admin panel.
// There should be only one row (singleton pattern).
type Settings struct {
	BaseModel             `bson:",inline"`
	StoreName             string         `json:"storeName" bson:"storeName"`
	TaxRate               float64        `json:"taxRate" bson:"taxRate"`
	ShippingRate          float64        `json:"shippingRate" bson:"shippingRate"`
	FreeShippingThreshold float64        `json:"freeShippingThreshold" bson:"freeShippingThreshold"`
	DefaultCurrency       string         `json:"defaultCurrency" bson:"defaultCurrency"`
	SupportedCurrencies   pq.StringArray `gorm:"type:text[]" json:"supportedCurrencies" bson:"supportedCurrencies"`
	OnlinePaymentEnabled  bool           `json:"onlinePaymentEnabled" bson:"onlinePaymentEnabled"`
	CODEnabled            bool           `json:"codEnabled" bson:"codEnabled"`
}

// DefaultSettings is the record created on first read.
func DefaultSettings() Settings {
	return Settings{
		StoreName:             "Anime Store",
		TaxRate:               0.18,
		ShippingRate:          99,
		FreeShippingThreshold: 2000,
		DefaultCurrency:       "INR",
		SupportedCurrencies:   pq.StringArray{"INR"},
		OnlinePaymentEnabled:  true,
		CODEnabled:            true,
	}
}

// SupportsCurrency reports whether code is accepted at checkout.
func (s *Settings) SupportsCurrency(code string) bool {
	if code == s.DefaultCurrency {
		return true
	}
	for _, c := range s.SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}
