package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusConfirmed, false},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{"lost", OrderStatusConfirmed, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestProductFindVariant(t *testing.T) {
	p := Product{
		Price: 799,
		Variants: []ProductVariant{
			{Size: "M", Color: "Black", Price: 899, Inventory: 3, IsActive: true},
			{Size: "L", Color: "Black", Inventory: 1, IsActive: false},
		},
	}

	v := p.FindVariant("m", " black ")
	if assert.NotNil(t, v) {
		assert.Equal(t, 899.0, p.UnitPrice(v))
		assert.Equal(t, 3, p.Available(v))
	}

	assert.Nil(t, p.FindVariant("L", "Black"), "inactive variants are not purchasable")
	assert.Nil(t, p.FindVariant("XL", "White"))
	assert.Equal(t, 799.0, p.UnitPrice(&ProductVariant{}))
}

func TestSettingsSupportsCurrency(t *testing.T) {
	s := DefaultSettings()
	assert.True(t, s.SupportsCurrency("INR"))
	assert.False(t, s.SupportsCurrency("USD"))
}
