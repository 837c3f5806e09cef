package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/pricing"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

// SettingsService reads the settings singleton through an in-process cache.
// Update invalidates the cache.
type SettingsService struct {
	store store.SettingsStore

	mu     sync.RWMutex
	cached *models.Settings
}

func NewSettingsService(s store.SettingsStore) *SettingsService {
	return &SettingsService{store: s}
}

// Get returns the settings, creating the default record on first use.
func (s *SettingsService) Get(ctx context.Context) (models.Settings, error) {
	s.mu.RLock()
	if s.cached != nil {
		out := cloneSettings(s.cached)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return cloneSettings(s.cached), nil
	}

	settings, err := s.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		defaults := models.DefaultSettings()
		if err := s.store.SaveSettings(ctx, &defaults); err != nil {
			return models.Settings{}, fmt.Errorf("create default settings: %w", err)
		}
		settings = &defaults
	} else if err != nil {
		return models.Settings{}, err
	}

	s.cached = settings
	return cloneSettings(settings), nil
}

// Pricing returns the pricing config derived from current settings.
func (s *SettingsService) Pricing(ctx context.Context) (pricing.Config, models.Settings, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return pricing.Config{}, models.Settings{}, err
	}
	return pricing.FromSettings(settings), settings, nil
}

// Invalidate drops the cached record.
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// SettingsUpdate carries the fields an admin may change; nil means unchanged.
type SettingsUpdate struct {
	StoreName             *string  `json:"storeName"`
	TaxRate               *float64 `json:"taxRate" validate:"omitempty,gte=0,lte=1"`
	ShippingRate          *float64 `json:"shippingRate" validate:"omitempty,gte=0"`
	FreeShippingThreshold *float64 `json:"freeShippingThreshold" validate:"omitempty,gte=0"`
	DefaultCurrency       *string  `json:"defaultCurrency" validate:"omitempty,len=3"`
	SupportedCurrencies   []string `json:"supportedCurrencies" validate:"omitempty,dive,len=3"`
	OnlinePaymentEnabled  *bool    `json:"onlinePaymentEnabled"`
	CODEnabled            *bool    `json:"codEnabled"`
}

var ErrInvalidSettings = errors.New("invalid settings")

// Update applies the patch, persists it and invalidates the cache.
func (s *SettingsService) Update(ctx context.Context, patch SettingsUpdate) (models.Settings, error) {
	if err := validate.Struct(patch); err != nil {
		return models.Settings{}, fmt.Errorf("%w: %s", ErrInvalidSettings, describeValidation(err))
	}

	current, err := s.Get(ctx)
	if err != nil {
		return models.Settings{}, err
	}

	if patch.StoreName != nil {
		current.StoreName = *patch.StoreName
	}
	if patch.TaxRate != nil {
		current.TaxRate = *patch.TaxRate
	}
	if patch.ShippingRate != nil {
		current.ShippingRate = *patch.ShippingRate
	}
	if patch.FreeShippingThreshold != nil {
		current.FreeShippingThreshold = *patch.FreeShippingThreshold
	}
	if patch.DefaultCurrency != nil {
		current.DefaultCurrency = strings.ToUpper(*patch.DefaultCurrency)
	}
	if patch.SupportedCurrencies != nil {
		current.SupportedCurrencies = current.SupportedCurrencies[:0]
		for _, c := range patch.SupportedCurrencies {
			current.SupportedCurrencies = append(current.SupportedCurrencies, strings.ToUpper(c))
		}
	}
	if patch.OnlinePaymentEnabled != nil {
		current.OnlinePaymentEnabled = *patch.OnlinePaymentEnabled
	}
	if patch.CODEnabled != nil {
		current.CODEnabled = *patch.CODEnabled
	}

	if !containsString(current.SupportedCurrencies, current.DefaultCurrency) {
		current.SupportedCurrencies = append(current.SupportedCurrencies, current.DefaultCurrency)
	}
	if !current.OnlinePaymentEnabled && !current.CODEnabled {
		return models.Settings{}, fmt.Errorf("%w: at least one payment method must stay enabled", ErrInvalidSettings)
	}

	if err := s.store.SaveSettings(ctx, &current); err != nil {
		return models.Settings{}, err
	}
	s.Invalidate()
	return s.Get(ctx)
}

func cloneSettings(in *models.Settings) models.Settings {
	out := *in
	out.SupportedCurrencies = append([]string(nil), in.SupportedCurrencies...)
	return out
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
