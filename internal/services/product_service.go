package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/store"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidProduct      = errors.New("invalid product")
	ErrSlugTaken           = errors.New("slug is already in use")
	ErrImageStoreDisabled  = errors.New("image storage is not configured")
	ErrUnsupportedImageExt = errors.New("unsupported image type")
)

type VariantInput struct {
	ID        string  `json:"id" validate:"omitempty,uuid"`
	SKU       string  `json:"sku" validate:"max=64"`
	Size      string  `json:"size" validate:"max=20"`
	Color     string  `json:"color" validate:"max=40"`
	Price     float64 `json:"price" validate:"gte=0"`
	Inventory int     `json:"inventory" validate:"gte=0"`
	IsActive  *bool   `json:"isActive"`
}

type ProductInput struct {
	Slug           string         `json:"slug" validate:"omitempty,max=160"`
	Name           string         `json:"name" validate:"required,max=160"`
	Description    string         `json:"description" validate:"max=5000"`
	Category       string         `json:"category" validate:"max=80"`
	Series         string         `json:"series" validate:"max=80"`
	Price          float64        `json:"price" validate:"gt=0"`
	CompareAtPrice float64        `json:"compareAtPrice" validate:"gte=0"`
	Currency       string         `json:"currency" validate:"omitempty,len=3"`
	Stock          int            `json:"stock" validate:"gte=0"`
	TrackQuantity  *bool          `json:"trackQuantity"`
	IsActive       *bool          `json:"isActive"`
	Tags           []string       `json:"tags"`
	Variants       []VariantInput `json:"variants" validate:"omitempty,dive"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// ProductService covers catalog reads and admin maintenance.
type ProductService struct {
	products store.ProductStore
	images   ImageStore
}

func NewProductService(products store.ProductStore, images ImageStore) *ProductService {
	return &ProductService{products: products, images: images}
}

func (s *ProductService) List(ctx context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	return s.products.ListProducts(ctx, f)
}

// Get returns a product. Inactive products are hidden unless includeInactive.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*models.Product, error) {
	product, err := s.products.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if !product.IsActive && !includeInactive {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProduct, describeValidation(err))
	}

	product := &models.Product{TrackQuantity: true, IsActive: true, Currency: "INR"}
	apply(product, in)
	if err := s.products.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return product, nil
}

// Update replaces the editable fields. Variants with an id keep that id;
// variants missing from the input are deactivated.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, in ProductInput) (*models.Product, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProduct, describeValidation(err))
	}

	product, err := s.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}
	apply(product, in)
	if err := s.products.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return product, nil
}

func apply(p *models.Product, in ProductInput) {
	p.Name = in.Name
	p.Slug = in.Slug
	if p.Slug == "" {
		p.Slug = slugify(in.Name)
	}
	p.Description = in.Description
	p.Category = in.Category
	p.Series = in.Series
	p.Price = in.Price
	p.CompareAtPrice = in.CompareAtPrice
	if in.Currency != "" {
		p.Currency = strings.ToUpper(in.Currency)
	}
	p.Stock = in.Stock
	if in.TrackQuantity != nil {
		p.TrackQuantity = *in.TrackQuantity
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.Tags != nil {
		p.Tags = in.Tags
	}
	if in.Variants != nil {
		p.Variants = mergeVariants(p.Variants, in.Variants)
	}
}

func mergeVariants(existing []models.ProductVariant, inputs []VariantInput) []models.ProductVariant {
	byID := make(map[uuid.UUID]int, len(existing))
	for i, v := range existing {
		byID[v.ID] = i
	}

	seen := make(map[uuid.UUID]bool)
	out := make([]models.ProductVariant, 0, len(inputs))
	for _, in := range inputs {
		v := models.ProductVariant{IsActive: true}
		if id, err := uuid.Parse(in.ID); err == nil {
			if idx, ok := byID[id]; ok {
				v = existing[idx]
				seen[id] = true
			}
		}
		v.SKU = in.SKU
		v.Size = in.Size
		v.Color = in.Color
		v.Price = in.Price
		v.Inventory = in.Inventory
		if in.IsActive != nil {
			v.IsActive = *in.IsActive
		}
		out = append(out, v)
	}

	for _, v := range existing {
		if !seen[v.ID] {
			v.IsActive = false
			out = append(out, v)
		}
	}
	return out
}

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// AddImage uploads an image and appends its URL to the product.
func (s *ProductService) AddImage(ctx context.Context, id uuid.UUID, filename string, r io.Reader, size int64, contentType string) (*models.Product, error) {
	if s.images == nil {
		return nil, ErrImageStoreDisabled
	}
	if !imageExtensions[strings.ToLower(path.Ext(filename))] {
		return nil, ErrUnsupportedImageExt
	}

	product, err := s.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}

	url, err := s.images.Upload(ctx, filename, r, size, contentType)
	if err != nil {
		return nil, err
	}
	product.Images = append(product.Images, url)
	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}
