package domain

import (
	"context"
	"time"
)

type Product struct {
	ID          string    `json:"id"` // UUID
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	BasePrice   float64   `json:"basePrice"`
	SalePrice   *float64  `json:"salePrice"`
	WeightKg    float64   `json:"weightKg"` // parcel weight used for shipping quotes
	Stock       int       `json:"stock"`
	Images      []string  `json:"images"`
	Category    *string   `json:"category"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EffectivePrice returns the sale price when set, otherwise the base price.
func (p Product) EffectivePrice() float64 {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.BasePrice
}

type ProductFilter struct {
	Page     int
	Limit    int
	Category string
	Search   string
	Active   *bool
}

type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, filter ProductFilter) ([]Product, int64, error)
	Delete(ctx context.Context, id string) error

	// AdjustStock applies delta to the product's stock, failing when the
	// result would go negative.
	AdjustStock(ctx context.Context, id string, delta int) error
}
