package usecase

import (
	"context"
	"fmt"
	"time"

	"kairaba-backend/internal/domain"
	"kairaba-backend/pkg/cache"
	"kairaba-backend/pkg/utils"
)

// CatalogUsecase manages products. Product detail pages are cached by slug;
// any admin mutation drops the affected keys.
type CatalogUsecase struct {
	repo       domain.ProductRepository
	cache      cache.CacheService
	productTTL time.Duration
}

func NewCatalogUsecase(repo domain.ProductRepository, c cache.CacheService, productTTL time.Duration) *CatalogUsecase {
	return &CatalogUsecase{repo: repo, cache: c, productTTL: productTTL}
}

type CreateProductRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	BasePrice   float64  `json:"basePrice"`
	SalePrice   *float64 `json:"salePrice"`
	WeightKg    float64  `json:"weightKg"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images"`
	Category    *string  `json:"category"`
}

type UpdateProductRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	BasePrice   *float64  `json:"basePrice"`
	SalePrice   *float64  `json:"salePrice"`
	WeightKg    *float64  `json:"weightKg"`
	Stock       *int      `json:"stock"`
	Images      *[]string `json:"images"`
	Category    *string   `json:"category"`
	Active      *bool     `json:"active"`
}

func productCacheKey(slug string) string {
	return "product:slug:" + slug
}

func (u *CatalogUsecase) CreateProduct(ctx context.Context, req CreateProductRequest) (*domain.Product, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if req.BasePrice < 0 {
		return nil, fmt.Errorf("base price must be >= 0")
	}
	if req.WeightKg < 0 {
		return nil, domain.NewValidationError(domain.FieldWeight, "product weight must be >= 0")
	}

	p := &domain.Product{
		ID:          utils.GenerateUUID(),
		Name:        req.Name,
		Slug:        utils.GenerateSlug(req.Name),
		Description: req.Description,
		BasePrice:   req.BasePrice,
		SalePrice:   req.SalePrice,
		WeightKg:    req.WeightKg,
		Stock:       req.Stock,
		Images:      req.Images,
		Category:    req.Category,
		Active:      true,
	}
	if p.Images == nil {
		p.Images = []string{}
	}

	if err := u.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *CatalogUsecase) UpdateProduct(ctx context.Context, id string, req UpdateProductRequest) (*domain.Product, error) {
	p, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldSlug := p.Slug

	if req.Name != nil {
		p.Name = *req.Name
		p.Slug = utils.GenerateSlug(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.BasePrice != nil {
		p.BasePrice = *req.BasePrice
	}
	if req.SalePrice != nil {
		p.SalePrice = req.SalePrice
	}
	if req.WeightKg != nil {
		if *req.WeightKg < 0 {
			return nil, domain.NewValidationError(domain.FieldWeight, "product weight must be >= 0")
		}
		p.WeightKg = *req.WeightKg
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Images != nil {
		p.Images = *req.Images
	}
	if req.Category != nil {
		p.Category = req.Category
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := u.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	u.cache.Delete(productCacheKey(oldSlug))
	u.cache.Delete(productCacheKey(p.Slug))
	return p, nil
}

func (u *CatalogUsecase) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	key := productCacheKey(slug)
	if val, found := u.cache.Get(key); found {
		return val.(*domain.Product), nil
	}

	p, err := u.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	u.cache.Set(key, p, u.productTTL)
	return p, nil
}

func (u *CatalogUsecase) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return u.repo.GetByID(ctx, id)
}

func (u *CatalogUsecase) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	return u.repo.List(ctx, filter)
}

func (u *CatalogUsecase) DeleteProduct(ctx context.Context, id string) error {
	p, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := u.repo.Delete(ctx, id); err != nil {
		return err
	}
	u.cache.Delete(productCacheKey(p.Slug))
	return nil
}
