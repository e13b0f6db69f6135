package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/slug"
)

// CreateVariantInput holds the parameters for one variant at product creation.
type CreateVariantInput struct {
	Name       string            `json:"name" validate:"required"`
	SKU        string            `json:"sku" validate:"required"`
	Price      int64             `json:"price" validate:"gte=0"`
	Inventory  int               `json:"inventory" validate:"gte=0"`
	Attributes map[string]string `json:"attributes"`
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name        string               `json:"name" validate:"required"`
	Slug        string               `json:"slug"`
	Description string               `json:"description"`
	Category    string               `json:"category" validate:"required"`
	Status      string               `json:"status"`
	Variants    []CreateVariantInput `json:"variants" validate:"required,min=1,dive"`
}

// UpdateProductInput holds the parameters for a partial product update.
type UpdateProductInput struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Status      *string `json:"status"`
}

// UpdateVariantInput holds the parameters for a partial variant update.
type UpdateVariantInput struct {
	Name       *string           `json:"name"`
	SKU        *string           `json:"sku"`
	Price      *int64            `json:"price" validate:"omitempty,gte=0"`
	Inventory  *int              `json:"inventory" validate:"omitempty,gte=0"`
	Attributes map[string]string `json:"attributes"`
}

// CatalogService implements the business logic for the product catalog.
type CatalogService struct {
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(products repository.ProductRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		products: products,
		logger:   logger,
	}
}

// CreateProduct creates a product with at least one variant.
func (s *CatalogService) CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	if len(input.Variants) == 0 {
		return nil, apperrors.InvalidInput("product must have at least one variant")
	}

	status := input.Status
	if status == "" {
		status = domain.ProductStatusActive
	}
	if !domain.IsValidProductStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid product status %q", status))
	}

	productSlug := input.Slug
	if productSlug == "" {
		productSlug = slug.Generate(input.Name)
	}

	now := time.Now().UTC()
	p := &domain.Product{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Slug:        productSlug,
		Description: input.Description,
		Category:    input.Category,
		Status:      status,
		Variants:    make([]domain.Variant, len(input.Variants)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for i, v := range input.Variants {
		p.Variants[i] = domain.Variant{
			ID:         uuid.New().String(),
			ProductID:  p.ID,
			Name:       v.Name,
			SKU:        v.SKU,
			Price:      v.Price,
			Inventory:  v.Inventory,
			Attributes: v.Attributes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("slug", p.Slug),
		slog.Int("variants", len(p.Variants)),
	)

	return p, nil
}

// GetProduct retrieves a product by id or slug. Non-admin callers only see
// active products.
func (s *CatalogService) GetProduct(ctx context.Context, idOrSlug string, includeInactive bool) (*domain.Product, error) {
	var (
		p   *domain.Product
		err error
	)

	if _, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		p, err = s.products.GetByID(ctx, idOrSlug)
	} else {
		p, err = s.products.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}

	if !includeInactive && p.Status != domain.ProductStatusActive {
		return nil, apperrors.NotFound("product", idOrSlug)
	}

	return p, nil
}

// ListProducts lists products. Non-admin callers are forced to active only.
func (s *CatalogService) ListProducts(ctx context.Context, filter repository.ProductFilter, isAdmin bool) ([]domain.Product, int, error) {
	if !isAdmin {
		active := domain.ProductStatusActive
		filter.Status = &active
	} else if filter.Status != nil && !domain.IsValidProductStatus(*filter.Status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid product status %q", *filter.Status))
	}

	return s.products.List(ctx, filter)
}

// UpdateProduct applies a partial update to product-level fields.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, input UpdateProductInput) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Slug != nil {
		p.Slug = *input.Slug
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.Category != nil {
		p.Category = *input.Category
	}
	if input.Status != nil {
		if !domain.IsValidProductStatus(*input.Status) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid product status %q", *input.Status))
		}
		p.Status = *input.Status
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", p.ID))

	return p, nil
}

// UpdateVariant applies a partial update to a variant of the given product.
func (s *CatalogService) UpdateVariant(ctx context.Context, productID, variantID string, input UpdateVariantInput) (*domain.Variant, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	v := p.FindVariant(variantID)
	if v == nil {
		return nil, apperrors.NotFound("variant", variantID)
	}

	if input.Name != nil {
		v.Name = *input.Name
	}
	if input.SKU != nil {
		v.SKU = *input.SKU
	}
	if input.Price != nil {
		if *input.Price < 0 {
			return nil, apperrors.InvalidInput("price must not be negative")
		}
		v.Price = *input.Price
	}
	if input.Inventory != nil {
		if *input.Inventory < 0 {
			return nil, apperrors.InvalidInput("inventory must not be negative")
		}
		v.Inventory = *input.Inventory
	}
	if input.Attributes != nil {
		v.Attributes = input.Attributes
	}

	if err := s.products.UpdateVariant(ctx, v); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "variant updated",
		slog.String("product_id", productID),
		slog.String("variant_id", variantID),
	)

	return v, nil
}

// DeleteProduct removes a product and its variants.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))

	return nil
}
