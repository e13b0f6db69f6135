package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func sampleProduct() *domain.Product {
	now := time.Now().UTC()
	return &domain.Product{
		ID:       "a2f1d8e0-1111-4222-8333-444455556666",
		Name:     "Classic Tee",
		Slug:     "classic-tee",
		Category: "apparel",
		Status:   domain.ProductStatusActive,
		Variants: []domain.Variant{
			{
				ID:        "var-1",
				ProductID: "a2f1d8e0-1111-4222-8333-444455556666",
				Name:      "Medium / Black",
				SKU:       "TEE-M-BLK",
				Price:     1999,
				Inventory: 10,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateProduct_GeneratesSlugAndIDs(t *testing.T) {
	products := new(mockProductRepository)
	svc := NewCatalogService(products, newTestLogger())
	ctx := context.Background()

	products.On("Create", ctx, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Slug == "classic-tee" && p.Status == domain.ProductStatusActive &&
			len(p.Variants) == 1 && p.Variants[0].ProductID == p.ID
	})).Return(nil)

	p, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:     "Classic Tee",
		Category: "apparel",
		Variants: []CreateVariantInput{
			{Name: "Medium / Black", SKU: "TEE-M-BLK", Price: 1999, Inventory: 10},
		},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "classic-tee", p.Slug)
	products.AssertExpectations(t)
}

func TestCreateProduct_RequiresVariant(t *testing.T) {
	svc := NewCatalogService(new(mockProductRepository), newTestLogger())

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:     "Empty Product",
		Category: "misc",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGetProduct_BySlugAndByID(t *testing.T) {
	products := new(mockProductRepository)
	svc := NewCatalogService(products, newTestLogger())
	ctx := context.Background()

	p := sampleProduct()
	products.On("GetBySlug", ctx, "classic-tee").Return(p, nil)
	products.On("GetByID", ctx, p.ID).Return(p, nil)

	bySlug, err := svc.GetProduct(ctx, "classic-tee", false)
	require.NoError(t, err)
	assert.Equal(t, p.ID, bySlug.ID)

	byID, err := svc.GetProduct(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byID.ID)

	products.AssertExpectations(t)
}

func TestGetProduct_InactiveHiddenFromPublic(t *testing.T) {
	products := new(mockProductRepository)
	svc := NewCatalogService(products, newTestLogger())
	ctx := context.Background()

	p := sampleProduct()
	p.Status = domain.ProductStatusInactive
	products.On("GetBySlug", ctx, "classic-tee").Return(p, nil)

	_, err := svc.GetProduct(ctx, "classic-tee", false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := svc.GetProduct(ctx, "classic-tee", true)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusInactive, got.Status)
}

func TestListProducts_PublicForcedActive(t *testing.T) {
	products := new(mockProductRepository)
	svc := NewCatalogService(products, newTestLogger())
	ctx := context.Background()

	discontinued := domain.ProductStatusDiscontinued
	products.On("List", ctx, mock.MatchedBy(func(f repository.ProductFilter) bool {
		return f.Status != nil && *f.Status == domain.ProductStatusActive
	})).Return([]domain.Product{*sampleProduct()}, 1, nil)

	// The public filter is overridden even when the caller asks for more.
	list, total, err := svc.ListProducts(ctx, repository.ProductFilter{Status: &discontinued}, false)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)
	products.AssertExpectations(t)
}

func TestUpdateVariant_Partial(t *testing.T) {
	products := new(mockProductRepository)
	svc := NewCatalogService(products, newTestLogger())
	ctx := context.Background()

	p := sampleProduct()
	products.On("GetByID", ctx, p.ID).Return(p, nil)
	products.On("UpdateVariant", ctx, mock.MatchedBy(func(v *domain.Variant) bool {
		return v.ID == "var-1" && v.Price == 2499 && v.SKU == "TEE-M-BLK"
	})).Return(nil)

	price := int64(2499)
	v, err := svc.UpdateVariant(ctx, p.ID, "var-1", UpdateVariantInput{Price: &price})

	require.NoError(t, err)
	assert.Equal(t, int64(2499), v.Price)
	assert.Equal(t, 10, v.Inventory)
	products.AssertExpectations(t)
}

func TestUpdateVariant_UnknownVariant(t *testing.T) {
	products := new(mockProductRepository)
	svc := NewCatalogService(products, newTestLogger())
	ctx := context.Background()

	p := sampleProduct()
	products.On("GetByID", ctx, p.ID).Return(p, nil)

	_, err := svc.UpdateVariant(ctx, p.ID, "var-999", UpdateVariantInput{})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateProduct_InvalidStatus(t *testing.T) {
	products := new(mockProductRepository)
	svc := NewCatalogService(products, newTestLogger())
	ctx := context.Background()

	p := sampleProduct()
	products.On("GetByID", ctx, p.ID).Return(p, nil)

	bogus := "archived"
	_, err := svc.UpdateProduct(ctx, p.ID, UpdateProductInput{Status: &bogus})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	products.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
