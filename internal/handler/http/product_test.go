package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
)

func sampleProduct() *domain.Product {
	now := time.Now().UTC()
	return &domain.Product{
		ID:       "550e8400-e29b-41d4-a716-446655440001",
		Name:     "Classic Tee",
		Slug:     "classic-tee",
		Category: "apparel",
		Status:   domain.ProductStatusActive,
		Variants: []domain.Variant{
			{
				ID:        "550e8400-e29b-41d4-a716-446655440002",
				ProductID: "550e8400-e29b-41d4-a716-446655440001",
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

func TestListProducts_PublicSeesActiveOnly(t *testing.T) {
	f := newFixture()

	f.products.On("List", mock.Anything, mock.MatchedBy(func(filter repository.ProductFilter) bool {
		return filter.Status != nil && *filter.Status == domain.ProductStatusActive
	})).Return([]domain.Product{*sampleProduct()}, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.products.AssertExpectations(t)
}

func TestGetProduct_BySlug(t *testing.T) {
	f := newFixture()

	f.products.On("GetBySlug", mock.Anything, "classic-tee").Return(sampleProduct(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/classic-tee", nil)
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
}

func TestCreateProduct_RequiresAuth(t *testing.T) {
	f := newFixture()

	body, _ := json.Marshal(service.CreateProductInput{Name: "X", Category: "y"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(body))
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateProduct_CustomerForbidden(t *testing.T) {
	f := newFixture()

	body, _ := json.Marshal(service.CreateProductInput{Name: "X", Category: "y"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.userToken(t, "user-1", domain.RoleCustomer))
	rec := f.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestCreateProduct_AdminSuccess(t *testing.T) {
	f := newFixture()

	f.products.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	input := service.CreateProductInput{
		Name:     "Classic Tee",
		Category: "apparel",
		Variants: []service.CreateVariantInput{
			{Name: "Medium / Black", SKU: "TEE-M-BLK", Price: 1999, Inventory: 10},
		},
	}
	body, _ := json.Marshal(input)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.userToken(t, "admin-1", domain.RoleAdmin))
	rec := f.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	f.products.AssertExpectations(t)
}

func TestCreateProduct_ValidationError(t *testing.T) {
	f := newFixture()

	// Missing variants entirely.
	body, _ := json.Marshal(service.CreateProductInput{Name: "No Variants", Category: "misc"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.userToken(t, "admin-1", domain.RoleAdmin))
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_InvalidBearerRejected(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/classic-tee", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
