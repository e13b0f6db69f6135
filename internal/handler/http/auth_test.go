package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func TestRegister_Success(t *testing.T) {
	f := newFixture()

	f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	body, _ := json.Marshal(service.RegisterInput{
		Email:    "ada@example.com",
		Name:     "Ada Lovelace",
		Password: "hunter2hunter2",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	rec := f.do(req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
}

func TestRegister_ShortPassword(t *testing.T) {
	f := newFixture()

	body, _ := json.Marshal(service.RegisterInput{
		Email:    "ada@example.com",
		Name:     "Ada Lovelace",
		Password: "short",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	rec := f.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(&domain.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
	}, nil)

	body, _ := json.Marshal(service.LoginInput{Email: "ada@example.com", Password: "hunter2hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture()

	f.users.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, apperrors.NotFound("user", "ghost@example.com"))

	body, _ := json.Marshal(service.LoginInput{Email: "ghost@example.com", Password: "whatever"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_ReturnsProfile(t *testing.T) {
	f := newFixture()

	f.users.On("GetByID", mock.Anything, "user-1").Return(&domain.User{
		ID:    "user-1",
		Email: "ada@example.com",
		Role:  domain.RoleCustomer,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+f.userToken(t, "user-1", domain.RoleCustomer))
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMe_RequiresAuth(t *testing.T) {
	f := newFixture()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
