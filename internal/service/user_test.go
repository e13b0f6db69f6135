package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func newTestUserService(users *mockUserRepository, carts *mockCartRepository) *UserService {
	cartSvc := newTestCartService(carts, new(mockProductRepository), new(mockPromoRepository))
	return NewUserService(users, cartSvc, auth.NewJWTManager("test-secret", time.Hour), newTestLogger())
}

func TestRegister_Success(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestUserService(users, new(mockCartRepository))
	ctx := context.Background()

	users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "ada@example.com" && u.Role == domain.RoleCustomer && u.PasswordHash != ""
	})).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "  Ada@Example.COM ",
		Name:     "Ada Lovelace",
		Password: "hunter2hunter2",
	}, "")

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.NotEmpty(t, result.Token)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(result.User.PasswordHash), []byte("hunter2hunter2")))
	users.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestUserService(users, new(mockCartRepository))
	ctx := context.Background()

	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "email", "ada@example.com"))

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "ada@example.com",
		Name:     "Ada Lovelace",
		Password: "hunter2hunter2",
	}, "")

	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestRegister_MergesGuestCart(t *testing.T) {
	users := new(mockUserRepository)
	carts := new(mockCartRepository)
	svc := newTestUserService(users, carts)
	ctx := context.Background()

	users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	// Guest has an item; user has no cart yet, so the guest cart is retargeted.
	guestCart := guestCartWithItem()
	carts.On("GetByGuestToken", ctx, "guest-token-1").Return(guestCart, nil)
	carts.On("GetByUserID", ctx, mock.AnythingOfType("string")).Return(nil, apperrors.NotFound("cart", "x")).Once()
	carts.On("RetargetToUser", ctx, "cart-001", mock.AnythingOfType("string")).Return(nil)
	carts.On("GetByUserID", ctx, mock.AnythingOfType("string")).Return(guestCart, nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "ada@example.com",
		Name:     "Ada Lovelace",
		Password: "hunter2hunter2",
	}, "guest-token-1")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	carts.AssertExpectations(t)
}

func TestLogin_Success(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestUserService(users, new(mockCartRepository))
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	users.On("GetByEmail", ctx, "ada@example.com").Return(&domain.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
	}, nil)

	result, err := svc.Login(ctx, LoginInput{Email: "Ada@example.com", Password: "hunter2hunter2"}, "")

	require.NoError(t, err)
	assert.Equal(t, "user-1", result.User.ID)
	assert.NotEmpty(t, result.Token)
}

func TestLogin_WrongPassword(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestUserService(users, new(mockCartRepository))
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)

	users.On("GetByEmail", ctx, "ada@example.com").Return(&domain.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
	}, nil)

	_, err = svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong"}, "")

	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestLogin_UnknownEmailIndistinguishable(t *testing.T) {
	users := new(mockUserRepository)
	svc := newTestUserService(users, new(mockCartRepository))
	ctx := context.Background()

	users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.NotFound("user", "ghost@example.com"))

	_, err := svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever"}, "")

	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestLogin_MergeFailureDoesNotFailLogin(t *testing.T) {
	users := new(mockUserRepository)
	carts := new(mockCartRepository)
	svc := newTestUserService(users, carts)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	users.On("GetByEmail", ctx, "ada@example.com").Return(&domain.User{
		ID:           "user-1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
	}, nil)
	carts.On("GetByGuestToken", ctx, "guest-token-1").Return(nil, assert.AnError)

	result, err := svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "hunter2hunter2"}, "guest-token-1")

	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}
