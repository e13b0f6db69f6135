package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult pairs a user with a freshly issued session token.
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// UserService implements registration, login, and profile lookup. Both
// registration and login absorb any guest cart into the user's cart.
type UserService struct {
	users  repository.UserRepository
	carts  *CartService
	jwt    *auth.JWTManager
	logger *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(users repository.UserRepository, carts *CartService, jwt *auth.JWTManager, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		carts:  carts,
		jwt:    jwt,
		logger: logger,
	}
}

// Register creates a new customer account and issues a session token.
func (s *UserService) Register(ctx context.Context, input RegisterInput, guestToken string) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         input.Name,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.mergeGuestCart(ctx, guestToken, user.ID)

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Login authenticates a user by email and password. Missing accounts and bad
// passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, input LoginInput, guestToken string) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.mergeGuestCart(ctx, guestToken, user.ID)

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// GetByID retrieves a user profile.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// mergeGuestCart folds a guest cart into the user's cart. Merge failures must
// not fail authentication.
func (s *UserService) mergeGuestCart(ctx context.Context, guestToken, userID string) {
	if guestToken == "" {
		return
	}

	if _, err := s.carts.MergeGuestIntoUser(ctx, guestToken, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to merge guest cart",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
