package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CreatePromoInput holds the parameters for creating a promo code.
type CreatePromoInput struct {
	Code        string    `json:"code" validate:"required"`
	Description string    `json:"description"`
	Type        string    `json:"type" validate:"required"`
	Value       int64     `json:"value" validate:"gt=0"`
	MinAmount   int64     `json:"min_amount" validate:"gte=0"`
	MaxDiscount int64     `json:"max_discount" validate:"gte=0"`
	UsageLimit  int       `json:"usage_limit" validate:"gte=0"`
	ValidFrom   time.Time `json:"valid_from" validate:"required"`
	ValidTo     time.Time `json:"valid_to" validate:"required"`
	Status      string    `json:"status"`
}

// UpdatePromoInput holds the parameters for a partial promo update.
type UpdatePromoInput struct {
	Description *string    `json:"description"`
	Value       *int64     `json:"value" validate:"omitempty,gt=0"`
	MinAmount   *int64     `json:"min_amount" validate:"omitempty,gte=0"`
	MaxDiscount *int64     `json:"max_discount" validate:"omitempty,gte=0"`
	UsageLimit  *int       `json:"usage_limit" validate:"omitempty,gte=0"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
	Status      *string    `json:"status"`
}

// PromoService implements promo code validation and admin CRUD.
type PromoService struct {
	promos repository.PromoRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewPromoService creates a new promo service.
func NewPromoService(promos repository.PromoRepository, logger *slog.Logger) *PromoService {
	return &PromoService{
		promos: promos,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeCode canonicalizes a promo code for lookup and storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validatePromo runs the eligibility checks in a fixed order so error
// messages stay deterministic: lifecycle status, then time window, then
// usage, then minimum amount. Existence is checked by the caller's lookup.
func validatePromo(p *domain.Promo, subtotal int64, now time.Time) error {
	if p.Status != domain.PromoStatusActive {
		return apperrors.InvalidInput("promo code is not active")
	}
	if !p.IsWithinWindow(now) {
		return apperrors.InvalidInput("promo code is expired or not yet valid")
	}
	if p.UsageExhausted() {
		return apperrors.InvalidInput("promo code usage limit reached")
	}
	if p.MinAmount > 0 && subtotal < p.MinAmount {
		return apperrors.InvalidInput(fmt.Sprintf("cart subtotal is below the promo minimum of %d", p.MinAmount))
	}
	return nil
}

// Validate checks a promo code against the given cart subtotal and returns
// the promo when eligible. It never mutates anything; usage counting happens
// only inside the checkout transaction.
func (s *PromoService) Validate(ctx context.Context, code string, subtotal int64) (*domain.Promo, error) {
	promo, err := s.promos.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("promo code", code)
		}
		return nil, err
	}

	if err := validatePromo(promo, subtotal, s.now()); err != nil {
		return nil, err
	}

	return promo, nil
}

// Create creates a new promo code.
func (s *PromoService) Create(ctx context.Context, input CreatePromoInput) (*domain.Promo, error) {
	if !domain.IsValidPromoType(input.Type) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid promo type %q", input.Type))
	}

	status := input.Status
	if status == "" {
		status = domain.PromoStatusActive
	}
	if !domain.IsValidPromoStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid promo status %q", status))
	}

	if !input.ValidFrom.Before(input.ValidTo) {
		return nil, apperrors.InvalidInput("valid_from must be before valid_to")
	}

	if input.Type == domain.PromoTypePercentage && input.Value > 100 {
		return nil, apperrors.InvalidInput("percentage value must not exceed 100")
	}

	now := time.Now().UTC()
	p := &domain.Promo{
		ID:          uuid.New().String(),
		Code:        NormalizeCode(input.Code),
		Description: input.Description,
		Type:        input.Type,
		Value:       input.Value,
		MinAmount:   input.MinAmount,
		MaxDiscount: input.MaxDiscount,
		UsageLimit:  input.UsageLimit,
		ValidFrom:   input.ValidFrom,
		ValidTo:     input.ValidTo,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.promos.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "promo created",
		slog.String("promo_id", p.ID),
		slog.String("code", p.Code),
	)

	return p, nil
}

// Get retrieves a promo by id.
func (s *PromoService) Get(ctx context.Context, id string) (*domain.Promo, error) {
	return s.promos.GetByID(ctx, id)
}

// List lists promos. Non-admin callers only see active promos currently
// inside their validity window.
func (s *PromoService) List(ctx context.Context, filter repository.PromoFilter, isAdmin bool) ([]domain.Promo, int, error) {
	if !isAdmin {
		active := domain.PromoStatusActive
		filter.Status = &active
		filter.ValidNow = true
	}

	return s.promos.List(ctx, filter)
}

// Update applies a partial update to a promo. The code itself is immutable
// once issued; orders denormalize it for display.
func (s *PromoService) Update(ctx context.Context, id string, input UpdatePromoInput) (*domain.Promo, error) {
	p, err := s.promos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.Value != nil {
		if p.Type == domain.PromoTypePercentage && *input.Value > 100 {
			return nil, apperrors.InvalidInput("percentage value must not exceed 100")
		}
		p.Value = *input.Value
	}
	if input.MinAmount != nil {
		p.MinAmount = *input.MinAmount
	}
	if input.MaxDiscount != nil {
		p.MaxDiscount = *input.MaxDiscount
	}
	if input.UsageLimit != nil {
		p.UsageLimit = *input.UsageLimit
	}
	if input.ValidFrom != nil {
		p.ValidFrom = *input.ValidFrom
	}
	if input.ValidTo != nil {
		p.ValidTo = *input.ValidTo
	}
	if input.Status != nil {
		if !domain.IsValidPromoStatus(*input.Status) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid promo status %q", *input.Status))
		}
		p.Status = *input.Status
	}

	if !p.ValidFrom.Before(p.ValidTo) {
		return nil, apperrors.InvalidInput("valid_from must be before valid_to")
	}

	if err := s.promos.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "promo updated", slog.String("promo_id", p.ID))

	return p, nil
}

// Delete removes a promo. Orders keep their denormalized promo code.
func (s *PromoService) Delete(ctx context.Context, id string) error {
	if err := s.promos.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "promo deleted", slog.String("promo_id", id))

	return nil
}
