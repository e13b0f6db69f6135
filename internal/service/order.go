package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// UpdateOrderStatusInput holds the parameters for an order status change.
type UpdateOrderStatusInput struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
	Force  bool   `json:"force"`
}

// OrderService implements order queries, the status machine, and analytics.
// Orders never mutate after checkout except through UpdateStatus.
type OrderService struct {
	orders   repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(orders repository.OrderRepository, producer *event.Producer, logger *slog.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		producer: producer,
		logger:   logger,
	}
}

// List lists orders. Non-admin callers are scoped to their own orders and
// receive no summary; admins may filter freely and get the revenue summary
// alongside.
func (s *OrderService) List(ctx context.Context, identity domain.Identity, filter repository.OrderFilter) ([]domain.Order, int, *repository.OrderSummary, error) {
	if !identity.IsAdmin() {
		if !identity.IsUser() {
			return nil, 0, nil, apperrors.Unauthorized("authentication required")
		}
		filter.UserID = &identity.UserID
	}

	if filter.Status != nil && !domain.IsValidOrderStatus(*filter.Status) {
		return nil, 0, nil, apperrors.InvalidInput(fmt.Sprintf("invalid order status %q", *filter.Status))
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, nil, err
	}

	if !identity.IsAdmin() {
		return orders, total, nil, nil
	}

	summary, err := s.orders.Summary(ctx)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("order summary: %w", err)
	}

	return orders, total, summary, nil
}

// Get retrieves an order by id, subject to access control.
func (s *OrderService) Get(ctx context.Context, identity domain.Identity, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.authorize(identity, order, id)
}

// GetByNumber retrieves an order by its human-readable number, subject to
// access control.
func (s *OrderService) GetByNumber(ctx context.Context, identity domain.Identity, orderNumber string) (*domain.Order, error) {
	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return s.authorize(identity, order, orderNumber)
}

// authorize hides orders the caller does not own. Denial reads as NotFound so
// order ids cannot be probed.
func (s *OrderService) authorize(identity domain.Identity, order *domain.Order, ref string) (*domain.Order, error) {
	switch {
	case identity.IsAdmin():
		return order, nil
	case identity.IsUser() && order.UserID == identity.UserID:
		return order, nil
	case identity.IsGuest() && order.GuestToken != "" && order.GuestToken == identity.GuestToken:
		return order, nil
	}
	return nil, apperrors.NotFound("order", ref)
}

// UpdateStatus moves an order through the status machine. Force bypasses the
// transition rules but never resurrects a terminal order into the same state.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, input UpdateOrderStatusInput) (*domain.Order, error) {
	if !domain.IsValidOrderStatus(input.Status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid order status %q", input.Status))
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status == input.Status {
		return nil, apperrors.InvalidInput(fmt.Sprintf("order is already %s", order.Status))
	}

	if !input.Force && !domain.CanTransitionOrderStatus(order.Status, input.Status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf(
			"cannot transition order from %s to %s", order.Status, input.Status,
		))
	}

	if err := s.orders.UpdateStatus(ctx, id, input.Status, input.Notes); err != nil {
		return nil, err
	}

	fromStatus := order.Status
	order.Status = input.Status
	if input.Notes != "" {
		order.Notes = input.Notes
	}

	if err := s.producer.PublishOrderStatusChanged(ctx, order, fromStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("from", fromStatus),
		slog.String("to", order.Status),
		slog.Bool("forced", input.Force),
	)

	return order, nil
}

// Analytics aggregates order metrics over an optional date range.
func (s *OrderService) Analytics(ctx context.Context, start, end *time.Time) (*repository.OrderAnalytics, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, apperrors.InvalidInput("end date must not be before start date")
	}
	return s.orders.Analytics(ctx, start, end)
}
