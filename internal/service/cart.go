package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// AddItemInput holds the parameters for adding an item to the cart.
type AddItemInput struct {
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// UpdateItemInput holds the parameters for updating a cart item's quantity.
type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// ApplyPromoInput holds the parameters for attaching a promo to the cart.
type ApplyPromoInput struct {
	Code string `json:"code" validate:"required"`
}

// CartService implements the cart lifecycle: creation, item mutation, promo
// attachment, expiry, and the guest-to-user merge.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	promos   repository.PromoRepository
	producer *event.Producer
	logger   *slog.Logger
	cartTTL  time.Duration
	now      func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	promos repository.PromoRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		promos:   promos,
		producer: producer,
		logger:   logger,
		cartTTL:  domain.CartTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the live cart for the identity, creating a fresh one
// when none exists or the existing one has expired. Guest creation reuses the
// presented token verbatim so tokens held by clients stay valid.
func (s *CartService) GetOrCreate(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	cart, err := s.findCart(ctx, identity)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.createCart(ctx, identity)
		}
		return nil, err
	}

	if cart.IsExpired(s.now()) {
		if err := s.carts.Delete(ctx, cart.ID); err != nil {
			return nil, fmt.Errorf("delete expired cart: %w", err)
		}
		return s.createCart(ctx, identity)
	}

	return cart, nil
}

// AddItem adds a variant to the identity's cart, merging into an existing
// line when the variant is already present. The availability check counts the
// quantity already in the cart, not just the delta.
func (s *CartService) AddItem(ctx context.Context, identity domain.Identity, input AddItemInput) (*domain.Cart, error) {
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}

	variant, err := s.products.GetVariant(ctx, input.VariantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("variant", input.VariantID)
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	if variant.ProductStatus != domain.ProductStatusActive {
		return nil, apperrors.InvalidInput("product is not available")
	}

	cart, err := s.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	requested := input.Quantity
	existingIdx := cart.FindItemByVariant(input.VariantID)
	if existingIdx >= 0 {
		requested += cart.Items[existingIdx].Quantity
	}

	if variant.Inventory < requested {
		return nil, apperrors.InvalidInput(fmt.Sprintf(
			"insufficient inventory for %s: %d available, %d requested",
			variant.ProductName, variant.Inventory, requested,
		))
	}

	if existingIdx >= 0 {
		err = s.carts.UpdateItemQuantity(ctx, cart.Items[existingIdx].ID, requested)
	} else {
		now := s.now()
		err = s.carts.AddItem(ctx, &domain.CartItem{
			ID:        uuid.New().String(),
			CartID:    cart.ID,
			VariantID: input.VariantID,
			Quantity:  input.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("cart_id", cart.ID),
		slog.String("variant_id", input.VariantID),
		slog.Int("quantity", input.Quantity),
	)

	return s.reload(ctx, identity)
}

// UpdateItem sets the quantity of an existing cart item.
func (s *CartService) UpdateItem(ctx context.Context, identity domain.Identity, itemID string, input UpdateItemInput) (*domain.Cart, error) {
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}

	cart, err := s.liveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	idx := cart.FindItem(itemID)
	if idx < 0 {
		return nil, apperrors.NotFound("cart item", itemID)
	}

	if cart.Items[idx].Inventory < input.Quantity {
		return nil, apperrors.InvalidInput(fmt.Sprintf(
			"insufficient inventory for %s: %d available, %d requested",
			cart.Items[idx].ProductName, cart.Items[idx].Inventory, input.Quantity,
		))
	}

	if err := s.carts.UpdateItemQuantity(ctx, itemID, input.Quantity); err != nil {
		return nil, err
	}

	return s.reload(ctx, identity)
}

// RemoveItem deletes an item from the cart. Removing an absent item is an
// error, not a no-op.
func (s *CartService) RemoveItem(ctx context.Context, identity domain.Identity, itemID string) (*domain.Cart, error) {
	cart, err := s.liveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.carts.RemoveItem(ctx, cart.ID, itemID); err != nil {
		return nil, err
	}

	return s.reload(ctx, identity)
}

// Clear removes all items and any attached promo, keeping the cart record.
func (s *CartService) Clear(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	cart, err := s.liveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.carts.ClearItems(ctx, cart.ID); err != nil {
		return nil, err
	}
	if err := s.carts.ClearPromo(ctx, cart.ID); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart cleared", slog.String("cart_id", cart.ID))

	return s.reload(ctx, identity)
}

// ApplyPromo validates a promo code against the cart's current subtotal and
// attaches it with a precomputed discount. Attaching never consumes usage.
func (s *CartService) ApplyPromo(ctx context.Context, identity domain.Identity, code string) (*domain.Cart, error) {
	cart, err := s.liveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if len(cart.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	promo, err := s.promos.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("promo code", code)
		}
		return nil, fmt.Errorf("get promo: %w", err)
	}

	subtotal := cart.Subtotal()
	if err := validatePromo(promo, subtotal, s.now()); err != nil {
		return nil, err
	}

	discount := promo.CalculateDiscount(subtotal)
	if err := s.carts.SetPromo(ctx, cart.ID, promo.ID, promo.Code, discount); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "promo applied to cart",
		slog.String("cart_id", cart.ID),
		slog.String("promo_code", promo.Code),
		slog.Int64("discount", discount),
	)

	return s.reload(ctx, identity)
}

// RemovePromo detaches any promo from the cart.
func (s *CartService) RemovePromo(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	cart, err := s.liveCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.carts.ClearPromo(ctx, cart.ID); err != nil {
		return nil, err
	}

	return s.reload(ctx, identity)
}

// MergeGuestIntoUser reconciles a guest cart into the user's cart after login
// or registration. When the user has no cart the guest cart is retargeted;
// otherwise lines merge variant-by-variant and the guest cart is deleted.
// Returns nil without error when there is nothing to merge.
func (s *CartService) MergeGuestIntoUser(ctx context.Context, guestToken, userID string) (*domain.Cart, error) {
	guestCart, err := s.carts.GetByGuestToken(ctx, guestToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get guest cart: %w", err)
	}

	if len(guestCart.Items) == 0 || guestCart.IsExpired(s.now()) {
		return nil, nil
	}

	userCart, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("get user cart: %w", err)
		}
		userCart = nil
	} else if userCart.IsExpired(s.now()) {
		// An expired user cart gets the same treatment as an absent one;
		// merging into it would hand the guest items to the delete that the
		// next get-or-create performs.
		if err := s.carts.Delete(ctx, userCart.ID); err != nil {
			return nil, fmt.Errorf("delete expired user cart: %w", err)
		}
		userCart = nil
	}

	if userCart == nil {
		// No live user cart: the guest cart changes owner wholesale.
		if err := s.carts.RetargetToUser(ctx, guestCart.ID, userID); err != nil {
			return nil, err
		}
		return s.finishMerge(ctx, userID)
	}

	for _, item := range guestCart.Items {
		idx := userCart.FindItemByVariant(item.VariantID)
		if idx >= 0 {
			combined := userCart.Items[idx].Quantity + item.Quantity
			if err := s.carts.UpdateItemQuantity(ctx, userCart.Items[idx].ID, combined); err != nil {
				return nil, err
			}
			continue
		}

		now := s.now()
		if err := s.carts.AddItem(ctx, &domain.CartItem{
			ID:        uuid.New().String(),
			CartID:    userCart.ID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.carts.Delete(ctx, guestCart.ID); err != nil {
		return nil, fmt.Errorf("delete merged guest cart: %w", err)
	}

	return s.finishMerge(ctx, userID)
}

func (s *CartService) finishMerge(ctx context.Context, userID string) (*domain.Cart, error) {
	merged, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload merged cart: %w", err)
	}

	if err := s.producer.PublishCartMerged(ctx, userID, merged); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.merged event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "guest cart merged into user cart",
		slog.String("user_id", userID),
		slog.String("cart_id", merged.ID),
		slog.Int("item_count", merged.ItemCount()),
	)

	return merged, nil
}

// findCart looks up the cart for the identity without expiry handling.
func (s *CartService) findCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	switch {
	case identity.IsUser():
		return s.carts.GetByUserID(ctx, identity.UserID)
	case identity.IsGuest():
		return s.carts.GetByGuestToken(ctx, identity.GuestToken)
	default:
		return nil, apperrors.Unauthorized("no identity")
	}
}

// liveCart is the lookup used by direct mutations: a missing cart is
// NotFound and an expired cart is Gone rather than silently replaced.
func (s *CartService) liveCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	cart, err := s.findCart(ctx, identity)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", "current")
		}
		return nil, err
	}

	if cart.IsExpired(s.now()) {
		return nil, apperrors.Gone("cart has expired")
	}

	return cart, nil
}

func (s *CartService) reload(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	cart, err := s.findCart(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("reload cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) createCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	now := s.now()
	cart := &domain.Cart{
		ID:         uuid.New().String(),
		UserID:     identity.UserID,
		GuestToken: identity.GuestToken,
		Items:      []domain.CartItem{},
		ExpiresAt:  now.Add(s.cartTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart created",
		slog.String("cart_id", cart.ID),
		slog.Bool("guest", identity.IsGuest()),
	)

	return cart, nil
}
