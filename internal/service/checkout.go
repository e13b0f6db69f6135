package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CheckoutInput holds the parameters for converting a cart into an order.
type CheckoutInput struct {
	CustomerInfo  domain.CustomerInfo `json:"customer_info" validate:"required"`
	PromoCode     string              `json:"promo_code"`
	Notes         string              `json:"notes"`
	CreateAccount bool                `json:"create_account"`
	Password      string              `json:"password" validate:"omitempty,min=8"`
}

// CheckoutResult is the outcome of a successful checkout. User and Token are
// set only when a guest opted into account creation.
type CheckoutResult struct {
	Order *domain.Order `json:"order"`
	User  *domain.User  `json:"user,omitempty"`
	Token string        `json:"token,omitempty"`
}

// CheckoutService converts carts into orders. The inventory decrement, promo
// usage increment, and order insert commit in one transaction; everything
// after the commit is best-effort.
type CheckoutService struct {
	carts       repository.CartRepository
	cartService *CartService
	products    repository.ProductRepository
	orders      repository.OrderRepository
	promos      repository.PromoRepository
	users       repository.UserRepository
	sequencer   repository.OrderSequencer
	jwt         *auth.JWTManager
	producer    *event.Producer
	fulfillment *FulfillmentNotifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	carts repository.CartRepository,
	cartService *CartService,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	promos repository.PromoRepository,
	users repository.UserRepository,
	sequencer repository.OrderSequencer,
	jwt *auth.JWTManager,
	producer *event.Producer,
	fulfillment *FulfillmentNotifier,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		carts:       carts,
		cartService: cartService,
		products:    products,
		orders:      orders,
		promos:      promos,
		users:       users,
		sequencer:   sequencer,
		jwt:         jwt,
		producer:    producer,
		fulfillment: fulfillment,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Checkout converts the identity's cart into an immutable order.
func (s *CheckoutService) Checkout(ctx context.Context, identity domain.Identity, input CheckoutInput) (*CheckoutResult, error) {
	cart, err := s.loadCart(ctx, identity)
	if err != nil {
		return nil, err
	}

	if len(cart.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	now := s.now()

	// Re-read the variants so availability and pricing reflect the catalog at
	// checkout time, not whenever the cart was last touched. The conditional
	// decrement inside the transaction is the authoritative inventory guard;
	// this fails fast with a clear message.
	variantIDs := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		variantIDs[i] = item.VariantID
	}
	details, err := s.products.GetVariants(ctx, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	live := make(map[string]repository.VariantDetail, len(details))
	for _, d := range details {
		live[d.ID] = d
	}

	var subtotal int64
	for _, item := range cart.Items {
		v, ok := live[item.VariantID]
		if !ok {
			return nil, apperrors.NotFound("variant", item.VariantID)
		}
		if v.Inventory < item.Quantity {
			return nil, apperrors.InvalidInput(fmt.Sprintf(
				"insufficient inventory for %s: %d available, %d requested",
				v.ProductName, v.Inventory, item.Quantity,
			))
		}
		subtotal += v.Price * int64(item.Quantity)
	}

	promo, discount, err := s.resolvePromo(ctx, cart, input.PromoCode, subtotal, now)
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{}

	userID := identity.UserID
	if identity.IsGuest() && input.CreateAccount {
		user, token, err := s.createAccount(ctx, input)
		if err != nil {
			return nil, err
		}
		if user != nil {
			userID = user.ID
			result.User = user
			result.Token = token

			// The new account takes ownership of the guest cart. A brand-new
			// user has no prior cart, so the merge is a pure retarget and the
			// line items are unchanged.
			merged, mergeErr := s.cartService.MergeGuestIntoUser(ctx, identity.GuestToken, user.ID)
			if mergeErr != nil {
				s.logger.ErrorContext(ctx, "failed to move guest cart to new account",
					slog.String("user_id", user.ID),
					slog.String("error", mergeErr.Error()),
				)
			} else if merged != nil {
				cart = merged
			}
		}
	}

	orderNumber, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	total := subtotal - discount
	if total < 0 {
		total = 0
	}

	order := &domain.Order{
		ID:           uuid.New().String(),
		OrderNumber:  orderNumber,
		UserID:       userID,
		Status:       domain.OrderStatusPending,
		CustomerInfo: input.CustomerInfo,
		Items:        make([]domain.OrderItem, len(cart.Items)),
		Subtotal:     subtotal,
		Discount:     discount,
		Total:        total,
		Notes:        input.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if userID == "" {
		order.GuestToken = identity.GuestToken
	}
	if promo != nil {
		order.PromoID = promo.ID
		order.PromoCode = promo.Code
	}

	for i, item := range cart.Items {
		v := live[item.VariantID]
		order.Items[i] = domain.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			VariantID:   item.VariantID,
			ProductName: v.ProductName,
			VariantName: v.Name,
			SKU:         v.SKU,
			UnitPrice:   v.Price,
			Quantity:    item.Quantity,
			TotalPrice:  v.Price * int64(item.Quantity),
		}
	}

	if err := s.orders.CreateCheckout(ctx, order); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.Int64("total", order.Total),
		slog.Bool("guest", userID == ""),
	)

	// The order is committed; cleanup and side effects must not fail it.
	if err := s.carts.ClearItems(ctx, cart.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("cart_id", cart.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.carts.ClearPromo(ctx, cart.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart promo after checkout",
			slog.String("cart_id", cart.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.fulfillment.Notify(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to notify fulfillment",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	result.Order = order
	return result, nil
}

func (s *CheckoutService) loadCart(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	var (
		cart *domain.Cart
		err  error
	)

	switch {
	case identity.IsUser():
		cart, err = s.carts.GetByUserID(ctx, identity.UserID)
	case identity.IsGuest():
		cart, err = s.carts.GetByGuestToken(ctx, identity.GuestToken)
	default:
		return nil, apperrors.Unauthorized("no identity")
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// A cart that was never created checks out the same as an empty one.
			return nil, apperrors.InvalidInput("cart is empty")
		}
		return nil, err
	}

	if cart.IsExpired(s.now()) {
		return nil, apperrors.Gone("cart has expired")
	}

	return cart, nil
}

// resolvePromo picks the promo for this checkout: an explicitly supplied code
// wins, otherwise the cart's attached promo is revalidated at checkout time.
// The attached discount is never trusted; it is recomputed here.
func (s *CheckoutService) resolvePromo(ctx context.Context, cart *domain.Cart, code string, subtotal int64, now time.Time) (*domain.Promo, int64, error) {
	if code == "" {
		code = cart.PromoCode
	}
	if code == "" {
		return nil, 0, nil
	}

	promo, err := s.promos.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, 0, apperrors.NotFound("promo code", code)
		}
		return nil, 0, fmt.Errorf("get promo: %w", err)
	}

	if err := validatePromo(promo, subtotal, now); err != nil {
		return nil, 0, err
	}

	return promo, promo.CalculateDiscount(subtotal), nil
}

// createAccount registers a user mid-checkout. An email collision aborts the
// checkout so the customer can log in instead; any other failure degrades to
// a guest checkout.
func (s *CheckoutService) createAccount(ctx context.Context, input CheckoutInput) (*domain.User, string, error) {
	if input.Password == "" {
		return nil, "", apperrors.InvalidInput("password is required to create an account")
	}

	email := strings.ToLower(strings.TrimSpace(input.CustomerInfo.Email))
	if email == "" {
		return nil, "", apperrors.InvalidInput("email is required to create an account")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", apperrors.Conflict("an account with this email already exists, please log in")
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.ErrorContext(ctx, "account lookup failed during checkout, continuing as guest",
			slog.String("error", err.Error()),
		)
		return nil, "", nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.ErrorContext(ctx, "password hash failed during checkout, continuing as guest",
			slog.String("error", err.Error()),
		)
		return nil, "", nil
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         input.CustomerInfo.Name,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, "", apperrors.Conflict("an account with this email already exists, please log in")
		}
		s.logger.ErrorContext(ctx, "account creation failed during checkout, continuing as guest",
			slog.String("error", err.Error()),
		)
		return nil, "", nil
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.ErrorContext(ctx, "token issue failed after checkout registration",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return user, "", nil
	}

	s.logger.InfoContext(ctx, "account created during checkout",
		slog.String("user_id", user.ID),
	)

	return user, token, nil
}

// nextOrderNumber builds ORD + YYMMDD + zero-padded daily sequence. Redis
// hands out the sequence; when it is down the count of today's orders seeds a
// best-effort fallback.
func (s *CheckoutService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.sequencer.Next(ctx, now)
	if err != nil {
		s.logger.WarnContext(ctx, "order sequencer unavailable, falling back to order count",
			slog.String("error", err.Error()),
		)
		count, countErr := s.orders.CountCreatedOn(ctx, now)
		if countErr != nil {
			return "", fmt.Errorf("generate order number: %w", countErr)
		}
		seq = int64(count) + 1
	}

	return fmt.Sprintf("ORD%s%04d", now.Format("060102"), seq), nil
}
