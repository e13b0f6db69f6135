package repository

import (
	"context"
	"time"

	"github.com/utafrali/storefront/internal/domain"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Status   *string
	Category *string
	Page     int
	PerPage  int
}

// VariantDetail is a variant joined with the product fields the cart and
// checkout flows need for availability checks and snapshots.
type VariantDetail struct {
	domain.Variant
	ProductName   string
	ProductStatus string
}

// ProductRepository defines the interface for catalog persistence operations.
type ProductRepository interface {
	// Create inserts a product together with its variants.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product with its variants by id.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetBySlug retrieves a product with its variants by slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)

	// GetVariant retrieves a single variant joined with its product's name
	// and status.
	GetVariant(ctx context.Context, variantID string) (*VariantDetail, error)

	// GetVariants retrieves the given variants with product details. Missing
	// ids are simply absent from the result.
	GetVariants(ctx context.Context, variantIDs []string) ([]VariantDetail, error)

	// List returns products matching the filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// Update modifies product-level fields (not variants).
	Update(ctx context.Context, product *domain.Product) error

	// UpdateVariant modifies a single variant.
	UpdateVariant(ctx context.Context, variant *domain.Variant) error

	// Delete removes a product and its variants.
	Delete(ctx context.Context, id string) error
}

// CartRepository defines the interface for cart persistence operations.
// Reads return carts with items enriched from the live catalog (product name,
// unit price, inventory); totals are never stored.
type CartRepository interface {
	// Create inserts a new cart.
	Create(ctx context.Context, cart *domain.Cart) error

	// GetByUserID retrieves the cart owned by the given user, or ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*domain.Cart, error)

	// GetByGuestToken retrieves the cart owned by the given guest token, or
	// ErrNotFound.
	GetByGuestToken(ctx context.Context, token string) (*domain.Cart, error)

	// AddItem inserts a new cart item row.
	AddItem(ctx context.Context, item *domain.CartItem) error

	// UpdateItemQuantity sets the quantity on an existing item.
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error

	// RemoveItem deletes the item from the cart; ErrNotFound if absent.
	RemoveItem(ctx context.Context, cartID, itemID string) error

	// ClearItems deletes all items from the cart, keeping the cart row.
	ClearItems(ctx context.Context, cartID string) error

	// SetPromo attaches a promo to the cart.
	SetPromo(ctx context.Context, cartID, promoID, promoCode string, discount int64) error

	// ClearPromo detaches any promo from the cart.
	ClearPromo(ctx context.Context, cartID string) error

	// RetargetToUser reassigns a guest cart to a user, dropping the guest
	// token.
	RetargetToUser(ctx context.Context, cartID, userID string) error

	// Delete removes the cart and its items.
	Delete(ctx context.Context, cartID string) error
}

// PromoFilter defines filter criteria for listing promo codes.
type PromoFilter struct {
	Status   *string
	ValidNow bool
	Page     int
	PerPage  int
}

// PromoRepository defines the interface for promo code persistence operations.
type PromoRepository interface {
	// Create inserts a new promo code.
	Create(ctx context.Context, promo *domain.Promo) error

	// GetByID retrieves a promo by id.
	GetByID(ctx context.Context, id string) (*domain.Promo, error)

	// GetByCode retrieves a promo by its code.
	GetByCode(ctx context.Context, code string) (*domain.Promo, error)

	// List returns promos matching the filter along with the total count.
	List(ctx context.Context, filter PromoFilter) ([]domain.Promo, int, error)

	// Update modifies an existing promo.
	Update(ctx context.Context, promo *domain.Promo) error

	// Delete removes a promo.
	Delete(ctx context.Context, id string) error
}

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID  *string
	Status  *string
	Page    int
	PerPage int
}

// OrderSummary is the admin-facing aggregate attached to order listings.
type OrderSummary struct {
	TotalRevenue int64          `json:"total_revenue"`
	StatusCounts map[string]int `json:"status_counts"`
}

// TopProduct is one entry of the top-sellers analytics breakdown.
type TopProduct struct {
	ProductName  string `json:"product_name"`
	VariantName  string `json:"variant_name"`
	SKU          string `json:"sku"`
	QuantitySold int    `json:"quantity_sold"`
	Revenue      int64  `json:"revenue"`
}

// OrderAnalytics aggregates order totals over an optional date range.
// Revenue excludes cancelled and refunded orders.
type OrderAnalytics struct {
	TotalOrders       int            `json:"total_orders"`
	TotalRevenue      int64          `json:"total_revenue"`
	AverageOrderValue int64          `json:"average_order_value"`
	StatusCounts      map[string]int `json:"status_counts"`
	TopProducts       []TopProduct   `json:"top_products"`
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// CreateCheckout commits a checkout in a single transaction: inserts the
	// order and its item snapshots, conditionally decrements each variant's
	// inventory (failing when stock is insufficient), and increments the
	// promo's usage count guarded by its usage limit. Either everything
	// applies or nothing does.
	CreateCheckout(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByOrderNumber retrieves an order with its items by its human-readable
	// number.
	GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)

	// List returns orders (without items) matching the filter along with the
	// total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus sets the order's status and optional notes.
	UpdateStatus(ctx context.Context, orderID, status, notes string) error

	// Summary aggregates revenue and status counts across all orders.
	Summary(ctx context.Context) (*OrderSummary, error)

	// Analytics aggregates order metrics over an optional date range.
	Analytics(ctx context.Context, start, end *time.Time) (*OrderAnalytics, error)

	// CountCreatedOn counts orders created on the given day. Fallback source
	// for the daily order-number sequence when Redis is unavailable.
	CountCreatedOn(ctx context.Context, day time.Time) (int, error)
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// OrderSequencer hands out the per-day sequence used in order numbers.
type OrderSequencer interface {
	// Next returns the next sequence value for the given day, starting at 1.
	Next(ctx context.Context, day time.Time) (int64, error)
}
