package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CartRepository implements repository.CartRepository using PostgreSQL.
type CartRepository struct {
	db database.DBTX
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(db database.DBTX) *CartRepository {
	return &CartRepository{db: db}
}

// Create inserts a new cart.
func (r *CartRepository) Create(ctx context.Context, c *domain.Cart) error {
	query := `
		INSERT INTO carts (id, user_id, guest_token, promo_id, promo_code, discount, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		c.ID,
		nullable(c.UserID),
		nullable(c.GuestToken),
		nullable(c.PromoID),
		nullable(c.PromoCode),
		c.Discount,
		c.ExpiresAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("cart already exists for this identity")
		}
		return fmt.Errorf("insert cart: %w", err)
	}

	return nil
}

// GetByUserID retrieves the cart owned by the given user.
func (r *CartRepository) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.getCart(ctx, "user_id = $1", userID)
}

// GetByGuestToken retrieves the cart owned by the given guest token.
func (r *CartRepository) GetByGuestToken(ctx context.Context, token string) (*domain.Cart, error) {
	return r.getCart(ctx, "guest_token = $1", token)
}

func (r *CartRepository) getCart(ctx context.Context, where string, arg any) (*domain.Cart, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, guest_token, promo_id, promo_code, discount, expires_at, created_at, updated_at
		FROM carts
		WHERE %s`, where)

	var (
		c          domain.Cart
		userID     *string
		guestToken *string
		promoID    *string
		promoCode  *string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&c.ID, &userID, &guestToken, &promoID, &promoCode, &c.Discount,
		&c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan cart: %w", err)
	}

	c.UserID = deref(userID)
	c.GuestToken = deref(guestToken)
	c.PromoID = deref(promoID)
	c.PromoCode = deref(promoCode)

	items, err := r.loadItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items

	return &c, nil
}

// loadItems fetches cart items joined with the live catalog so unit prices
// and inventory reflect current data, never a stored snapshot.
func (r *CartRepository) loadItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	query := `
		SELECT i.id, i.cart_id, i.variant_id, i.quantity, i.created_at, i.updated_at,
		       p.id, p.name, v.name, v.sku, v.price, v.inventory
		FROM cart_items i
		JOIN product_variants v ON v.id = i.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE i.cart_id = $1
		ORDER BY i.created_at`

	rows, err := r.db.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.VariantID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
			&item.ProductID, &item.ProductName, &item.VariantName, &item.SKU, &item.UnitPrice, &item.Inventory,
		); err != nil {
			return nil, fmt.Errorf("scan cart item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart item rows: %w", err)
	}

	if items == nil {
		items = []domain.CartItem{}
	}

	return items, nil
}

// AddItem inserts a new cart item row.
func (r *CartRepository) AddItem(ctx context.Context, item *domain.CartItem) error {
	query := `
		INSERT INTO cart_items (id, cart_id, variant_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		item.ID, item.CartID, item.VariantID, item.Quantity, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("variant already in cart")
		}
		return fmt.Errorf("insert cart item: %w", err)
	}

	return nil
}

// UpdateItemQuantity sets the quantity on an existing item.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = NOW()
		WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, quantity, itemID)
	if err != nil {
		return fmt.Errorf("update cart item quantity: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cart item", itemID)
	}

	return nil
}

// RemoveItem deletes the item from the cart.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cart item", itemID)
	}

	return nil
}

// ClearItems deletes all items from the cart, keeping the cart row.
func (r *CartRepository) ClearItems(ctx context.Context, cartID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return nil
}

// SetPromo attaches a promo to the cart.
func (r *CartRepository) SetPromo(ctx context.Context, cartID, promoID, promoCode string, discount int64) error {
	query := `
		UPDATE carts
		SET promo_id = $1, promo_code = $2, discount = $3, updated_at = NOW()
		WHERE id = $4`

	ct, err := r.db.Exec(ctx, query, promoID, promoCode, discount, cartID)
	if err != nil {
		return fmt.Errorf("set cart promo: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cart", cartID)
	}

	return nil
}

// ClearPromo detaches any promo from the cart.
func (r *CartRepository) ClearPromo(ctx context.Context, cartID string) error {
	query := `
		UPDATE carts
		SET promo_id = NULL, promo_code = NULL, discount = 0, updated_at = NOW()
		WHERE id = $1`

	ct, err := r.db.Exec(ctx, query, cartID)
	if err != nil {
		return fmt.Errorf("clear cart promo: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cart", cartID)
	}

	return nil
}

// RetargetToUser reassigns a guest cart to a user, dropping the guest token.
func (r *CartRepository) RetargetToUser(ctx context.Context, cartID, userID string) error {
	query := `
		UPDATE carts
		SET user_id = $1, guest_token = NULL, updated_at = NOW()
		WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, userID, cartID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("user already has a cart")
		}
		return fmt.Errorf("retarget cart: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cart", cartID)
	}

	return nil
}

// Delete removes the cart; items cascade at the schema level.
func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("cart", cartID)
	}

	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
