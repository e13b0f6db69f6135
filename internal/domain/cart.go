package domain

import "time"

// CartTTL is how long a cart lives before it expires.
const CartTTL = 30 * 24 * time.Hour

// Cart is owned by exactly one identity: UserID for registered users,
// GuestToken for guests. Subtotal is never persisted; it is recomputed from
// live variant prices on every read.
type Cart struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id,omitempty"`
	GuestToken string     `json:"guest_token,omitempty"`
	Items      []CartItem `json:"items"`
	PromoID    string     `json:"promo_id,omitempty"`
	PromoCode  string     `json:"promo_code,omitempty"`
	Discount   int64      `json:"discount"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CartItem references a variant by id plus a quantity. The product, name,
// price, and inventory fields are read-side enrichment joined from the live
// catalog; only CartID, VariantID, and Quantity are persisted on the item.
type CartItem struct {
	ID          string    `json:"id"`
	CartID      string    `json:"cart_id"`
	VariantID   string    `json:"variant_id"`
	Quantity    int       `json:"quantity"`
	ProductID   string    `json:"product_id,omitempty"`
	ProductName string    `json:"product_name,omitempty"`
	VariantName string    `json:"variant_name,omitempty"`
	SKU         string    `json:"sku,omitempty"`
	UnitPrice   int64     `json:"unit_price"`
	Inventory   int       `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Subtotal returns the sum of unit price times quantity across items, in cents.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// ItemCount returns the total quantity across all items.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Total returns the subtotal minus the attached discount, floored at zero.
func (c *Cart) Total() int64 {
	total := c.Subtotal() - c.Discount
	if total < 0 {
		return 0
	}
	return total
}

// IsExpired reports whether the cart has passed its expiry.
func (c *Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// FindItemByVariant returns the index of the item holding the given variant,
// or -1.
func (c *Cart) FindItemByVariant(variantID string) int {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// FindItem returns the index of the item with the given id, or -1.
func (c *Cart) FindItem(itemID string) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}
