package domain

import "time"

// Order status constants.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// CustomerInfo is the shipping/contact snapshot captured at checkout.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address"`
}

// Order is created exactly once per checkout and is immutable afterwards
// except for Status and Notes. Line items snapshot product and price data so
// historical orders stay accurate when the catalog changes.
type Order struct {
	ID           string       `json:"id"`
	OrderNumber  string       `json:"order_number"`
	UserID       string       `json:"user_id,omitempty"`
	GuestToken   string       `json:"-"`
	Status       string       `json:"status"`
	CustomerInfo CustomerInfo `json:"customer_info"`
	Items        []OrderItem  `json:"items"`
	Subtotal     int64        `json:"subtotal"`
	Discount     int64        `json:"discount"`
	Total        int64        `json:"total"`
	PromoID      string       `json:"promo_id,omitempty"`
	PromoCode    string       `json:"promo_code,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// OrderItem is an immutable line-item snapshot. Prices are in cents.
type OrderItem struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	VariantID   string `json:"variant_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	SKU         string `json:"sku"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	TotalPrice  int64  `json:"total_price"`
}

// ValidOrderStatuses returns the set of valid order statuses.
func ValidOrderStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusRefunded,
	}
}

// IsValidOrderStatus checks whether the given status is a valid order status.
func IsValidOrderStatus(status string) bool {
	for _, s := range ValidOrderStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether the status permits no further
// transitions.
func IsTerminalOrderStatus(status string) bool {
	switch status {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// orderTransitions is the forward-only happy path. Cancelled and refunded are
// handled separately as side exits from any non-terminal state.
var orderTransitions = map[string]string{
	OrderStatusPending:    OrderStatusConfirmed,
	OrderStatusConfirmed:  OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// CanTransitionOrderStatus reports whether an order may move from one status
// to the next: one step forward along the happy path, or a side exit to
// cancelled/refunded from any non-terminal state.
func CanTransitionOrderStatus(from, to string) bool {
	if from == to {
		return false
	}
	if IsTerminalOrderStatus(from) {
		return false
	}
	if to == OrderStatusCancelled || to == OrderStatusRefunded {
		return true
	}
	return orderTransitions[from] == to
}
