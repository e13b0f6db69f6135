package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// Kafka topic constants for storefront domain events.
const (
	TopicOrderCreated       = "storefront.order.created"
	TopicOrderStatusChanged = "storefront.order.status_changed"
	TopicCartMerged         = "storefront.cart.merged"
)

// Aggregate type constants.
const (
	AggregateTypeOrder = "order"
	AggregateTypeCart  = "cart"
)

// Source identifier for events originating from this service.
const SourceStorefront = "storefront"

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id,omitempty"`
	Subtotal    int64           `json:"subtotal"`
	Discount    int64           `json:"discount"`
	Total       int64           `json:"total"`
	PromoCode   string          `json:"promo_code,omitempty"`
	Items       []OrderItemData `json:"items"`
}

// OrderItemData is the line-item payload within order events.
type OrderItemData struct {
	VariantID   string `json:"variant_id"`
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
}

// CartMergedData is the payload for a cart.merged event.
type CartMergedData struct {
	UserID    string `json:"user_id"`
	CartID    string `json:"cart_id"`
	ItemCount int    `json:"item_count"`
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		}
	}

	data := OrderCreatedData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Subtotal:    order.Subtotal,
		Discount:    order.Discount,
		Total:       order.Total,
		PromoCode:   order.PromoCode,
		Items:       items,
	}

	evt, err := pkgkafka.NewEvent(TopicOrderCreated, order.ID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCreated, evt); err != nil {
		return fmt.Errorf("publish order.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
	)

	return nil
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, fromStatus string) error {
	data := OrderStatusChangedData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FromStatus:  fromStatus,
		ToStatus:    order.Status,
	}

	evt, err := pkgkafka.NewEvent(TopicOrderStatusChanged, order.ID, AggregateTypeOrder, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create order.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderStatusChanged, evt); err != nil {
		return fmt.Errorf("publish order.status_changed event: %w", err)
	}

	return nil
}

// PublishCartMerged publishes a cart.merged event.
func (p *Producer) PublishCartMerged(ctx context.Context, userID string, cart *domain.Cart) error {
	data := CartMergedData{
		UserID:    userID,
		CartID:    cart.ID,
		ItemCount: cart.ItemCount(),
	}

	evt, err := pkgkafka.NewEvent(TopicCartMerged, cart.ID, AggregateTypeCart, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create cart.merged event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartMerged, evt); err != nil {
		return fmt.Errorf("publish cart.merged event: %w", err)
	}

	return nil
}
