package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// FulfillmentNotifier posts new orders to an external fulfillment webhook.
// The call sits behind a circuit breaker so a flapping fulfillment system
// cannot slow checkouts down.
type FulfillmentNotifier struct {
	client *httpclient.CircuitBreakerClient
	url    string
	logger *slog.Logger
}

// NewFulfillmentNotifier creates a fulfillment notifier. An empty URL disables
// notification entirely.
func NewFulfillmentNotifier(client *httpclient.CircuitBreakerClient, url string, logger *slog.Logger) *FulfillmentNotifier {
	return &FulfillmentNotifier{
		client: client,
		url:    url,
		logger: logger,
	}
}

// Notify posts the order to the fulfillment webhook.
func (n *FulfillmentNotifier) Notify(ctx context.Context, order *domain.Order) error {
	if n.url == "" {
		return nil
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order for fulfillment: %w", err)
	}

	resp, err := n.client.Post(ctx, n.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify fulfillment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("fulfillment webhook returned status %d", resp.StatusCode)
	}

	n.logger.DebugContext(ctx, "fulfillment notified",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
	)

	return nil
}
