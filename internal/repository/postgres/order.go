package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateCheckout commits a checkout in a single transaction: the order and
// its item snapshots are inserted, each variant's inventory is decremented
// only when sufficient stock remains, and the promo usage count is
// incremented guarded by its limit. Any failed step rolls everything back, so
// inventory can never go negative and a promo can never exceed its limit.
func (r *OrderRepository) CreateCheckout(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkout: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderQuery := `
		INSERT INTO orders (id, order_number, user_id, guest_token, status,
			customer_name, customer_email, customer_phone, customer_address,
			subtotal, discount, total, promo_id, promo_code, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID, o.OrderNumber,
		nullable(o.UserID), nullable(o.GuestToken),
		o.Status,
		o.CustomerInfo.Name, o.CustomerInfo.Email, o.CustomerInfo.Phone, o.CustomerInfo.Address,
		o.Subtotal, o.Discount, o.Total,
		nullable(o.PromoID), nullable(o.PromoCode),
		o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("order number already taken")
		}
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, variant_id, product_name, variant_name, sku,
			unit_price, quantity, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	decrementQuery := `
		UPDATE product_variants
		SET inventory = inventory - $1, updated_at = NOW()
		WHERE id = $2 AND inventory >= $1`

	for _, item := range o.Items {
		if _, err := tx.Exec(ctx, itemQuery,
			item.ID, o.ID, item.VariantID, item.ProductName, item.VariantName, item.SKU,
			item.UnitPrice, item.Quantity, item.TotalPrice,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		ct, err := tx.Exec(ctx, decrementQuery, item.Quantity, item.VariantID)
		if err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.InvalidInput(fmt.Sprintf("insufficient inventory for %s", item.ProductName))
		}
	}

	if o.PromoID != "" {
		usageQuery := `
			UPDATE promos
			SET usage_count = usage_count + 1, updated_at = NOW()
			WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`

		ct, err := tx.Exec(ctx, usageQuery, o.PromoID)
		if err != nil {
			return fmt.Errorf("increment promo usage: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.InvalidInput("promo code usage limit reached")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout: %w", err)
	}

	return nil
}

const orderColumns = `id, order_number, user_id, guest_token, status,
	customer_name, customer_email, customer_phone, customer_address,
	subtotal, discount, total, promo_id, promo_code, notes, created_at, updated_at`

// GetByID retrieves an order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	return r.getOrder(ctx, query, id)
}

// GetByOrderNumber retrieves an order with its items by its human-readable number.
func (r *OrderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_number = $1`, orderColumns)
	return r.getOrder(ctx, query, orderNumber)
}

func (r *OrderRepository) getOrder(ctx context.Context, query string, arg any) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return o, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o          domain.Order
		userID     *string
		guestToken *string
		promoID    *string
		promoCode  *string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &userID, &guestToken, &o.Status,
		&o.CustomerInfo.Name, &o.CustomerInfo.Email, &o.CustomerInfo.Phone, &o.CustomerInfo.Address,
		&o.Subtotal, &o.Discount, &o.Total, &promoID, &promoCode, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.UserID = deref(userID)
	o.GuestToken = deref(guestToken)
	o.PromoID = deref(promoID)
	o.PromoCode = deref(promoCode)

	return &o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, variant_id, product_name, variant_name, sku, unit_price, quantity, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.VariantID, &item.ProductName, &item.VariantName,
			&item.SKU, &item.UnitPrice, &item.Quantity, &item.TotalPrice,
		); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}

	if items == nil {
		items = []domain.OrderItem{}
	}

	return items, nil
}

// List returns orders (without items) matching the given filter with the
// total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders     []domain.Order
		totalCount int
	)

	for rows.Next() {
		var (
			o          domain.Order
			userID     *string
			guestToken *string
			promoID    *string
			promoCode  *string
		)
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &userID, &guestToken, &o.Status,
			&o.CustomerInfo.Name, &o.CustomerInfo.Email, &o.CustomerInfo.Phone, &o.CustomerInfo.Address,
			&o.Subtotal, &o.Discount, &o.Total, &promoID, &promoCode, &o.Notes,
			&o.CreatedAt, &o.UpdatedAt, &totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}

		o.UserID = deref(userID)
		o.GuestToken = deref(guestToken)
		o.PromoID = deref(promoID)
		o.PromoCode = deref(promoCode)

		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if orders == nil {
		orders = []domain.Order{}
	}

	return orders, totalCount, nil
}

// UpdateStatus sets the order's status and optional notes.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID, status, notes string) error {
	query := `
		UPDATE orders
		SET status = $1, notes = $2, updated_at = NOW()
		WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, status, notes, orderID)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", orderID)
	}

	return nil
}

// Summary aggregates revenue and status counts across all orders. Revenue
// excludes cancelled and refunded orders.
func (r *OrderRepository) Summary(ctx context.Context) (*repository.OrderSummary, error) {
	query := `
		SELECT status, count(*), COALESCE(sum(total), 0)
		FROM orders
		GROUP BY status`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query order summary: %w", err)
	}
	defer rows.Close()

	summary := &repository.OrderSummary{StatusCounts: map[string]int{}}
	for rows.Next() {
		var (
			status  string
			count   int
			revenue int64
		)
		if err := rows.Scan(&status, &count, &revenue); err != nil {
			return nil, fmt.Errorf("scan order summary row: %w", err)
		}
		summary.StatusCounts[status] = count
		if status != domain.OrderStatusCancelled && status != domain.OrderStatusRefunded {
			summary.TotalRevenue += revenue
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order summary rows: %w", err)
	}

	return summary, nil
}

// Analytics aggregates order metrics over an optional date range.
func (r *OrderRepository) Analytics(ctx context.Context, start, end *time.Time) (*repository.OrderAnalytics, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if start != nil {
		conditions = append(conditions, fmt.Sprintf("o.created_at >= $%d", argIndex))
		args = append(args, *start)
		argIndex++
	}
	if end != nil {
		conditions = append(conditions, fmt.Sprintf("o.created_at <= $%d", argIndex))
		args = append(args, *end)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	statusQuery := fmt.Sprintf(`
		SELECT o.status, count(*), COALESCE(sum(o.total), 0)
		FROM orders o
		%s
		GROUP BY o.status`, whereClause)

	rows, err := r.db.Query(ctx, statusQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query order analytics: %w", err)
	}
	defer rows.Close()

	a := &repository.OrderAnalytics{StatusCounts: map[string]int{}}
	var revenueOrders int
	for rows.Next() {
		var (
			status  string
			count   int
			revenue int64
		)
		if err := rows.Scan(&status, &count, &revenue); err != nil {
			return nil, fmt.Errorf("scan analytics status row: %w", err)
		}
		a.StatusCounts[status] = count
		a.TotalOrders += count
		if status != domain.OrderStatusCancelled && status != domain.OrderStatusRefunded {
			a.TotalRevenue += revenue
			revenueOrders += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics status rows: %w", err)
	}

	if revenueOrders > 0 {
		a.AverageOrderValue = a.TotalRevenue / int64(revenueOrders)
	}

	topQuery := fmt.Sprintf(`
		SELECT i.product_name, i.variant_name, i.sku,
		       sum(i.quantity)::int AS quantity_sold,
		       COALESCE(sum(i.total_price), 0) AS revenue
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		%s
		GROUP BY i.product_name, i.variant_name, i.sku
		ORDER BY quantity_sold DESC
		LIMIT 10`, whereClause)

	topRows, err := r.db.Query(ctx, topQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query top products: %w", err)
	}
	defer topRows.Close()

	for topRows.Next() {
		var tp repository.TopProduct
		if err := topRows.Scan(&tp.ProductName, &tp.VariantName, &tp.SKU, &tp.QuantitySold, &tp.Revenue); err != nil {
			return nil, fmt.Errorf("scan top product row: %w", err)
		}
		a.TopProducts = append(a.TopProducts, tp)
	}
	if err := topRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top product rows: %w", err)
	}

	if a.TopProducts == nil {
		a.TopProducts = []repository.TopProduct{}
	}

	return a, nil
}

// CountCreatedOn counts orders created on the given day (UTC).
func (r *OrderRepository) CountCreatedOn(ctx context.Context, day time.Time) (int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE created_at >= $1 AND created_at < $2`,
		dayStart, dayEnd,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders for day: %w", err)
	}

	return count, nil
}
