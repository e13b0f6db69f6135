package postgres

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func setupOrderRepo(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewOrderRepository(mock), mock
}

func sampleOrder() *domain.Order {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:          "order-001",
		OrderNumber: "ORD2601010001",
		UserID:      "user-001",
		Status:      domain.OrderStatusPending,
		CustomerInfo: domain.CustomerInfo{
			Name:    "Ada Lovelace",
			Email:   "ada@example.com",
			Phone:   "+15550100",
			Address: "1 Analytical Way",
		},
		Items: []domain.OrderItem{
			{
				ID:          "oi-001",
				OrderID:     "order-001",
				VariantID:   "var-001",
				ProductName: "Classic Tee",
				VariantName: "Medium / Black",
				SKU:         "TEE-M-BLK",
				UnitPrice:   1999,
				Quantity:    2,
				TotalPrice:  3998,
			},
		},
		Subtotal:  3998,
		Discount:  0,
		Total:     3998,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func expectOrderInsert(mock pgxmock.PgxPoolIface, o *domain.Order) {
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(
			o.ID, o.OrderNumber, nullable(o.UserID), nullable(o.GuestToken),
			o.Status,
			o.CustomerInfo.Name, o.CustomerInfo.Email, o.CustomerInfo.Phone, o.CustomerInfo.Address,
			o.Subtotal, o.Discount, o.Total,
			nullable(o.PromoID), nullable(o.PromoCode),
			o.Notes, o.CreatedAt, o.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestOrderRepository_CreateCheckout_Success(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	o := sampleOrder()
	item := o.Items[0]

	mock.ExpectBegin()
	expectOrderInsert(mock, o)
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(
			item.ID, o.ID, item.VariantID, item.ProductName, item.VariantName, item.SKU,
			item.UnitPrice, item.Quantity, item.TotalPrice,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE product_variants").
		WithArgs(item.Quantity, item.VariantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.CreateCheckout(context.Background(), o)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateCheckout_InsufficientInventoryRollsBack(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	o := sampleOrder()
	item := o.Items[0]

	mock.ExpectBegin()
	expectOrderInsert(mock, o)
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(
			item.ID, o.ID, item.VariantID, item.ProductName, item.VariantName, item.SKU,
			item.UnitPrice, item.Quantity, item.TotalPrice,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Conditional decrement matches no row when stock is short.
	mock.ExpectExec("UPDATE product_variants").
		WithArgs(item.Quantity, item.VariantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.CreateCheckout(context.Background(), o)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Classic Tee")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateCheckout_PromoUsageGuarded(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	o := sampleOrder()
	o.PromoID = "promo-001"
	o.PromoCode = "WELCOME10"
	o.Discount = 400
	o.Total = 3598
	item := o.Items[0]

	mock.ExpectBegin()
	expectOrderInsert(mock, o)
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs(
			item.ID, o.ID, item.VariantID, item.ProductName, item.VariantName, item.SKU,
			item.UnitPrice, item.Quantity, item.TotalPrice,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE product_variants").
		WithArgs(item.Quantity, item.VariantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	// Usage limit already reached: guard matches no row, tx rolls back.
	mock.ExpectExec("UPDATE promos").
		WithArgs(o.PromoID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.CreateCheckout(context.Background(), o)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "usage limit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_Success(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusConfirmed, "payment received", "order-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateStatus(context.Background(), "order-001", domain.OrderStatusConfirmed, "payment received")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE orders").
		WithArgs(domain.OrderStatusConfirmed, "", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.OrderStatusConfirmed, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Summary_ExcludesCancelledRevenue(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"status", "count", "sum"}).
		AddRow(domain.OrderStatusPending, 3, int64(9000)).
		AddRow(domain.OrderStatusDelivered, 5, int64(25000)).
		AddRow(domain.OrderStatusCancelled, 2, int64(7000))

	mock.ExpectQuery("SELECT status, count").WillReturnRows(rows)

	summary, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(34000), summary.TotalRevenue)
	assert.Equal(t, 3, summary.StatusCounts[domain.OrderStatusPending])
	assert.Equal(t, 2, summary.StatusCounts[domain.OrderStatusCancelled])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Analytics(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	statusRows := pgxmock.NewRows([]string{"status", "count", "sum"}).
		AddRow(domain.OrderStatusDelivered, 4, int64(40000)).
		AddRow(domain.OrderStatusRefunded, 1, int64(5000))

	topRows := pgxmock.NewRows([]string{"product_name", "variant_name", "sku", "quantity_sold", "revenue"}).
		AddRow("Classic Tee", "Medium / Black", "TEE-M-BLK", 12, int64(23988))

	mock.ExpectQuery("SELECT o.status, count").WillReturnRows(statusRows)
	mock.ExpectQuery("SELECT i.product_name").WillReturnRows(topRows)

	a, err := repo.Analytics(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, a.TotalOrders)
	assert.Equal(t, int64(40000), a.TotalRevenue)
	assert.Equal(t, int64(10000), a.AverageOrderValue)
	require.Len(t, a.TopProducts, 1)
	assert.Equal(t, "Classic Tee", a.TopProducts[0].ProductName)
	assert.Equal(t, 12, a.TopProducts[0].QuantitySold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_List_SelfScoped(t *testing.T) {
	repo, mock := setupOrderRepo(t)
	defer mock.Close()

	o := sampleOrder()
	userID := o.UserID

	rows := pgxmock.NewRows([]string{
		"id", "order_number", "user_id", "guest_token", "status",
		"customer_name", "customer_email", "customer_phone", "customer_address",
		"subtotal", "discount", "total", "promo_id", "promo_code", "notes",
		"created_at", "updated_at", "total_count",
	}).AddRow(
		o.ID, o.OrderNumber, &o.UserID, nil, o.Status,
		o.CustomerInfo.Name, o.CustomerInfo.Email, o.CustomerInfo.Phone, o.CustomerInfo.Address,
		o.Subtotal, o.Discount, o.Total, nil, nil, o.Notes,
		o.CreatedAt, o.UpdatedAt, 1,
	)

	mock.ExpectQuery("SELECT .+ FROM orders").
		WithArgs(userID, 20, 0).
		WillReturnRows(rows)

	orders, total, err := repo.List(context.Background(), repository.OrderFilter{UserID: &userID, Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, o.OrderNumber, orders[0].OrderNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}
