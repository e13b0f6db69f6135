package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httputil"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// =============================================================================
// Mock repositories
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetVariant(ctx context.Context, variantID string) (*repository.VariantDetail, error) {
	args := m.Called(ctx, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.VariantDetail), args.Error(1)
}

func (m *mockProductRepo) GetVariants(ctx context.Context, variantIDs []string) ([]repository.VariantDetail, error) {
	args := m.Called(ctx, variantIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.VariantDetail), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepo) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepo) UpdateVariant(ctx context.Context, variant *domain.Variant) error {
	args := m.Called(ctx, variant)
	return args.Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) Create(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepo) GetByUserID(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepo) GetByGuestToken(ctx context.Context, token string) (*domain.Cart, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepo) AddItem(ctx context.Context, item *domain.CartItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockCartRepo) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	args := m.Called(ctx, itemID, quantity)
	return args.Error(0)
}

func (m *mockCartRepo) RemoveItem(ctx context.Context, cartID, itemID string) error {
	args := m.Called(ctx, cartID, itemID)
	return args.Error(0)
}

func (m *mockCartRepo) ClearItems(ctx context.Context, cartID string) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

func (m *mockCartRepo) SetPromo(ctx context.Context, cartID, promoID, promoCode string, discount int64) error {
	args := m.Called(ctx, cartID, promoID, promoCode, discount)
	return args.Error(0)
}

func (m *mockCartRepo) ClearPromo(ctx context.Context, cartID string) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

func (m *mockCartRepo) RetargetToUser(ctx context.Context, cartID, userID string) error {
	args := m.Called(ctx, cartID, userID)
	return args.Error(0)
}

func (m *mockCartRepo) Delete(ctx context.Context, cartID string) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type mockPromoRepo struct {
	mock.Mock
}

func (m *mockPromoRepo) Create(ctx context.Context, promo *domain.Promo) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *mockPromoRepo) GetByID(ctx context.Context, id string) (*domain.Promo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Promo), args.Error(1)
}

func (m *mockPromoRepo) GetByCode(ctx context.Context, code string) (*domain.Promo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Promo), args.Error(1)
}

func (m *mockPromoRepo) List(ctx context.Context, filter repository.PromoFilter) ([]domain.Promo, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Promo), args.Int(1), args.Error(2)
}

func (m *mockPromoRepo) Update(ctx context.Context, promo *domain.Promo) error {
	args := m.Called(ctx, promo)
	return args.Error(0)
}

func (m *mockPromoRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CreateCheckout(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, orderID, status, notes string) error {
	args := m.Called(ctx, orderID, status, notes)
	return args.Error(0)
}

func (m *mockOrderRepo) Summary(ctx context.Context) (*repository.OrderSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.OrderSummary), args.Error(1)
}

func (m *mockOrderRepo) Analytics(ctx context.Context, start, end *time.Time) (*repository.OrderAnalytics, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.OrderAnalytics), args.Error(1)
}

func (m *mockOrderRepo) CountCreatedOn(ctx context.Context, day time.Time) (int, error) {
	args := m.Called(ctx, day)
	return args.Int(0), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockSequencer struct {
	mock.Mock
}

func (m *mockSequencer) Next(ctx context.Context, day time.Time) (int64, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Test fixture
// =============================================================================

type fixture struct {
	products  *mockProductRepo
	carts     *mockCartRepo
	promos    *mockPromoRepo
	orders    *mockOrderRepo
	users     *mockUserRepo
	sequencer *mockSequencer
	jwt       *auth.JWTManager
	router    http.Handler
}

func handlerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture() *fixture {
	f := &fixture{
		products:  new(mockProductRepo),
		carts:     new(mockCartRepo),
		promos:    new(mockPromoRepo),
		orders:    new(mockOrderRepo),
		users:     new(mockUserRepo),
		sequencer: new(mockSequencer),
		jwt:       auth.NewJWTManager("test-secret", time.Hour),
	}

	logger := handlerTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	producer := event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)

	catalog := service.NewCatalogService(f.products, logger)
	carts := service.NewCartService(f.carts, f.products, f.promos, producer, logger)
	promos := service.NewPromoService(f.promos, logger)
	fulfillment := service.NewFulfillmentNotifier(nil, "", logger)
	checkout := service.NewCheckoutService(f.carts, carts, f.products, f.orders, f.promos, f.users, f.sequencer, f.jwt, producer, fulfillment, logger)
	orders := service.NewOrderService(f.orders, producer, logger)
	users := service.NewUserService(f.users, carts, f.jwt, logger)

	f.router = NewRouter(RouterDeps{
		Catalog:  catalog,
		Carts:    carts,
		Promos:   promos,
		Checkout: checkout,
		Orders:   orders,
		Users:    users,
		JWT:      f.jwt,
		Health:   health.NewHandler(),
		Logger:   logger,
	})

	return f
}

func (f *fixture) userToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := f.jwt.GenerateToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}
