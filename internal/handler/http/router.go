package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Catalog  *service.CatalogService
	Carts    *service.CartService
	Promos   *service.PromoService
	Checkout *service.CheckoutService
	Orders   *service.OrderService
	Users    *service.UserService
	JWT      *auth.JWTManager
	Health   *health.Handler
	Logger   *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authn := NewAuthenticator(deps.JWT)

	productHandler := NewProductHandler(deps.Catalog, deps.Logger)
	cartHandler := NewCartHandler(deps.Carts, deps.Logger)
	promoHandler := NewPromoHandler(deps.Promos, deps.Logger)
	orderHandler := NewOrderHandler(deps.Checkout, deps.Orders, deps.Logger)
	authHandler := NewAuthHandler(deps.Users, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(authn.Resolve)

		// Catalog: public reads, admin writes.
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{idOrSlug}", productHandler.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/", productHandler.CreateProduct)
				r.Put("/{id}", productHandler.UpdateProduct)
				r.Put("/{id}/variants/{variantID}", productHandler.UpdateVariant)
				r.Delete("/{id}", productHandler.DeleteProduct)
			})
		})

		// Cart: guests and users alike; anonymous callers get a token minted.
		r.Route("/cart", func(r chi.Router) {
			r.Use(EnsureGuestToken)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{itemID}", cartHandler.UpdateItem)
			r.Delete("/items/{itemID}", cartHandler.RemoveItem)
			r.Post("/promo", cartHandler.ApplyPromo)
			r.Delete("/promo", cartHandler.RemovePromo)
		})

		// Promos: public listing and dry-run validation, admin management.
		r.Route("/promos", func(r chi.Router) {
			r.Get("/", promoHandler.ListPromos)
			r.Post("/validate", promoHandler.ValidatePromo)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/{id}", promoHandler.GetPromo)
				r.Post("/", promoHandler.CreatePromo)
				r.Put("/{id}", promoHandler.UpdatePromo)
				r.Delete("/{id}", promoHandler.DeletePromo)
			})
		})

		// Orders: owners, guests holding the order's token, and admins.
		r.Route("/orders", func(r chi.Router) {
			r.With(EnsureGuestToken).Post("/", orderHandler.Checkout)
			r.With(RequireUser).Get("/", orderHandler.ListOrders)
			r.Get("/number/{orderNumber}", orderHandler.GetOrderByNumber)
			r.Get("/{id}", orderHandler.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/analytics", orderHandler.Analytics)
				r.Put("/{id}/status", orderHandler.UpdateOrderStatus)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(RequireUser).Get("/me", authHandler.Me)
		})
	})

	return r
}
