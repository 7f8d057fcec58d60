package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pravesh-commerce/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	products RouteRegistrar
	cart     RouteRegistrar
	checkout RouteRegistrar
	orders   RouteRegistrar
	wallet   RouteRegistrar
	reviews  RouteRegistrar
	admin    RouteRegistrar

	checkoutMiddlewares []func(http.Handler) http.Handler

	internal            RouteRegistrar
	internalMiddlewares []func(http.Handler) http.Handler
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and expected route groups.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		mount := func(path string, registrar RouteRegistrar, name string, groupMW []func(http.Handler) http.Handler) {
			api.Route(path, func(group chi.Router) {
				for _, mw := range groupMW {
					if mw != nil {
						group.Use(mw)
					}
				}
				if registrar != nil {
					registrar(group)
					return
				}
				registerNotImplemented(group, name)
			})
		}

		mount("/products", cfg.products, "products", nil)
		mount("/cart", cfg.cart, "cart", nil)
		if cfg.checkout != nil {
			api.Group(func(group chi.Router) {
				for _, mw := range cfg.checkoutMiddlewares {
					if mw != nil {
						group.Use(mw)
					}
				}
				cfg.checkout(group)
			})
		} else {
			registerNotImplementedRoute(api, "/checkout", "checkout")
		}
		mount("/orders", cfg.orders, "orders", nil)
		mount("/wallet", cfg.wallet, "wallet", nil)
		mount("/reviews", cfg.reviews, "reviews", nil)
		mount("/admin", cfg.admin, "admin", nil)
		if cfg.internal != nil {
			mount("/internal", cfg.internal, "internal", cfg.internalMiddlewares)
		}
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithProductRoutes configures the registrar responsible for public catalog endpoints.
func WithProductRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.products = reg
	}
}

// WithCartRoutes configures the registrar responsible for cart endpoints.
func WithCartRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.cart = reg
	}
}

// WithCheckoutRoutes configures the registrar responsible for the checkout endpoint.
func WithCheckoutRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.checkout = reg
	}
}

// WithCheckoutMiddlewares configures middlewares applied to the checkout group,
// such as idempotency replay protection.
func WithCheckoutMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.checkoutMiddlewares = append(cfg.checkoutMiddlewares, mw...)
	}
}

// WithOrderRoutes configures the registrar responsible for order endpoints.
func WithOrderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.orders = reg
	}
}

// WithWalletRoutes configures the registrar responsible for wallet endpoints.
func WithWalletRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.wallet = reg
	}
}

// WithReviewRoutes configures the registrar responsible for review endpoints.
func WithReviewRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.reviews = reg
	}
}

// WithAdminRoutes configures the registrar responsible for admin endpoints.
func WithAdminRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.admin = reg
	}
}

// WithInternalRoutes configures the registrar responsible for the
// service-to-service maintenance endpoints.
func WithInternalRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.internal = reg
	}
}

// WithInternalMiddlewares configures middlewares applied to the internal group,
// such as Google-signed OIDC token validation.
func WithInternalMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.internalMiddlewares = append(cfg.internalMiddlewares, mw...)
	}
}

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}

func registerNotImplementedRoute(r chi.Router, path string, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc(path, handler)
}
