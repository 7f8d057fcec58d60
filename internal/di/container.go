package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pravesh-commerce/api/internal/platform/config"
	"github.com/pravesh-commerce/api/internal/repositories"
	"github.com/pravesh-commerce/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Checkout services.CheckoutService
	Orders   services.OrderService
	Wallets  services.WalletService
	Catalog  services.CatalogService
	Carts    services.CartService
	Reviews  services.ReviewService
	Counters services.CounterService
	System   services.SystemService
}

// Dependencies carries the infrastructure collaborators the container wires
// into services. Registry is mandatory; the rest degrade gracefully when nil.
type Dependencies struct {
	Registry repositories.Registry
	Cache    services.CacheStore
	Events   services.OrderEventPublisher
	Build    services.BuildInfo
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the Firestore registry and Redis cache, while tests can supply in-memory
// implementations.
func NewContainer(ctx context.Context, cfg config.Config, deps Dependencies) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services
	reg := deps.Registry

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: reg.Counters(),
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build counter service: %w", err)
	}
	svc.Counters = counterSvc

	walletSvc, err := services.NewWalletService(services.WalletServiceDeps{
		Wallets: reg.Wallets(),
		Clock:   clock,
		Logger:  serviceLogger(deps.Logger, "wallet"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build wallet service: %w", err)
	}
	svc.Wallets = walletSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: reg.Products(),
		Counters: counterSvc,
		Cache:    deps.Cache,
		TTL:      services.CatalogCacheTTL{Medium: cfg.Cache.MediumTTL},
		Clock:    clock,
		Logger:   serviceLogger(deps.Logger, "catalog"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Clock:    clock,
		Logger:   serviceLogger(deps.Logger, "cart"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Carts = cartSvc

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Fulfillment: reg.Fulfillment(),
		Counters:    counterSvc,
		Cache:       deps.Cache,
		Events:      deps.Events,
		Clock:       clock,
		Logger:      serviceLogger(deps.Logger, "checkout"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Fulfillment: reg.Fulfillment(),
		Counters:    counterSvc,
		Cache:       deps.Cache,
		TTL: services.OrderCacheTTL{
			Short:     cfg.Cache.ShortTTL,
			ExtraLong: cfg.Cache.ExtraLongTTL,
		},
		Events: deps.Events,
		Clock:  clock,
		Logger: serviceLogger(deps.Logger, "orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	reviewSvc, err := services.NewReviewService(services.ReviewServiceDeps{
		Reviews: reg.Reviews(),
		Orders:  reg.Orders(),
		Cache:   deps.Cache,
		Clock:   clock,
		Logger:  serviceLogger(deps.Logger, "reviews"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}
	svc.Reviews = reviewSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            clock,
		Build:            deps.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// serviceLogger adapts the shared zap logger to the map-based logging hook the
// service layer accepts, so services stay free of a zap dependency.
func serviceLogger(logger *zap.Logger, name string) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		return nil
	}
	named := logger.Named(name)
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		named.Debug("service event", zFields...)
	}
}
