package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/pravesh-commerce/api/internal/platform/cache"
	pfirestore "github.com/pravesh-commerce/api/internal/platform/firestore"
	"github.com/pravesh-commerce/api/internal/repositories"
)

// Registry is the Firestore-backed implementation of repositories.Registry.
type Registry struct {
	provider *pfirestore.Provider

	orders      *OrderRepository
	wallets     *WalletRepository
	products    *ProductRepository
	carts       *CartRepository
	reviews     *ReviewRepository
	counters    *CounterRepository
	fulfillment *FulfillmentRepository
	health      repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryOption customises registry construction.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	extraChecks []repositories.DependencyCheck
}

// WithHealthChecks adds dependency probes beyond the built-in Firestore check,
// typically the Redis cache ping supplied by the caller.
func WithHealthChecks(checks ...repositories.DependencyCheck) RegistryOption {
	return func(o *registryOptions) {
		o.extraChecks = append(o.extraChecks, checks...)
	}
}

// NewRegistry wires every Firestore repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	var options registryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	wallets, err := NewWalletRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build wallet repository: %w", err)
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build product repository: %w", err)
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build cart repository: %w", err)
	}
	reviews, err := NewReviewRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build review repository: %w", err)
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build counter repository: %w", err)
	}
	fulfillment, err := NewFulfillmentRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build fulfillment repository: %w", err)
	}

	checks := append([]repositories.DependencyCheck{{
		Name:  "firestore",
		Check: firestoreCheck(provider),
	}}, options.extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}

	return &Registry{
		provider:    provider,
		orders:      orders,
		wallets:     wallets,
		products:    products,
		carts:       carts,
		reviews:     reviews,
		counters:    counters,
		fulfillment: fulfillment,
		health:      health,
	}, nil
}

func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository             { return r.orders }
func (r *Registry) Wallets() repositories.WalletRepository           { return r.wallets }
func (r *Registry) Products() repositories.ProductRepository         { return r.products }
func (r *Registry) Carts() repositories.CartRepository               { return r.carts }
func (r *Registry) Reviews() repositories.ReviewRepository           { return r.reviews }
func (r *Registry) Counters() repositories.CounterRepository         { return r.counters }
func (r *Registry) Fulfillment() repositories.FulfillmentRepository  { return r.fulfillment }
func (r *Registry) Health() repositories.HealthRepository            { return r.health }

// RunInTx executes fn inside one Firestore transaction with the provider's
// retry and timeout handling.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

// firestoreCheck issues a cheap single-document read to verify connectivity.
func firestoreCheck(provider *pfirestore.Provider) func(context.Context) error {
	return func(ctx context.Context) error {
		client, err := provider.Client(ctx)
		if err != nil {
			return err
		}
		_, err = client.Collection(countersCollection).Limit(1).Documents(ctx).GetAll()
		return err
	}
}

// CacheCheck adapts a cache client into a dependency probe. A cache miss on
// the probe key still proves the round trip and is treated as healthy.
func CacheCheck(client cache.Client) repositories.DependencyCheck {
	return repositories.DependencyCheck{
		Name: "redis",
		Check: func(ctx context.Context) error {
			_, err := client.Get(ctx, "health:probe")
			if errors.Is(err, cache.ErrCacheMiss) {
				return nil
			}
			return err
		},
	}
}
