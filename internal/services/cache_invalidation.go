package services

import (
	"context"
	"time"

	"github.com/pravesh-commerce/api/internal/platform/cache"
)

// CacheInvalidator is the slice of the cache client the services need for
// post-commit invalidation. Satisfied by cache.Client implementations.
type CacheInvalidator interface {
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheStore adds the read side used by cache-aside lookups.
type CacheStore interface {
	CacheInvalidator
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// invalidateOrderCaches drops every cached view an order mutation can stale:
// the order itself, the user's and the global listings, and the dashboard
// aggregate. Failures are logged and never surfaced; the caches self-heal at
// TTL expiry.
func invalidateOrderCaches(ctx context.Context, inv CacheInvalidator, logger func(context.Context, string, map[string]any), userID, orderID string) {
	if inv == nil {
		return
	}
	if err := inv.Delete(ctx, cache.OrderKey(orderID), cache.DashboardSummaryKey()); err != nil {
		logger(ctx, "cache.invalidate.failed", map[string]any{"orderId": orderID, "error": err.Error()})
	}
	if err := inv.DeleteByPattern(ctx, cache.UserOrdersPattern(userID)); err != nil {
		logger(ctx, "cache.invalidate.failed", map[string]any{"userId": userID, "error": err.Error()})
	}
	if err := inv.DeleteByPattern(ctx, cache.AllOrdersPattern()); err != nil {
		logger(ctx, "cache.invalidate.failed", map[string]any{"scope": "orders:all", "error": err.Error()})
	}
}

// invalidateProductCaches drops the cached product listings after sales
// counters move or catalog entries change.
func invalidateProductCaches(ctx context.Context, inv CacheInvalidator, logger func(context.Context, string, map[string]any), slugs ...string) {
	if inv == nil {
		return
	}
	keys := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if slug != "" {
			keys = append(keys, cache.ProductKey(slug))
		}
	}
	if len(keys) > 0 {
		if err := inv.Delete(ctx, keys...); err != nil {
			logger(ctx, "cache.invalidate.failed", map[string]any{"scope": "products", "error": err.Error()})
		}
	}
	if err := inv.DeleteByPattern(ctx, cache.ProductListPattern()); err != nil {
		logger(ctx, "cache.invalidate.failed", map[string]any{"scope": "products:list", "error": err.Error()})
	}
}
