// Package cache provides the read-model cache used in front of Firestore.
// Values are JSON blobs keyed by a small, fixed key scheme; invalidation is
// delete-based and best effort.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss indicates the requested key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Client abstracts the cache backend. Implementations must be safe for
// concurrent use.
type Client interface {
	// Get retrieves the value stored at key. Returns ErrCacheMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value at key with the provided TTL. A zero TTL stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPattern removes all keys matching a glob-style pattern,
	// e.g. "orders:user:abc:*".
	DeleteByPattern(ctx context.Context, pattern string) error
	// Close releases the underlying connection.
	Close() error
}

// Key builders. Keeping them in one place prevents writer/invalidator drift.

// OrderKey caches a single order document.
func OrderKey(orderID string) string {
	return "order:" + orderID
}

// UserOrdersKey caches one page of a user's order list.
func UserOrdersKey(userID, pageToken string) string {
	return fmt.Sprintf("orders:user:%s:%s", userID, pageToken)
}

// UserOrdersPattern matches every cached page for a user.
func UserOrdersPattern(userID string) string {
	return fmt.Sprintf("orders:user:%s:*", userID)
}

// AllOrdersKey caches one page of the admin order list.
func AllOrdersKey(pageToken string) string {
	return "orders:all:" + pageToken
}

// AllOrdersPattern matches every cached admin order page.
func AllOrdersPattern() string {
	return "orders:all:*"
}

// DashboardSummaryKey caches the admin dashboard aggregates.
func DashboardSummaryKey() string {
	return "dashboard:summary"
}

// ProductKey caches a single product by slug.
func ProductKey(slug string) string {
	return "product:" + slug
}

// ProductListKey caches one page of the catalog listing.
func ProductListKey(pageToken string) string {
	return "products:list:" + pageToken
}

// ProductListPattern matches every cached catalog page.
func ProductListPattern() string {
	return "products:list:*"
}

// WalletKey caches a user's wallet snapshot.
func WalletKey(userID string) string {
	return "wallet:" + userID
}
