package repositories

import (
	"context"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Wallets() WalletRepository
	Products() ProductRepository
	Carts() CartRepository
	Reviews() ReviewRepository
	Counters() CounterRepository
	Fulfillment() FulfillmentRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	// Update writes the order and increments its version. The stored version
	// must match order.Version or a conflict error is returned.
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// DashboardSummary aggregates counts and revenue across all orders.
	DashboardSummary(ctx context.Context, now time.Time) (domain.DashboardSummary, error)
}

// OrderListFilter narrows order listings for user and admin queries.
type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// WalletRepository stores per-user wallets with their embedded ledger.
// Balance mutations apply the delta and append the ledger entry in the same
// document write so balance == sum(transactions) always holds.
type WalletRepository interface {
	Create(ctx context.Context, wallet domain.Wallet) error
	FindByUser(ctx context.Context, userID string) (domain.Wallet, error)
	// Credit adds amount (> 0) to the wallet and appends a ledger entry.
	Credit(ctx context.Context, req WalletEntryRequest) (domain.Wallet, error)
	// Debit subtracts amount (> 0) from the wallet, failing with an
	// insufficient-funds error when the balance would go negative.
	Debit(ctx context.Context, req WalletEntryRequest) (domain.Wallet, error)
}

// WalletEntryRequest describes one ledger mutation.
type WalletEntryRequest struct {
	UserID      string
	Amount      int64
	Description string
	OrderRef    string
	Now         time.Time
}

// ProductRepository stores catalog documents. Stock and lifetime-sold counters
// are mutated only by the fulfillment repository inside its transactions.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	SoftDelete(ctx context.Context, productID string, deletedAt time.Time) error
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	IncludeDeleted bool
	InStockOnly    bool
	Pagination     domain.Pagination
}

// CartRepository owns the per-user cart document.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
}

// ReviewRepository stores product reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	FindByOrder(ctx context.Context, orderID string) (domain.Review, error)
	ListByProduct(ctx context.Context, productRef string, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// FulfillmentRepository executes the multi-document order workflows. Each
// method runs read-validate-mutate-write inside a single Firestore
// transaction; on error no partial state is committed.
type FulfillmentRepository interface {
	// ExecuteCheckout converts the user's cart into an order: prices lines
	// from current products, decrements stock, debits the wallet for the
	// total, creates the order in its initial status, and clears the cart.
	ExecuteCheckout(ctx context.Context, req CheckoutExecution) (CheckoutOutcome, error)
	// ExecuteTransition re-reads the order, replans the requested status
	// change from fresh state, and applies the plan together with its wallet
	// and sales-counter side effects.
	ExecuteTransition(ctx context.Context, req TransitionExecution) (TransitionOutcome, error)
	// ExecuteQuoteUpdate reprices a custom order from an admin item list
	// using current product prices and records the total delta.
	ExecuteQuoteUpdate(ctx context.Context, req QuoteExecution) (QuoteOutcome, error)
}

// CheckoutExecution carries pre-minted identifiers into the checkout transaction.
type CheckoutExecution struct {
	UserID          string
	OrderID         string
	OrderNumber     string
	ShippingAddress domain.Address
	Currency        string
	Now             time.Time
}

// CheckoutOutcome reports the created order and the debited wallet.
type CheckoutOutcome struct {
	Order  domain.Order
	Wallet domain.Wallet
}

// TransitionExecution requests one status change for an order.
type TransitionExecution struct {
	OrderID         string
	Target          domain.OrderStatus
	Actor           string
	Note            string
	ExpectedVersion *int64
	Now             time.Time
}

// TransitionOutcome reports the updated order and the executed plan.
type TransitionOutcome struct {
	Order domain.Order
	Plan  domain.TransitionPlan
}

// QuoteExecution reprices a custom order from the given lines.
type QuoteExecution struct {
	OrderID string
	Actor   string
	Items   []QuoteItem
	Now     time.Time
}

// QuoteItem is one admin-supplied quote line; the unit price is read from the
// product inside the transaction unless an override is provided.
type QuoteItem struct {
	ProductRef    string
	Quantity      int
	PriceOverride *int64
}

// QuoteOutcome reports the repriced order and the total delta against the
// previous quote.
type QuoteOutcome struct {
	Order      domain.Order
	TotalDelta int64
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
