package services

import (
	"context"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	OrderLineItem      = domain.OrderLineItem
	StatusChange       = domain.StatusChange
	Address            = domain.Address
	Wallet             = domain.Wallet
	WalletTransaction  = domain.WalletTransaction
	Product            = domain.Product
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	Review             = domain.Review
	DashboardSummary   = domain.DashboardSummary
	SystemHealthReport = domain.SystemHealthReport
)

// CheckoutService converts a cart into a paid order inside one transaction.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error)
}

// OrderService encapsulates order reads and lifecycle mutations.
type OrderService interface {
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.CursorPage[Order], error)
	AdvanceStatus(ctx context.Context, cmd AdvanceStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	// Pay is the owner's acceptance of a quoted order: it advances the order
	// to confirmed, debiting the wallet when the order is still unpaid.
	Pay(ctx context.Context, cmd PayOrderCommand) (Order, error)
	CreateCustomOrder(ctx context.Context, cmd CreateCustomOrderCommand) (Order, error)
	UpdateQuote(ctx context.Context, cmd UpdateQuoteCommand) (Order, error)
	ConfirmCustomOrder(ctx context.Context, cmd ConfirmCustomOrderCommand) (Order, error)
	DashboardSummary(ctx context.Context) (DashboardSummary, error)
}

// WalletService manages per-user wallets and their ledgers.
type WalletService interface {
	EnsureWallet(ctx context.Context, cmd EnsureWalletCommand) (Wallet, error)
	GetWallet(ctx context.Context, userID string) (Wallet, error)
	// ListTransactions returns ledger entries newest first.
	ListTransactions(ctx context.Context, cmd ListWalletTransactionsCommand) ([]WalletTransaction, error)
	Credit(ctx context.Context, cmd WalletAdjustmentCommand) (Wallet, error)
	Debit(ctx context.Context, cmd WalletAdjustmentCommand) (Wallet, error)
}

// CatalogService manages the product catalog for admin and public reads.
type CatalogService interface {
	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListProducts(ctx context.Context, cmd ListProductsCommand) (domain.CursorPage[Product], error)
	DeleteProduct(ctx context.Context, cmd DeleteProductCommand) error
}

// CartService manages mutable per-user cart state.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	UpsertItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	SetShippingAddress(ctx context.Context, cmd SetCartAddressCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// ReviewService coordinates the review lifecycle for delivered orders.
type ReviewService interface {
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	GetByOrder(ctx context.Context, orderID string) (Review, error)
	ListByProduct(ctx context.Context, productRef string, pager Pagination) (domain.CursorPage[Review], error)
	ListByUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Review], error)
}

// CounterValue carries both the raw and formatted representations of a counter increment.
type CounterValue struct {
	Value     int64
	Formatted string
}

// CounterGenerationOptions controls how counter values are incremented and formatted.
type CounterGenerationOptions struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
	Prefix       string
	Suffix       string
	PadLength    int
	Formatter    func(now time.Time, value int64) string
}

// CounterService manages named sequences and the identifier formats built on them.
type CounterService interface {
	Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextOrderNumber(ctx context.Context) (string, error)
	NextSKU(ctx context.Context) (string, error)
	// NextProductSlug returns the slugified name, numerically suffixed when the
	// same name has been slugged before.
	NextProductSlug(ctx context.Context, name string) (string, error)
}

// SystemService aggregates operational endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Command and DTO definitions ------------------------------------------------

// CheckoutCommand requests conversion of the user's cart into an order.
type CheckoutCommand struct {
	UserID          string
	ShippingAddress Address
	Currency        string
	IdempotencyKey  string
}

type GetOrderCommand struct {
	OrderID string
	ActorID string
	// Staff actors may read any order; others only their own.
	Staff bool
}

type ListOrdersCommand struct {
	// UserID scopes the listing; staff may leave it empty to list all orders.
	UserID     string
	ActorID    string
	Staff      bool
	Status     []OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

type AdvanceStatusCommand struct {
	OrderID         string
	Target          OrderStatus
	ActorID         string
	Note            string
	ExpectedVersion *int64
}

type CancelOrderCommand struct {
	OrderID         string
	ActorID         string
	Staff           bool
	Reason          string
	ExpectedVersion *int64
}

type PayOrderCommand struct {
	OrderID         string
	ActorID         string
	Staff           bool
	ExpectedVersion *int64
}

type CreateCustomOrderCommand struct {
	UserID          string
	ShippingAddress Address
	Currency        string
	Description     string
	// Metadata carries free-form request attributes, e.g. engraving details.
	Metadata map[string]string
}

type QuoteLine struct {
	ProductRef    string
	Quantity      int
	PriceOverride *int64
}

type UpdateQuoteCommand struct {
	OrderID string
	ActorID string
	Items   []QuoteLine
}

type ConfirmCustomOrderCommand struct {
	OrderID string
	ActorID string
	// Items, when present, reprice the order before confirming.
	Items []QuoteLine
}

type EnsureWalletCommand struct {
	UserID   string
	Currency string
}

type ListWalletTransactionsCommand struct {
	UserID string
	// Limit caps the number of entries returned; zero means all.
	Limit int
}

type WalletAdjustmentCommand struct {
	UserID      string
	Amount      int64
	Description string
	OrderRef    string
	ActorID     string
}

type CreateProductCommand struct {
	Name        string
	Description string
	BrandRef    *string
	CategoryRef *string
	Price       int64
	Currency    string
	Stock       int
	ActorID     string
}

type UpdateProductCommand struct {
	ProductID   string
	Name        *string
	Description *string
	BrandRef    *string
	CategoryRef *string
	Price       *int64
	Stock       *int
	ActorID     string
}

type ListProductsCommand struct {
	IncludeDeleted bool
	InStockOnly    bool
	Pagination     Pagination
}

type DeleteProductCommand struct {
	ProductID string
	ActorID   string
}

type UpsertCartItemCommand struct {
	UserID     string
	ProductRef string
	Quantity   int
}

type RemoveCartItemCommand struct {
	UserID     string
	ProductRef string
}

type SetCartAddressCommand struct {
	UserID    string
	AddressID string
}

type CreateReviewCommand struct {
	OrderID    string
	ProductRef string
	UserID     string
	Rating     int
	Body       string
}

// OrderListFilter re-exports the repository filter for handler convenience.
type OrderListFilter = repositories.OrderListFilter
