package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusReceived is the initial state of every order.
	OrderStatusReceived OrderStatus = "received"
	// OrderStatusApproved indicates an admin accepted the order without taking payment yet.
	OrderStatusApproved OrderStatus = "approved"
	// OrderStatusConfirmed indicates the order was paid from the customer wallet.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery indicates the order is on its final delivery leg.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered indicates the customer has received the order. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before shipping.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates a cancelled order was refunded to the wallet. Terminal.
	OrderStatusRefunded OrderStatus = "refunded"
)

// StatusChange is a single append-only entry of the order history log.
type StatusChange struct {
	Status    OrderStatus
	Timestamp time.Time
}

// Order captures order headers returned to handlers/services.
//
// History is the source of truth for lifecycle state; Status is the
// denormalised copy written in the same mutation. Version is incremented
// on every write and checked inside the writing transaction.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	History         []StatusChange
	Items           []OrderLineItem
	TotalAmount     int64
	Currency        string
	ShippingAddress *Address
	IsCustomOrder   bool
	Feedback        *string
	CancelReason    *string
	Metadata        map[string]string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	RefundedAt      *time.Time
}

// CurrentStatus derives the lifecycle state from the history log. The
// denormalised Status field must always agree with it.
func (o Order) CurrentStatus() OrderStatus {
	if len(o.History) == 0 {
		return o.Status
	}
	return o.History[len(o.History)-1].Status
}

// HasShippingAddress reports whether a shipping address has been set.
func (o Order) HasShippingAddress() bool {
	return o.ShippingAddress != nil
}

// OrderLineItem mirrors cart items priced at the time of checkout.
type OrderLineItem struct {
	ProductRef string
	SKU        string
	Name       string
	Quantity   int
	UnitPrice  int64
	Total      int64
}

// LineTotal returns the sum of all line totals.
func LineTotal(items []OrderLineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// Address is a shipping address snapshot referenced by orders and carts.
type Address struct {
	ID         string
	Name       string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

// Wallet holds a per-user balance together with its append-only ledger.
//
// Balance must always equal the sum of Transactions amounts; both are
// mutated in the same document write.
type Wallet struct {
	ID           string
	UserID       string
	Balance      int64
	Currency     string
	Transactions []WalletTransaction
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WalletTransaction is one signed ledger entry. Amount is negative for
// debits and positive for credits.
type WalletTransaction struct {
	Amount      int64
	Description string
	OrderRef    *string
	CreatedAt   time.Time
}

// LedgerSum returns the sum of all transaction amounts.
func (w Wallet) LedgerSum() int64 {
	var sum int64
	for _, tx := range w.Transactions {
		sum += tx.Amount
	}
	return sum
}

// Product is the catalog document; only Stock and SoldCount are mutated
// by the fulfillment coordinator.
type Product struct {
	ID          string
	SKU         string
	Slug        string
	Name        string
	Description string
	BrandRef    *string
	CategoryRef *string
	Price       int64
	Currency    string
	Stock       int
	SoldCount   int64
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available reports whether the product can currently be purchased.
func (p Product) Available() bool {
	return !p.IsDeleted && p.Stock > 0
}

// Cart is the per-user cart document cleared atomically by checkout.
type Cart struct {
	ID                string
	UserID            string
	Items             []CartItem
	ShippingAddressID string
	Currency          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CartItem references a product by id; prices are resolved at checkout.
type CartItem struct {
	ProductRef string
	Quantity   int
}

// Review is a customer product review attached to a delivered order.
type Review struct {
	ID         string
	ProductRef string
	OrderRef   string
	UserID     string
	Rating     int
	Body       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DashboardSummary aggregates order counts and revenue for the admin dashboard.
type DashboardSummary struct {
	TotalOrders    int64
	OrdersByStatus map[OrderStatus]int64
	GrossRevenue   int64
	RefundedAmount int64
	GeneratedAt    time.Time
}
