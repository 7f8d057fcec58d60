package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/pravesh-commerce/api/internal/domain"
	pfirestore "github.com/pravesh-commerce/api/internal/platform/firestore"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order documents within Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{provider: provider, base: base}, nil
}

// Insert creates the order document, failing on duplicate IDs.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, newOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update writes the order inside a transaction, checking the stored version
// against order.Version and incrementing it. A mismatch surfaces as a
// conflict RepositoryError.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	var saved domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current orderDocument
		if err := snap.DataTo(&current); err != nil {
			return fmt.Errorf("decode order %s: %w", order.ID, err)
		}
		if current.Version != order.Version {
			return status.Errorf(codes.FailedPrecondition, "order %s version mismatch: have %d want %d", order.ID, current.Version, order.Version)
		}

		next := order
		next.Version++
		if err := tx.Set(ref, newOrderDocument(next)); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}
	return saved, nil
}

// FindByID loads one order by document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders newest first, filtered by user, status, and date range.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	query := client.Collection(ordersCollection).Query
	if uid := strings.TrimSpace(filter.UserID); uid != "" {
		query = query.Where("userRef", "==", uid)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status", "in", statuses)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<", filter.DateRange.To.UTC())
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		createdAt, lastID, err := decodeCreatedAtToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		query = query.StartAfter(createdAt, lastID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := encodeCreatedAtToken(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{
		Items:         orders,
		NextPageToken: nextToken,
	}, nil
}

// DashboardSummary aggregates order counts and revenue across the collection.
// It projects only the fields it needs to keep the scan cheap.
func (r *OrderRepository) DashboardSummary(ctx context.Context, now time.Time) (domain.DashboardSummary, error) {
	if r == nil || r.provider == nil {
		return domain.DashboardSummary{}, errors.New("order repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.DashboardSummary{}, pfirestore.WrapError("orders.dashboard", err)
	}

	query := client.Collection(ordersCollection).Select("status", "totalAmount")
	iter := query.Documents(ctx)
	defer iter.Stop()

	summary := domain.DashboardSummary{
		OrdersByStatus: make(map[domain.OrderStatus]int64),
		GeneratedAt:    now.UTC(),
	}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.DashboardSummary{}, pfirestore.WrapError("orders.dashboard", err)
		}
		var doc struct {
			Status      string `firestore:"status"`
			TotalAmount int64  `firestore:"totalAmount"`
		}
		if err := snap.DataTo(&doc); err != nil {
			return domain.DashboardSummary{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}

		st := domain.OrderStatus(doc.Status)
		summary.TotalOrders++
		summary.OrdersByStatus[st]++
		switch st {
		case domain.OrderStatusRefunded:
			summary.RefundedAmount += doc.TotalAmount
		case domain.OrderStatusCancelled:
			// no revenue impact until refunded
		default:
			summary.GrossRevenue += doc.TotalAmount
		}
	}
	return summary, nil
}

// Document mapping -----------------------------------------------------------

type orderDocument struct {
	OrderNumber     string                 `firestore:"orderNumber"`
	UserRef         string                 `firestore:"userRef"`
	Status          string                 `firestore:"status"`
	History         []statusChangeDocument `firestore:"history"`
	Items           []orderLineDocument    `firestore:"items"`
	TotalAmount     int64                  `firestore:"totalAmount"`
	Currency        string                 `firestore:"currency"`
	ShippingAddress *addressDocument       `firestore:"shippingAddress,omitempty"`
	IsCustomOrder   bool                   `firestore:"isCustomOrder"`
	Feedback        *string                `firestore:"feedback,omitempty"`
	CancelReason    *string                `firestore:"cancelReason,omitempty"`
	Metadata        map[string]string      `firestore:"metadata,omitempty"`
	Version         int64                  `firestore:"version"`
	CreatedAt       time.Time              `firestore:"createdAt"`
	UpdatedAt       time.Time              `firestore:"updatedAt"`
	PaidAt          *time.Time             `firestore:"paidAt,omitempty"`
	DeliveredAt     *time.Time             `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time             `firestore:"cancelledAt,omitempty"`
	RefundedAt      *time.Time             `firestore:"refundedAt,omitempty"`
}

type statusChangeDocument struct {
	Status    string    `firestore:"status"`
	Timestamp time.Time `firestore:"ts"`
}

type orderLineDocument struct {
	ProductRef string `firestore:"productRef"`
	SKU        string `firestore:"sku"`
	Name       string `firestore:"name"`
	Quantity   int    `firestore:"qty"`
	UnitPrice  int64  `firestore:"unitPrice"`
	Total      int64  `firestore:"total"`
}

type addressDocument struct {
	ID         string `firestore:"id,omitempty"`
	Name       string `firestore:"name,omitempty"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	history := make([]statusChangeDocument, len(order.History))
	for i, entry := range order.History {
		history[i] = statusChangeDocument{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp.UTC(),
		}
	}
	items := make([]orderLineDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderLineDocument{
			ProductRef: strings.TrimSpace(item.ProductRef),
			SKU:        strings.TrimSpace(item.SKU),
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		}
	}
	doc := orderDocument{
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		UserRef:       strings.TrimSpace(order.UserID),
		Status:        string(order.Status),
		History:       history,
		Items:         items,
		TotalAmount:   order.TotalAmount,
		Currency:      strings.ToUpper(strings.TrimSpace(order.Currency)),
		IsCustomOrder: order.IsCustomOrder,
		Feedback:      order.Feedback,
		CancelReason:  order.CancelReason,
		Metadata:      cloneStringMap(order.Metadata),
		Version:       order.Version,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
		PaidAt:        utcTimePtr(order.PaidAt),
		DeliveredAt:   utcTimePtr(order.DeliveredAt),
		CancelledAt:   utcTimePtr(order.CancelledAt),
		RefundedAt:    utcTimePtr(order.RefundedAt),
	}
	if order.ShippingAddress != nil {
		addr := newAddressDocument(*order.ShippingAddress)
		doc.ShippingAddress = &addr
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	history := make([]domain.StatusChange, len(d.History))
	for i, entry := range d.History {
		history[i] = domain.StatusChange{
			Status:    domain.OrderStatus(entry.Status),
			Timestamp: entry.Timestamp,
		}
	}
	items := make([]domain.OrderLineItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderLineItem{
			ProductRef: item.ProductRef,
			SKU:        item.SKU,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		}
	}
	order := domain.Order{
		ID:            id,
		OrderNumber:   d.OrderNumber,
		UserID:        d.UserRef,
		Status:        domain.OrderStatus(d.Status),
		History:       history,
		Items:         items,
		TotalAmount:   d.TotalAmount,
		Currency:      d.Currency,
		IsCustomOrder: d.IsCustomOrder,
		Feedback:      d.Feedback,
		CancelReason:  d.CancelReason,
		Metadata:      cloneStringMap(d.Metadata),
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		PaidAt:        d.PaidAt,
		DeliveredAt:   d.DeliveredAt,
		CancelledAt:   d.CancelledAt,
		RefundedAt:    d.RefundedAt,
	}
	if d.ShippingAddress != nil {
		addr := d.ShippingAddress.toDomain()
		order.ShippingAddress = &addr
	}
	return order
}

func newAddressDocument(addr domain.Address) addressDocument {
	return addressDocument{
		ID:         strings.TrimSpace(addr.ID),
		Name:       strings.TrimSpace(addr.Name),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		Region:     strings.TrimSpace(addr.Region),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
		Phone:      strings.TrimSpace(addr.Phone),
	}
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address{
		ID:         d.ID,
		Name:       d.Name,
		Line1:      d.Line1,
		Line2:      d.Line2,
		City:       d.City,
		Region:     d.Region,
		PostalCode: d.PostalCode,
		Country:    d.Country,
		Phone:      d.Phone,
	}
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func utcTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
