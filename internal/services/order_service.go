package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/platform/cache"
	"github.com/pravesh-commerce/api/internal/platform/textutil"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventQuoteUpdated  = "order.quote.updated"

	orderIDPrefix = "ord_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the actor may not access the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderNotCustom indicates a quote operation targeted a regular order.
	ErrOrderNotCustom = errors.New("order: not a custom order")
	// ErrOrderConflict indicates optimistic concurrency conflicts.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderInsufficientFunds indicates the wallet cannot cover a confirmation debit.
	ErrOrderInsufficientFunds = errors.New("order: insufficient funds")
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	UserID         string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	Amount         int64
	OccurredAt     time.Time
}

// OrderCacheTTL configures the cache tiers used by order reads.
type OrderCacheTTL struct {
	// Short covers single orders and listing pages.
	Short time.Duration
	// ExtraLong covers the dashboard aggregate.
	ExtraLong time.Duration
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Fulfillment repositories.FulfillmentRepository
	Counters    CounterService
	Cache       CacheStore
	TTL         OrderCacheTTL
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	fulfillment repositories.FulfillmentRepository
	counters    CounterService
	cache       CacheStore
	ttl         OrderCacheTTL
	events      OrderEventPublisher
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Fulfillment == nil {
		return nil, errors.New("order service: fulfillment repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter service is required")
	}

	ttl := deps.TTL
	if ttl.Short <= 0 {
		ttl.Short = 10 * time.Minute
	}
	if ttl.ExtraLong <= 0 {
		ttl.ExtraLong = time.Hour
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return orderIDPrefix + ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:      deps.Orders,
		fulfillment: deps.Fulfillment,
		counters:    deps.Counters,
		cache:       deps.Cache,
		ttl:         ttl,
		events:      deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	key := cache.OrderKey(orderID)
	var order Order
	if s.cacheGet(ctx, key, &order) {
		return s.authorizeRead(order, cmd.ActorID, cmd.Staff)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	s.cacheSet(ctx, key, order, s.ttl.Short)

	return s.authorizeRead(order, cmd.ActorID, cmd.Staff)
}

func (s *orderService) authorizeRead(order Order, actorID string, staff bool) (Order, error) {
	if staff || order.UserID == strings.TrimSpace(actorID) {
		return order, nil
	}
	return Order{}, fmt.Errorf("%w: order %s belongs to another user", ErrOrderForbidden, order.ID)
}

func (s *orderService) ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.CursorPage[Order], error) {
	userID := strings.TrimSpace(cmd.UserID)
	if !cmd.Staff {
		actor := strings.TrimSpace(cmd.ActorID)
		if actor == "" {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
		}
		if userID != "" && userID != actor {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: cannot list another user's orders", ErrOrderForbidden)
		}
		userID = actor
	}

	// Only unfiltered listings are cached; status and date filters vary too
	// widely to be worth keys.
	cacheable := len(cmd.Status) == 0 && cmd.DateRange.From == nil && cmd.DateRange.To == nil
	var key string
	if cacheable {
		if userID != "" {
			key = cache.UserOrdersKey(userID, listCacheToken(cmd.Pagination))
		} else {
			key = cache.AllOrdersKey(listCacheToken(cmd.Pagination))
		}
		var page domain.CursorPage[Order]
		if s.cacheGet(ctx, key, &page) {
			return page, nil
		}
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:     userID,
		Status:     cmd.Status,
		DateRange:  cmd.DateRange,
		Pagination: cmd.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, translateOrderError(err)
	}

	if cacheable {
		s.cacheSet(ctx, key, page, s.ttl.Short)
	}
	return page, nil
}

func (s *orderService) AdvanceStatus(ctx context.Context, cmd AdvanceStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(string(cmd.Target)) == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}

	outcome, err := s.fulfillment.ExecuteTransition(ctx, repositories.TransitionExecution{
		OrderID:         orderID,
		Target:          cmd.Target,
		Actor:           strings.TrimSpace(cmd.ActorID),
		Note:            cmd.Note,
		ExpectedVersion: cmd.ExpectedVersion,
		Now:             s.clock(),
	})
	if err != nil {
		return Order{}, translateOrderError(err)
	}

	order := outcome.Order
	s.logger(ctx, "order.status.changed", map[string]any{
		"orderId": order.ID,
		"from":    string(outcome.Plan.From),
		"to":      string(outcome.Plan.To),
		"actorId": cmd.ActorID,
	})

	s.afterMutation(ctx, order, cmd.ActorID, outcome.Plan)
	return order, nil
}

func (s *orderService) Pay(ctx context.Context, cmd PayOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if !cmd.Staff {
		existing, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return Order{}, translateOrderError(err)
		}
		if existing.UserID != strings.TrimSpace(cmd.ActorID) {
			return Order{}, fmt.Errorf("%w: order %s belongs to another user", ErrOrderForbidden, orderID)
		}
	}

	return s.AdvanceStatus(ctx, AdvanceStatusCommand{
		OrderID:         orderID,
		Target:          domain.OrderStatusConfirmed,
		ActorID:         cmd.ActorID,
		ExpectedVersion: cmd.ExpectedVersion,
	})
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if !cmd.Staff {
		existing, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return Order{}, translateOrderError(err)
		}
		if existing.UserID != strings.TrimSpace(cmd.ActorID) {
			return Order{}, fmt.Errorf("%w: order %s belongs to another user", ErrOrderForbidden, orderID)
		}
	}

	outcome, err := s.fulfillment.ExecuteTransition(ctx, repositories.TransitionExecution{
		OrderID:         orderID,
		Target:          domain.OrderStatusCancelled,
		Actor:           strings.TrimSpace(cmd.ActorID),
		Note:            cmd.Reason,
		ExpectedVersion: cmd.ExpectedVersion,
		Now:             s.clock(),
	})
	if err != nil {
		return Order{}, translateOrderError(err)
	}

	order := outcome.Order
	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId": order.ID,
		"actorId": cmd.ActorID,
		"reason":  cmd.Reason,
	})

	s.afterMutation(ctx, order, cmd.ActorID, outcome.Plan)
	return order, nil
}

func (s *orderService) CreateCustomOrder(ctx context.Context, cmd CreateCustomOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.ShippingAddress.Line1) == "" || strings.TrimSpace(cmd.ShippingAddress.Country) == "" {
		return Order{}, fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}

	orderNumber, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("mint order number: %w", err)
	}

	now := s.clock()
	addr := cmd.ShippingAddress
	order := domain.Order{
		ID:          s.newID(),
		OrderNumber: orderNumber,
		UserID:      userID,
		Status:      domain.OrderStatusReceived,
		History: []domain.StatusChange{{
			Status:    domain.OrderStatusReceived,
			Timestamp: now,
		}},
		Currency:        strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		ShippingAddress: &addr,
		IsCustomOrder:   true,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	metadata := textutil.NormalizeStringMap(cmd.Metadata)
	if desc := strings.TrimSpace(cmd.Description); desc != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["request"] = desc
	}
	order.Metadata = metadata

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, translateOrderError(err)
	}

	s.logger(ctx, "order.custom.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"userId":      userID,
	})

	invalidateOrderCaches(ctx, s.cache, s.logger, userID, order.ID)
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        userID,
		CurrentStatus: string(order.Status),
		OccurredAt:    now,
	})

	return order, nil
}

func (s *orderService) UpdateQuote(ctx context.Context, cmd UpdateQuoteCommand) (Order, error) {
	order, delta, err := s.executeQuote(ctx, cmd.OrderID, cmd.ActorID, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	s.logger(ctx, "order.quote.updated", map[string]any{
		"orderId": order.ID,
		"actorId": cmd.ActorID,
		"total":   order.TotalAmount,
		"delta":   delta,
	})

	invalidateOrderCaches(ctx, s.cache, s.logger, order.UserID, order.ID)
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventQuoteUpdated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		CurrentStatus: string(order.Status),
		ActorID:       cmd.ActorID,
		Amount:        order.TotalAmount,
		OccurredAt:    s.clock(),
	})

	return order, nil
}

// ConfirmCustomOrder reprices the order when items are supplied and then
// advances it from received to approved, making it payable by the customer.
func (s *orderService) ConfirmCustomOrder(ctx context.Context, cmd ConfirmCustomOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if len(cmd.Items) > 0 {
		if _, _, err := s.executeQuote(ctx, orderID, cmd.ActorID, cmd.Items); err != nil {
			return Order{}, err
		}
	}

	return s.AdvanceStatus(ctx, AdvanceStatusCommand{
		OrderID: orderID,
		Target:  domain.OrderStatusApproved,
		ActorID: cmd.ActorID,
	})
}

func (s *orderService) DashboardSummary(ctx context.Context) (DashboardSummary, error) {
	key := cache.DashboardSummaryKey()
	var summary DashboardSummary
	if s.cacheGet(ctx, key, &summary) {
		return summary, nil
	}

	summary, err := s.orders.DashboardSummary(ctx, s.clock())
	if err != nil {
		return DashboardSummary{}, translateOrderError(err)
	}
	s.cacheSet(ctx, key, summary, s.ttl.ExtraLong)
	return summary, nil
}

func (s *orderService) executeQuote(ctx context.Context, orderID, actorID string, items []QuoteLine) (Order, int64, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, 0, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if len(items) == 0 {
		return Order{}, 0, fmt.Errorf("%w: at least one quote line is required", ErrOrderInvalidInput)
	}

	quoteItems := make([]repositories.QuoteItem, len(items))
	for i, line := range items {
		if strings.TrimSpace(line.ProductRef) == "" {
			return Order{}, 0, fmt.Errorf("%w: quote line %d is missing its product ref", ErrOrderInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return Order{}, 0, fmt.Errorf("%w: quote line %d needs a positive quantity", ErrOrderInvalidInput, i)
		}
		quoteItems[i] = repositories.QuoteItem{
			ProductRef:    strings.TrimSpace(line.ProductRef),
			Quantity:      line.Quantity,
			PriceOverride: line.PriceOverride,
		}
	}

	outcome, err := s.fulfillment.ExecuteQuoteUpdate(ctx, repositories.QuoteExecution{
		OrderID: orderID,
		Actor:   strings.TrimSpace(actorID),
		Items:   quoteItems,
		Now:     s.clock(),
	})
	if err != nil {
		return Order{}, 0, translateOrderError(err)
	}
	return outcome.Order, outcome.TotalDelta, nil
}

// afterMutation fires the non-transactional side channels for a committed
// transition: cache invalidation and the order event.
func (s *orderService) afterMutation(ctx context.Context, order Order, actorID string, plan domain.TransitionPlan) {
	invalidateOrderCaches(ctx, s.cache, s.logger, order.UserID, order.ID)
	if len(plan.Sales) > 0 {
		invalidateProductCaches(ctx, s.cache, s.logger)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		PreviousStatus: string(plan.From),
		CurrentStatus:  string(plan.To),
		ActorID:        strings.TrimSpace(actorID),
		Amount:         order.TotalAmount,
		OccurredAt:     s.clock(),
	})
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger(ctx, "cache.read.failed", map[string]any{"key": key, "error": err.Error()})
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger(ctx, "cache.decode.failed", map[string]any{"key": key, "error": err.Error()})
		return false
	}
	return true
}

func (s *orderService) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger(ctx, "cache.write.failed", map[string]any{"key": key, "error": err.Error()})
	}
}

// listCacheToken keys listing pages by size and cursor.
func listCacheToken(p Pagination) string {
	return fmt.Sprintf("%d:%s", p.PageSize, p.PageToken)
}

func translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	var fulfillErr *repositories.FulfillmentError
	if errors.As(err, &fulfillErr) {
		switch fulfillErr.Code {
		case repositories.FulfillmentErrorOrderNotFound:
			return fmt.Errorf("%w: %s", ErrOrderNotFound, fulfillErr.Message)
		case repositories.FulfillmentErrorInvalidTransition:
			return fmt.Errorf("%w: %s", ErrOrderInvalidState, fulfillErr.Message)
		case repositories.FulfillmentErrorNotCustomOrder:
			return fmt.Errorf("%w: %s", ErrOrderNotCustom, fulfillErr.Message)
		case repositories.FulfillmentErrorConflict:
			return fmt.Errorf("%w: %s", ErrOrderConflict, fulfillErr.Message)
		case repositories.FulfillmentErrorInsufficientFunds:
			return fmt.Errorf("%w: %s", ErrOrderInsufficientFunds, fulfillErr.Message)
		case repositories.FulfillmentErrorWalletNotFound:
			return fmt.Errorf("%w: %s", ErrOrderInsufficientFunds, fulfillErr.Message)
		case repositories.FulfillmentErrorProductUnavailable:
			return fmt.Errorf("%w: %s", ErrOrderInvalidInput, fulfillErr.Message)
		}
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}
	return err
}
