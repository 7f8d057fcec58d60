package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pravesh-commerce/api/internal/repositories"
)

var (
	// ErrCheckoutInvalidInput signals the caller provided invalid data.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutEmptyCart indicates the cart has no purchasable items.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutProductUnavailable indicates a cart line references a missing or delisted product.
	ErrCheckoutProductUnavailable = errors.New("checkout: product unavailable")
	// ErrCheckoutInsufficientStock indicates a cart line exceeds available stock.
	ErrCheckoutInsufficientStock = errors.New("checkout: insufficient stock")
	// ErrCheckoutInsufficientFunds indicates the wallet cannot cover the order total.
	ErrCheckoutInsufficientFunds = errors.New("checkout: insufficient funds")
	// ErrCheckoutWalletNotFound indicates no wallet exists for the user.
	ErrCheckoutWalletNotFound = errors.New("checkout: wallet not found")
	// ErrCheckoutConflict indicates the transaction lost a concurrency race after retries.
	ErrCheckoutConflict = errors.New("checkout: conflict")
)

// CheckoutServiceDeps bundles collaborators required to construct the checkout service.
type CheckoutServiceDeps struct {
	Fulfillment repositories.FulfillmentRepository
	Counters    CounterService
	Cache       CacheInvalidator
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	fulfillment repositories.FulfillmentRepository
	counters    CounterService
	cache       CacheInvalidator
	events      OrderEventPublisher
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewCheckoutService wires dependencies into a concrete CheckoutService implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Fulfillment == nil {
		return nil, errors.New("checkout service: fulfillment repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("checkout service: counter service is required")
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

	return &checkoutService{
		fulfillment: deps.Fulfillment,
		counters:    deps.Counters,
		cache:       deps.Cache,
		events:      deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	if strings.TrimSpace(cmd.ShippingAddress.Line1) == "" || strings.TrimSpace(cmd.ShippingAddress.Country) == "" {
		return Order{}, fmt.Errorf("%w: shipping address is required", ErrCheckoutInvalidInput)
	}

	orderNumber, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("mint order number: %w", err)
	}

	now := s.clock()
	outcome, err := s.fulfillment.ExecuteCheckout(ctx, repositories.CheckoutExecution{
		UserID:          userID,
		OrderID:         s.newID(),
		OrderNumber:     orderNumber,
		ShippingAddress: cmd.ShippingAddress,
		Currency:        cmd.Currency,
		Now:             now,
	})
	if err != nil {
		return Order{}, translateCheckoutError(err)
	}

	order := outcome.Order
	s.logger(ctx, "checkout.completed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"userId":      userID,
		"total":       order.TotalAmount,
	})

	invalidateOrderCaches(ctx, s.cache, s.logger, userID, order.ID)
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        userID,
		CurrentStatus: string(order.Status),
		Amount:        order.TotalAmount,
		OccurredAt:    now,
	})

	return order, nil
}

func (s *checkoutService) publishEvent(ctx context.Context, event OrderEvent) {
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

func translateCheckoutError(err error) error {
	if err == nil {
		return nil
	}
	var fulfillErr *repositories.FulfillmentError
	if errors.As(err, &fulfillErr) {
		switch fulfillErr.Code {
		case repositories.FulfillmentErrorEmptyCart:
			return fmt.Errorf("%w: %s", ErrCheckoutEmptyCart, fulfillErr.Message)
		case repositories.FulfillmentErrorProductUnavailable:
			return fmt.Errorf("%w: %s", ErrCheckoutProductUnavailable, fulfillErr.Message)
		case repositories.FulfillmentErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrCheckoutInsufficientStock, fulfillErr.Message)
		case repositories.FulfillmentErrorInsufficientFunds:
			return fmt.Errorf("%w: %s", ErrCheckoutInsufficientFunds, fulfillErr.Message)
		case repositories.FulfillmentErrorWalletNotFound:
			return fmt.Errorf("%w: %s", ErrCheckoutWalletNotFound, fulfillErr.Message)
		case repositories.FulfillmentErrorConflict:
			return fmt.Errorf("%w: %s", ErrCheckoutConflict, fulfillErr.Message)
		}
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return fmt.Errorf("%w: %v", ErrCheckoutConflict, err)
	}
	return err
}
