package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/platform/cache"
	"github.com/pravesh-commerce/api/internal/repositories"
)

func TestCheckoutServiceHappyPath(t *testing.T) {
	now := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
	placed := domain.Order{
		ID:          "ord_test",
		OrderNumber: "PC-2025-000042",
		UserID:      "user-1",
		Status:      domain.OrderStatusReceived,
		TotalAmount: 4200,
	}
	fulfillment := &stubFulfillmentRepository{
		checkoutFn: func(_ context.Context, req repositories.CheckoutExecution) (repositories.CheckoutOutcome, error) {
			order := placed
			order.ID = req.OrderID
			return repositories.CheckoutOutcome{Order: order}, nil
		},
	}
	counters := &stubCounterService{
		orderNumberFn: func(context.Context) (string, error) { return "PC-2025-000042", nil },
	}
	store := cache.NewMemoryClient()
	publisher := &recordingPublisher{}

	// Pre-seed entries the checkout must drop.
	seedCache(t, store, cache.UserOrdersKey("user-1", "20:"), cache.DashboardSummaryKey())

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Fulfillment: fulfillment,
		Counters:    counters,
		Cache:       store,
		Events:      publisher,
		Clock:       fixedClock(now),
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	order, err := svc.Checkout(context.Background(), CheckoutCommand{
		UserID: "user-1",
		ShippingAddress: domain.Address{
			Line1:   "12 MG Road",
			City:    "Bengaluru",
			Country: "IN",
		},
		Currency: "INR",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if len(fulfillment.checkouts) != 1 {
		t.Fatalf("expected one checkout execution, got %d", len(fulfillment.checkouts))
	}
	exec := fulfillment.checkouts[0]
	if exec.OrderNumber != "PC-2025-000042" {
		t.Fatalf("expected minted order number, got %s", exec.OrderNumber)
	}
	if !strings.HasPrefix(exec.OrderID, "ord_") {
		t.Fatalf("expected ord_ prefixed id, got %s", exec.OrderID)
	}
	if !exec.Now.Equal(now) {
		t.Fatalf("expected timestamp %s, got %s", now, exec.Now)
	}
	if order.ID != exec.OrderID {
		t.Fatalf("expected returned order id %s, got %s", exec.OrderID, order.ID)
	}

	assertCacheMiss(t, store, cache.UserOrdersKey("user-1", "20:"))
	assertCacheMiss(t, store, cache.DashboardSummaryKey())

	if len(publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Type != "order.created" {
		t.Fatalf("expected order.created event, got %s", event.Type)
	}
	if event.Amount != 4200 {
		t.Fatalf("expected event amount 4200, got %d", event.Amount)
	}
	if event.CurrentStatus != "received" {
		t.Fatalf("expected event status received, got %s", event.CurrentStatus)
	}
}

func TestCheckoutServiceValidation(t *testing.T) {
	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Fulfillment: &stubFulfillmentRepository{},
		Counters:    &stubCounterService{},
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	addr := domain.Address{Line1: "12 MG Road", Country: "IN"}

	if _, err := svc.Checkout(context.Background(), CheckoutCommand{ShippingAddress: addr}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput for missing user, got %v", err)
	}
	if _, err := svc.Checkout(context.Background(), CheckoutCommand{UserID: "user-1"}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput for missing address, got %v", err)
	}
}

func TestCheckoutServiceTranslatesFulfillmentErrors(t *testing.T) {
	cases := []struct {
		code repositories.FulfillmentErrorCode
		want error
	}{
		{repositories.FulfillmentErrorEmptyCart, ErrCheckoutEmptyCart},
		{repositories.FulfillmentErrorProductUnavailable, ErrCheckoutProductUnavailable},
		{repositories.FulfillmentErrorInsufficientStock, ErrCheckoutInsufficientStock},
		{repositories.FulfillmentErrorInsufficientFunds, ErrCheckoutInsufficientFunds},
		{repositories.FulfillmentErrorWalletNotFound, ErrCheckoutWalletNotFound},
		{repositories.FulfillmentErrorConflict, ErrCheckoutConflict},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			fulfillment := &stubFulfillmentRepository{
				checkoutFn: func(context.Context, repositories.CheckoutExecution) (repositories.CheckoutOutcome, error) {
					return repositories.CheckoutOutcome{}, repositories.NewFulfillmentError(tc.code, "rejected", nil)
				},
			}
			svc, err := NewCheckoutService(CheckoutServiceDeps{
				Fulfillment: fulfillment,
				Counters:    &stubCounterService{},
			})
			if err != nil {
				t.Fatalf("NewCheckoutService: %v", err)
			}

			_, err = svc.Checkout(context.Background(), CheckoutCommand{
				UserID:          "user-1",
				ShippingAddress: domain.Address{Line1: "12 MG Road", Country: "IN"},
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCheckoutServicePublishFailureIsNonFatal(t *testing.T) {
	fulfillment := &stubFulfillmentRepository{
		checkoutFn: func(_ context.Context, req repositories.CheckoutExecution) (repositories.CheckoutOutcome, error) {
			return repositories.CheckoutOutcome{Order: domain.Order{ID: req.OrderID, UserID: req.UserID}}, nil
		},
	}
	publisher := &recordingPublisher{
		failFn: func(OrderEvent) error { return errors.New("broker down") },
	}

	svc, err := NewCheckoutService(CheckoutServiceDeps{
		Fulfillment: fulfillment,
		Counters:    &stubCounterService{},
		Events:      publisher,
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}

	if _, err := svc.Checkout(context.Background(), CheckoutCommand{
		UserID:          "user-1",
		ShippingAddress: domain.Address{Line1: "12 MG Road", Country: "IN"},
	}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
}

func seedCache(t *testing.T, store *cache.MemoryClient, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if err := store.Set(context.Background(), key, []byte(`{}`), time.Minute); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
}

func assertCacheMiss(t *testing.T, store *cache.MemoryClient, key string) {
	t.Helper()
	if _, err := store.Get(context.Background(), key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("expected %s to be invalidated, got %v", key, err)
	}
}
