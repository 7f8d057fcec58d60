package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/platform/auth"
	"github.com/pravesh-commerce/api/internal/services"
)

type stubCheckoutService struct {
	checkoutFn func(context.Context, services.CheckoutCommand) (services.Order, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

var _ services.CheckoutService = (*stubCheckoutService)(nil)

func newCheckoutRouter(svc services.CheckoutService) chi.Router {
	handler := NewCheckoutHandlers(nil, svc)
	router := chi.NewRouter()
	handler.Routes(router)
	return router
}

func authedRequest(req *http.Request, identity *auth.Identity) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestCheckoutHandlersCreateOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	var captured services.CheckoutCommand
	svc := &stubCheckoutService{
		checkoutFn: func(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:          "ord_1",
				OrderNumber: "PC-2025-000001",
				UserID:      cmd.UserID,
				Status:      domain.OrderStatusReceived,
				History: []domain.StatusChange{
					{Status: domain.OrderStatusReceived, Timestamp: now},
				},
				Items: []domain.OrderLineItem{
					{ProductRef: "prod-1", Name: "Teak Spice Box", Quantity: 2, UnitPrice: 2100, Total: 4200},
				},
				TotalAmount: 4200,
				Currency:    "inr",
				CreatedAt:   now,
				Version:     1,
			}, nil
		},
	}

	body := []byte(`{"shipping_address":{"line1":"12 MG Road","city":"Bengaluru","postal_code":"560001","country":"in"},"currency":"INR"}`)
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader(body))
	req.Header.Set("Idempotency-Key", "idem-123")
	req = authedRequest(req, &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	newCheckoutRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", captured.UserID)
	}
	if captured.IdempotencyKey != "idem-123" {
		t.Fatalf("expected idempotency key, got %q", captured.IdempotencyKey)
	}
	if captured.ShippingAddress.Country != "IN" {
		t.Fatalf("expected country uppercased, got %s", captured.ShippingAddress.Country)
	}

	var resp checkoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.OrderNumber != "PC-2025-000001" {
		t.Fatalf("unexpected order number %s", resp.Order.OrderNumber)
	}
	if resp.Order.Status != "received" {
		t.Fatalf("expected received, got %s", resp.Order.Status)
	}
	if resp.Order.Currency != "INR" {
		t.Fatalf("expected currency uppercased, got %s", resp.Order.Currency)
	}
	if resp.Order.TotalAmount != 4200 {
		t.Fatalf("expected total 4200, got %d", resp.Order.TotalAmount)
	}
}

func TestCheckoutHandlersRequiresAuthentication(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader([]byte(`{}`)))

	rr := httptest.NewRecorder()
	newCheckoutRouter(&stubCheckoutService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCheckoutHandlersRequiresShippingAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader([]byte(`{"currency":"INR"}`)))
	req = authedRequest(req, &auth.Identity{UID: "user-1"})

	rr := httptest.NewRecorder()
	newCheckoutRouter(&stubCheckoutService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCheckoutHandlersErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "empty cart", err: services.ErrCheckoutEmptyCart, status: http.StatusBadRequest, code: "cart_empty"},
		{name: "unavailable product", err: services.ErrCheckoutProductUnavailable, status: http.StatusConflict, code: "product_unavailable"},
		{name: "insufficient stock", err: services.ErrCheckoutInsufficientStock, status: http.StatusConflict, code: "insufficient_stock"},
		{name: "insufficient funds", err: services.ErrCheckoutInsufficientFunds, status: http.StatusPaymentRequired, code: "insufficient_funds"},
		{name: "wallet missing", err: services.ErrCheckoutWalletNotFound, status: http.StatusNotFound, code: "wallet_not_found"},
		{name: "conflict", err: services.ErrCheckoutConflict, status: http.StatusConflict, code: "checkout_conflict"},
		{name: "internal", err: errors.New("boom"), status: http.StatusInternalServerError, code: "checkout_error"},
	}

	body := []byte(`{"shipping_address":{"line1":"12 MG Road","city":"Bengaluru","postal_code":"560001","country":"IN"}}`)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCheckoutService{
				checkoutFn: func(context.Context, services.CheckoutCommand) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader(body))
			req = authedRequest(req, &auth.Identity{UID: "user-1"})

			rr := httptest.NewRecorder()
			newCheckoutRouter(svc).ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			var envelope struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("failed to parse error body: %v", err)
			}
			if envelope.Error != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, envelope.Error)
			}
		})
	}
}
