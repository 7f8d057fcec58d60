package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
)

func availableProduct(id string) func(context.Context, string) (domain.Product, error) {
	return func(context.Context, string) (domain.Product, error) {
		return domain.Product{ID: id, Stock: 5}, nil
	}
}

func newCartServiceForTest(t *testing.T, deps CartServiceDeps) CartService {
	t.Helper()
	if deps.Carts == nil {
		deps.Carts = &stubCartRepository{}
	}
	if deps.Products == nil {
		deps.Products = &stubProductRepository{findByIDFn: availableProduct("prd_1")}
	}
	svc, err := NewCartService(deps)
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestCartServiceUpsertItemAddsLine(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				ID:     "user-1",
				UserID: "user-1",
				Items:  []domain.CartItem{{ProductRef: "prd_other", Quantity: 1}},
			}, nil
		},
	}
	svc := newCartServiceForTest(t, CartServiceDeps{Carts: carts})

	cart, err := svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		UserID:     "user-1",
		ProductRef: "prd_1",
		Quantity:   2,
	})
	if err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	if len(carts.replaced) != 1 {
		t.Fatalf("expected one replace, got %d", len(carts.replaced))
	}
	items := carts.replaced[0]
	if len(items) != 2 {
		t.Fatalf("expected two lines, got %d", len(items))
	}
	if items[1].ProductRef != "prd_1" || items[1].Quantity != 2 {
		t.Fatalf("expected appended line prd_1 x2, got %+v", items[1])
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected updated cart returned, got %d items", len(cart.Items))
	}
}

func TestCartServiceUpsertItemReplacesQuantity(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				ID:     "user-1",
				UserID: "user-1",
				Items:  []domain.CartItem{{ProductRef: "prd_1", Quantity: 1}},
			}, nil
		},
	}
	svc := newCartServiceForTest(t, CartServiceDeps{Carts: carts})

	if _, err := svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		UserID:     "user-1",
		ProductRef: "prd_1",
		Quantity:   4,
	}); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	items := carts.replaced[0]
	if len(items) != 1 {
		t.Fatalf("expected single line, got %d", len(items))
	}
	if items[0].Quantity != 4 {
		t.Fatalf("expected quantity overwritten to 4, got %d", items[0].Quantity)
	}
}

func TestCartServiceUpsertItemValidation(t *testing.T) {
	svc := newCartServiceForTest(t, CartServiceDeps{})

	cases := []struct {
		name string
		cmd  UpsertCartItemCommand
	}{
		{"missing user", UpsertCartItemCommand{ProductRef: "prd_1", Quantity: 1}},
		{"missing product", UpsertCartItemCommand{UserID: "user-1", Quantity: 1}},
		{"zero quantity", UpsertCartItemCommand{UserID: "user-1", ProductRef: "prd_1"}},
		{"over limit", UpsertCartItemCommand{UserID: "user-1", ProductRef: "prd_1", Quantity: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpsertItem(context.Background(), tc.cmd); !errors.Is(err, ErrCartInvalidInput) {
				t.Fatalf("expected ErrCartInvalidInput, got %v", err)
			}
		})
	}
}

func TestCartServiceUpsertItemRejectsUnavailableProduct(t *testing.T) {
	missing := &stubProductRepository{}
	svc := newCartServiceForTest(t, CartServiceDeps{Products: missing})

	if _, err := svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		UserID:     "user-1",
		ProductRef: "prd_missing",
		Quantity:   1,
	}); !errors.Is(err, ErrCartProductUnavailable) {
		t.Fatalf("expected ErrCartProductUnavailable for missing product, got %v", err)
	}

	delisted := &stubProductRepository{
		findByIDFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{ID: "prd_1", Stock: 5, IsDeleted: true}, nil
		},
	}
	svc = newCartServiceForTest(t, CartServiceDeps{Products: delisted})

	if _, err := svc.UpsertItem(context.Background(), UpsertCartItemCommand{
		UserID:     "user-1",
		ProductRef: "prd_1",
		Quantity:   1,
	}); !errors.Is(err, ErrCartProductUnavailable) {
		t.Fatalf("expected ErrCartProductUnavailable for delisted product, got %v", err)
	}
}

func TestCartServiceRemoveItem(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(context.Context, string) (domain.Cart, error) {
			return domain.Cart{
				ID:     "user-1",
				UserID: "user-1",
				Items: []domain.CartItem{
					{ProductRef: "prd_1", Quantity: 2},
					{ProductRef: "prd_2", Quantity: 1},
				},
			}, nil
		},
	}
	svc := newCartServiceForTest(t, CartServiceDeps{Carts: carts})

	if _, err := svc.RemoveItem(context.Background(), RemoveCartItemCommand{
		UserID:     "user-1",
		ProductRef: "prd_1",
	}); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}

	items := carts.replaced[0]
	if len(items) != 1 || items[0].ProductRef != "prd_2" {
		t.Fatalf("expected only prd_2 to remain, got %+v", items)
	}

	if _, err := svc.RemoveItem(context.Background(), RemoveCartItemCommand{
		UserID:     "user-1",
		ProductRef: "prd_absent",
	}); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartServiceSetShippingAddress(t *testing.T) {
	now := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)
	var saved domain.Cart
	carts := &stubCartRepository{
		upsertFn: func(_ context.Context, cart domain.Cart) (domain.Cart, error) {
			saved = cart
			return cart, nil
		},
	}
	svc := newCartServiceForTest(t, CartServiceDeps{Carts: carts, Clock: fixedClock(now)})

	cart, err := svc.SetShippingAddress(context.Background(), SetCartAddressCommand{
		UserID:    "user-1",
		AddressID: "addr-7",
	})
	if err != nil {
		t.Fatalf("SetShippingAddress: %v", err)
	}
	if saved.ShippingAddressID != "addr-7" {
		t.Fatalf("expected address saved, got %q", saved.ShippingAddressID)
	}
	if !saved.UpdatedAt.Equal(now) {
		t.Fatalf("expected updatedAt %s, got %s", now, saved.UpdatedAt)
	}
	if cart.ShippingAddressID != "addr-7" {
		t.Fatalf("expected returned cart updated, got %q", cart.ShippingAddressID)
	}
}

func TestCartServiceClearCart(t *testing.T) {
	carts := &stubCartRepository{}
	svc := newCartServiceForTest(t, CartServiceDeps{Carts: carts})

	if err := svc.ClearCart(context.Background(), "user-1"); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if len(carts.replaced) != 1 || carts.replaced[0] != nil {
		t.Fatalf("expected items replaced with nil, got %+v", carts.replaced)
	}

	if err := svc.ClearCart(context.Background(), "  "); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}
