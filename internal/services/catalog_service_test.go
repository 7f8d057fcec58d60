package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/platform/cache"
)

func newCatalogServiceForTest(t *testing.T, deps CatalogServiceDeps) CatalogService {
	t.Helper()
	if deps.Products == nil {
		deps.Products = &stubProductRepository{}
	}
	if deps.Counters == nil {
		deps.Counters = &stubCounterService{}
	}
	svc, err := NewCatalogService(deps)
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return svc
}

func TestCatalogServiceCreateProductMintsIdentifiers(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubProductRepository{}
	counters := &stubCounterService{
		slugFn: func(_ context.Context, name string) (string, error) {
			if name != "Teak Spice Box" {
				t.Fatalf("expected product name, got %q", name)
			}
			return "teak-spice-box-2", nil
		},
		skuFn: func(context.Context) (string, error) { return "SKU000034", nil },
	}

	svc := newCatalogServiceForTest(t, CatalogServiceDeps{
		Products:    repo,
		Counters:    counters,
		Clock:       fixedClock(now),
		IDGenerator: func() string { return "prd_test" },
	})

	product, err := svc.CreateProduct(context.Background(), CreateProductCommand{
		Name:    "  Teak Spice Box  ",
		Price:   129900,
		Stock:   10,
		ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	if len(repo.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(repo.inserted))
	}
	got := repo.inserted[0]
	if got.ID != "prd_test" {
		t.Fatalf("expected id prd_test, got %s", got.ID)
	}
	if got.Slug != "teak-spice-box-2" {
		t.Fatalf("expected minted slug, got %s", got.Slug)
	}
	if got.SKU != "SKU000034" {
		t.Fatalf("expected minted sku, got %s", got.SKU)
	}
	if got.Currency != "INR" {
		t.Fatalf("expected default currency INR, got %s", got.Currency)
	}
	if got.Name != "Teak Spice Box" {
		t.Fatalf("expected trimmed name, got %q", got.Name)
	}
	if product.Slug != "teak-spice-box-2" {
		t.Fatalf("expected returned product, got %s", product.Slug)
	}
}

func TestCatalogServiceCreateProductValidation(t *testing.T) {
	svc := newCatalogServiceForTest(t, CatalogServiceDeps{})

	cases := []struct {
		name string
		cmd  CreateProductCommand
	}{
		{"missing name", CreateProductCommand{Price: 100, Stock: 1}},
		{"negative price", CreateProductCommand{Name: "Bowl", Price: -1, Stock: 1}},
		{"negative stock", CreateProductCommand{Name: "Bowl", Price: 100, Stock: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateProduct(context.Background(), tc.cmd); !errors.Is(err, ErrCatalogInvalidInput) {
				t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
			}
		})
	}
}

func TestCatalogServiceUpdateProductAppliesPatch(t *testing.T) {
	existing := domain.Product{
		ID:    "prd_1",
		Slug:  "walnut-tray",
		Name:  "Walnut Tray",
		Price: 49900,
		Stock: 5,
	}
	repo := &stubProductRepository{
		findByIDFn: func(context.Context, string) (domain.Product, error) {
			return existing, nil
		},
	}
	svc := newCatalogServiceForTest(t, CatalogServiceDeps{Products: repo})

	price := int64(59900)
	stock := 8
	product, err := svc.UpdateProduct(context.Background(), UpdateProductCommand{
		ProductID: "prd_1",
		Price:     &price,
		Stock:     &stock,
	})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if product.Price != 59900 || product.Stock != 8 {
		t.Fatalf("expected patched price/stock, got %d/%d", product.Price, product.Stock)
	}
	if product.Name != "Walnut Tray" {
		t.Fatalf("untouched fields should survive, got %q", product.Name)
	}

	negative := int64(-1)
	if _, err := svc.UpdateProduct(context.Background(), UpdateProductCommand{
		ProductID: "prd_1",
		Price:     &negative,
	}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput for negative price, got %v", err)
	}
}

func TestCatalogServiceGetProductBySlugCaches(t *testing.T) {
	repo := &stubProductRepository{
		findBySlugFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{ID: "prd_1", Slug: "walnut-tray"}, nil
		},
	}
	store := cache.NewMemoryClient()
	svc := newCatalogServiceForTest(t, CatalogServiceDeps{Products: repo, Cache: store})

	for i := 0; i < 2; i++ {
		product, err := svc.GetProductBySlug(context.Background(), "walnut-tray")
		if err != nil {
			t.Fatalf("GetProductBySlug: %v", err)
		}
		if product.ID != "prd_1" {
			t.Fatalf("expected prd_1, got %s", product.ID)
		}
	}
	if repo.findSlugCalls != 1 {
		t.Fatalf("expected one repository read, got %d", repo.findSlugCalls)
	}
}

func TestCatalogServiceGetProductNotFound(t *testing.T) {
	svc := newCatalogServiceForTest(t, CatalogServiceDeps{})

	if _, err := svc.GetProduct(context.Background(), "prd_missing"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
}

func TestCatalogServiceDeleteProductInvalidatesCache(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var deletedAt time.Time
	repo := &stubProductRepository{
		findByIDFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{ID: "prd_1", Slug: "walnut-tray"}, nil
		},
		softDeleteFn: func(_ context.Context, _ string, at time.Time) error {
			deletedAt = at
			return nil
		},
	}
	store := cache.NewMemoryClient()
	seedCache(t, store, cache.ProductKey("walnut-tray"), cache.ProductListKey("20:"))

	svc := newCatalogServiceForTest(t, CatalogServiceDeps{
		Products: repo,
		Cache:    store,
		Clock:    fixedClock(now),
	})

	if err := svc.DeleteProduct(context.Background(), DeleteProductCommand{ProductID: "prd_1", ActorID: "admin-1"}); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if !deletedAt.Equal(now) {
		t.Fatalf("expected soft delete at %s, got %s", now, deletedAt)
	}

	assertCacheMiss(t, store, cache.ProductKey("walnut-tray"))
	assertCacheMiss(t, store, cache.ProductListKey("20:"))
}
