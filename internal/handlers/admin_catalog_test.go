package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/services"
)

func newAdminCatalogRouter(svc services.CatalogService) chi.Router {
	handler := NewAdminCatalogHandlers(nil, svc)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	return router
}

func TestAdminCatalogHandlersCreateProduct(t *testing.T) {
	var captured services.CreateProductCommand
	svc := &stubCatalogService{
		createFn: func(ctx context.Context, cmd services.CreateProductCommand) (services.Product, error) {
			captured = cmd
			return services.Product{
				ID:       "prod_new",
				SKU:      "SKU000035",
				Slug:     "walnut-tray",
				Name:     cmd.Name,
				Price:    cmd.Price,
				Currency: "inr",
				Stock:    cmd.Stock,
			}, nil
		},
	}

	body := []byte(`{"name":"Walnut Tray","description":"hand finished","price":3400,"currency":"INR","stock":6}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/products", bytes.NewReader(body))
	req = authedRequest(req, adminIdentity())

	rr := httptest.NewRecorder()
	newAdminCatalogRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Name != "Walnut Tray" || captured.Price != 3400 || captured.Stock != 6 {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.ActorID != "admin-1" {
		t.Fatalf("expected actor admin-1, got %s", captured.ActorID)
	}

	var resp productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Product.SKU != "SKU000035" || resp.Product.Slug != "walnut-tray" {
		t.Fatalf("unexpected product %#v", resp.Product)
	}
}

func TestAdminCatalogHandlersCreateProductValidation(t *testing.T) {
	svc := &stubCatalogService{
		createFn: func(context.Context, services.CreateProductCommand) (services.Product, error) {
			return services.Product{}, services.ErrCatalogInvalidInput
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/products", bytes.NewReader([]byte(`{"name":"","price":-1}`)))
	req = authedRequest(req, adminIdentity())

	rr := httptest.NewRecorder()
	newAdminCatalogRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminCatalogHandlersUpdateProduct(t *testing.T) {
	var captured services.UpdateProductCommand
	svc := &stubCatalogService{
		updateFn: func(ctx context.Context, cmd services.UpdateProductCommand) (services.Product, error) {
			captured = cmd
			return services.Product{ID: cmd.ProductID, Name: "Renamed"}, nil
		},
	}

	body := []byte(`{"name":"Renamed","price":2800}`)
	req := httptest.NewRequest(http.MethodPatch, "/admin/products/prod-1", bytes.NewReader(body))
	req = authedRequest(req, adminIdentity())

	rr := httptest.NewRecorder()
	newAdminCatalogRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ProductID != "prod-1" {
		t.Fatalf("expected prod-1, got %s", captured.ProductID)
	}
	if captured.Name == nil || *captured.Name != "Renamed" {
		t.Fatalf("expected name patch, got %#v", captured.Name)
	}
	if captured.Price == nil || *captured.Price != 2800 {
		t.Fatalf("expected price patch, got %#v", captured.Price)
	}
	if captured.Stock != nil {
		t.Fatalf("expected stock untouched, got %#v", captured.Stock)
	}
}

func TestAdminCatalogHandlersListIncludesDeleted(t *testing.T) {
	var captured services.ListProductsCommand
	svc := &stubCatalogService{
		listFn: func(ctx context.Context, cmd services.ListProductsCommand) (domain.CursorPage[services.Product], error) {
			captured = cmd
			return domain.CursorPage[services.Product]{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/products?include_deleted=true", nil)
	req = authedRequest(req, adminIdentity())

	rr := httptest.NewRecorder()
	newAdminCatalogRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !captured.IncludeDeleted {
		t.Fatal("expected include_deleted filter")
	}
}

func TestAdminCatalogHandlersDeleteProduct(t *testing.T) {
	var captured services.DeleteProductCommand
	svc := &stubCatalogService{
		deleteFn: func(ctx context.Context, cmd services.DeleteProductCommand) error {
			captured = cmd
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/admin/products/prod-1", nil)
	req = authedRequest(req, adminIdentity())

	rr := httptest.NewRecorder()
	newAdminCatalogRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if captured.ProductID != "prod-1" || captured.ActorID != "admin-1" {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestAdminCatalogHandlersDeleteProductNotFound(t *testing.T) {
	svc := &stubCatalogService{
		deleteFn: func(context.Context, services.DeleteProductCommand) error {
			return services.ErrCatalogNotFound
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/admin/products/missing", nil)
	req = authedRequest(req, adminIdentity())

	rr := httptest.NewRecorder()
	newAdminCatalogRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
