package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pravesh-commerce/api/internal/platform/httpx"
	"github.com/pravesh-commerce/api/internal/services"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

// CatalogHandlers exposes unauthenticated product catalog reads.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs the public catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes registers the public /products endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{slug}", h.getProduct)
}

type productPayload struct {
	ID          string  `json:"id"`
	SKU         string  `json:"sku"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	BrandRef    *string `json:"brand_ref,omitempty"`
	CategoryRef *string `json:"category_ref,omitempty"`
	Price       int64   `json:"price"`
	Currency    string  `json:"currency"`
	Stock       int     `json:"stock"`
	SoldCount   int64   `json:"sold_count"`
	Available   bool    `json:"available"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productListResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:          product.ID,
		SKU:         product.SKU,
		Slug:        product.Slug,
		Name:        product.Name,
		Description: product.Description,
		BrandRef:    product.BrandRef,
		CategoryRef: product.CategoryRef,
		Price:       product.Price,
		Currency:    strings.ToUpper(product.Currency),
		Stock:       product.Stock,
		SoldCount:   product.SoldCount,
		Available:   product.Available(),
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
	}
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pager, err := parsePagination(query, defaultProductPageSize, maxProductPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd := services.ListProductsCommand{
		InStockOnly: strings.EqualFold(strings.TrimSpace(query.Get("in_stock")), "true"),
		Pagination:  pager,
	}

	page, err := h.catalog.ListProducts(ctx, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	resp := productListResponse{
		Items:         make([]productPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Items {
		resp.Items = append(resp.Items, buildProductPayload(product))
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product slug is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProductBySlug(ctx, slug)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", "product changed concurrently; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}
