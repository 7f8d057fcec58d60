package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pravesh-commerce/api/internal/platform/auth"
	"github.com/pravesh-commerce/api/internal/platform/httpx"
	"github.com/pravesh-commerce/api/internal/services"
)

const maxAdminCatalogBody = 32 * 1024

// AdminCatalogHandlers exposes admin product CRUD endpoints.
type AdminCatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewAdminCatalogHandlers constructs admin catalog handlers.
func NewAdminCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers admin catalog endpoints; admin role required.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{productID}", h.getProduct)
	r.Patch("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
}

type adminProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BrandRef    *string `json:"brand_ref"`
	CategoryRef *string `json:"category_ref"`
	Price       int64   `json:"price"`
	Currency    string  `json:"currency"`
	Stock       int     `json:"stock"`
}

type adminProductPatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	BrandRef    *string `json:"brand_ref"`
	CategoryRef *string `json:"category_ref"`
	Price       *int64  `json:"price"`
	Stock       *int    `json:"stock"`
}

func (h *AdminCatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxAdminCatalogBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req adminProductRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.CreateProduct(ctx, services.CreateProductCommand{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		BrandRef:    req.BrandRef,
		CategoryRef: req.CategoryRef,
		Price:       req.Price,
		Currency:    strings.TrimSpace(req.Currency),
		Stock:       req.Stock,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxAdminCatalogBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req adminProductPatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		ProductID:   productID,
		Name:        req.Name,
		Description: req.Description,
		BrandRef:    req.BrandRef,
		CategoryRef: req.CategoryRef,
		Price:       req.Price,
		Stock:       req.Stock,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.catalog.ListProducts(ctx, services.ListProductsCommand{
		IncludeDeleted: strings.EqualFold(strings.TrimSpace(query.Get("include_deleted")), "true"),
		InStockOnly:    strings.EqualFold(strings.TrimSpace(query.Get("in_stock")), "true"),
		Pagination:     pager,
	})
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

func (h *AdminCatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.DeleteProduct(ctx, services.DeleteProductCommand{
		ProductID: productID,
		ActorID:   identity.UID,
	}); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
