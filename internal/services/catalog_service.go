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
	"github.com/pravesh-commerce/api/internal/repositories"
)

const productIDPrefix = "prd_"

var (
	// ErrCatalogInvalidInput signals the caller provided invalid data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the product could not be located.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogConflict indicates a concurrent modification collided.
	ErrCatalogConflict = errors.New("catalog: conflict")
)

// CatalogCacheTTL configures the cache tier used by catalog reads.
type CatalogCacheTTL struct {
	Medium time.Duration
}

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Counters    CounterService
	Cache       CacheStore
	TTL         CatalogCacheTTL
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products repositories.ProductRepository
	counters CounterService
	cache    CacheStore
	ttl      CatalogCacheTTL
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("catalog service: counter service is required")
	}

	ttl := deps.TTL
	if ttl.Medium <= 0 {
		ttl.Medium = 15 * time.Minute
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return productIDPrefix + ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		products: deps.Products,
		counters: deps.Counters,
		cache:    deps.Cache,
		ttl:      ttl,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if cmd.Price < 0 {
		return Product{}, fmt.Errorf("%w: price cannot be negative", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock cannot be negative", ErrCatalogInvalidInput)
	}

	slug, err := s.counters.NextProductSlug(ctx, name)
	if err != nil {
		return Product{}, fmt.Errorf("mint slug: %w", err)
	}
	sku, err := s.counters.NextSKU(ctx)
	if err != nil {
		return Product{}, fmt.Errorf("mint sku: %w", err)
	}

	now := s.clock()
	product := domain.Product{
		ID:          s.newID(),
		SKU:         sku,
		Slug:        slug,
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		BrandRef:    cmd.BrandRef,
		CategoryRef: cmd.CategoryRef,
		Price:       cmd.Price,
		Currency:    strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		Stock:       cmd.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if product.Currency == "" {
		product.Currency = defaultCurrency
	}

	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, translateCatalogError(err)
	}

	s.logger(ctx, "catalog.product.created", map[string]any{
		"productId": product.ID,
		"slug":      product.Slug,
		"sku":       product.SKU,
		"actorId":   cmd.ActorID,
	})

	invalidateProductCaches(ctx, s.cache, s.logger, product.Slug)
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, translateCatalogError(err)
	}

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Product{}, fmt.Errorf("%w: name cannot be empty", ErrCatalogInvalidInput)
		}
		product.Name = name
	}
	if cmd.Description != nil {
		product.Description = strings.TrimSpace(*cmd.Description)
	}
	if cmd.BrandRef != nil {
		product.BrandRef = cmd.BrandRef
	}
	if cmd.CategoryRef != nil {
		product.CategoryRef = cmd.CategoryRef
	}
	if cmd.Price != nil {
		if *cmd.Price < 0 {
			return Product{}, fmt.Errorf("%w: price cannot be negative", ErrCatalogInvalidInput)
		}
		product.Price = *cmd.Price
	}
	if cmd.Stock != nil {
		if *cmd.Stock < 0 {
			return Product{}, fmt.Errorf("%w: stock cannot be negative", ErrCatalogInvalidInput)
		}
		product.Stock = *cmd.Stock
	}
	product.UpdatedAt = s.clock()

	updated, err := s.products.Update(ctx, product)
	if err != nil {
		return Product{}, translateCatalogError(err)
	}

	s.logger(ctx, "catalog.product.updated", map[string]any{
		"productId": updated.ID,
		"actorId":   cmd.ActorID,
	})

	invalidateProductCaches(ctx, s.cache, s.logger, updated.Slug)
	return updated, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, translateCatalogError(err)
	}
	return product, nil
}

func (s *catalogService) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, fmt.Errorf("%w: slug is required", ErrCatalogInvalidInput)
	}

	key := cache.ProductKey(slug)
	var product Product
	if s.cacheGet(ctx, key, &product) {
		return product, nil
	}

	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return Product{}, translateCatalogError(err)
	}
	s.cacheSet(ctx, key, product, s.ttl.Medium)
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, cmd ListProductsCommand) (domain.CursorPage[Product], error) {
	cacheable := !cmd.IncludeDeleted && !cmd.InStockOnly
	var key string
	if cacheable {
		key = cache.ProductListKey(listCacheToken(cmd.Pagination))
		var page domain.CursorPage[Product]
		if s.cacheGet(ctx, key, &page) {
			return page, nil
		}
	}

	page, err := s.products.List(ctx, repositories.ProductListFilter{
		IncludeDeleted: cmd.IncludeDeleted,
		InStockOnly:    cmd.InStockOnly,
		Pagination:     cmd.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, translateCatalogError(err)
	}

	if cacheable {
		s.cacheSet(ctx, key, page, s.ttl.Medium)
	}
	return page, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, cmd DeleteProductCommand) error {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return translateCatalogError(err)
	}

	if err := s.products.SoftDelete(ctx, productID, s.clock()); err != nil {
		return translateCatalogError(err)
	}

	s.logger(ctx, "catalog.product.deleted", map[string]any{
		"productId": productID,
		"actorId":   cmd.ActorID,
	})

	invalidateProductCaches(ctx, s.cache, s.logger, product.Slug)
	return nil
}

func (s *catalogService) cacheGet(ctx context.Context, key string, out any) bool {
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
		return false
	}
	return true
}

func (s *catalogService) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
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

func translateCatalogError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		}
	}
	return err
}
