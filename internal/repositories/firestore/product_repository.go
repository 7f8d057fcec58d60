package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/pravesh-commerce/api/internal/domain"
	pfirestore "github.com/pravesh-commerce/api/internal/platform/firestore"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const productsCollection = "products"

// ProductRepository persists catalog documents within Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{provider: provider, base: base}, nil
}

// Insert creates the product document, failing on duplicate IDs.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}

	ref, err := r.base.DocumentRef(ctx, product.ID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, newProductDocument(product)); err != nil {
		return pfirestore.WrapError("products.insert", err)
	}
	return nil
}

// Update rewrites mutable catalog fields. Stock and lifetime-sold counters are
// preserved from the stored document so catalog edits cannot race the
// fulfillment transactions that own them.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	var saved domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, product.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current productDocument
		if err := snap.DataTo(&current); err != nil {
			return fmt.Errorf("decode product %s: %w", product.ID, err)
		}

		next := newProductDocument(product)
		next.SoldCount = current.SoldCount
		next.CreatedAt = current.CreatedAt
		if err := tx.Set(ref, next); err != nil {
			return err
		}
		saved = next.toDomain(product.ID)
		return nil
	})
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.update", err)
	}
	return saved, nil
}

// FindByID loads one product by document ID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindBySlug loads one product by its unique slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return domain.Product{}, errors.New("product repository: slug is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.findBySlug", err)
	}

	iter := client.Collection(productsCollection).Where("slug", "==", trimmed).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Product{}, pfirestore.WrapError("products.findBySlug", status.Errorf(codes.NotFound, "product with slug %s not found", trimmed))
	}
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.findBySlug", err)
	}
	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// List returns products ordered by creation time descending.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
	}

	query := client.Collection(productsCollection).Query
	if !filter.IncludeDeleted {
		query = query.Where("isDeleted", "==", false)
	}
	if filter.InStockOnly {
		query = query.Where("stock", ">", 0)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		createdAt, lastID, err := decodeCreatedAtToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		query = query.StartAfter(createdAt, lastID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		products = append(products, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		encoded, err := encodeCreatedAtToken(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Product]{
		Items:         products,
		NextPageToken: nextToken,
	}, nil
}

// SoftDelete marks the product as deleted; the document stays for order history.
func (r *ProductRepository) SoftDelete(ctx context.Context, productID string, deletedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}

	updates := []firestore.Update{
		{Path: "isDeleted", Value: true},
		{Path: "updatedAt", Value: deletedAt.UTC()},
	}
	if _, err := r.base.Update(ctx, id, updates); err != nil {
		return err
	}
	return nil
}

// Document mapping -----------------------------------------------------------

type productDocument struct {
	SKU         string    `firestore:"sku"`
	Slug        string    `firestore:"slug"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	BrandRef    string    `firestore:"brandRef,omitempty"`
	CategoryRef string    `firestore:"categoryRef,omitempty"`
	Price       int64     `firestore:"price"`
	Currency    string    `firestore:"currency"`
	Stock       int       `firestore:"stock"`
	SoldCount   int64     `firestore:"soldCount"`
	IsDeleted   bool      `firestore:"isDeleted"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func newProductDocument(product domain.Product) productDocument {
	doc := productDocument{
		SKU:         strings.TrimSpace(product.SKU),
		Slug:        strings.TrimSpace(product.Slug),
		Name:        strings.TrimSpace(product.Name),
		Description: strings.TrimSpace(product.Description),
		Price:       product.Price,
		Currency:    strings.ToUpper(strings.TrimSpace(product.Currency)),
		Stock:       product.Stock,
		SoldCount:   product.SoldCount,
		IsDeleted:   product.IsDeleted,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	}
	if product.BrandRef != nil {
		doc.BrandRef = strings.TrimSpace(*product.BrandRef)
	}
	if product.CategoryRef != nil {
		doc.CategoryRef = strings.TrimSpace(*product.CategoryRef)
	}
	return doc
}

func (d productDocument) toDomain(id string) domain.Product {
	product := domain.Product{
		ID:          id,
		SKU:         d.SKU,
		Slug:        d.Slug,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Currency:    d.Currency,
		Stock:       d.Stock,
		SoldCount:   d.SoldCount,
		IsDeleted:   d.IsDeleted,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.BrandRef != "" {
		brand := d.BrandRef
		product.BrandRef = &brand
	}
	if d.CategoryRef != "" {
		category := d.CategoryRef
		product.CategoryRef = &category
	}
	return product
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
