package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/pravesh-commerce/api/internal/domain"
	pfirestore "github.com/pravesh-commerce/api/internal/platform/firestore"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const cartsCollection = "carts"

// CartRepository persists the per-user cart document, keyed by user ID.
// Items are embedded; checkout clears them inside its own transaction.
type CartRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil)
	return &CartRepository{provider: provider, base: base}, nil
}

// GetCart loads the cart for the given user. A missing document is returned
// as an empty cart rather than an error.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{ID: uid, UserID: uid, Items: []domain.CartItem{}}, nil
		}
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// UpsertCart writes the full cart document.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		uid = strings.TrimSpace(cart.ID)
	}
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	doc := newCartDocument(cart)
	doc.UpdatedAt = now
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	if _, err := r.base.Set(ctx, uid, doc); err != nil {
		return domain.Cart{}, err
	}
	return doc.toDomain(uid), nil
}

// ReplaceItems swaps the cart's item list, creating the cart when absent.
func (r *CartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	lines := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		ref := strings.TrimSpace(item.ProductRef)
		if ref == "" || item.Quantity <= 0 {
			continue
		}
		lines = append(lines, cartItemDocument{ProductRef: ref, Quantity: item.Quantity})
	}

	payload := map[string]any{
		"items":     lines,
		"updatedAt": now,
	}
	ref, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	if _, err := ref.Set(ctx, payload, firestore.MergeAll); err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.replaceItems", err)
	}
	return r.GetCart(ctx, uid)
}

// Document mapping -----------------------------------------------------------

type cartDocument struct {
	Items             []cartItemDocument `firestore:"items"`
	ShippingAddressID string             `firestore:"shippingAddressId,omitempty"`
	Currency          string             `firestore:"currency,omitempty"`
	CreatedAt         time.Time          `firestore:"createdAt"`
	UpdatedAt         time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductRef string `firestore:"productRef"`
	Quantity   int    `firestore:"qty"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		ref := strings.TrimSpace(item.ProductRef)
		if ref == "" || item.Quantity <= 0 {
			continue
		}
		items = append(items, cartItemDocument{ProductRef: ref, Quantity: item.Quantity})
	}
	return cartDocument{
		Items:             items,
		ShippingAddressID: strings.TrimSpace(cart.ShippingAddressID),
		Currency:          strings.ToUpper(strings.TrimSpace(cart.Currency)),
		CreatedAt:         cart.CreatedAt.UTC(),
		UpdatedAt:         cart.UpdatedAt.UTC(),
	}
}

func (d cartDocument) toDomain(userID string) domain.Cart {
	items := make([]domain.CartItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.CartItem{ProductRef: item.ProductRef, Quantity: item.Quantity}
	}
	return domain.Cart{
		ID:                userID,
		UserID:            userID,
		Items:             items,
		ShippingAddressID: d.ShippingAddressID,
		Currency:          d.Currency,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

var _ repositories.CartRepository = (*CartRepository)(nil)
