package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const maxCartLineQuantity = 99

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductUnavailable indicates the referenced product cannot be added.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
	// ErrCartItemNotFound indicates the referenced line is not in the cart.
	ErrCartItemNotFound = errors.New("cart: item not found")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.carts.GetCart(ctx, userID)
}

func (s *cartService) UpsertItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productRef := strings.TrimSpace(cmd.ProductRef)
	if productRef == "" {
		return Cart{}, fmt.Errorf("%w: product ref is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 || cmd.Quantity > maxCartLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrCartInvalidInput, maxCartLineQuantity)
	}

	// Availability is advisory here; checkout revalidates stock inside its
	// transaction.
	product, err := s.products.FindByID(ctx, productRef)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Cart{}, fmt.Errorf("%w: product %s not found", ErrCartProductUnavailable, productRef)
		}
		return Cart{}, err
	}
	if !product.Available() {
		return Cart{}, fmt.Errorf("%w: product %s is not purchasable", ErrCartProductUnavailable, productRef)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	items := make([]domain.CartItem, 0, len(cart.Items)+1)
	replaced := false
	for _, item := range cart.Items {
		if item.ProductRef == productRef {
			items = append(items, domain.CartItem{ProductRef: productRef, Quantity: cmd.Quantity})
			replaced = true
			continue
		}
		items = append(items, item)
	}
	if !replaced {
		items = append(items, domain.CartItem{ProductRef: productRef, Quantity: cmd.Quantity})
	}

	updated, err := s.carts.ReplaceItems(ctx, userID, items)
	if err != nil {
		return Cart{}, err
	}

	s.logger(ctx, "cart.item.upserted", map[string]any{
		"userId":     userID,
		"productRef": productRef,
		"quantity":   cmd.Quantity,
	})
	return updated, nil
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productRef := strings.TrimSpace(cmd.ProductRef)
	if productRef == "" {
		return Cart{}, fmt.Errorf("%w: product ref is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	items := make([]domain.CartItem, 0, len(cart.Items))
	found := false
	for _, item := range cart.Items {
		if item.ProductRef == productRef {
			found = true
			continue
		}
		items = append(items, item)
	}
	if !found {
		return Cart{}, fmt.Errorf("%w: product %s is not in the cart", ErrCartItemNotFound, productRef)
	}

	updated, err := s.carts.ReplaceItems(ctx, userID, items)
	if err != nil {
		return Cart{}, err
	}

	s.logger(ctx, "cart.item.removed", map[string]any{
		"userId":     userID,
		"productRef": productRef,
	})
	return updated, nil
}

func (s *cartService) SetShippingAddress(ctx context.Context, cmd SetCartAddressCommand) (Cart, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	addressID := strings.TrimSpace(cmd.AddressID)
	if addressID == "" {
		return Cart{}, fmt.Errorf("%w: address id is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	cart.ShippingAddressID = addressID
	cart.UpdatedAt = s.clock()

	return s.carts.UpsertCart(ctx, cart)
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if _, err := s.carts.ReplaceItems(ctx, userID, nil); err != nil {
		return err
	}
	s.logger(ctx, "cart.cleared", map[string]any{"userId": userID})
	return nil
}
