package firestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/pravesh-commerce/api/internal/domain"
	pfirestore "github.com/pravesh-commerce/api/internal/platform/firestore"
	"github.com/pravesh-commerce/api/internal/repositories"
)

// FulfillmentRepository executes the multi-document order workflows. Every
// method performs all reads first and all writes last inside a single
// Firestore transaction, so a contended commit is retried with fresh state
// and an error never leaves partial mutations behind.
type FulfillmentRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	wallets  *pfirestore.BaseRepository[walletDocument]
	products *pfirestore.BaseRepository[productDocument]
	carts    *pfirestore.BaseRepository[cartDocument]
}

// NewFulfillmentRepository constructs the transactional coordinator repository.
func NewFulfillmentRepository(provider *pfirestore.Provider) (*FulfillmentRepository, error) {
	if provider == nil {
		return nil, errors.New("fulfillment repository requires firestore provider")
	}
	return &FulfillmentRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		wallets:  pfirestore.NewBaseRepository[walletDocument](provider, walletsCollection, nil, nil),
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		carts:    pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil),
	}, nil
}

// ExecuteCheckout converts the user's cart into an order. Prices and stock
// are read inside the transaction; stock decrements, the wallet debit, the
// order creation, and the cart clear commit together or not at all.
func (r *FulfillmentRepository) ExecuteCheckout(ctx context.Context, req repositories.CheckoutExecution) (repositories.CheckoutOutcome, error) {
	if r == nil || r.provider == nil {
		return repositories.CheckoutOutcome{}, errors.New("fulfillment repository not initialised")
	}
	uid := strings.TrimSpace(req.UserID)
	if uid == "" {
		return repositories.CheckoutOutcome{}, errors.New("fulfillment checkout: user id is required")
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.OrderNumber) == "" {
		return repositories.CheckoutOutcome{}, errors.New("fulfillment checkout: order id and number are required")
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var outcome repositories.CheckoutOutcome
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, err := r.carts.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}
		cartSnap, err := tx.Get(cartRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewFulfillmentError(repositories.FulfillmentErrorEmptyCart, fmt.Sprintf("cart for user %s is empty", uid), err)
			}
			return err
		}
		var cart cartDocument
		if err := cartSnap.DataTo(&cart); err != nil {
			return fmt.Errorf("decode cart %s: %w", uid, err)
		}

		lines := mergeCartLines(cart.Items)
		if len(lines) == 0 {
			return repositories.NewFulfillmentError(repositories.FulfillmentErrorEmptyCart, fmt.Sprintf("cart for user %s is empty", uid), nil)
		}

		type pricedLine struct {
			ref     *firestore.DocumentRef
			product productDocument
			qty     int
		}
		priced := make([]pricedLine, 0, len(lines))
		for _, line := range lines {
			productRef, err := r.products.DocumentRef(ctx, line.ProductRef)
			if err != nil {
				return err
			}
			snap, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewFulfillmentError(repositories.FulfillmentErrorProductUnavailable, fmt.Sprintf("product %s not found", line.ProductRef), err)
				}
				return err
			}
			var product productDocument
			if err := snap.DataTo(&product); err != nil {
				return fmt.Errorf("decode product %s: %w", line.ProductRef, err)
			}
			if product.IsDeleted {
				return repositories.NewFulfillmentError(repositories.FulfillmentErrorProductUnavailable, fmt.Sprintf("product %s is no longer available", line.ProductRef), nil)
			}
			// Zero stock means the product is out of stock entirely, not a
			// quantity shortfall.
			if product.Stock == 0 {
				return repositories.NewFulfillmentError(repositories.FulfillmentErrorProductUnavailable, fmt.Sprintf("product %s is out of stock", line.ProductRef), nil)
			}
			if product.Stock < line.Quantity {
				return repositories.NewFulfillmentError(repositories.FulfillmentErrorInsufficientStock, fmt.Sprintf("product %s has %d in stock, %d requested", line.ProductRef, product.Stock, line.Quantity), nil)
			}
			priced = append(priced, pricedLine{ref: snap.Ref, product: product, qty: line.Quantity})
		}

		walletRef, err := r.wallets.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}
		walletSnap, err := tx.Get(walletRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewFulfillmentError(repositories.FulfillmentErrorWalletNotFound, fmt.Sprintf("wallet for user %s not found", uid), err)
			}
			return err
		}
		var wallet walletDocument
		if err := walletSnap.DataTo(&wallet); err != nil {
			return fmt.Errorf("decode wallet %s: %w", uid, err)
		}

		items := make([]domain.OrderLineItem, len(priced))
		var total int64
		for i, line := range priced {
			lineTotal := line.product.Price * int64(line.qty)
			items[i] = domain.OrderLineItem{
				ProductRef: line.ref.ID,
				SKU:        line.product.SKU,
				Name:       line.product.Name,
				Quantity:   line.qty,
				UnitPrice:  line.product.Price,
				Total:      lineTotal,
			}
			total += lineTotal
		}

		if wallet.Balance < total {
			return repositories.NewFulfillmentError(repositories.FulfillmentErrorInsufficientFunds, fmt.Sprintf("wallet balance %d cannot cover %d", wallet.Balance, total), nil)
		}

		// Reads done; apply writes.
		for _, line := range priced {
			product := line.product
			product.Stock -= line.qty
			product.UpdatedAt = now
			if err := tx.Set(line.ref, product); err != nil {
				return err
			}
		}

		if err := wallet.applyEntry(-total, "Payment for order "+req.OrderNumber, req.OrderID, now); err != nil {
			return err
		}
		if err := tx.Set(walletRef, wallet); err != nil {
			return err
		}

		order := domain.Order{
			ID:          req.OrderID,
			OrderNumber: req.OrderNumber,
			UserID:      uid,
			Status:      domain.OrderStatusReceived,
			History: []domain.StatusChange{{
				Status:    domain.OrderStatusReceived,
				Timestamp: now,
			}},
			Items:       items,
			TotalAmount: total,
			Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
			PaidAt:      &now,
		}
		addr := req.ShippingAddress
		order.ShippingAddress = &addr

		orderRef, err := r.orders.DocumentRef(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}

		clear := []firestore.Update{
			{Path: "items", Value: []cartItemDocument{}},
			{Path: "updatedAt", Value: now},
		}
		if err := tx.Update(cartRef, clear); err != nil {
			return err
		}

		outcome = repositories.CheckoutOutcome{
			Order:  order,
			Wallet: wallet.toDomain(uid),
		}
		return nil
	})
	if err != nil {
		return repositories.CheckoutOutcome{}, wrapFulfillmentError("fulfillment.checkout", err)
	}
	return outcome, nil
}

// ExecuteTransition re-reads the order inside the transaction, replans the
// requested change, and applies the plan's wallet and sales side effects.
func (r *FulfillmentRepository) ExecuteTransition(ctx context.Context, req repositories.TransitionExecution) (repositories.TransitionOutcome, error) {
	if r == nil || r.provider == nil {
		return repositories.TransitionOutcome{}, errors.New("fulfillment repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return repositories.TransitionOutcome{}, errors.New("fulfillment transition: order id is required")
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var outcome repositories.TransitionOutcome
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewFulfillmentError(repositories.FulfillmentErrorOrderNotFound, fmt.Sprintf("order %s not found", orderID), err)
			}
			return err
		}
		var orderDoc orderDocument
		if err := orderSnap.DataTo(&orderDoc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}
		order := orderDoc.toDomain(orderID)

		if req.ExpectedVersion != nil && *req.ExpectedVersion != order.Version {
			return repositories.NewFulfillmentError(repositories.FulfillmentErrorConflict, fmt.Sprintf("order %s version mismatch: have %d want %d", orderID, order.Version, *req.ExpectedVersion), nil)
		}

		plan, err := domain.PlanTransition(order, req.Target, now)
		if err != nil {
			return repositories.NewFulfillmentError(repositories.FulfillmentErrorInvalidTransition, err.Error(), err)
		}

		var (
			walletRef *firestore.DocumentRef
			wallet    walletDocument
		)
		if plan.Wallet != domain.WalletActionNone {
			walletRef, err = r.wallets.DocumentRef(ctx, order.UserID)
			if err != nil {
				return err
			}
			walletSnap, err := tx.Get(walletRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewFulfillmentError(repositories.FulfillmentErrorWalletNotFound, fmt.Sprintf("wallet for user %s not found", order.UserID), err)
				}
				return err
			}
			if err := walletSnap.DataTo(&wallet); err != nil {
				return fmt.Errorf("decode wallet %s: %w", order.UserID, err)
			}
			if plan.Wallet == domain.WalletActionDebit && wallet.Balance < plan.Amount {
				return repositories.NewFulfillmentError(repositories.FulfillmentErrorInsufficientFunds, fmt.Sprintf("wallet balance %d cannot cover %d", wallet.Balance, plan.Amount), nil)
			}
		}

		type salesTarget struct {
			ref     *firestore.DocumentRef
			product productDocument
			qty     int
		}
		var salesTargets []salesTarget
		for _, inc := range plan.Sales {
			productRef, err := r.products.DocumentRef(ctx, inc.ProductRef)
			if err != nil {
				return err
			}
			snap, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					// Delisted since purchase; the counter has nowhere to go.
					continue
				}
				return err
			}
			var product productDocument
			if err := snap.DataTo(&product); err != nil {
				return fmt.Errorf("decode product %s: %w", inc.ProductRef, err)
			}
			salesTargets = append(salesTargets, salesTarget{ref: snap.Ref, product: product, qty: inc.Quantity})
		}

		// Reads done; apply writes.
		if plan.Wallet != domain.WalletActionNone {
			amount := plan.Amount
			if plan.Wallet == domain.WalletActionDebit {
				amount = -amount
			}
			if err := wallet.applyEntry(amount, plan.LedgerDescription, orderID, now); err != nil {
				return err
			}
			if err := tx.Set(walletRef, wallet); err != nil {
				return err
			}
		}

		for _, target := range salesTargets {
			product := target.product
			product.SoldCount += int64(target.qty)
			product.UpdatedAt = now
			if err := tx.Set(target.ref, product); err != nil {
				return err
			}
		}

		domain.ApplyTransition(&order, plan)
		if req.Target == domain.OrderStatusCancelled && strings.TrimSpace(req.Note) != "" {
			reason := strings.TrimSpace(req.Note)
			order.CancelReason = &reason
		}
		order.Version++
		if err := tx.Set(orderRef, newOrderDocument(order)); err != nil {
			return err
		}

		outcome = repositories.TransitionOutcome{Order: order, Plan: plan}
		return nil
	})
	if err != nil {
		return repositories.TransitionOutcome{}, wrapFulfillmentError("fulfillment.transition", err)
	}
	return outcome, nil
}

// ExecuteQuoteUpdate reprices a custom order from the admin item list. Lines
// without a price override are priced from the product documents read in the
// same transaction.
func (r *FulfillmentRepository) ExecuteQuoteUpdate(ctx context.Context, req repositories.QuoteExecution) (repositories.QuoteOutcome, error) {
	if r == nil || r.provider == nil {
		return repositories.QuoteOutcome{}, errors.New("fulfillment repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return repositories.QuoteOutcome{}, errors.New("fulfillment quote: order id is required")
	}
	if len(req.Items) == 0 {
		return repositories.QuoteOutcome{}, errors.New("fulfillment quote: at least one item is required")
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var outcome repositories.QuoteOutcome
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewFulfillmentError(repositories.FulfillmentErrorOrderNotFound, fmt.Sprintf("order %s not found", orderID), err)
			}
			return err
		}
		var orderDoc orderDocument
		if err := orderSnap.DataTo(&orderDoc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}
		order := orderDoc.toDomain(orderID)

		if !order.IsCustomOrder {
			return repositories.NewFulfillmentError(repositories.FulfillmentErrorNotCustomOrder, fmt.Sprintf("order %s is not a custom order", orderID), nil)
		}
		switch order.CurrentStatus() {
		case domain.OrderStatusReceived, domain.OrderStatusApproved:
			// quotable
		default:
			return repositories.NewFulfillmentError(repositories.FulfillmentErrorInvalidTransition, fmt.Sprintf("order %s in status %s can no longer be quoted", orderID, order.CurrentStatus()), nil)
		}

		items := make([]domain.OrderLineItem, 0, len(req.Items))
		var total int64
		for _, quote := range req.Items {
			ref := strings.TrimSpace(quote.ProductRef)
			if ref == "" || quote.Quantity <= 0 {
				return errors.New("fulfillment quote: each item needs a product ref and a positive quantity")
			}

			productRef, err := r.products.DocumentRef(ctx, ref)
			if err != nil {
				return err
			}
			snap, err := tx.Get(productRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewFulfillmentError(repositories.FulfillmentErrorProductUnavailable, fmt.Sprintf("product %s not found", ref), err)
				}
				return err
			}
			var product productDocument
			if err := snap.DataTo(&product); err != nil {
				return fmt.Errorf("decode product %s: %w", ref, err)
			}

			unitPrice := product.Price
			if quote.PriceOverride != nil {
				unitPrice = *quote.PriceOverride
			}
			lineTotal := unitPrice * int64(quote.Quantity)
			items = append(items, domain.OrderLineItem{
				ProductRef: ref,
				SKU:        product.SKU,
				Name:       product.Name,
				Quantity:   quote.Quantity,
				UnitPrice:  unitPrice,
				Total:      lineTotal,
			})
			total += lineTotal
		}

		delta := total - order.TotalAmount

		order.Items = items
		order.TotalAmount = total
		if order.Metadata == nil {
			order.Metadata = make(map[string]string)
		}
		order.Metadata["quoteDelta"] = strconv.FormatInt(delta, 10)
		if actor := strings.TrimSpace(req.Actor); actor != "" {
			order.Metadata["quotedBy"] = actor
		}
		order.UpdatedAt = now
		order.Version++

		if err := tx.Set(orderRef, newOrderDocument(order)); err != nil {
			return err
		}

		outcome = repositories.QuoteOutcome{Order: order, TotalDelta: delta}
		return nil
	})
	if err != nil {
		return repositories.QuoteOutcome{}, wrapFulfillmentError("fulfillment.quote", err)
	}
	return outcome, nil
}

// mergeCartLines folds duplicate product refs into one line each, keeping the
// first-seen order for deterministic transaction reads.
func mergeCartLines(items []cartItemDocument) []cartItemDocument {
	merged := make([]cartItemDocument, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		ref := strings.TrimSpace(item.ProductRef)
		if ref == "" || item.Quantity <= 0 {
			continue
		}
		if at, ok := index[ref]; ok {
			merged[at].Quantity += item.Quantity
			continue
		}
		index[ref] = len(merged)
		merged = append(merged, cartItemDocument{ProductRef: ref, Quantity: item.Quantity})
	}
	return merged
}

func wrapFulfillmentError(op string, err error) error {
	if err == nil {
		return nil
	}
	var fulfillErr *repositories.FulfillmentError
	if errors.As(err, &fulfillErr) {
		if fulfillErr.Op == "" {
			fulfillErr.Op = op
		}
		return fulfillErr
	}
	var walletErr *repositories.WalletError
	if errors.As(err, &walletErr) {
		switch walletErr.Code {
		case repositories.WalletErrorInsufficientFunds:
			return repositories.NewFulfillmentError(repositories.FulfillmentErrorInsufficientFunds, walletErr.Message, walletErr)
		case repositories.WalletErrorNotFound:
			return repositories.NewFulfillmentError(repositories.FulfillmentErrorWalletNotFound, walletErr.Message, walletErr)
		}
		return repositories.NewFulfillmentError(repositories.FulfillmentErrorUnknown, walletErr.Message, walletErr)
	}
	return pfirestore.WrapError(op, err)
}

var _ repositories.FulfillmentRepository = (*FulfillmentRepository)(nil)
