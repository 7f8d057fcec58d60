package services

import (
	"context"
	"sync"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/repositories"
)

// fakeRepoError satisfies repositories.RepositoryError for stubbed failures.
type fakeRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return e.msg }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error { return &fakeRepoError{msg: msg, notFound: true} }
func conflictErr(msg string) error { return &fakeRepoError{msg: msg, conflict: true} }

type stubOrderRepository struct {
	mu          sync.Mutex
	insertFn    func(context.Context, domain.Order) error
	updateFn    func(context.Context, domain.Order) (domain.Order, error)
	findFn      func(context.Context, string) (domain.Order, error)
	listFn      func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	dashboardFn func(context.Context, time.Time) (domain.DashboardSummary, error)

	inserted    []domain.Order
	findCalls   int
	listFilters []repositories.OrderListFilter
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	s.inserted = append(s.inserted, order)
	s.mu.Unlock()
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return order, nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	s.findCalls++
	s.mu.Unlock()
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, notFoundErr("order not found")
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	s.mu.Lock()
	s.listFilters = append(s.listFilters, filter)
	s.mu.Unlock()
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepository) DashboardSummary(ctx context.Context, now time.Time) (domain.DashboardSummary, error) {
	if s.dashboardFn != nil {
		return s.dashboardFn(ctx, now)
	}
	return domain.DashboardSummary{}, nil
}

type stubWalletRepository struct {
	mu       sync.Mutex
	createFn func(context.Context, domain.Wallet) error
	findFn   func(context.Context, string) (domain.Wallet, error)
	creditFn func(context.Context, repositories.WalletEntryRequest) (domain.Wallet, error)
	debitFn  func(context.Context, repositories.WalletEntryRequest) (domain.Wallet, error)

	created []domain.Wallet
	credits []repositories.WalletEntryRequest
	debits  []repositories.WalletEntryRequest
}

func (s *stubWalletRepository) Create(ctx context.Context, wallet domain.Wallet) error {
	s.mu.Lock()
	s.created = append(s.created, wallet)
	s.mu.Unlock()
	if s.createFn != nil {
		return s.createFn(ctx, wallet)
	}
	return nil
}

func (s *stubWalletRepository) FindByUser(ctx context.Context, userID string) (domain.Wallet, error) {
	if s.findFn != nil {
		return s.findFn(ctx, userID)
	}
	return domain.Wallet{}, repositories.NewWalletError(repositories.WalletErrorNotFound, "no wallet", nil)
}

func (s *stubWalletRepository) Credit(ctx context.Context, req repositories.WalletEntryRequest) (domain.Wallet, error) {
	s.mu.Lock()
	s.credits = append(s.credits, req)
	s.mu.Unlock()
	if s.creditFn != nil {
		return s.creditFn(ctx, req)
	}
	return domain.Wallet{UserID: req.UserID, Balance: req.Amount}, nil
}

func (s *stubWalletRepository) Debit(ctx context.Context, req repositories.WalletEntryRequest) (domain.Wallet, error) {
	s.mu.Lock()
	s.debits = append(s.debits, req)
	s.mu.Unlock()
	if s.debitFn != nil {
		return s.debitFn(ctx, req)
	}
	return domain.Wallet{UserID: req.UserID}, nil
}

type stubProductRepository struct {
	mu           sync.Mutex
	insertFn     func(context.Context, domain.Product) error
	updateFn     func(context.Context, domain.Product) (domain.Product, error)
	findByIDFn   func(context.Context, string) (domain.Product, error)
	findBySlugFn func(context.Context, string) (domain.Product, error)
	listFn       func(context.Context, repositories.ProductListFilter) (domain.CursorPage[domain.Product], error)
	softDeleteFn func(context.Context, string, time.Time) error

	inserted      []domain.Product
	findSlugCalls int
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	s.mu.Lock()
	s.inserted = append(s.inserted, product)
	s.mu.Unlock()
	if s.insertFn != nil {
		return s.insertFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, product)
	}
	return product, nil
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, productID)
	}
	return domain.Product{}, notFoundErr("product not found")
}

func (s *stubProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	s.mu.Lock()
	s.findSlugCalls++
	s.mu.Unlock()
	if s.findBySlugFn != nil {
		return s.findBySlugFn(ctx, slug)
	}
	return domain.Product{}, notFoundErr("product not found")
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Product]{}, nil
}

func (s *stubProductRepository) SoftDelete(ctx context.Context, productID string, deletedAt time.Time) error {
	if s.softDeleteFn != nil {
		return s.softDeleteFn(ctx, productID, deletedAt)
	}
	return nil
}

type stubCartRepository struct {
	mu        sync.Mutex
	getFn     func(context.Context, string) (domain.Cart, error)
	upsertFn  func(context.Context, domain.Cart) (domain.Cart, error)
	replaceFn func(context.Context, string, []domain.CartItem) (domain.Cart, error)

	replaced [][]domain.CartItem
}

func (s *stubCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return domain.Cart{ID: userID, UserID: userID}, nil
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cart)
	}
	return cart, nil
}

func (s *stubCartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error) {
	s.mu.Lock()
	s.replaced = append(s.replaced, items)
	s.mu.Unlock()
	if s.replaceFn != nil {
		return s.replaceFn(ctx, userID, items)
	}
	return domain.Cart{ID: userID, UserID: userID, Items: items}, nil
}

type stubReviewRepository struct {
	mu              sync.Mutex
	insertFn        func(context.Context, domain.Review) (domain.Review, error)
	findByOrderFn   func(context.Context, string) (domain.Review, error)
	listByProductFn func(context.Context, string, domain.Pagination) (domain.CursorPage[domain.Review], error)
	listByUserFn    func(context.Context, string, domain.Pagination) (domain.CursorPage[domain.Review], error)

	inserted []domain.Review
}

func (s *stubReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	s.mu.Lock()
	s.inserted = append(s.inserted, review)
	s.mu.Unlock()
	if s.insertFn != nil {
		return s.insertFn(ctx, review)
	}
	review.ID = review.OrderRef
	return review, nil
}

func (s *stubReviewRepository) FindByOrder(ctx context.Context, orderID string) (domain.Review, error) {
	if s.findByOrderFn != nil {
		return s.findByOrderFn(ctx, orderID)
	}
	return domain.Review{}, notFoundErr("review not found")
}

func (s *stubReviewRepository) ListByProduct(ctx context.Context, productRef string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	if s.listByProductFn != nil {
		return s.listByProductFn(ctx, productRef, pager)
	}
	return domain.CursorPage[domain.Review]{}, nil
}

func (s *stubReviewRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	if s.listByUserFn != nil {
		return s.listByUserFn(ctx, userID, pager)
	}
	return domain.CursorPage[domain.Review]{}, nil
}

type stubFulfillmentRepository struct {
	mu           sync.Mutex
	checkoutFn   func(context.Context, repositories.CheckoutExecution) (repositories.CheckoutOutcome, error)
	transitionFn func(context.Context, repositories.TransitionExecution) (repositories.TransitionOutcome, error)
	quoteFn      func(context.Context, repositories.QuoteExecution) (repositories.QuoteOutcome, error)

	checkouts   []repositories.CheckoutExecution
	transitions []repositories.TransitionExecution
	quotes      []repositories.QuoteExecution
}

func (s *stubFulfillmentRepository) ExecuteCheckout(ctx context.Context, req repositories.CheckoutExecution) (repositories.CheckoutOutcome, error) {
	s.mu.Lock()
	s.checkouts = append(s.checkouts, req)
	s.mu.Unlock()
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, req)
	}
	return repositories.CheckoutOutcome{}, nil
}

func (s *stubFulfillmentRepository) ExecuteTransition(ctx context.Context, req repositories.TransitionExecution) (repositories.TransitionOutcome, error) {
	s.mu.Lock()
	s.transitions = append(s.transitions, req)
	s.mu.Unlock()
	if s.transitionFn != nil {
		return s.transitionFn(ctx, req)
	}
	return repositories.TransitionOutcome{}, nil
}

func (s *stubFulfillmentRepository) ExecuteQuoteUpdate(ctx context.Context, req repositories.QuoteExecution) (repositories.QuoteOutcome, error) {
	s.mu.Lock()
	s.quotes = append(s.quotes, req)
	s.mu.Unlock()
	if s.quoteFn != nil {
		return s.quoteFn(ctx, req)
	}
	return repositories.QuoteOutcome{}, nil
}

type stubCounterService struct {
	nextFn        func(context.Context, string, string, CounterGenerationOptions) (CounterValue, error)
	orderNumberFn func(context.Context) (string, error)
	skuFn         func(context.Context) (string, error)
	slugFn        func(context.Context, string) (string, error)
}

func (s *stubCounterService) Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, scope, name, opts)
	}
	return CounterValue{Value: 1, Formatted: "1"}, nil
}

func (s *stubCounterService) NextOrderNumber(ctx context.Context) (string, error) {
	if s.orderNumberFn != nil {
		return s.orderNumberFn(ctx)
	}
	return "PC-2025-000001", nil
}

func (s *stubCounterService) NextSKU(ctx context.Context) (string, error) {
	if s.skuFn != nil {
		return s.skuFn(ctx)
	}
	return "SKU000001", nil
}

func (s *stubCounterService) NextProductSlug(ctx context.Context, name string) (string, error) {
	if s.slugFn != nil {
		return s.slugFn(ctx, name)
	}
	return domain.Slugify(name), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	failFn func(OrderEvent) error
	events []OrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	if p.failFn != nil {
		return p.failFn(event)
	}
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
