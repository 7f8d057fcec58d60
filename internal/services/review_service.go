package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const maxReviewBodyLength = 4000

var (
	// ErrReviewInvalidInput signals the caller provided invalid data.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewNotFound indicates the review could not be located.
	ErrReviewNotFound = errors.New("review: not found")
	// ErrReviewForbidden indicates the actor may not review the order.
	ErrReviewForbidden = errors.New("review: forbidden")
	// ErrReviewNotEligible indicates the order is not in a reviewable state.
	ErrReviewNotEligible = errors.New("review: order not eligible")
	// ErrReviewAlreadyExists indicates the order already carries a review.
	ErrReviewAlreadyExists = errors.New("review: already exists")
)

// ReviewServiceDeps bundles collaborators required to construct the review service.
type ReviewServiceDeps struct {
	Reviews repositories.ReviewRepository
	Orders  repositories.OrderRepository
	Cache   CacheInvalidator
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type reviewService struct {
	reviews   repositories.ReviewRepository
	orders    repositories.OrderRepository
	cache     CacheInvalidator
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewReviewService wires dependencies into a concrete ReviewService implementation.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("review service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &reviewService{
		reviews:   deps.Reviews,
		orders:    deps.Orders,
		cache:     deps.Cache,
		sanitizer: bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Review{}, fmt.Errorf("%w: order id is required", ErrReviewInvalidInput)
	}
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Review{}, fmt.Errorf("%w: user id is required", ErrReviewInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrReviewInvalidInput)
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(cmd.Body))
	if len(body) > maxReviewBodyLength {
		return Review{}, fmt.Errorf("%w: body exceeds %d characters", ErrReviewInvalidInput, maxReviewBodyLength)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Review{}, fmt.Errorf("%w: order %s not found", ErrReviewNotFound, orderID)
		}
		return Review{}, err
	}
	if order.UserID != userID {
		return Review{}, fmt.Errorf("%w: order %s belongs to another user", ErrReviewForbidden, orderID)
	}
	if order.CurrentStatus() != domain.OrderStatusDelivered {
		return Review{}, fmt.Errorf("%w: order %s has not been delivered", ErrReviewNotEligible, orderID)
	}

	productRef := strings.TrimSpace(cmd.ProductRef)
	if productRef == "" && len(order.Items) == 1 {
		productRef = order.Items[0].ProductRef
	}
	if !orderContainsProduct(order, productRef) {
		return Review{}, fmt.Errorf("%w: product %s is not part of order %s", ErrReviewInvalidInput, productRef, orderID)
	}

	now := s.clock()
	review := domain.Review{
		ProductRef: productRef,
		OrderRef:   orderID,
		UserID:     userID,
		Rating:     cmd.Rating,
		Body:       body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.reviews.Insert(ctx, review)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return Review{}, fmt.Errorf("%w: order %s already has a review", ErrReviewAlreadyExists, orderID)
		}
		return Review{}, err
	}

	s.logger(ctx, "review.created", map[string]any{
		"orderId":    orderID,
		"productRef": productRef,
		"rating":     cmd.Rating,
	})

	invalidateProductCaches(ctx, s.cache, s.logger)
	return created, nil
}

func (s *reviewService) GetByOrder(ctx context.Context, orderID string) (Review, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Review{}, fmt.Errorf("%w: order id is required", ErrReviewInvalidInput)
	}
	review, err := s.reviews.FindByOrder(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Review{}, fmt.Errorf("%w: no review for order %s", ErrReviewNotFound, orderID)
		}
		return Review{}, err
	}
	return review, nil
}

func (s *reviewService) ListByProduct(ctx context.Context, productRef string, pager Pagination) (domain.CursorPage[Review], error) {
	productRef = strings.TrimSpace(productRef)
	if productRef == "" {
		return domain.CursorPage[Review]{}, fmt.Errorf("%w: product ref is required", ErrReviewInvalidInput)
	}
	return s.reviews.ListByProduct(ctx, productRef, pager)
}

func (s *reviewService) ListByUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Review], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Review]{}, fmt.Errorf("%w: user id is required", ErrReviewInvalidInput)
	}
	return s.reviews.ListByUser(ctx, userID, pager)
}

func orderContainsProduct(order Order, productRef string) bool {
	if productRef == "" {
		return false
	}
	for _, item := range order.Items {
		if item.ProductRef == productRef {
			return true
		}
	}
	return false
}
