package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/pravesh-commerce/api/internal/domain"
	pfirestore "github.com/pravesh-commerce/api/internal/platform/firestore"
	"github.com/pravesh-commerce/api/internal/repositories"
)

const reviewsCollection = "reviews"

// ReviewRepository persists product reviews. The document ID is the order
// reference, which enforces at most one review per order.
type ReviewRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[reviewDocument]
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[reviewDocument](provider, reviewsCollection, nil, nil)
	return &ReviewRepository{provider: provider, base: base}, nil
}

// Insert creates the review; a duplicate for the same order is a conflict.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	orderRef := strings.TrimSpace(review.OrderRef)
	if orderRef == "" {
		return domain.Review{}, errors.New("review repository: order ref is required")
	}

	doc := newReviewDocument(review)
	ref, err := r.base.DocumentRef(ctx, orderRef)
	if err != nil {
		return domain.Review{}, err
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.Review{}, pfirestore.WrapError("reviews.insert", err)
	}
	return doc.toDomain(orderRef), nil
}

// FindByOrder loads the review attached to the given order.
func (r *ReviewRepository) FindByOrder(ctx context.Context, orderID string) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Review{}, errors.New("review repository: order id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListByProduct returns reviews for a product, newest first.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productRef string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	return r.list(ctx, "productRef", productRef, pager)
}

// ListByUser returns a user's reviews, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	return r.list(ctx, "userRef", userID, pager)
}

func (r *ReviewRepository) list(ctx context.Context, field, value string, pager domain.Pagination) (domain.CursorPage[domain.Review], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Review]{}, errors.New("review repository not initialised")
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return domain.CursorPage[domain.Review]{}, fmt.Errorf("review repository: %s is required", field)
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, pfirestore.WrapError("reviews.list", err)
	}

	query := client.Collection(reviewsCollection).
		Where(field, "==", trimmed).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		createdAt, lastID, err := decodeCreatedAtToken(token)
		if err != nil {
			return domain.CursorPage[domain.Review]{}, pfirestore.WrapError("reviews.list", err)
		}
		query = query.StartAfter(createdAt, lastID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var reviews []domain.Review
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Review]{}, pfirestore.WrapError("reviews.list", err)
		}
		var doc reviewDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Review]{}, fmt.Errorf("decode review %s: %w", snap.Ref.ID, err)
		}
		reviews = append(reviews, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(reviews) > pageSize
	if hasMore {
		reviews = reviews[:pageSize]
	}
	var nextToken string
	if hasMore && len(reviews) > 0 {
		last := reviews[len(reviews)-1]
		encoded, err := encodeCreatedAtToken(last.CreatedAt, last.ID)
		if err != nil {
			return domain.CursorPage[domain.Review]{}, pfirestore.WrapError("reviews.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Review]{
		Items:         reviews,
		NextPageToken: nextToken,
	}, nil
}

// Document mapping -----------------------------------------------------------

type reviewDocument struct {
	ProductRef string    `firestore:"productRef"`
	UserRef    string    `firestore:"userRef"`
	Rating     int       `firestore:"rating"`
	Body       string    `firestore:"body"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func newReviewDocument(review domain.Review) reviewDocument {
	return reviewDocument{
		ProductRef: strings.TrimSpace(review.ProductRef),
		UserRef:    strings.TrimSpace(review.UserID),
		Rating:     review.Rating,
		Body:       review.Body,
		CreatedAt:  review.CreatedAt.UTC(),
		UpdatedAt:  review.UpdatedAt.UTC(),
	}
}

func (d reviewDocument) toDomain(orderRef string) domain.Review {
	return domain.Review{
		ID:         orderRef,
		OrderRef:   orderRef,
		ProductRef: d.ProductRef,
		UserID:     d.UserRef,
		Rating:     d.Rating,
		Body:       d.Body,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)
