package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pravesh-commerce/api/internal/platform/auth"
	"github.com/pravesh-commerce/api/internal/platform/httpx"
	"github.com/pravesh-commerce/api/internal/services"
)

const (
	maxReviewBodySize     = 32 * 1024
	defaultReviewPageSize = 20
	maxReviewPageSize     = 50

	reviewRateLimit  = 10
	reviewRateWindow = time.Minute
)

// ReviewHandlers exposes endpoints for creating and retrieving product reviews.
type ReviewHandlers struct {
	authn   *auth.Authenticator
	reviews services.ReviewService
	limiter rateLimiter
}

// NewReviewHandlers constructs review handlers with a per-user submit rate limit.
func NewReviewHandlers(authn *auth.Authenticator, reviews services.ReviewService) *ReviewHandlers {
	return &ReviewHandlers{
		authn:   authn,
		reviews: reviews,
		limiter: newSimpleRateLimiter(reviewRateLimit, reviewRateWindow, nil),
	}
}

// Routes registers the /reviews endpoints onto the provided router.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createReview)
	r.Get("/me", h.listMine)
	r.Get("/order/{orderID}", h.getByOrder)
	r.Get("/product/{productRef}", h.listByProduct)
}

type reviewPayload struct {
	ID         string `json:"id"`
	ProductRef string `json:"product_ref"`
	OrderRef   string `json:"order_ref"`
	UserID     string `json:"user_id"`
	Rating     int    `json:"rating"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type reviewResponse struct {
	Review reviewPayload `json:"review"`
}

type reviewListResponse struct {
	Items         []reviewPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

func buildReviewPayload(review services.Review) reviewPayload {
	return reviewPayload{
		ID:         review.ID,
		ProductRef: review.ProductRef,
		OrderRef:   review.OrderRef,
		UserID:     review.UserID,
		Rating:     review.Rating,
		Body:       review.Body,
		CreatedAt:  formatTime(review.CreatedAt),
	}
}

type createReviewRequest struct {
	OrderID    string `json:"order_id"`
	ProductRef string `json:"product_ref"`
	Rating     int    `json:"rating"`
	Body       string `json:"body"`
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many review submissions; slow down", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxReviewBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req createReviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	review, err := h.reviews.Create(ctx, services.CreateReviewCommand{
		OrderID:    strings.TrimSpace(req.OrderID),
		ProductRef: strings.TrimSpace(req.ProductRef),
		UserID:     identity.UID,
		Rating:     req.Rating,
		Body:       req.Body,
	})
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *ReviewHandlers) getByOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	review, err := h.reviews.GetByOrder(ctx, orderID)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, reviewResponse{Review: buildReviewPayload(review)})
}

func (h *ReviewHandlers) listByProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	productRef := strings.TrimSpace(chi.URLParam(r, "productRef"))
	if productRef == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product reference is required", http.StatusBadRequest))
		return
	}

	pager, err := parsePagination(r.URL.Query(), defaultReviewPageSize, maxReviewPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.reviews.ListByProduct(ctx, productRef, pager)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildReviewListResponse(page.Items, page.NextPageToken))
}

func (h *ReviewHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		httpx.WriteError(ctx, w, httpx.NewError("review_service_unavailable", "review service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	pager, err := parsePagination(r.URL.Query(), defaultReviewPageSize, maxReviewPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.reviews.ListByUser(ctx, identity.UID, pager)
	if err != nil {
		writeReviewError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildReviewListResponse(page.Items, page.NextPageToken))
}

func buildReviewListResponse(items []services.Review, nextToken string) reviewListResponse {
	resp := reviewListResponse{
		Items:         make([]reviewPayload, 0, len(items)),
		NextPageToken: nextToken,
	}
	for _, review := range items {
		resp.Items = append(resp.Items, buildReviewPayload(review))
	}
	return resp
}

func writeReviewError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrReviewInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReviewNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("review_not_found", "review not found", http.StatusNotFound))
	case errors.Is(err, services.ErrReviewForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another user", http.StatusForbidden))
	case errors.Is(err, services.ErrReviewNotEligible):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_eligible", "order is not eligible for review", http.StatusConflict))
	case errors.Is(err, services.ErrReviewAlreadyExists):
		httpx.WriteError(ctx, w, httpx.NewError("review_exists", "order already has a review", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("review_error", "failed to process review request", http.StatusInternalServerError))
	}
}
