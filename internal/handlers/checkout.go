package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pravesh-commerce/api/internal/platform/auth"
	"github.com/pravesh-commerce/api/internal/platform/httpx"
	"github.com/pravesh-commerce/api/internal/services"
)

const maxCheckoutRequestBody = 8 * 1024

// CheckoutHandlers exposes the cart-to-order conversion endpoint.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers guarded by Firebase authentication.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireFirebaseAuth())
	}
	group.Post("/checkout", h.createOrder)
}

type checkoutRequest struct {
	ShippingAddress *addressPayload `json:"shipping_address"`
	Currency        string          `json:"currency"`
}

type checkoutResponse struct {
	Order orderPayload `json:"order"`
}

func (h *CheckoutHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.ShippingAddress == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shipping_address is required", http.StatusBadRequest))
		return
	}

	cmd := services.CheckoutCommand{
		UserID:          identity.UID,
		ShippingAddress: req.ShippingAddress.toDomain(),
		Currency:        strings.TrimSpace(req.Currency),
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}

	order, err := h.checkout.Checkout(ctx, cmd)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{Order: buildOrderPayload(order)})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "one or more products are no longer available", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "insufficient stock for one or more items", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInsufficientFunds):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_funds", "wallet balance is insufficient", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrCheckoutWalletNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("wallet_not_found", "wallet not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutConflict):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_conflict", "cart has changed; refresh and retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout", http.StatusInternalServerError))
	}
}
