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

const maxCartBodySize = 16 * 1024

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs handlers enforcing Firebase authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Put("/items", h.upsertItem)
	r.Delete("/items/{productRef}", h.removeItem)
	r.Put("/shipping-address", h.setShippingAddress)
}

type cartItemPayload struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
}

type cartPayload struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	Items             []cartItemPayload `json:"items"`
	ShippingAddressID string            `json:"shipping_address_id,omitempty"`
	Currency          string            `json:"currency,omitempty"`
	UpdatedAt         string            `json:"updated_at,omitempty"`
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:                cart.ID,
		UserID:            cart.UserID,
		Items:             make([]cartItemPayload, 0, len(cart.Items)),
		ShippingAddressID: cart.ShippingAddressID,
		Currency:          strings.ToUpper(cart.Currency),
		UpdatedAt:         formatTime(cart.UpdatedAt),
	}
	for _, item := range cart.Items {
		payload.Items = append(payload.Items, cartItemPayload{
			ProductRef: item.ProductRef,
			Quantity:   item.Quantity,
		})
	}
	return payload
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	cart, err := h.carts.GetCart(ctx, identity.UID)
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

type upsertCartItemRequest struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
}

func (h *CartHandlers) upsertItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req upsertCartItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.UpsertItem(ctx, services.UpsertCartItemCommand{
		UserID:     identity.UID,
		ProductRef: strings.TrimSpace(req.ProductRef),
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	productRef := strings.TrimSpace(chi.URLParam(r, "productRef"))
	if productRef == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product reference is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		UserID:     identity.UID,
		ProductRef: productRef,
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

type setShippingAddressRequest struct {
	AddressID string `json:"address_id"`
}

func (h *CartHandlers) setShippingAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req setShippingAddressRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.SetShippingAddress(ctx, services.SetCartAddressCommand{
		UserID:    identity.UID,
		AddressID: strings.TrimSpace(req.AddressID),
	})
	if err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	if err := h.carts.ClearCart(ctx, identity.UID); err != nil {
		h.writeCartError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", "product is not available", http.StatusConflict))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "item is not in the cart", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}
