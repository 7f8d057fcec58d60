package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/platform/auth"
	"github.com/pravesh-commerce/api/internal/platform/httpx"
	"github.com/pravesh-commerce/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderRequestBody  = 16 * 1024
)

var knownOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusReceived:       {},
	domain.OrderStatusApproved:       {},
	domain.OrderStatusConfirmed:      {},
	domain.OrderStatusShipped:        {},
	domain.OrderStatusOutForDelivery: {},
	domain.OrderStatusDelivered:      {},
	domain.OrderStatusCancelled:      {},
	domain.OrderStatusRefunded:       {},
}

func parseOrderStatuses(values []string) ([]domain.OrderStatus, error) {
	filters := parseFilterValues(values)
	if len(filters) == 0 {
		return nil, nil
	}
	statuses := make([]domain.OrderStatus, 0, len(filters))
	for _, raw := range filters {
		status := domain.OrderStatus(raw)
		if _, ok := knownOrderStatuses[status]; !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// OrderHandlers exposes the authenticated order endpoints for the current user.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs order handlers guarded by Firebase authentication.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Post("/custom", h.createCustomOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
	r.Post("/{orderID}/pay", h.payOrder)
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	query := r.URL.Query()

	pager, err := parsePagination(query, defaultOrderPageSize, maxOrderPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	statuses, err := parseOrderStatuses(query["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after "+err.Error(), http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before "+err.Error(), http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	staff := identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin)
	cmd := services.ListOrdersCommand{
		UserID:     identity.UID,
		ActorID:    identity.UID,
		Staff:      staff,
		Status:     statuses,
		DateRange:  dateRange,
		Pagination: pager,
	}

	page, err := h.orders.ListOrders(ctx, cmd)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	resp := orderListResponse{
		Items:         make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		resp.Items = append(resp.Items, buildOrderPayload(order))
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
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

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		Staff:   identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type cancelOrderRequest struct {
	Reason          string `json:"reason"`
	ExpectedVersion string `json:"expected_version"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
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

	var req cancelOrderRequest
	if body, err := readLimitedBody(r, maxOrderRequestBody); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	} else if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	cmd := services.CancelOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		Staff:   identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin),
		Reason:  strings.TrimSpace(req.Reason),
	}
	if raw := strings.TrimSpace(req.ExpectedVersion); raw != "" {
		version, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected_version must be an integer", http.StatusBadRequest))
			return
		}
		cmd.ExpectedVersion = &version
	}

	order, err := h.orders.Cancel(ctx, cmd)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type payOrderRequest struct {
	ExpectedVersion string `json:"expected_version"`
}

func (h *OrderHandlers) payOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
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

	var req payOrderRequest
	if body, err := readLimitedBody(r, maxOrderRequestBody); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
	} else if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	cmd := services.PayOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		Staff:   identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin),
	}
	if raw := strings.TrimSpace(req.ExpectedVersion); raw != "" {
		version, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected_version must be an integer", http.StatusBadRequest))
			return
		}
		cmd.ExpectedVersion = &version
	}

	order, err := h.orders.Pay(ctx, cmd)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type createCustomOrderRequest struct {
	ShippingAddress *addressPayload   `json:"shipping_address"`
	Currency        string            `json:"currency"`
	Description     string            `json:"description"`
	Metadata        map[string]string `json:"metadata"`
}

func (h *OrderHandlers) createCustomOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxOrderRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req createCustomOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if req.ShippingAddress == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shipping_address is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.CreateCustomOrder(ctx, services.CreateCustomOrderCommand{
		UserID:          identity.UID,
		ShippingAddress: req.ShippingAddress.toDomain(),
		Currency:        strings.TrimSpace(req.Currency),
		Description:     strings.TrimSpace(req.Description),
		Metadata:        req.Metadata,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another user", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", "order status does not allow this operation", http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotCustom):
		httpx.WriteError(ctx, w, httpx.NewError("not_custom_order", "order is not a custom order", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInsufficientFunds):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_funds", "wallet balance is insufficient", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order changed concurrently; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
