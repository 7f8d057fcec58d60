package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/platform/auth"
	"github.com/pravesh-commerce/api/internal/platform/httpx"
	"github.com/pravesh-commerce/api/internal/services"
)

// AdminOrderHandlers exposes staff order management, wallet adjustments and
// the dashboard aggregate.
type AdminOrderHandlers struct {
	authn   *auth.Authenticator
	orders  services.OrderService
	wallets services.WalletService
}

// NewAdminOrderHandlers constructs the admin order handlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, wallets services.WalletService) *AdminOrderHandlers {
	return &AdminOrderHandlers{
		authn:   authn,
		orders:  orders,
		wallets: wallets,
	}
}

// Routes registers admin order endpoints; staff or admin role required.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/dashboard", h.dashboardSummary)
	r.Post("/orders/{orderID}/status", h.advanceStatus)
	r.Put("/orders/{orderID}/quote", h.updateQuote)
	r.Post("/orders/{orderID}/confirm", h.confirmCustomOrder)
	r.Post("/wallets/{userID}/credit", h.creditWallet)
	r.Post("/wallets/{userID}/debit", h.debitWallet)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.orders.ListOrders(ctx, services.ListOrdersCommand{
		UserID:     strings.TrimSpace(query.Get("user_id")),
		ActorID:    identity.UID,
		Staff:      true,
		Status:     statuses,
		DateRange:  dateRange,
		Pagination: pager,
	})
	if err != nil {
		writeAdminOrderError(ctx, w, err)
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

type advanceStatusRequest struct {
	Status          string `json:"status"`
	Note            string `json:"note"`
	ExpectedVersion *int64 `json:"expected_version"`
}

func (h *AdminOrderHandlers) advanceStatus(w http.ResponseWriter, r *http.Request) {
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

	body, err := readLimitedBody(r, maxOrderRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req advanceStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if _, known := knownOrderStatuses[target]; !known {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown target status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.AdvanceStatus(ctx, services.AdvanceStatusCommand{
		OrderID:         orderID,
		Target:          target,
		ActorID:         identity.UID,
		Note:            strings.TrimSpace(req.Note),
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeAdminOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type quoteLinePayload struct {
	ProductRef    string `json:"product_ref"`
	Quantity      int    `json:"quantity"`
	PriceOverride *int64 `json:"price_override"`
}

type updateQuoteRequest struct {
	Items []quoteLinePayload `json:"items"`
}

func quoteLinesFromPayload(items []quoteLinePayload) []services.QuoteLine {
	lines := make([]services.QuoteLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, services.QuoteLine{
			ProductRef:    strings.TrimSpace(item.ProductRef),
			Quantity:      item.Quantity,
			PriceOverride: item.PriceOverride,
		})
	}
	return lines
}

func (h *AdminOrderHandlers) updateQuote(w http.ResponseWriter, r *http.Request) {
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

	body, err := readLimitedBody(r, maxOrderRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req updateQuoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateQuote(ctx, services.UpdateQuoteCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		Items:   quoteLinesFromPayload(req.Items),
	})
	if err != nil {
		writeAdminOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type confirmCustomOrderRequest struct {
	Items []quoteLinePayload `json:"items"`
}

func (h *AdminOrderHandlers) confirmCustomOrder(w http.ResponseWriter, r *http.Request) {
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

	cmd := services.ConfirmCustomOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
	}
	if body, err := readLimitedBody(r, maxOrderRequestBody); err == nil {
		var req confirmCustomOrderRequest
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
			return
		}
		cmd.Items = quoteLinesFromPayload(req.Items)
	} else if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	order, err := h.orders.ConfirmCustomOrder(ctx, cmd)
	if err != nil {
		writeAdminOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type dashboardSummaryResponse struct {
	TotalOrders    int64            `json:"total_orders"`
	OrdersByStatus map[string]int64 `json:"orders_by_status"`
	GrossRevenue   int64            `json:"gross_revenue"`
	RefundedAmount int64            `json:"refunded_amount"`
	GeneratedAt    string           `json:"generated_at"`
}

func (h *AdminOrderHandlers) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	summary, err := h.orders.DashboardSummary(ctx)
	if err != nil {
		writeAdminOrderError(ctx, w, err)
		return
	}

	resp := dashboardSummaryResponse{
		TotalOrders:    summary.TotalOrders,
		OrdersByStatus: make(map[string]int64, len(summary.OrdersByStatus)),
		GrossRevenue:   summary.GrossRevenue,
		RefundedAmount: summary.RefundedAmount,
		GeneratedAt:    formatTime(summary.GeneratedAt),
	}
	for status, count := range summary.OrdersByStatus {
		resp.OrdersByStatus[string(status)] = count
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

type walletAdjustmentRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	OrderRef    string `json:"order_ref"`
}

func (h *AdminOrderHandlers) creditWallet(w http.ResponseWriter, r *http.Request) {
	h.adjustWallet(w, r, false)
}

func (h *AdminOrderHandlers) debitWallet(w http.ResponseWriter, r *http.Request) {
	h.adjustWallet(w, r, true)
}

func (h *AdminOrderHandlers) adjustWallet(w http.ResponseWriter, r *http.Request, debit bool) {
	ctx := r.Context()
	if h.wallets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wallet_service_unavailable", "wallet service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user id is required", http.StatusBadRequest))
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

	var req walletAdjustmentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.WalletAdjustmentCommand{
		UserID:      userID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		OrderRef:    strings.TrimSpace(req.OrderRef),
		ActorID:     identity.UID,
	}

	var wallet services.Wallet
	if debit {
		wallet, err = h.wallets.Debit(ctx, cmd)
	} else {
		wallet, err = h.wallets.Credit(ctx, cmd)
	}
	if err != nil {
		writeWalletError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, walletResponse{Wallet: buildWalletPayload(wallet)})
}

func writeAdminOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "operation not permitted", http.StatusForbidden))
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
