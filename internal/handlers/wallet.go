package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pravesh-commerce/api/internal/platform/auth"
	"github.com/pravesh-commerce/api/internal/platform/httpx"
	"github.com/pravesh-commerce/api/internal/services"
)

const maxWalletTransactionLimit = 200

// WalletHandlers exposes read endpoints for the current user's wallet.
type WalletHandlers struct {
	authn   *auth.Authenticator
	wallets services.WalletService
}

// NewWalletHandlers constructs wallet handlers guarded by Firebase authentication.
func NewWalletHandlers(authn *auth.Authenticator, wallets services.WalletService) *WalletHandlers {
	return &WalletHandlers{
		authn:   authn,
		wallets: wallets,
	}
}

// Routes registers the /wallet endpoints onto the provided router.
func (h *WalletHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getWallet)
	r.Get("/transactions", h.listTransactions)
}

type walletPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
	Version   int64  `json:"version"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type walletResponse struct {
	Wallet walletPayload `json:"wallet"`
}

type walletTransactionPayload struct {
	Amount      int64   `json:"amount"`
	Description string  `json:"description"`
	OrderRef    *string `json:"order_ref,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type walletTransactionsResponse struct {
	Items []walletTransactionPayload `json:"items"`
}

func buildWalletPayload(wallet services.Wallet) walletPayload {
	return walletPayload{
		ID:        wallet.ID,
		UserID:    wallet.UserID,
		Balance:   wallet.Balance,
		Currency:  strings.ToUpper(wallet.Currency),
		Version:   wallet.Version,
		UpdatedAt: formatTime(wallet.UpdatedAt),
	}
}

func (h *WalletHandlers) getWallet(w http.ResponseWriter, r *http.Request) {
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

	wallet, err := h.wallets.EnsureWallet(ctx, services.EnsureWalletCommand{UserID: identity.UID})
	if err != nil {
		writeWalletError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, walletResponse{Wallet: buildWalletPayload(wallet)})
}

func (h *WalletHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
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

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		if parsed > maxWalletTransactionLimit {
			parsed = maxWalletTransactionLimit
		}
		limit = parsed
	}

	entries, err := h.wallets.ListTransactions(ctx, services.ListWalletTransactionsCommand{
		UserID: identity.UID,
		Limit:  limit,
	})
	if err != nil {
		writeWalletError(ctx, w, err)
		return
	}

	resp := walletTransactionsResponse{Items: make([]walletTransactionPayload, 0, len(entries))}
	for _, entry := range entries {
		resp.Items = append(resp.Items, walletTransactionPayload{
			Amount:      entry.Amount,
			Description: entry.Description,
			OrderRef:    entry.OrderRef,
			CreatedAt:   formatTime(entry.CreatedAt),
		})
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func writeWalletError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrWalletInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWalletNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("wallet_not_found", "wallet not found", http.StatusNotFound))
	case errors.Is(err, services.ErrWalletInsufficientFunds):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_funds", "wallet balance is insufficient", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrWalletConflict):
		httpx.WriteError(ctx, w, httpx.NewError("wallet_conflict", "wallet changed concurrently; retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("wallet_error", "failed to process wallet request", http.StatusInternalServerError))
	}
}
