package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pravesh-commerce/api/internal/platform/httpx"
	"github.com/pravesh-commerce/api/internal/services"
)

const maxInternalBodySize = 8 * 1024

// InternalOpsHandlers exposes maintenance endpoints for trusted backend
// callers: sequence allocation for warehouse tooling and targeted cache
// invalidation after out-of-band data fixes. The router guards the group
// with OIDC validation, so no end-user identity is expected here.
type InternalOpsHandlers struct {
	counters services.CounterService
	cache    services.CacheInvalidator
}

// NewInternalOpsHandlers constructs handlers for the internal route group.
func NewInternalOpsHandlers(counters services.CounterService, cache services.CacheInvalidator) *InternalOpsHandlers {
	return &InternalOpsHandlers{counters: counters, cache: cache}
}

// Routes registers the internal endpoints on the provided router.
func (h *InternalOpsHandlers) Routes(r chi.Router) {
	if h == nil {
		return
	}
	r.Post("/counters/next", h.nextCounter)
	r.Post("/cache/flush", h.flushCache)
}

type nextCounterRequest struct {
	Scope     string `json:"scope"`
	Name      string `json:"name"`
	Step      int64  `json:"step"`
	Prefix    string `json:"prefix"`
	PadLength int    `json:"pad_length"`
}

type nextCounterResponse struct {
	Value     int64  `json:"value"`
	Formatted string `json:"formatted"`
}

func (h *InternalOpsHandlers) nextCounter(w http.ResponseWriter, r *http.Request) {
	if h.counters == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "counter service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxInternalBodySize)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body required", http.StatusBadRequest))
		return
	}

	var req nextCounterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed JSON body", http.StatusBadRequest))
		return
	}

	value, err := h.counters.Next(r.Context(), strings.TrimSpace(req.Scope), strings.TrimSpace(req.Name), services.CounterGenerationOptions{
		Step:      req.Step,
		Prefix:    strings.TrimSpace(req.Prefix),
		PadLength: req.PadLength,
	})
	if err != nil {
		writeInternalCounterError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, nextCounterResponse{
		Value:     value.Value,
		Formatted: value.Formatted,
	})
}

type flushCacheRequest struct {
	Pattern string `json:"pattern"`
}

func (h *InternalOpsHandlers) flushCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "cache unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxInternalBodySize)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body required", http.StatusBadRequest))
		return
	}

	var req flushCacheRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "malformed JSON body", http.StatusBadRequest))
		return
	}

	pattern := strings.TrimSpace(req.Pattern)
	if pattern == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "pattern is required", http.StatusBadRequest))
		return
	}

	if err := h.cache.DeleteByPattern(r.Context(), pattern); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cache_error", "cache flush failed", http.StatusInternalServerError))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeInternalCounterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrCounterInvalidInput):
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCounterExhausted):
		httpx.WriteError(r.Context(), w, httpx.NewError("counter_exhausted", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("counter_error", "failed to allocate counter value", http.StatusInternalServerError))
	}
}
