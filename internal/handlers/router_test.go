package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestNewRouterServesHealthEndpoints(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected readyz 200 without system service, got %d", rr.Code)
	}
}

func TestNewRouterUnknownRoute(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if envelope.Error != errorNotFoundCode {
		t.Fatalf("expected %s, got %s", errorNotFoundCode, envelope.Error)
	}
}

func TestNewRouterUnconfiguredGroupReturnsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rr.Code)
	}
}

func TestNewRouterMountsRegistrars(t *testing.T) {
	router := NewRouter(
		WithProductRoutes(func(r chi.Router) {
			r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
		WithCheckoutRoutes(func(r chi.Router) {
			r.Post("/checkout", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
			})
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/ping", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 from product registrar, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 from checkout registrar, got %d", rr.Code)
	}
}

func TestNewRouterAppliesCheckoutMiddleware(t *testing.T) {
	var sawHeader bool
	router := NewRouter(
		WithCheckoutMiddlewares(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sawHeader = r.Header.Get("Idempotency-Key") != ""
				next.ServeHTTP(w, r)
			})
		}),
		WithCheckoutRoutes(func(r chi.Router) {
			r.Post("/checkout", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
			})
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set("Idempotency-Key", "idem-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if !sawHeader {
		t.Fatal("expected checkout middleware to observe the request")
	}
}

func TestNewRouterGuardsInternalRoutes(t *testing.T) {
	var sawAuthHeader bool
	router := NewRouter(
		WithInternalMiddlewares(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sawAuthHeader = r.Header.Get("Authorization") != ""
				next.ServeHTTP(w, r)
			})
		}),
		WithInternalRoutes(func(r chi.Router) {
			r.Post("/counters/next", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/counters/next", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !sawAuthHeader {
		t.Fatal("expected internal middleware to observe the request")
	}
}

func TestNewRouterOmitsInternalRoutesByDefault(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/counters/next", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
