package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	domain "github.com/pravesh-commerce/api/internal/domain"
	"github.com/pravesh-commerce/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes. Healthz answers from
// process-local build metadata only; Readyz probes dependencies through the
// system service when one is configured.
type HealthHandlers struct {
	build  services.BuildInfo
	system services.SystemService
	clock  func() time.Time
}

// HealthOption customises HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by Healthz.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthSystemService wires the dependency prober used by Readyz.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers builds the probe handlers with the supplied options.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type healthzResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	CommitSHA   string `json:"commitSha"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	Timestamp   string `json:"timestamp"`
}

type readyzCheck struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readyzResponse struct {
	Status      string                 `json:"status"`
	Checks      map[string]readyzCheck `json:"checks"`
	Details     []string               `json:"details"`
	GeneratedAt string                 `json:"generatedAt,omitempty"`
}

// Healthz reports that the process is alive along with its build identity.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, healthzResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).String(),
		Timestamp:   now.UTC().Format(time.RFC3339),
	})
}

// Readyz probes the configured dependencies and answers 503 unless every
// check comes back healthy.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, readyzResponse{
			Status:  domain.HealthStatusOK,
			Checks:  map[string]readyzCheck{},
			Details: []string{},
		})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, readyzResponse{
			Status:  domain.HealthStatusError,
			Checks:  map[string]readyzCheck{},
			Details: []string{fmt.Sprintf("health: %v", err)},
		})
		return
	}

	resp := readyzResponse{
		Status:  report.Status,
		Checks:  make(map[string]readyzCheck, len(report.Checks)),
		Details: []string{},
	}
	if !report.GeneratedAt.IsZero() {
		resp.GeneratedAt = report.GeneratedAt.UTC().Format(time.RFC3339)
	}

	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := report.Checks[name]
		out := readyzCheck{
			Status: check.Status,
			Detail: check.Detail,
			Error:  check.Error,
		}
		if check.Latency > 0 {
			out.LatencyMS = check.Latency.Milliseconds()
		}
		if !check.CheckedAt.IsZero() {
			out.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
		}
		resp.Checks[name] = out
		if check.Status != domain.HealthStatusOK && check.Error != "" {
			resp.Details = append(resp.Details, fmt.Sprintf("%s: %s", name, check.Error))
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, resp)
}
