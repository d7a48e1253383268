package http

import (
	"context"
	"net/http"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/reconciliation"
)

type CaseLister interface {
	ListOpen(ctx context.Context, limit int) ([]reconciliation.Case, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandler struct {
	cases   CaseLister
	pingers map[string]Pinger
	timeout time.Duration
}

// NewAdminHandler serves health and reconciliation views. cases may be nil when
// no reconciliation store is configured.
func NewAdminHandler(cases CaseLister, pingers map[string]Pinger, timeout time.Duration) *AdminHandler {
	return &AdminHandler{cases: cases, pingers: pingers, timeout: timeout}
}

// GET /health
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.pingers))
	healthy := true
	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{"status": status, "checks": checks})
}

// GET /api/v1/reconciliation/cases
func (h *AdminHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	if h.cases == nil {
		respondJSON(w, http.StatusOK, []reconciliation.Case{})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, err := queryInt(r, "limit", 100)
	if err != nil || limit < 1 || limit > 500 {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500")
		return
	}

	cases, err := h.cases.ListOpen(ctx, limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "reconciliation store unavailable")
		return
	}
	respondJSON(w, http.StatusOK, cases)
}
