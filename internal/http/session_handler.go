package http

import (
	"context"
	"net/http"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/session"
)

type SessionManager interface {
	Acquire(ctx context.Context, buyerID string) (*session.Session, error)
	End(ctx context.Context, buyerID string) error
	Drain(buyerID string) []session.Notification
}

type SessionHandler struct {
	sessions SessionManager
	timeout  time.Duration
}

func NewSessionHandler(sessions SessionManager, timeout time.Duration) *SessionHandler {
	return &SessionHandler{sessions: sessions, timeout: timeout}
}

type SessionResponseDTO struct {
	BuyerID   string          `json:"buyer_id"`
	StartedAt time.Time       `json:"started_at"`
	Cart      CartResponseDTO `json:"cart"`
}

// POST /api/v1/session
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	s, err := h.sessions.Acquire(ctx, buyerID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "saved cart could not be restored")
		return
	}
	respondJSON(w, http.StatusOK, SessionResponseDTO{
		BuyerID:   s.BuyerID,
		StartedAt: s.StartedAt,
		Cart:      cartResponse(s.Cart),
	})
}

// DELETE /api/v1/session
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	if err := h.sessions.End(ctx, buyerID); err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/notifications
func (h *SessionHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}
	respondJSON(w, http.StatusOK, h.sessions.Drain(buyerID))
}
