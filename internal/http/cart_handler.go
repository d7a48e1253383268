package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	cart "github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"github.com/firstcodebyte/artvista-canvas-commerce/internal/catalog"
	"github.com/go-chi/chi/v5"
)

// CartSessions is the cart surface of the session manager.
type CartSessions interface {
	Cart(ctx context.Context, buyerID string) (*cart.Cart, error)
	AddItem(ctx context.Context, buyerID string, item cart.CartItem) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, buyerID, itemID string, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, buyerID, itemID string) (*cart.Cart, error)
}

type CartHandler struct {
	sessions CartSessions
	catalog  catalog.Reader
	timeout  time.Duration
}

func NewCartHandler(sessions CartSessions, catalog catalog.Reader, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  catalog,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ArtworkID string `json:"artwork_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items       []cart.CartItem `json:"items"`
	ItemCount   int             `json:"item_count"`
	TotalAmount int64           `json:"total_amount"`
}

func cartResponse(c *cart.Cart) CartResponseDTO {
	return CartResponseDTO{
		Items:       c.Items(),
		ItemCount:   c.ItemCount(),
		TotalAmount: c.TotalAmount(),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	c, err := h.sessions.Cart(ctx, buyerID)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be loaded")
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(c))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ArtworkID == "" {
		respondError(w, http.StatusBadRequest, "invalid_artwork_id", "artwork_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	art, err := h.catalog.GetArtwork(ctx, req.ArtworkID)
	switch {
	case errors.Is(err, catalog.ErrArtworkNotFound):
		respondError(w, http.StatusNotFound, "artwork_not_found", "artwork not found")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "internal_error", "catalog lookup failed")
		return
	case art.Sold:
		respondError(w, http.StatusConflict, "artwork_sold", catalog.ErrArtworkSold.Error())
		return
	}

	c, err := h.sessions.AddItem(ctx, buyerID, cart.CartItem{
		ID:        art.ID,
		Title:     art.Title,
		Creator:   art.Artist,
		UnitPrice: art.EffectivePrice(),
		Image:     art.Image,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved")
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(c))
}

// PUT /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.sessions.UpdateQuantity(ctx, buyerID, chi.URLParam(r, "item_id"), req.Quantity)
	if errors.Is(err, cart.ErrInvalidQuantity) {
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved")
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(c))
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyerID := getBuyerID(r.Context())
	if buyerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
		return
	}

	c, err := h.sessions.RemoveItem(ctx, buyerID, chi.URLParam(r, "item_id"))
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved")
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(c))
}
