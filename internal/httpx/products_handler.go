package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
	"github.com/samuel-warrie/go-realtime-stock/internal/syncx"
)

// StockWriter is the admin point-update surface of the ledger.
type StockWriter interface {
	SetStock(ctx context.Context, id string, qty int, inStock *bool) error
}

type ProductsHandler struct {
	Engine *syncx.Engine
	Super  *syncx.Supervisor
	Stock  StockWriter
	Log    zerolog.Logger
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/products/refresh", h.refresh)
	r.Patch("/products/{id}/stock", h.updateStock)
	r.Get("/status", h.status)
}

// listProducts serves the snapshot as of the call; no extra cache layer
// sits between the engine and the response.
func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	ps := h.Engine.ByCategory(category)
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Engine.ByID(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// refresh is the manual retry affordance: the engine surfaces fetch
// errors instead of looping internally, so the caller decides.
func (h *ProductsHandler) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.Refresh(ctx); err != nil {
		h.Log.Warn().Err(err).Msg("manual refresh failed")
		writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": h.Engine.Len()})
}

type updateStockReq struct {
	StockQuantity int   `json:"stock_quantity"`
	InStock       *bool `json:"in_stock,omitempty"`
}

func (h *ProductsHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.StockQuantity < 0 {
		writeError(w, http.StatusBadRequest, "stock_quantity must be >= 0")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Stock.SetStock(ctx, id, req.StockQuantity, req.InStock); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":  h.Super.Connected(),
		"state":      h.Super.State(),
		"products":   h.Engine.Len(),
		"last_fetch": h.Engine.LastFetch(),
	})
}
