package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/samuel-warrie/go-realtime-stock/internal/cart"
	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
	"github.com/samuel-warrie/go-realtime-stock/internal/checkout"
	kafkax "github.com/samuel-warrie/go-realtime-stock/internal/kafka"
	"github.com/samuel-warrie/go-realtime-stock/internal/syncx"
)

type CartHandler struct {
	Store    *cart.Store
	Engine   *syncx.Engine
	Producer *kafkax.Producer
	Service  string
	Log      zerolog.Logger
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart/{session}", h.getCart)
	r.Put("/cart/{session}/items/{productID}", h.setItem)
	r.Delete("/cart/{session}/items/{productID}", h.removeItem)
	r.Post("/cart/{session}/checkout", h.checkoutOrder)
}

type setItemReq struct {
	Quantity int `json:"quantity"`
}

type setItemResp struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Rejected  bool   `json:"rejected"`
}

// setItem clamps the requested quantity against the snapshot at the
// moment of the call, never against a quantity the client cached.
func (h *CartHandler) setItem(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	productID := chi.URLParam(r, "productID")
	var req setItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	p, err := h.Engine.ByID(productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d := catalog.ClampPurchaseQuantity(p, req.Quantity)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.SetItem(ctx, session, productID, d.Allowed); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, setItemResp{ProductID: productID, Quantity: d.Allowed, Rejected: d.Rejected})
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.RemoveItem(ctx, chi.URLParam(r, "session"), chi.URLParam(r, "productID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	lines, err := h.Store.Items(ctx, chi.URLParam(r, "session"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

type checkoutResp struct {
	OrderID string `json:"order_id"`
}

// checkoutOrder re-validates the whole cart against live stock. Any
// conflicting line rejects the purchase with the item identified; a
// clean cart becomes an OrderPlaced event for fulfillment.
func (h *CartHandler) checkoutOrder(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lines, err := h.Store.Items(ctx, session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	if conflicts := cart.Validate(h.Engine, lines); len(conflicts) > 0 {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "stock conflict",
			"conflicts": conflicts,
		})
		return
	}

	orderID := uuid.NewString()
	orderLines := make([]checkout.OrderLine, 0, len(lines))
	for _, ln := range lines {
		orderLines = append(orderLines, checkout.OrderLine{ProductID: ln.ProductID, Qty: ln.Quantity})
	}
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(checkout.OrderPlacedPayload{
			OrderID:   orderID,
			SessionID: session,
			Lines:     orderLines,
		}),
	}
	h.Producer.Publish(checkout.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	if err := h.Store.Clear(ctx, session); err != nil {
		h.Log.Warn().Err(err).Str("session", session).Msg("cart clear failed after checkout")
	}
	writeJSON(w, http.StatusAccepted, checkoutResp{OrderID: orderID})
}
