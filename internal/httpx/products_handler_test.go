package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
	"github.com/samuel-warrie/go-realtime-stock/internal/httpx"
	"github.com/samuel-warrie/go-realtime-stock/internal/syncx"
)

type staticFetcher []catalog.Product

func (f staticFetcher) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, len(f))
	copy(out, f)
	return out, nil
}

type idleListener struct{}

func (idleListener) Listen(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
	<-ctx.Done()
	return ctx.Err()
}

type stockCall struct {
	id      string
	qty     int
	inStock *bool
}

type fakeStockWriter struct {
	calls []stockCall
	err   error
}

func (f *fakeStockWriter) SetStock(ctx context.Context, id string, qty int, inStock *bool) error {
	f.calls = append(f.calls, stockCall{id: id, qty: qty, inStock: inStock})
	return f.err
}

func testProducts() staticFetcher {
	return staticFetcher{
		{ID: "c1", Name: "Lavender Candle", Category: "candles", StockQuantity: 5, LowStockThreshold: 5, InStock: true},
		{ID: "s1", Name: "Oat Soap", Category: "soaps", StockQuantity: 0, LowStockThreshold: 3, InStock: true},
	}
}

func setup(t *testing.T, stock *fakeStockWriter) (*syncx.Engine, http.Handler) {
	t.Helper()
	e := syncx.NewEngine(testProducts(), time.Nanosecond, zerolog.Nop())
	require.NoError(t, e.LoadAll(context.Background()))
	sup := syncx.NewSupervisor(e, idleListener{}, syncx.SupervisorConfig{}, zerolog.Nop())

	r := httpx.NewRouter()
	h := &httpx.ProductsHandler{Engine: e, Super: sup, Stock: stock, Log: zerolog.Nop()}
	h.Register(r)
	return e, r
}

func TestListProducts(t *testing.T) {
	_, r := setup(t, &fakeStockWriter{})

	tests := []struct {
		name    string
		url     string
		wantIDs []string
	}{
		{"all by default", "/products", []string{"c1", "s1"}},
		{"all sentinel", "/products?category=all", []string{"c1", "s1"}},
		{"category filter", "/products?category=soaps", []string{"s1"}},
		{"unknown category empty", "/products?category=tea", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.url, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var got []catalog.Product
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestGetProduct(t *testing.T) {
	_, r := setup(t, &fakeStockWriter{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/c1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got catalog.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Lavender Candle", got.Name)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProductSeesAppliedChanges(t *testing.T) {
	e, r := setup(t, &fakeStockWriter{})

	p := catalog.Product{ID: "c1", Name: "Lavender Candle", Category: "candles", StockQuantity: 1, InStock: true}
	e.Apply(catalog.ChangeEvent{Type: catalog.EventUpdate, New: &p})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/c1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got catalog.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.StockQuantity, "reads reflect the snapshot as of the call")
}

func TestUpdateStock(t *testing.T) {
	stock := &fakeStockWriter{}
	_, r := setup(t, stock)

	w := httptest.NewRecorder()
	body := strings.NewReader(`{"stock_quantity": 7, "in_stock": false}`)
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/products/c1/stock", body))
	require.Equal(t, http.StatusNoContent, w.Code)

	require.Len(t, stock.calls, 1)
	assert.Equal(t, "c1", stock.calls[0].id)
	assert.Equal(t, 7, stock.calls[0].qty)
	require.NotNil(t, stock.calls[0].inStock)
	assert.False(t, *stock.calls[0].inStock)
}

func TestUpdateStockRejectsNegative(t *testing.T) {
	stock := &fakeStockWriter{}
	_, r := setup(t, stock)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/products/c1/stock",
		strings.NewReader(`{"stock_quantity": -1}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, stock.calls)
}

func TestUpdateStockNotFound(t *testing.T) {
	stock := &fakeStockWriter{err: catalog.ErrNotFound}
	_, r := setup(t, stock)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/products/nope/stock",
		strings.NewReader(`{"stock_quantity": 1}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatus(t *testing.T) {
	_, r := setup(t, &fakeStockWriter{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, false, got["connected"], "supervisor never started")
	assert.Equal(t, string(syncx.StateDisconnected), got["state"])
	assert.Equal(t, float64(2), got["products"])
}
