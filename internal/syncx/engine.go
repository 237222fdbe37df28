package syncx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
)

// Fetcher loads the full product list from the ledger, newest first.
type Fetcher interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

var ErrClosed = errors.New("sync engine closed")

// DefaultMinRefreshAge bounds load from refresh callers: a snapshot
// younger than this is considered fresh enough and not refetched.
const DefaultMinRefreshAge = 25 * time.Second

// Engine owns the in-memory mirror of the products table. All mutation
// goes through LoadAll/Apply; readers get copies and never touch the
// collection directly.
type Engine struct {
	fetcher       Fetcher
	minRefreshAge time.Duration
	log           zerolog.Logger

	mu        sync.RWMutex
	order     []string // product ids, newest first
	byID      map[string]catalog.Product
	lastFetch time.Time
	closed    bool
}

func NewEngine(f Fetcher, minRefreshAge time.Duration, log zerolog.Logger) *Engine {
	if minRefreshAge <= 0 {
		minRefreshAge = DefaultMinRefreshAge
	}
	return &Engine{
		fetcher:       f,
		minRefreshAge: minRefreshAge,
		log:           log,
		byID:          make(map[string]catalog.Product),
	}
}

// LoadAll replaces the whole snapshot with a fresh fetch. On fetch
// failure the previous snapshot is kept untouched; stale-but-present
// beats empty. A result arriving after Close is discarded.
func (e *Engine) LoadAll(ctx context.Context) error {
	ps, err := e.fetcher.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	order := make([]string, 0, len(ps))
	byID := make(map[string]catalog.Product, len(ps))
	for _, p := range ps {
		if _, ok := byID[p.ID]; ok {
			continue // dedupe by id, first row wins
		}
		order = append(order, p.ID)
		byID[p.ID] = p
	}
	e.order, e.byID = order, byID
	e.lastFetch = time.Now()
	e.log.Debug().Int("products", len(order)).Msg("snapshot replaced")
	return nil
}

// Refresh re-runs LoadAll unless the last successful fetch is recent.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.RLock()
	last, closed := e.lastFetch, e.closed
	e.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !last.IsZero() && time.Since(last) < e.minRefreshAge {
		return nil
	}
	return e.LoadAll(ctx)
}

// Apply merges one change event into the snapshot. The merge is
// idempotent: an insert for a known id is treated as an update, a
// delete for an unknown id is a no-op. Last applied event wins.
func (e *Engine) Apply(ev catalog.ChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	switch ev.Type {
	case catalog.EventInsert, catalog.EventUpdate:
		if ev.New == nil {
			return
		}
		p := *ev.New
		if _, ok := e.byID[p.ID]; ok {
			e.byID[p.ID] = p // full-row replace
			return
		}
		e.order = append([]string{p.ID}, e.order...) // newest first
		e.byID[p.ID] = p
	case catalog.EventDelete:
		id := ev.ProductID()
		if _, ok := e.byID[id]; !ok {
			return
		}
		delete(e.byID, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// AllCategories is the sentinel that makes ByCategory return everything.
const AllCategories = "all"

func (e *Engine) ByCategory(category string) []catalog.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]catalog.Product, 0, len(e.order))
	for _, id := range e.order {
		p := e.byID[id]
		if category == "" || category == AllCategories || p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) ByID(id string) (catalog.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.byID[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.order)
}

func (e *Engine) LastFetch() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastFetch
}

// Close tears the engine down. In-flight fetch results and further
// events are discarded afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}
