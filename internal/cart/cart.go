package cart

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
	"github.com/samuel-warrie/go-realtime-stock/internal/redisx"
)

// Line is one cart entry: a product reference plus the quantity the
// shopper picked.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Store keeps per-session cart lines in a Redis hash so a cart survives
// page reloads and process restarts.
type Store struct {
	Redis *redis.Client
}

func (s *Store) key(session string) string {
	return fmt.Sprintf(redisx.KeyCart, session)
}

// SetItem writes the quantity for one product; zero or less removes it.
func (s *Store) SetItem(ctx context.Context, session, productID string, qty int) error {
	key := s.key(session)
	if qty <= 0 {
		return s.Redis.HDel(ctx, key, productID).Err()
	}
	if err := s.Redis.HSet(ctx, key, productID, qty).Err(); err != nil {
		return fmt.Errorf("cart hset: %w", err)
	}
	return s.Redis.Expire(ctx, key, redisx.TTLCart).Err()
}

func (s *Store) RemoveItem(ctx context.Context, session, productID string) error {
	return s.Redis.HDel(ctx, s.key(session), productID).Err()
}

// Items returns the cart lines sorted by product id for stable output.
func (s *Store) Items(ctx context.Context, session string) ([]Line, error) {
	m, err := s.Redis.HGetAll(ctx, s.key(session)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart hgetall: %w", err)
	}
	out := make([]Line, 0, len(m))
	for id, v := range m {
		qty, err := strconv.Atoi(v)
		if err != nil || qty <= 0 {
			continue
		}
		out = append(out, Line{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *Store) Clear(ctx context.Context, session string) error {
	return s.Redis.Del(ctx, s.key(session)).Err()
}

// Snapshot is the read surface checkout validation needs; satisfied by
// the sync engine.
type Snapshot interface {
	ByID(id string) (catalog.Product, error)
}

// Conflict identifies a line the current stock cannot satisfy.
type Conflict struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Allowed   int    `json:"allowed"`
}

// Validate checks every line against the live snapshot at the moment of
// the call. An empty result means the whole cart is purchasable; a
// product missing from the snapshot conflicts with Allowed zero.
func Validate(snap Snapshot, lines []Line) []Conflict {
	var out []Conflict
	for _, ln := range lines {
		p, err := snap.ByID(ln.ProductID)
		if err != nil {
			out = append(out, Conflict{ProductID: ln.ProductID, Requested: ln.Quantity})
			continue
		}
		d := catalog.ClampPurchaseQuantity(p, ln.Quantity)
		if d.Rejected {
			out = append(out, Conflict{ProductID: ln.ProductID, Requested: ln.Quantity, Allowed: d.Allowed})
		}
	}
	return out
}
