package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/samuel-warrie/go-realtime-stock/internal/catalog"
)

// Channel is the NOTIFY channel the products trigger publishes to
// (see schema.sql).
const Channel = "product_changes"

// Listener consumes row-change notifications from Postgres. One call to
// Listen pins a pooled connection for the lifetime of the session.
type Listener struct {
	Pool *pgxpool.Pool
	Log  zerolog.Logger
}

type payload struct {
	Event string           `json:"event"`
	New   *catalog.Product `json:"new"`
	Old   *catalog.Product `json:"old"`
}

// Listen blocks until the session dies. ready fires once LISTEN is
// established; each decoded notification goes through h in delivery
// order. Malformed payloads are logged and skipped, not fatal.
func (l *Listener) Listen(ctx context.Context, ready func(), h func(catalog.ChangeEvent)) error {
	conn, err := l.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	ready()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait notification: %w", err)
		}
		var p payload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			l.Log.Warn().Err(err).Str("payload", n.Payload).Msg("bad change payload, skipped")
			continue
		}
		h(catalog.ChangeEvent{Type: catalog.EventType(p.Event), New: p.New, Old: p.Old})
	}
}
