package redisx

import "time"

const (
	// Cart lines per shopper session: cart:{session} -> hash product_id -> qty
	KeyCart = "cart:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCart  = 7 * 24 * time.Hour
	TTLDedup = 48 * time.Hour
)
