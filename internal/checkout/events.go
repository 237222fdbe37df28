package checkout

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced      = "OrderPlaced"
	EventStockDecremented = "StockDecremented"
)

const (
	TopicOrderPlaced      = "store.order.placed"
	TopicStockDecremented = "store.stock.decremented"
)

// Envelope wraps every event on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderID   string      `json:"order_id"`
	SessionID string      `json:"session_id"`
	Lines     []OrderLine `json:"lines"`
}

type StockDecrementedPayload struct {
	OrderID string      `json:"order_id"`
	Lines   []OrderLine `json:"lines"`
}

// Partition key = order_id so all events of one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
