package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/samuel-warrie/go-realtime-stock/internal/checkout"
	kafkax "github.com/samuel-warrie/go-realtime-stock/internal/kafka"
	"github.com/samuel-warrie/go-realtime-stock/internal/redisx"
)

// Ledger is the slice of the stock ledger fulfillment writes to.
type Ledger interface {
	DecrementStock(ctx context.Context, id string, n int) error
}

// Service consumes OrderPlaced events and applies the stock decrement
// to the ledger. Connected storefronts observe the write as an ordinary
// change event; there is no special-casing on their side.
type Service struct {
	Ledger      Ledger
	Redis       *redis.Client
	Producer    *kafkax.Producer // publishes stock.decremented
	ServiceName string
	Log         zerolog.Logger
}

// HandleOrderPlaced is mounted as the consumer handler.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType != checkout.EventOrderPlaced {
		return nil // ignore
	}

	// Dedup via event_id: redelivery must not decrement twice.
	dkey := fmt.Sprintf(redisx.KeyDedup, "fulfillment", env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[checkout.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, ln := range p.Lines {
		if err := s.Ledger.DecrementStock(ctx, ln.ProductID, ln.Qty); err != nil {
			return fmt.Errorf("decrement %s: %w", ln.ProductID, err)
		}
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	s.Log.Info().Str("order_id", p.OrderID).Int("lines", len(p.Lines)).Msg("stock decremented")
	s.publishDecremented(p.OrderID, p.Lines, env.TraceID)
	return nil
}

func (s *Service) publishDecremented(orderID string, lines []checkout.OrderLine, trace string) {
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventStockDecremented,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(checkout.StockDecrementedPayload{OrderID: orderID, Lines: lines}),
	}
	s.Producer.Publish(checkout.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventStockDecremented)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
