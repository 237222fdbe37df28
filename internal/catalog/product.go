package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

// Product mirrors one row of the products table. The authoritative copy
// lives in Postgres; the sync engine holds a read-mostly cached copy.
type Product struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Category          string            `json:"category"`
	Brand             string            `json:"brand"`
	Descriptions      map[string]string `json:"descriptions"` // keyed by language code (en, fi, sv)
	Price             decimal.Decimal   `json:"price"`
	OriginalPrice     decimal.Decimal   `json:"original_price"`
	StockQuantity     int               `json:"stock_quantity"`
	LowStockThreshold int               `json:"low_stock_threshold"`
	InStock           bool              `json:"in_stock"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one row-change notification from the ledger. INSERT and
// UPDATE carry the full new row; DELETE carries the old one.
type ChangeEvent struct {
	Type EventType `json:"event"`
	New  *Product  `json:"new,omitempty"`
	Old  *Product  `json:"old,omitempty"`
}

// ProductID returns the id the event refers to, or "" for a malformed event.
func (ev ChangeEvent) ProductID() string {
	if ev.New != nil {
		return ev.New.ID
	}
	if ev.Old != nil {
		return ev.Old.ID
	}
	return ""
}
