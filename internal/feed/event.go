// Package feed defines the change feed: row-level insert/update/delete events
// published per table and delivered to filtered subscriptions.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tables carried on the feed
const (
	TableProducts      = "products"
	TableCartItems     = "cart_items"
	TableWishlistItems = "wishlist_items"
	TableUsers         = "users"
)

// EventType is the kind of row change
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one row change. New is set for insert and update, Old for delete.
type Event struct {
	Type  EventType       `json:"type"`
	Table string          `json:"table"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// NewEvent encodes the given rows into an event. Either row may be nil.
func NewEvent(table string, eventType EventType, newRow, oldRow interface{}) (Event, error) {
	event := Event{Type: eventType, Table: table}

	if newRow != nil {
		data, err := json.Marshal(newRow)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode new row: %w", err)
		}
		event.New = data
	}

	if oldRow != nil {
		data, err := json.Marshal(oldRow)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode old row: %w", err)
		}
		event.Old = data
	}

	return event, nil
}

// Row returns the row that identifies the change: Old for deletes, New otherwise.
func (e Event) Row() json.RawMessage {
	if e.Type == EventDelete || len(e.New) == 0 {
		return e.Old
	}
	return e.New
}

// Decode unmarshals the identifying row into dst
func (e Event) Decode(dst interface{}) error {
	row := e.Row()
	if len(row) == 0 {
		return fmt.Errorf("event on %s carries no row", e.Table)
	}
	return json.Unmarshal(row, dst)
}

// Publisher pushes change events to subscribers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber opens subscriptions on a table. A nil filter receives every event.
type Subscriber interface {
	Subscribe(ctx context.Context, table string, filter *Filter) (*Subscription, error)
}

// Feed is both sides of the change feed
type Feed interface {
	Publisher
	Subscriber
}
