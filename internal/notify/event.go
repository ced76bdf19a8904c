// Package notify fans domain changes out to live viewers: an in-process Hub feeding the
// SSE endpoint and an AMQP publisher for out-of-process screens.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	OrderCreated   = "order.created"
	OrderUpdated   = "order.updated"
	OrderDeleted   = "order.deleted"
	MenuUpdated    = "menu.updated"
	MenuDeleted    = "menu.deleted"
	StockChanged   = "stock.changed"
	SessionStarted = "session.started"
	SessionEnded   = "session.ended"
)

// Event is one change notification. Payload carries the changed entity as JSON.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	EntityID   string      `json:"entity_id"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewEvent stamps a fresh id and the current time.
func NewEvent(eventType, entityID string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EntityID:   entityID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type multi []Notifier

// Multi publishes to every notifier and joins their errors. One failing target does not
// stop delivery to the others.
func Multi(notifiers ...Notifier) Notifier {
	var m multi
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
