// Package events defines the outbound notifications emitted after a change commits.
package events

import (
	"context"
	"time"
)

// Type names the kind of change being announced.
type Type string

const (
	NewOrder          Type = "newOrder"
	OrderStatusUpdate Type = "orderStatusUpdate"
	StockUpdate       Type = "stockUpdate"
	TableCleared      Type = "tableCleared"
	DiscountApplied   Type = "discountApplied"
	TableStatusUpdate Type = "tableStatusUpdate"
)

// Event is the broadcast envelope. Payload is JSON-encoded by the transport.
type Event struct {
	Type       Type      `json:"type"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with the current time.
func New(t Type, payload any) Event {
	return Event{Type: t, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events to observers. Delivery is fire-and-forget from
// the caller's point of view: a failure never undoes the committed change.
type Publisher interface {
	Publish(ctx context.Context, evts ...Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, evts ...Event) error

func (f PublisherFunc) Publish(ctx context.Context, evts ...Event) error {
	return f(ctx, evts...)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, ...Event) error { return nil })
