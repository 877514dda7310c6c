package events

import (
	"context"
	"sync"
)

// Buffer collects events raised inside a transaction. Create one per
// transaction and call Flush only after the commit succeeded; a buffer
// whose transaction rolled back is simply dropped.
type Buffer struct {
	publisher Publisher
	mu        sync.Mutex
	pending   []Event
}

// NewBuffer creates a Buffer that flushes into publisher.
func NewBuffer(publisher Publisher) *Buffer {
	if publisher == nil {
		publisher = Discard
	}
	return &Buffer{publisher: publisher}
}

// Add queues an event.
func (b *Buffer) Add(t Type, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, New(t, payload))
}

// Reset drops everything queued so far.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}

// Flush publishes the queued events in order and empties the buffer.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	return b.publisher.Publish(ctx, pending...)
}

// PendingCount returns the number of queued events.
func (b *Buffer) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
