// Package sequence mints per-day display names such as Bar-3 or Takeaway-12.
package sequence

import (
	"context"
	"fmt"
	"time"

	"restaurant-orders/internal/store"
)

const (
	PrefixBar      = "Bar"
	PrefixTakeaway = "Takeaway"
)

// Namer allocates "<prefix>-<n>" where n counts from 1 per prefix and
// business day. Call Next inside the order transaction: the counter row
// stays locked until commit and a rollback gives the number back.
type Namer struct {
	repo store.SequenceRepository
	loc  *time.Location
	now  func() time.Time
}

func NewNamer(repo store.SequenceRepository, loc *time.Location) *Namer {
	if loc == nil {
		loc = time.UTC
	}
	return &Namer{repo: repo, loc: loc, now: time.Now}
}

// SetClock replaces the time source
func (n *Namer) SetClock(now func() time.Time) {
	n.now = now
}

// BusinessDay is midnight of t's calendar date in the restaurant time zone
func (n *Namer) BusinessDay(t time.Time) time.Time {
	local := t.In(n.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, n.loc)
}

func (n *Namer) Next(ctx context.Context, prefix string) (string, error) {
	seq, err := n.repo.NextSequence(ctx, prefix, n.BusinessDay(n.now()))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", prefix, seq), nil
}
