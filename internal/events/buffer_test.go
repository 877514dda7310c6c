package events

import (
	"context"
	"errors"
	"testing"
)

func TestBuffer_FlushPublishesInOrder(t *testing.T) {
	rec := &Recorder{}
	buf := NewBuffer(rec)

	buf.Add(NewOrder, "a")
	buf.Add(StockUpdate, "b")
	if len(rec.Events()) != 0 {
		t.Fatalf("events published before flush")
	}
	if buf.PendingCount() != 2 {
		t.Fatalf("pending = %d, want 2", buf.PendingCount())
	}

	if err := buf.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	got := rec.Types()
	if len(got) != 2 || got[0] != NewOrder || got[1] != StockUpdate {
		t.Fatalf("types = %v", got)
	}
	if buf.PendingCount() != 0 {
		t.Fatalf("buffer not emptied")
	}
}

func TestBuffer_ResetDropsEvents(t *testing.T) {
	rec := &Recorder{}
	buf := NewBuffer(rec)
	buf.Add(TableCleared, nil)
	buf.Reset()

	if err := buf.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("expected no events, got %v", rec.Types())
	}
}

func TestBuffer_FlushError(t *testing.T) {
	boom := errors.New("broker down")
	rec := &Recorder{Err: boom}
	buf := NewBuffer(rec)
	buf.Add(NewOrder, nil)

	if err := buf.Flush(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Flush error = %v, want %v", err, boom)
	}
}

func TestBuffer_NilPublisherDiscards(t *testing.T) {
	buf := NewBuffer(nil)
	buf.Add(NewOrder, nil)
	if err := buf.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
}
