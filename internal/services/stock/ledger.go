// Package stock keeps menu item counters and their sale flags consistent.
package stock

import (
	"context"

	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

// Ledger reserves stock inside the caller's transaction. It never retries:
// a lock conflict is returned to the caller as is.
type Ledger struct {
	repo store.MenuRepository
}

func NewLedger(repo store.MenuRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Lock reads an item for update
func (l *Ledger) Lock(ctx context.Context, id int64) (*models.MenuItem, error) {
	return l.repo.LockMenuItem(ctx, id)
}

// Reserve takes qty units of a locked item. Items flagged out of stock are
// refused. Stock-managed counters are floored at zero; the flag itself is
// left for RecomputeStatus.
func (l *Ledger) Reserve(ctx context.Context, item *models.MenuItem, qty int) error {
	if !item.Available() {
		return &models.ItemOutOfStockError{ItemID: item.ID, Name: item.Name}
	}
	if !item.StockManaged {
		return nil
	}

	item.Stock -= qty
	if item.Stock < 0 {
		item.Stock = 0
	}
	return l.repo.UpdateStock(ctx, item)
}

// RecomputeStatus derives the sale flag from the counter and persists it
func (l *Ledger) RecomputeStatus(ctx context.Context, item *models.MenuItem) error {
	status := item.DerivedStockStatus()
	if status == item.StockStatus {
		return nil
	}
	item.StockStatus = status
	return l.repo.UpdateStock(ctx, item)
}
