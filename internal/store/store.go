// Package store declares the persistence contract used by the order services.
//
// Methods named Lock* must run inside WithinTx; they hold a row lock on what
// they return until the transaction ends.
package store

import (
	"context"
	"time"

	"restaurant-orders/internal/models"
)

// Store is the transactional order aggregate store
type Store interface {
	// WithinTx runs fn in one transaction carried by the ctx passed to fn.
	// It commits when fn returns nil and rolls back otherwise. Calls nested
	// inside fn join the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error

	MenuRepository
	SequenceRepository
	TableRepository
	OrderRepository
}

type MenuRepository interface {
	LockMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	UpdateStock(ctx context.Context, item *models.MenuItem) error
}

type SequenceRepository interface {
	// NextSequence increments and returns the counter for (prefix, day).
	// The first call for a pair returns 1.
	NextSequence(ctx context.Context, prefix string, day time.Time) (int, error)
}

type TableRepository interface {
	LockTableByName(ctx context.Context, name string) (*models.Table, error)
	SetTableStatus(ctx context.Context, id int64, status models.TableStatus) error
	// ListTables returns every table by sort order, then name
	ListTables(ctx context.Context) ([]models.Table, error)
}

type OrderRepository interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	LockOrder(ctx context.Context, id string) (*models.Order, error)
	// UpdateOrder persists the mutable fields: status, discount, totals,
	// completed stations and paid-from status
	UpdateOrder(ctx context.Context, order *models.Order) error
	// LockOpenOrdersByTable returns the table's unpaid orders by creation time
	LockOpenOrdersByTable(ctx context.Context, tableName string) ([]*models.Order, error)
	// ListOpenOrdersByTable is LockOpenOrdersByTable without row locks, for reads
	ListOpenOrdersByTable(ctx context.Context, tableName string) ([]*models.Order, error)
	// ListOpenOrders returns every unpaid order by creation time
	ListOpenOrders(ctx context.Context) ([]*models.Order, error)
	AppendStatusLog(ctx context.Context, change models.StatusChange) error
	StatusHistory(ctx context.Context, orderID string) ([]models.StatusChange, error)
}
