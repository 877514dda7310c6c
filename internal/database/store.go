package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

var _ store.Store = (*DB)(nil)

// LockMenuItem reads a menu item with its category station and locks the row
func (db *DB) LockMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	var (
		item    models.MenuItem
		price   string
		status  string
		station string
	)
	err := db.conn(ctx).QueryRow(ctx, LockMenuItemSQL, id).Scan(
		&item.ID,
		&item.Name,
		&price,
		&item.StockManaged,
		&item.Stock,
		&status,
		&item.CategoryID,
		&station,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("id %d: %w", id, models.ErrItemNotFound)
		}
		return nil, fmt.Errorf("failed to lock menu item %d: %w", id, translateError(err))
	}

	if item.Price, err = models.ParseMoney(price); err != nil {
		return nil, fmt.Errorf("menu item %d has invalid price %q: %w", id, price, err)
	}
	item.StockStatus = models.StockStatus(status)
	if item.Station, err = models.ParseStation(station); err != nil {
		return nil, fmt.Errorf("menu item %d: %w", id, err)
	}
	return &item, nil
}

func (db *DB) UpdateStock(ctx context.Context, item *models.MenuItem) error {
	tag, err := db.conn(ctx).Exec(ctx, UpdateStockSQL, item.Stock, string(item.StockStatus), item.ID)
	if err != nil {
		return fmt.Errorf("failed to update stock of item %d: %w", item.ID, translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("id %d: %w", item.ID, models.ErrItemNotFound)
	}
	return nil
}

func (db *DB) NextSequence(ctx context.Context, prefix string, day time.Time) (int, error) {
	var n int
	err := db.conn(ctx).QueryRow(ctx, NextSequenceSQL, prefix, day.Format(time.DateOnly)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s sequence: %w", prefix, translateError(err))
	}
	return n, nil
}

func (db *DB) LockTableByName(ctx context.Context, name string) (*models.Table, error) {
	var (
		table  models.Table
		status string
	)
	err := db.conn(ctx).QueryRow(ctx, LockTableByNameSQL, name).Scan(&table.ID, &table.Name, &status, &table.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%q: %w", name, models.ErrTableNotFound)
		}
		return nil, fmt.Errorf("failed to lock table %q: %w", name, translateError(err))
	}
	table.Status = models.TableStatus(status)
	return &table, nil
}

func (db *DB) SetTableStatus(ctx context.Context, id int64, status models.TableStatus) error {
	tag, err := db.conn(ctx).Exec(ctx, SetTableStatusSQL, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set table status: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("id %d: %w", id, models.ErrTableNotFound)
	}
	return nil
}

func (db *DB) ListTables(ctx context.Context) ([]models.Table, error) {
	rows, err := db.conn(ctx).Query(ctx, ListTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", translateError(err))
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		var (
			table  models.Table
			status string
		)
		if err := rows.Scan(&table.ID, &table.Name, &status, &table.SortOrder); err != nil {
			return nil, err
		}
		table.Status = models.TableStatus(status)
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

// InsertOrder writes the order, its item snapshot and fills in the timestamps
func (db *DB) InsertOrder(ctx context.Context, order *models.Order) error {
	q := db.conn(ctx)

	err := q.QueryRow(ctx, InsertOrderSQL,
		order.ID,
		order.TableName,
		order.Subtotal.String(),
		order.DiscountPercentage.String(),
		order.DiscountAmount.String(),
		order.Total.String(),
		order.SpecialRequest,
		string(order.Status),
		order.Takeaway,
		order.DiscountBy,
		int16(order.CompletedStations),
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", translateError(err))
	}

	batch := &pgx.Batch{}
	for i, item := range order.Items {
		batch.Queue(InsertOrderItemSQL,
			order.ID,
			i+1,
			item.MenuItemID,
			item.Name,
			item.CategoryID,
			item.Station.String(),
			item.UnitPrice.String(),
			item.Quantity,
		)
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert order items: %w", translateError(err))
	}
	return nil
}

func (db *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return db.fetchOrder(ctx, GetOrderSQL, id)
}

func (db *DB) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	return db.fetchOrder(ctx, LockOrderSQL, id)
}

func (db *DB) fetchOrder(ctx context.Context, sql, id string) (*models.Order, error) {
	q := db.conn(ctx)

	order, err := scanOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to load order %s: %w", id, translateError(err))
	}

	items, err := db.loadItems(ctx, GetOrderItemsSQL, id)
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (db *DB) UpdateOrder(ctx context.Context, order *models.Order) error {
	err := db.conn(ctx).QueryRow(ctx, UpdateOrderSQL,
		string(order.Status),
		order.DiscountPercentage.String(),
		order.DiscountAmount.String(),
		order.Total.String(),
		order.DiscountBy,
		int16(order.CompletedStations),
		string(order.PaidFromStatus),
		order.ID,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", order.ID, models.ErrOrderNotFound)
		}
		return fmt.Errorf("failed to update order %s: %w", order.ID, translateError(err))
	}
	return nil
}

func (db *DB) LockOpenOrdersByTable(ctx context.Context, tableName string) ([]*models.Order, error) {
	return db.listOrders(ctx, LockOpenOrdersByTableSQL, ListOpenOrderItemsByTableSQL, tableName)
}

func (db *DB) ListOpenOrdersByTable(ctx context.Context, tableName string) ([]*models.Order, error) {
	return db.listOrders(ctx, ListOpenOrdersByTableSQL, ListOpenOrderItemsByTableSQL, tableName)
}

func (db *DB) ListOpenOrders(ctx context.Context) ([]*models.Order, error) {
	return db.listOrders(ctx, ListOpenOrdersSQL, ListOpenOrderItemsSQL)
}

func (db *DB) listOrders(ctx context.Context, ordersSQL, itemsSQL string, args ...any) ([]*models.Order, error) {
	rows, err := db.conn(ctx).Query(ctx, ordersSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", translateError(err))
	}

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", translateError(err))
	}
	if len(orders) == 0 {
		return nil, nil
	}

	items, err := db.loadItems(ctx, itemsSQL, args...)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
	}
	return orders, nil
}

// loadItems groups item rows by order id
func (db *DB) loadItems(ctx context.Context, sql string, args ...any) (map[string][]models.OrderItem, error) {
	rows, err := db.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", translateError(err))
	}
	defer rows.Close()

	items := make(map[string][]models.OrderItem)
	for rows.Next() {
		var (
			orderID string
			item    models.OrderItem
			station string
			price   string
		)
		if err := rows.Scan(&orderID, &item.MenuItemID, &item.Name, &item.CategoryID, &station, &price, &item.Quantity); err != nil {
			return nil, err
		}
		if item.Station, err = models.ParseStation(station); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = models.ParseMoney(price); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order                          models.Order
		subtotal, pct, discount, total string
		status, paidFrom               string
		completed                      int16
	)
	err := row.Scan(
		&order.ID,
		&order.TableName,
		&subtotal,
		&pct,
		&discount,
		&total,
		&order.SpecialRequest,
		&status,
		&order.Takeaway,
		&order.DiscountBy,
		&completed,
		&paidFrom,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amounts := []string{subtotal, pct, discount, total}
	targets := []*decimal.Decimal{&order.Subtotal, &order.DiscountPercentage, &order.DiscountAmount, &order.Total}
	for i, raw := range amounts {
		if *targets[i], err = models.ParseMoney(raw); err != nil {
			return nil, fmt.Errorf("order %s has invalid amount %q: %w", order.ID, raw, err)
		}
	}

	order.Status = models.OrderStatus(status)
	order.PaidFromStatus = models.OrderStatus(paidFrom)
	order.CompletedStations = models.StationSet(completed)
	return &order, nil
}

func (db *DB) AppendStatusLog(ctx context.Context, change models.StatusChange) error {
	_, err := db.conn(ctx).Exec(ctx, InsertOrderStatusLogSQL, change.OrderID, string(change.Status), change.ChangedBy, change.Notes)
	if err != nil {
		return fmt.Errorf("failed to append status log: %w", translateError(err))
	}
	return nil
}

func (db *DB) StatusHistory(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	rows, err := db.conn(ctx).Query(ctx, GetOrderStatusHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", translateError(err))
	}
	defer rows.Close()

	var history []models.StatusChange
	for rows.Next() {
		var (
			change models.StatusChange
			status string
		)
		if err := rows.Scan(&change.OrderID, &status, &change.ChangedBy, &change.Notes, &change.ChangedAt); err != nil {
			return nil, err
		}
		change.Status = models.OrderStatus(status)
		history = append(history, change)
	}
	return history, rows.Err()
}
