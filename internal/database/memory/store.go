// Package memory is an in-process implementation of store.Store.
//
// Transactions are fully serialized by a single mutex and rolled back by
// restoring a snapshot, so it behaves like a SERIALIZABLE database with one
// connection. Reads outside a transaction wait for the running one to finish.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

var _ store.Store = (*Store)(nil)

type txKey struct{}

type seqKey struct {
	prefix string
	day    string
}

type data struct {
	categories map[int64]models.Category
	menu       map[int64]models.MenuItem
	tables     map[int64]models.Table
	orders     map[string]*models.Order
	insertSeq  map[string]int64
	sequences  map[seqKey]int
	statusLog  []models.StatusChange
}

func (d *data) clone() *data {
	c := &data{
		categories: make(map[int64]models.Category, len(d.categories)),
		menu:       make(map[int64]models.MenuItem, len(d.menu)),
		tables:     make(map[int64]models.Table, len(d.tables)),
		orders:     make(map[string]*models.Order, len(d.orders)),
		insertSeq:  make(map[string]int64, len(d.insertSeq)),
		sequences:  make(map[seqKey]int, len(d.sequences)),
		statusLog:  append([]models.StatusChange(nil), d.statusLog...),
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.menu {
		c.menu[k] = v
	}
	for k, v := range d.tables {
		c.tables[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range d.insertSeq {
		c.insertSeq[k] = v
	}
	for k, v := range d.sequences {
		c.sequences[k] = v
	}
	return c
}

// Store keeps everything in maps guarded by one mutex
type Store struct {
	mu     sync.Mutex
	data   *data
	nextID int64
	now    func() time.Time

	// PingErr is returned by Ping
	PingErr error
}

func New() *Store {
	return &Store{
		data: &data{
			categories: make(map[int64]models.Category),
			menu:       make(map[int64]models.MenuItem),
			tables:     make(map[int64]models.Table),
			orders:     make(map[string]*models.Order),
			insertSeq:  make(map[string]int64),
			sequences:  make(map[seqKey]int),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source used for created_at and the status log
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// run executes f holding the store lock unless ctx already owns it
func (s *Store) run(ctx context.Context, f func() error) error {
	if s.inTx(ctx) {
		return f()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return f()
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	nextID := s.nextID
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		s.nextID = nextID
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	return s.PingErr
}

// AddCategory seeds a category and returns its id
func (s *Store) AddCategory(c models.Category) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.data.categories[c.ID] = c
	return c.ID
}

// AddMenuItem seeds a menu item and returns its id. The station is taken
// from the category when one is set.
func (s *Store) AddMenuItem(item models.MenuItem) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	if item.StockStatus == "" {
		item.StockStatus = item.DerivedStockStatus()
	}
	s.data.menu[item.ID] = item
	return item.ID
}

// AddTable seeds a table and returns its id
func (s *Store) AddTable(t models.Table) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	if t.Status == "" {
		t.Status = models.TableAvailable
	}
	s.data.tables[t.ID] = t
	return t.ID
}

// MenuItem returns the committed state of an item
func (s *Store) MenuItem(id int64) (models.MenuItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.data.menu[id]
	if ok {
		item.Station = s.stationOf(item)
	}
	return item, ok
}

// TableByName returns the committed state of a table
func (s *Store) TableByName(name string) (models.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.data.tables {
		if t.Name == name {
			return t, true
		}
	}
	return models.Table{}, false
}

// OrderCount returns the number of stored orders, paid included
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.orders)
}

func (s *Store) stationOf(item models.MenuItem) models.Station {
	if item.CategoryID != nil {
		if c, ok := s.data.categories[*item.CategoryID]; ok {
			return c.Station
		}
	}
	return item.Station
}

func (s *Store) LockMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	var out *models.MenuItem
	err := s.run(ctx, func() error {
		item, ok := s.data.menu[id]
		if !ok {
			return fmt.Errorf("id %d: %w", id, models.ErrItemNotFound)
		}
		item.Station = s.stationOf(item)
		out = &item
		return nil
	})
	return out, err
}

func (s *Store) UpdateStock(ctx context.Context, item *models.MenuItem) error {
	return s.run(ctx, func() error {
		stored, ok := s.data.menu[item.ID]
		if !ok {
			return fmt.Errorf("id %d: %w", item.ID, models.ErrItemNotFound)
		}
		if item.Stock < 0 {
			return fmt.Errorf("stock of item %d would be negative: %w", item.ID, models.ErrConflict)
		}
		stored.Stock = item.Stock
		stored.StockStatus = item.StockStatus
		s.data.menu[item.ID] = stored
		return nil
	})
}

func (s *Store) NextSequence(ctx context.Context, prefix string, day time.Time) (int, error) {
	var n int
	err := s.run(ctx, func() error {
		key := seqKey{prefix: prefix, day: day.Format(time.DateOnly)}
		s.data.sequences[key]++
		n = s.data.sequences[key]
		return nil
	})
	return n, err
}

func (s *Store) LockTableByName(ctx context.Context, name string) (*models.Table, error) {
	var out *models.Table
	err := s.run(ctx, func() error {
		for _, t := range s.data.tables {
			if t.Name == name {
				t := t
				out = &t
				return nil
			}
		}
		return fmt.Errorf("%q: %w", name, models.ErrTableNotFound)
	})
	return out, err
}

func (s *Store) SetTableStatus(ctx context.Context, id int64, status models.TableStatus) error {
	return s.run(ctx, func() error {
		t, ok := s.data.tables[id]
		if !ok {
			return fmt.Errorf("id %d: %w", id, models.ErrTableNotFound)
		}
		t.Status = status
		s.data.tables[id] = t
		return nil
	})
}

func (s *Store) ListTables(ctx context.Context) ([]models.Table, error) {
	var out []models.Table
	err := s.run(ctx, func() error {
		for _, t := range s.data.tables {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].SortOrder != out[j].SortOrder {
				return out[i].SortOrder < out[j].SortOrder
			}
			return out[i].Name < out[j].Name
		})
		return nil
	})
	return out, err
}

func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	return s.run(ctx, func() error {
		if _, exists := s.data.orders[order.ID]; exists {
			return fmt.Errorf("order %s already exists: %w", order.ID, models.ErrConflict)
		}
		now := s.now()
		order.CreatedAt = now
		order.UpdatedAt = now
		s.nextID++
		s.data.insertSeq[order.ID] = s.nextID
		s.data.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var out *models.Order
	err := s.run(ctx, func() error {
		o, ok := s.data.orders[id]
		if !ok {
			return fmt.Errorf("%s: %w", id, models.ErrOrderNotFound)
		}
		out = cloneOrder(o)
		return nil
	})
	return out, err
}

func (s *Store) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *Store) UpdateOrder(ctx context.Context, order *models.Order) error {
	return s.run(ctx, func() error {
		stored, ok := s.data.orders[order.ID]
		if !ok {
			return fmt.Errorf("%s: %w", order.ID, models.ErrOrderNotFound)
		}
		stored.Status = order.Status
		stored.DiscountPercentage = order.DiscountPercentage
		stored.DiscountAmount = order.DiscountAmount
		stored.Total = order.Total
		stored.DiscountBy = cloneString(order.DiscountBy)
		stored.CompletedStations = order.CompletedStations
		stored.PaidFromStatus = order.PaidFromStatus
		stored.UpdatedAt = s.now()
		order.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

func (s *Store) LockOpenOrdersByTable(ctx context.Context, tableName string) ([]*models.Order, error) {
	return s.openOrders(ctx, func(o *models.Order) bool { return o.TableName == tableName })
}

// ListOpenOrdersByTable matches LockOpenOrdersByTable; every call is serialized anyway.
func (s *Store) ListOpenOrdersByTable(ctx context.Context, tableName string) ([]*models.Order, error) {
	return s.LockOpenOrdersByTable(ctx, tableName)
}

func (s *Store) ListOpenOrders(ctx context.Context) ([]*models.Order, error) {
	return s.openOrders(ctx, func(*models.Order) bool { return true })
}

func (s *Store) openOrders(ctx context.Context, match func(*models.Order) bool) ([]*models.Order, error) {
	var out []*models.Order
	err := s.run(ctx, func() error {
		for _, o := range s.data.orders {
			if o.Status != models.StatusPaid && match(o) {
				out = append(out, cloneOrder(o))
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return s.data.insertSeq[out[i].ID] < s.data.insertSeq[out[j].ID]
		})
		return nil
	})
	return out, err
}

func (s *Store) AppendStatusLog(ctx context.Context, change models.StatusChange) error {
	return s.run(ctx, func() error {
		if _, ok := s.data.orders[change.OrderID]; !ok {
			return fmt.Errorf("%s: %w", change.OrderID, models.ErrOrderNotFound)
		}
		change.ChangedAt = s.now()
		s.data.statusLog = append(s.data.statusLog, change)
		return nil
	})
}

func (s *Store) StatusHistory(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	var out []models.StatusChange
	err := s.run(ctx, func() error {
		for _, c := range s.data.statusLog {
			if c.OrderID == orderID {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.DiscountBy = cloneString(o.DiscountBy)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
