package stock

import (
	"context"
	"errors"
	"testing"

	"restaurant-orders/internal/models"
)

type fakeMenuRepo struct {
	updates []models.MenuItem
	err     error
}

func (f *fakeMenuRepo) LockMenuItem(context.Context, int64) (*models.MenuItem, error) {
	return nil, errors.New("not used")
}

func (f *fakeMenuRepo) UpdateStock(_ context.Context, item *models.MenuItem) error {
	f.updates = append(f.updates, *item)
	return f.err
}

func TestReserve(t *testing.T) {
	tests := []struct {
		name        string
		item        models.MenuItem
		qty         int
		wantStock   int
		wantErr     error
		wantUpdates int
	}{
		{
			name:        "decrements managed stock",
			item:        models.MenuItem{ID: 1, StockManaged: true, Stock: 5, StockStatus: models.InStock},
			qty:         2,
			wantStock:   3,
			wantUpdates: 1,
		},
		{
			name:        "floors at zero",
			item:        models.MenuItem{ID: 1, StockManaged: true, Stock: 1, StockStatus: models.InStock},
			qty:         3,
			wantStock:   0,
			wantUpdates: 1,
		},
		{
			name:      "unmanaged item untouched",
			item:      models.MenuItem{ID: 2, StockManaged: false, Stock: 0, StockStatus: models.InStock},
			qty:       10,
			wantStock: 0,
		},
		{
			name:      "out of stock refused",
			item:      models.MenuItem{ID: 3, StockManaged: true, Stock: 0, StockStatus: models.OutOfStock},
			qty:       1,
			wantStock: 0,
			wantErr:   models.ErrOutOfStock,
		},
		{
			name:      "unmanaged but flagged out of stock refused",
			item:      models.MenuItem{ID: 4, StockManaged: false, StockStatus: models.OutOfStock},
			qty:       1,
			wantErr:   models.ErrOutOfStock,
			wantStock: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeMenuRepo{}
			l := NewLedger(repo)
			item := tt.item

			err := l.Reserve(context.Background(), &item, tt.qty)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if item.Stock != tt.wantStock {
				t.Errorf("stock = %d, want %d", item.Stock, tt.wantStock)
			}
			if len(repo.updates) != tt.wantUpdates {
				t.Errorf("updates = %d, want %d", len(repo.updates), tt.wantUpdates)
			}
			if item.Stock < 0 {
				t.Errorf("stock went negative")
			}
		})
	}
}

func TestRecomputeStatus(t *testing.T) {
	tests := []struct {
		name        string
		item        models.MenuItem
		want        models.StockStatus
		wantUpdates int
	}{
		{"depleted flips to out", models.MenuItem{StockManaged: true, Stock: 0, StockStatus: models.InStock}, models.OutOfStock, 1},
		{"restocked flips to in", models.MenuItem{StockManaged: true, Stock: 4, StockStatus: models.OutOfStock}, models.InStock, 1},
		{"unchanged is not written", models.MenuItem{StockManaged: true, Stock: 4, StockStatus: models.InStock}, models.InStock, 0},
		{"unmanaged is in stock", models.MenuItem{StockManaged: false, Stock: 0, StockStatus: models.InStock}, models.InStock, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeMenuRepo{}
			item := tt.item
			if err := NewLedger(repo).RecomputeStatus(context.Background(), &item); err != nil {
				t.Fatalf("RecomputeStatus: %v", err)
			}
			if item.StockStatus != tt.want {
				t.Errorf("status = %s, want %s", item.StockStatus, tt.want)
			}
			if len(repo.updates) != tt.wantUpdates {
				t.Errorf("updates = %d, want %d", len(repo.updates), tt.wantUpdates)
			}
		})
	}
}
