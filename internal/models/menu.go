package models

import "github.com/shopspring/decimal"

// StockStatus is the sale flag derived from the stock counter
type StockStatus string

const (
	InStock    StockStatus = "in_stock"
	OutOfStock StockStatus = "out_of_stock"
)

// Category groups menu items and decides which station prepares them
type Category struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name,omitempty"`
	Station     Station `json:"station"`
	SortOrder   int     `json:"sort_order"`
}

// MenuItem is a sellable product. Station is resolved from the category.
type MenuItem struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	StockManaged bool            `json:"stock_managed"`
	Stock        int             `json:"stock"`
	StockStatus  StockStatus     `json:"stock_status"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	Station      Station         `json:"station"`
}

// Available reports whether the item may be added to an order
func (m *MenuItem) Available() bool {
	return m.StockStatus != OutOfStock
}

// DerivedStockStatus is the flag implied by the current counter
func (m *MenuItem) DerivedStockStatus() StockStatus {
	if m.StockManaged && m.Stock <= 0 {
		return OutOfStock
	}
	return InStock
}
