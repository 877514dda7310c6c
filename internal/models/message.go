package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatusUpdateMessage announces an order status or completion change
type StatusUpdateMessage struct {
	OrderID           string      `json:"order_id"`
	TableName         string      `json:"table_name"`
	OldStatus         OrderStatus `json:"old_status"`
	NewStatus         OrderStatus `json:"new_status"`
	CompletedStations StationSet  `json:"completed_stations"`
	Station           Station     `json:"station,omitempty"`
	ChangedBy         string      `json:"changed_by"`
	Timestamp         time.Time   `json:"timestamp"`
}

// StockLevel is the post-commit stock of one menu item
type StockLevel struct {
	MenuItemID  int64       `json:"menu_item_id"`
	Name        string      `json:"name"`
	Stock       int         `json:"stock"`
	StockStatus StockStatus `json:"stock_status"`
}

// StockUpdateMessage lists the stock-managed items touched by an order
type StockUpdateMessage struct {
	Items []StockLevel `json:"items"`
}

// TableStatusMessage announces a table occupancy change
type TableStatusMessage struct {
	TableName string      `json:"table_name"`
	Status    TableStatus `json:"status"`
}

// TableClearedMessage announces that a table's orders were settled
type TableClearedMessage struct {
	TableName string    `json:"table_name"`
	OrderIDs  []string  `json:"order_ids"`
	ClearedBy string    `json:"cleared_by"`
	Timestamp time.Time `json:"timestamp"`
}

// DiscountAppliedMessage announces a table-wide discount
type DiscountAppliedMessage struct {
	TableName          string          `json:"table_name"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	OrderIDs           []string        `json:"order_ids"`
	AppliedBy          string          `json:"applied_by"`
}

// NewStatusUpdateMessage builds the payload for a change of order from oldStatus
func NewStatusUpdateMessage(order *Order, oldStatus OrderStatus, station Station, changedBy string) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		OrderID:           order.ID,
		TableName:         order.TableName,
		OldStatus:         oldStatus,
		NewStatus:         order.Status,
		CompletedStations: order.CompletedStations,
		Station:           station,
		ChangedBy:         changedBy,
		Timestamp:         time.Now().UTC(),
	}
}

// NewStockLevel snapshots an item after reservation
func NewStockLevel(item *MenuItem) StockLevel {
	return StockLevel{
		MenuItemID:  item.ID,
		Name:        item.Name,
		Stock:       item.Stock,
		StockStatus: item.StockStatus,
	}
}
