package models

import "github.com/shopspring/decimal"

// TableStatus is the occupancy state of a physical table
type TableStatus string

const (
	TableAvailable TableStatus = "Available"
	TableOccupied  TableStatus = "Occupied"
	TableBilling   TableStatus = "Billing"
)

// Table is a physical seating location
type Table struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Status    TableStatus `json:"status"`
	SortOrder int         `json:"sort_order"`
}

// Bill aggregates every unpaid order of one table
type Bill struct {
	TableName          string          `json:"table_name"`
	OrderIDs           []string        `json:"order_ids"`
	Items              []OrderItem     `json:"items"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TotalAfterDiscount decimal.Decimal `json:"total_after_discount"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	Tax                decimal.Decimal `json:"tax"`
	Total              decimal.Decimal `json:"total"`
}

// TableView is one row of the billing overview. Table is nil for
// destinations without a table row, such as Bar-3 or Takeaway-7.
type TableView struct {
	Name   string      `json:"name"`
	Table  *Table      `json:"table,omitempty"`
	Status TableStatus `json:"status,omitempty"`
	Bill   *Bill       `json:"bill,omitempty"`
}
