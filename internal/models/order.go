package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusCooking   OrderStatus = "Cooking"
	StatusPreparing OrderStatus = "Preparing"
	StatusServing   OrderStatus = "Serving"
	StatusPaid      OrderStatus = "Paid"
)

// ParseOrderStatus validates a wire status value
func ParseOrderStatus(value string) (OrderStatus, error) {
	switch s := OrderStatus(value); s {
	case StatusPending, StatusCooking, StatusPreparing, StatusServing, StatusPaid:
		return s, nil
	default:
		return "", fmt.Errorf("%q: %w", value, ErrInvalidStatus)
	}
}

// Rank orders statuses along the fulfillment flow. Cooking and Preparing share a rank.
func (s OrderStatus) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusCooking, StatusPreparing:
		return 1
	case StatusServing:
		return 2
	case StatusPaid:
		return 3
	default:
		return -1
	}
}

// OrderItem is the frozen snapshot of a menu item at order time
type OrderItem struct {
	MenuItemID int64           `json:"menu_item_id"`
	Name       string          `json:"name"`
	CategoryID *int64          `json:"category_id,omitempty"`
	Station    Station         `json:"station"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
}

// LineTotal is UnitPrice * Quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order
type Order struct {
	ID                 string          `json:"id"`
	TableName          string          `json:"table_name"`
	Items              []OrderItem     `json:"items"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	Total              decimal.Decimal `json:"total"`
	SpecialRequest     string          `json:"special_request,omitempty"`
	Status             OrderStatus     `json:"status"`
	Takeaway           bool            `json:"takeaway"`
	DiscountBy         *string         `json:"discount_by,omitempty"`
	CompletedStations  StationSet      `json:"completed_stations"`
	PaidFromStatus     OrderStatus     `json:"paid_from_status,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// RequiredStations is the set of stations that have at least one item
func (o *Order) RequiredStations() StationSet {
	var set StationSet
	for _, item := range o.Items {
		set = set.Add(item.Station)
	}
	return set
}

// AllStationsDone reports whether every required station has reported
func (o *Order) AllStationsDone() bool {
	return o.RequiredStations().SubsetOf(o.CompletedStations)
}

// ApplyDiscount recomputes discount amount and total from the order's own subtotal
func (o *Order) ApplyDiscount(pct decimal.Decimal, actor *string) {
	o.DiscountPercentage = pct
	o.DiscountAmount = DiscountAmount(o.Subtotal, pct)
	o.Total = o.Subtotal.Sub(o.DiscountAmount)
	o.DiscountBy = actor
}

// ItemsFor returns the lines prepared by one station
func (o *Order) ItemsFor(st Station) []OrderItem {
	var items []OrderItem
	for _, item := range o.Items {
		if item.Station == st {
			items = append(items, item)
		}
	}
	return items
}

// StatusChange is one entry in the order status log
type StatusChange struct {
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	Notes     *string     `json:"notes,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

// CartLine is one line of an incoming order
type CartLine struct {
	MenuItemID int64            `json:"menu_item_id"`
	Quantity   int              `json:"quantity"`
	Price      *decimal.Decimal `json:"price,omitempty"`
}

// CreateOrderRequest represents the request to create a new order
type CreateOrderRequest struct {
	Items              []CartLine       `json:"items"`
	TableName          string           `json:"table_name,omitempty"`
	Takeaway           bool             `json:"takeaway,omitempty"`
	Bar                bool             `json:"bar,omitempty"`
	SpecialRequest     string           `json:"special_request,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
}

// UpdateStatusRequest drives the completion state machine
type UpdateStatusRequest struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	Station Station `json:"station,omitempty"`
}

// TableRequest targets a table by display name
type TableRequest struct {
	TableName string `json:"table_name"`
}

// ApplyDiscountRequest sets the discount on a table's open orders
type ApplyDiscountRequest struct {
	TableName          string          `json:"table_name"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}
