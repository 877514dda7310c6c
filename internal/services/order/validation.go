package order

import (
	"fmt"
	"strings"

	"restaurant-orders/internal/auth"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/services/sequence"
)

const (
	maxTableNameLength      = 64
	maxSpecialRequestLength = 500
	maxQuantity             = 1000
)

// destination is where an order is served. Exactly one of tableName or
// prefix is set.
type destination struct {
	tableName string
	prefix    string
	takeaway  bool
}

// validateCreateOrder checks the request before anything is locked or written
func validateCreateOrder(req *models.CreateOrderRequest, actor *auth.Actor) (destination, error) {
	if err := validateItems(req.Items); err != nil {
		return destination{}, err
	}

	if err := validateDiscount(req, actor); err != nil {
		return destination{}, err
	}

	if len(req.SpecialRequest) > maxSpecialRequestLength {
		return destination{}, models.ValidationError{
			Field:   "special_request",
			Message: fmt.Sprintf("special request must not exceed %d characters", maxSpecialRequestLength),
		}
	}

	return resolveDestination(req)
}

func validateItems(items []models.CartLine) error {
	if len(items) == 0 {
		return models.ValidationError{
			Field:   "items",
			Message: "at least one item is required",
			Err:     models.ErrEmptyCart,
		}
	}

	for i, line := range items {
		if line.MenuItemID <= 0 {
			return models.ValidationError{
				Field:   fmt.Sprintf("items[%d].menu_item_id", i),
				Message: "menu item id is required",
			}
		}
		if line.Quantity <= 0 || line.Quantity > maxQuantity {
			return models.ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: fmt.Sprintf("quantity must be between 1 and %d", maxQuantity),
				Err:     models.ErrInvalidQuantity,
			}
		}
		if line.Price != nil && line.Price.IsNegative() {
			return models.ValidationError{
				Field:   fmt.Sprintf("items[%d].price", i),
				Message: "price must not be negative",
			}
		}
	}
	return nil
}

func validateDiscount(req *models.CreateOrderRequest, actor *auth.Actor) error {
	if req.DiscountPercentage == nil {
		return nil
	}
	pct := *req.DiscountPercentage
	if !models.ValidDiscount(pct) {
		return models.ValidationError{
			Field:   "discount_percentage",
			Message: "discount must be between 0 and 100 with at most 2 decimals",
			Err:     models.ErrInvalidDiscount,
		}
	}
	if pct.IsPositive() && actor == nil {
		return models.ValidationError{
			Field:   "discount_percentage",
			Message: "a discount requires an authenticated staff member",
			Err:     models.ErrActorRequired,
		}
	}
	return nil
}

func resolveDestination(req *models.CreateOrderRequest) (destination, error) {
	tableName := strings.TrimSpace(req.TableName)
	if len(tableName) > maxTableNameLength {
		return destination{}, models.ValidationError{
			Field:   "table_name",
			Message: fmt.Sprintf("table name must not exceed %d characters", maxTableNameLength),
		}
	}

	switch {
	case tableName != "" && !req.Bar:
		return destination{tableName: tableName, takeaway: req.Takeaway}, nil
	case tableName == "" && req.Takeaway && !req.Bar:
		return destination{prefix: sequence.PrefixTakeaway, takeaway: true}, nil
	case tableName == "" && req.Bar && !req.Takeaway:
		return destination{prefix: sequence.PrefixBar}, nil
	default:
		return destination{}, models.ValidationError{
			Field:   "table_name",
			Message: "exactly one of table_name, takeaway or bar is required",
			Err:     models.ErrInvalidDestination,
		}
	}
}
