package tracking

import (
	"context"

	"restaurant-orders/internal/models"
)

// OrderReader is the read side of the order store used for tracking
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	StatusHistory(ctx context.Context, orderID string) ([]models.StatusChange, error)
}
