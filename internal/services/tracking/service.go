// Package tracking answers where an order is: its current state, which
// stations are still working on it, and how it got there.
package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"restaurant-orders/internal/auth"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
)

// OrderTrackingResponse is the current state of one order
type OrderTrackingResponse struct {
	OrderID           string             `json:"order_id"`
	TableName         string             `json:"table_name"`
	CurrentStatus     models.OrderStatus `json:"current_status"`
	RequiredStations  models.StationSet  `json:"required_stations"`
	CompletedStations models.StationSet  `json:"completed_stations"`
	PendingStations   models.StationSet  `json:"pending_stations"`
	Order             *models.Order      `json:"order"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Service provides tracking functionality
type Service struct {
	orders OrderReader
	logger *logger.Logger
}

// NewService creates a new tracking service
func NewService(orders OrderReader, log *logger.Logger) *Service {
	return &Service{
		orders: orders,
		logger: log,
	}
}

// GetOrderStatus retrieves the current status of an order
func (s *Service) GetOrderStatus(ctx context.Context, orderID string) (*OrderTrackingResponse, error) {
	if _, err := auth.Authorize(ctx, auth.CapTrackOrders); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, models.ErrInvalidOrderID
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	required := order.RequiredStations()
	return &OrderTrackingResponse{
		OrderID:           order.ID,
		TableName:         order.TableName,
		CurrentStatus:     order.Status,
		RequiredStations:  required,
		CompletedStations: order.CompletedStations,
		PendingStations:   required &^ order.CompletedStations,
		Order:             order,
		UpdatedAt:         order.UpdatedAt,
	}, nil
}

// GetOrderHistory retrieves the complete status history of an order, oldest first
func (s *Service) GetOrderHistory(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	if _, err := auth.Authorize(ctx, auth.CapTrackOrders); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, models.ErrInvalidOrderID
	}

	// history of an unknown order is a 404, not an empty list
	if _, err := s.orders.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}

	history, err := s.orders.StatusHistory(ctx, orderID)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to query order history", logger.RequestIDFrom(ctx), err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}
	if history == nil {
		history = []models.StatusChange{}
	}
	return history, nil
}
