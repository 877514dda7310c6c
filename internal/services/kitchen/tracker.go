// Package kitchen tracks per-station completion of orders and drives the
// order status machine.
package kitchen

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"restaurant-orders/internal/auth"
	"restaurant-orders/internal/events"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

var tracer = otel.Tracer("restaurant-orders/kitchen")

// Tracker records station reports. An order is promoted to Serving once
// every station that has items in it has reported.
type Tracker struct {
	store     store.Store
	publisher events.Publisher
	logger    *logger.Logger
}

func NewTracker(st store.Store, publisher events.Publisher, log *logger.Logger) *Tracker {
	return &Tracker{
		store:     st,
		publisher: publisher,
		logger:    log,
	}
}

// UpdateStatus applies a station report or a direct status change
func (t *Tracker) UpdateStatus(ctx context.Context, req models.UpdateStatusRequest) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "kitchen.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("status", req.Status),
		attribute.String("station", req.Station.String()),
	))
	defer span.End()

	requestID := logger.RequestIDFrom(ctx)

	if _, err := uuid.Parse(req.OrderID); err != nil {
		return nil, fail(span, models.ErrInvalidOrderID)
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, fail(span, err)
	}

	stationReport := status == models.StatusServing && req.Station != models.StationNone

	var actor *auth.Actor
	if stationReport {
		actor, err = auth.Authorize(ctx, auth.ReportCapability(req.Station))
	} else {
		actor, err = authorizeDirect(ctx, req.Station)
	}
	if err != nil {
		return nil, fail(span, err)
	}
	override := actor.Can(auth.CapStatusOverride)

	buf := events.NewBuffer(t.publisher)
	var order *models.Order

	err = t.store.WithinTx(ctx, func(ctx context.Context) error {
		buf.Reset()

		var err error
		order, err = t.store.LockOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		oldStatus := order.Status

		var changed bool
		if stationReport {
			changed, err = reportStation(order, req.Station)
		} else {
			changed, err = transition(order, status, override)
		}
		if err != nil || !changed {
			return err
		}

		if err := t.store.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if order.Status != oldStatus {
			if err := t.store.AppendStatusLog(ctx, statusChange(order, actor, req.Station)); err != nil {
				return err
			}
		}

		buf.Add(events.OrderStatusUpdate, models.NewStatusUpdateMessage(order, oldStatus, req.Station, auth.ActorName(actor)))
		return nil
	})
	if err != nil {
		t.logger.Warn("status_update_rejected", "Order status update failed", requestID, map[string]interface{}{
			"order_id": req.OrderID,
			"status":   req.Status,
			"station":  req.Station.String(),
			"error":    err.Error(),
		})
		return nil, fail(span, err)
	}

	if pending := buf.PendingCount(); pending > 0 {
		t.logger.Info("order_status_updated", fmt.Sprintf("Order %s is %s", order.ID, order.Status), requestID, map[string]interface{}{
			"order_id":           order.ID,
			"status":             order.Status,
			"completed_stations": order.CompletedStations.String(),
		})
		if err := buf.Flush(ctx); err != nil {
			t.logger.Error("event_publish_failed", "Failed to publish events after commit", requestID, err, map[string]interface{}{
				"events": pending,
			})
		}
	}
	return order, nil
}

// authorizeDirect accepts the override capability or, failing that, the
// report capability of the named station or of any station.
func authorizeDirect(ctx context.Context, station models.Station) (*auth.Actor, error) {
	actor, ok := auth.ActorFrom(ctx)
	if !ok {
		return nil, models.ErrActorRequired
	}
	if actor.Can(auth.CapStatusOverride) {
		return actor, nil
	}
	if station != models.StationNone {
		return auth.Authorize(ctx, auth.ReportCapability(station))
	}
	for _, st := range models.AllStations {
		if actor.Can(auth.ReportCapability(st)) {
			return actor, nil
		}
	}
	return nil, fmt.Errorf("role %s cannot change order status: %w", actor.Role, models.ErrForbidden)
}

// reportStation marks a station done. A repeated report changes nothing.
// Orders without station lines are only served through an override.
func reportStation(order *models.Order, station models.Station) (bool, error) {
	if !order.RequiredStations().Has(station) {
		return false, fmt.Errorf("%s for order %s: %w", station, order.ID, models.ErrStationNotRequired)
	}
	if order.CompletedStations.Has(station) {
		return false, nil
	}
	if order.Status == models.StatusPaid {
		return false, fmt.Errorf("order %s is already paid: %w", order.ID, models.ErrInvalidTransition)
	}

	order.CompletedStations = order.CompletedStations.Add(station)
	if order.AllStationsDone() {
		order.Status = models.StatusServing
	}
	return true, nil
}

// transition overwrites the status. Without override only the in-progress
// statuses may be set, and never on an order that is already served or paid.
func transition(order *models.Order, status models.OrderStatus, override bool) (bool, error) {
	if !override {
		switch {
		case status == models.StatusServing:
			return false, models.ValidationError{
				Field:   "station",
				Message: "station is required to report an order as served",
			}
		case status != models.StatusCooking && status != models.StatusPreparing:
			return false, fmt.Errorf("%s to %s: %w", order.Status, status, models.ErrInvalidTransition)
		case order.Status == models.StatusPaid || order.Status == models.StatusServing:
			return false, fmt.Errorf("%s to %s: %w", order.Status, status, models.ErrInvalidTransition)
		}
	}

	if status == models.StatusPaid && order.Status != models.StatusPaid {
		order.PaidFromStatus = order.Status
	}
	order.Status = status
	return true, nil
}

func statusChange(order *models.Order, actor *auth.Actor, station models.Station) models.StatusChange {
	change := models.StatusChange{
		OrderID:   order.ID,
		Status:    order.Status,
		ChangedBy: auth.ActorName(actor),
	}
	if station != models.StationNone {
		notes := fmt.Sprintf("%s completed", station)
		change.Notes = &notes
	}
	return change
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
