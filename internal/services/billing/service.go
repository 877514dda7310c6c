// Package billing aggregates open orders into per-table bills and settles them.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"restaurant-orders/internal/auth"
	"restaurant-orders/internal/events"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/store"
)

var tracer = otel.Tracer("restaurant-orders/billing")

type Service struct {
	store     store.Store
	taxRate   decimal.Decimal
	publisher events.Publisher
	logger    *logger.Logger
}

func NewService(st store.Store, taxRate decimal.Decimal, publisher events.Publisher, log *logger.Logger) *Service {
	return &Service{
		store:     st,
		taxRate:   taxRate,
		publisher: publisher,
		logger:    log,
	}
}

// TableBill returns the open bill of one destination
func (s *Service) TableBill(ctx context.Context, tableName string) (*models.Bill, error) {
	ctx, span := tracer.Start(ctx, "billing.TableBill", trace.WithAttributes(
		attribute.String("table", tableName),
	))
	defer span.End()

	if _, err := auth.Authorize(ctx, auth.CapBillingView); err != nil {
		return nil, fail(span, err)
	}
	tableName, err := requireTableName(tableName)
	if err != nil {
		return nil, fail(span, err)
	}

	orders, err := s.store.ListOpenOrdersByTable(ctx, tableName)
	if err != nil {
		return nil, fail(span, err)
	}
	if len(orders) == 0 {
		return nil, fail(span, fmt.Errorf("%q: %w", tableName, models.ErrNoOpenBill))
	}
	return BuildBill(tableName, orders, s.taxRate), nil
}

// Overview lists every table row with its bill, followed by destinations
// that have open orders but no table row.
func (s *Service) Overview(ctx context.Context) ([]models.TableView, error) {
	ctx, span := tracer.Start(ctx, "billing.Overview")
	defer span.End()

	if _, err := auth.Authorize(ctx, auth.CapBillingView); err != nil {
		return nil, fail(span, err)
	}

	var (
		tables []models.Table
		open   []*models.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tables, err = s.store.ListTables(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		open, err = s.store.ListOpenOrders(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fail(span, err)
	}

	byName := make(map[string][]*models.Order)
	var names []string
	for _, o := range open {
		if _, seen := byName[o.TableName]; !seen {
			names = append(names, o.TableName)
		}
		byName[o.TableName] = append(byName[o.TableName], o)
	}

	views := make([]models.TableView, 0, len(tables)+len(names))
	for i := range tables {
		t := tables[i]
		view := models.TableView{Name: t.Name, Table: &t, Status: t.Status}
		if orders := byName[t.Name]; len(orders) > 0 {
			view.Bill = BuildBill(t.Name, orders, s.taxRate)
		}
		delete(byName, t.Name)
		views = append(views, view)
	}
	for _, name := range names {
		orders, ok := byName[name]
		if !ok {
			continue
		}
		views = append(views, models.TableView{
			Name: name,
			Bill: BuildBill(name, orders, s.taxRate),
		})
	}
	return views, nil
}

// ClearTable marks every open order of the destination as Paid and frees the table
func (s *Service) ClearTable(ctx context.Context, tableName string) (*models.TableClearedMessage, error) {
	ctx, span := tracer.Start(ctx, "billing.ClearTable", trace.WithAttributes(
		attribute.String("table", tableName),
	))
	defer span.End()

	requestID := logger.RequestIDFrom(ctx)
	actor, err := auth.Authorize(ctx, auth.CapBillingManage)
	if err != nil {
		return nil, fail(span, err)
	}
	tableName, err = requireTableName(tableName)
	if err != nil {
		return nil, fail(span, err)
	}

	buf := events.NewBuffer(s.publisher)
	var cleared *models.TableClearedMessage

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		buf.Reset()

		table, err := s.store.LockTableByName(ctx, tableName)
		if err != nil && !errors.Is(err, models.ErrTableNotFound) {
			return err
		}

		orders, err := s.store.LockOpenOrdersByTable(ctx, tableName)
		if err != nil {
			return err
		}
		if table == nil && len(orders) == 0 {
			return fmt.Errorf("%q: %w", tableName, models.ErrTableNotFound)
		}

		notes := "table cleared"
		ids := make([]string, 0, len(orders))
		for _, o := range orders {
			o.PaidFromStatus = o.Status
			o.Status = models.StatusPaid
			if err := s.store.UpdateOrder(ctx, o); err != nil {
				return err
			}
			if err := s.store.AppendStatusLog(ctx, models.StatusChange{
				OrderID:   o.ID,
				Status:    models.StatusPaid,
				ChangedBy: auth.ActorName(actor),
				Notes:     &notes,
			}); err != nil {
				return err
			}
			ids = append(ids, o.ID)
		}

		if table != nil && table.Status != models.TableAvailable {
			if err := s.store.SetTableStatus(ctx, table.ID, models.TableAvailable); err != nil {
				return err
			}
		}

		cleared = &models.TableClearedMessage{
			TableName: tableName,
			OrderIDs:  ids,
			ClearedBy: auth.ActorName(actor),
			Timestamp: time.Now().UTC(),
		}
		buf.Add(events.TableCleared, cleared)
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.logger.Info("table_cleared", fmt.Sprintf("Table %s cleared", tableName), requestID, map[string]interface{}{
		"table_name": tableName,
		"orders":     len(cleared.OrderIDs),
		"cleared_by": cleared.ClearedBy,
	})
	s.flush(ctx, buf, requestID)
	return cleared, nil
}

// UndoPayment reopens a paid order at the status it was paid from. Stock and
// table occupancy are left alone.
func (s *Service) UndoPayment(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "billing.UndoPayment", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	requestID := logger.RequestIDFrom(ctx)
	actor, err := auth.Authorize(ctx, auth.CapPaymentUndo)
	if err != nil {
		return nil, fail(span, err)
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, fail(span, models.ErrInvalidOrderID)
	}

	buf := events.NewBuffer(s.publisher)
	var order *models.Order

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		buf.Reset()

		var err error
		order, err = s.store.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != models.StatusPaid {
			return fmt.Errorf("order %s is %s: %w", order.ID, order.Status, models.ErrOrderNotPaid)
		}

		restored := order.PaidFromStatus
		if restored == "" || restored == models.StatusPaid {
			restored = models.StatusServing
		}
		order.Status = restored
		order.PaidFromStatus = ""

		if err := s.store.UpdateOrder(ctx, order); err != nil {
			return err
		}
		notes := "payment undone"
		if err := s.store.AppendStatusLog(ctx, models.StatusChange{
			OrderID:   order.ID,
			Status:    restored,
			ChangedBy: auth.ActorName(actor),
			Notes:     &notes,
		}); err != nil {
			return err
		}

		buf.Add(events.OrderStatusUpdate, models.NewStatusUpdateMessage(order, models.StatusPaid, models.StationNone, auth.ActorName(actor)))
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.logger.Info("payment_undone", fmt.Sprintf("Payment of order %s undone", order.ID), requestID, map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
	})
	s.flush(ctx, buf, requestID)
	return order, nil
}

// RequestBill moves a table to Billing
func (s *Service) RequestBill(ctx context.Context, tableName string) (*models.Table, error) {
	ctx, span := tracer.Start(ctx, "billing.RequestBill", trace.WithAttributes(
		attribute.String("table", tableName),
	))
	defer span.End()

	requestID := logger.RequestIDFrom(ctx)
	if _, err := auth.Authorize(ctx, auth.CapBillingManage); err != nil {
		return nil, fail(span, err)
	}
	tableName, err := requireTableName(tableName)
	if err != nil {
		return nil, fail(span, err)
	}

	buf := events.NewBuffer(s.publisher)
	var table *models.Table

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		buf.Reset()

		var err error
		table, err = s.store.LockTableByName(ctx, tableName)
		if err != nil {
			return err
		}
		if err := s.store.SetTableStatus(ctx, table.ID, models.TableBilling); err != nil {
			return err
		}
		table.Status = models.TableBilling

		buf.Add(events.TableStatusUpdate, models.TableStatusMessage{
			TableName: table.Name,
			Status:    models.TableBilling,
		})
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.flush(ctx, buf, requestID)
	return table, nil
}

// ApplyDiscount rewrites the discount of every open order of a table from
// each order's own subtotal and returns the resulting bill.
func (s *Service) ApplyDiscount(ctx context.Context, req models.ApplyDiscountRequest) (*models.Bill, error) {
	ctx, span := tracer.Start(ctx, "billing.ApplyDiscount", trace.WithAttributes(
		attribute.String("table", req.TableName),
		attribute.String("discount", req.DiscountPercentage.String()),
	))
	defer span.End()

	requestID := logger.RequestIDFrom(ctx)
	actor, err := auth.Authorize(ctx, auth.CapBillingManage)
	if err != nil {
		return nil, fail(span, err)
	}
	tableName, err := requireTableName(req.TableName)
	if err != nil {
		return nil, fail(span, err)
	}
	if !models.ValidDiscount(req.DiscountPercentage) {
		return nil, fail(span, models.ValidationError{
			Field:   "discount_percentage",
			Message: "discount must be between 0 and 100 with at most 2 decimals",
			Err:     models.ErrInvalidDiscount,
		})
	}

	buf := events.NewBuffer(s.publisher)
	var bill *models.Bill

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		buf.Reset()

		orders, err := s.store.LockOpenOrdersByTable(ctx, tableName)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return fmt.Errorf("%q: %w", tableName, models.ErrNoOpenBill)
		}

		ids := make([]string, 0, len(orders))
		for _, o := range orders {
			var by *string
			if req.DiscountPercentage.IsPositive() {
				id := actor.ID
				by = &id
			}
			o.ApplyDiscount(req.DiscountPercentage, by)
			if err := s.store.UpdateOrder(ctx, o); err != nil {
				return err
			}
			ids = append(ids, o.ID)
		}

		bill = BuildBill(tableName, orders, s.taxRate)
		buf.Add(events.DiscountApplied, models.DiscountAppliedMessage{
			TableName:          tableName,
			DiscountPercentage: req.DiscountPercentage,
			OrderIDs:           ids,
			AppliedBy:          auth.ActorName(actor),
		})
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	s.logger.Info("discount_applied", fmt.Sprintf("Discount %s%% applied to %s", req.DiscountPercentage, tableName), requestID, map[string]interface{}{
		"table_name": tableName,
		"orders":     len(bill.OrderIDs),
		"applied_by": actor.ID,
	})
	s.flush(ctx, buf, requestID)
	return bill, nil
}

func (s *Service) flush(ctx context.Context, buf *events.Buffer, requestID string) {
	pending := buf.PendingCount()
	if err := buf.Flush(ctx); err != nil {
		s.logger.Error("event_publish_failed", "Failed to publish events after commit", requestID, err, map[string]interface{}{
			"events": pending,
		})
	}
}

func requireTableName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", models.ValidationError{Field: "table_name", Message: "table name is required"}
	}
	return name, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
