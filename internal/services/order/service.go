package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"restaurant-orders/internal/auth"
	"restaurant-orders/internal/events"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/services/sequence"
	"restaurant-orders/internal/services/stock"
	"restaurant-orders/internal/store"
)

var tracer = otel.Tracer("restaurant-orders/order")

// Service creates orders and serves the station display listing
type Service struct {
	store     store.Store
	ledger    *stock.Ledger
	namer     *sequence.Namer
	publisher events.Publisher
	logger    *logger.Logger
}

func NewService(st store.Store, namer *sequence.Namer, publisher events.Publisher, log *logger.Logger) *Service {
	return &Service{
		store:     st,
		ledger:    stock.NewLedger(st),
		namer:     namer,
		publisher: publisher,
		logger:    log,
	}
}

// CreateOrder validates the cart, reserves stock, resolves the destination
// and persists the order in one transaction. Events go out after commit.
func (s *Service) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.CreateOrder")
	defer span.End()

	requestID := logger.RequestIDFrom(ctx)
	actor, _ := auth.ActorFrom(ctx)

	dest, err := validateCreateOrder(req, actor)
	if err != nil {
		return nil, fail(span, err)
	}

	pct := decimal.Zero
	if req.DiscountPercentage != nil {
		pct = *req.DiscountPercentage
	}

	buf := events.NewBuffer(s.publisher)
	var order *models.Order

	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		buf.Reset()

		tableName, err := s.resolveTable(ctx, dest, buf)
		if err != nil {
			return err
		}

		order = &models.Order{
			ID:             uuid.NewString(),
			TableName:      tableName,
			SpecialRequest: strings.TrimSpace(req.SpecialRequest),
			Status:         models.StatusPending,
			Takeaway:       dest.takeaway,
		}

		levels, err := s.reserveLines(ctx, order, req.Items, requestID)
		if err != nil {
			return err
		}

		var discountBy *string
		if pct.IsPositive() {
			id := actor.ID
			discountBy = &id
		}
		order.ApplyDiscount(pct, discountBy)

		if err := s.store.InsertOrder(ctx, order); err != nil {
			return err
		}

		notes := "order created"
		if err := s.store.AppendStatusLog(ctx, models.StatusChange{
			OrderID:   order.ID,
			Status:    models.StatusPending,
			ChangedBy: auth.ActorName(actor),
			Notes:     &notes,
		}); err != nil {
			return err
		}

		buf.Add(events.NewOrder, order)
		if len(levels) > 0 {
			buf.Add(events.StockUpdate, models.StockUpdateMessage{Items: levels})
		}
		return nil
	})
	if err != nil {
		s.logger.Error("order_creation_failed", "Failed to create order", requestID, err, map[string]interface{}{
			"table_name": req.TableName,
			"items":      len(req.Items),
		})
		return nil, fail(span, err)
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.table", order.TableName),
	)

	s.logger.Info("order_created", fmt.Sprintf("Order %s created for %s", order.ID, order.TableName), requestID, map[string]interface{}{
		"order_id":   order.ID,
		"table_name": order.TableName,
		"total":      order.Total.StringFixed(2),
	})

	s.flush(ctx, buf, requestID)
	return order, nil
}

// resolveTable returns the display name for the order. Named tables that
// exist and are Available become Occupied unless the order is takeaway.
func (s *Service) resolveTable(ctx context.Context, dest destination, buf *events.Buffer) (string, error) {
	if dest.prefix != "" {
		return s.namer.Next(ctx, dest.prefix)
	}
	if dest.takeaway {
		return dest.tableName, nil
	}

	table, err := s.store.LockTableByName(ctx, dest.tableName)
	if errors.Is(err, models.ErrTableNotFound) {
		return dest.tableName, nil
	}
	if err != nil {
		return "", err
	}

	if table.Status == models.TableAvailable {
		if err := s.store.SetTableStatus(ctx, table.ID, models.TableOccupied); err != nil {
			return "", err
		}
		buf.Add(events.TableStatusUpdate, models.TableStatusMessage{
			TableName: table.Name,
			Status:    models.TableOccupied,
		})
	}
	return table.Name, nil
}

// reserveLines locks each menu item once, reserves stock line by line and
// snapshots the server-side price. Sale flags are recomputed after all lines.
func (s *Service) reserveLines(ctx context.Context, order *models.Order, lines []models.CartLine, requestID string) ([]models.StockLevel, error) {
	touched := make(map[int64]*models.MenuItem, len(lines))
	var touchedOrder []int64
	subtotal := decimal.Zero

	for _, line := range lines {
		item, ok := touched[line.MenuItemID]
		if !ok {
			var err error
			item, err = s.ledger.Lock(ctx, line.MenuItemID)
			if err != nil {
				return nil, err
			}
			touched[line.MenuItemID] = item
			touchedOrder = append(touchedOrder, line.MenuItemID)
		}

		if err := s.ledger.Reserve(ctx, item, line.Quantity); err != nil {
			return nil, err
		}

		if line.Price != nil && !line.Price.Equal(item.Price) {
			s.logger.Warn("price_mismatch", "Client price differs from menu price", requestID, map[string]interface{}{
				"menu_item_id": item.ID,
				"client_price": line.Price.String(),
				"menu_price":   item.Price.String(),
			})
		}

		snapshot := models.OrderItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			CategoryID: item.CategoryID,
			Station:    item.Station,
			UnitPrice:  item.Price,
			Quantity:   line.Quantity,
		}
		order.Items = append(order.Items, snapshot)
		subtotal = subtotal.Add(snapshot.LineTotal())
	}

	var levels []models.StockLevel
	for _, id := range touchedOrder {
		item := touched[id]
		if err := s.ledger.RecomputeStatus(ctx, item); err != nil {
			return nil, err
		}
		if item.StockManaged {
			levels = append(levels, models.NewStockLevel(item))
		}
	}

	order.Subtotal = models.RoundMoney(subtotal)
	return levels, nil
}

// ListForStation returns open orders for a station display. A station only
// sees orders it still has work on, with lines filtered to its own items.
// StationNone lists every open order with all lines.
func (s *Service) ListForStation(ctx context.Context, station models.Station) ([]*models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.ListForStation", trace.WithAttributes(
		attribute.String("station", station.String()),
	))
	defer span.End()

	if _, err := auth.Authorize(ctx, auth.ViewCapability(station)); err != nil {
		return nil, fail(span, err)
	}

	open, err := s.store.ListOpenOrders(ctx)
	if err != nil {
		return nil, fail(span, err)
	}

	if station == models.StationNone {
		return nonNil(open), nil
	}

	out := make([]*models.Order, 0, len(open))
	for _, o := range open {
		if !o.RequiredStations().Has(station) || o.CompletedStations.Has(station) {
			continue
		}
		o.Items = o.ItemsFor(station)
		out = append(out, o)
	}
	return out, nil
}

func (s *Service) HealthCheck(ctx context.Context) bool {
	return s.store.Ping(ctx) == nil
}

func (s *Service) flush(ctx context.Context, buf *events.Buffer, requestID string) {
	pending := buf.PendingCount()
	if err := buf.Flush(ctx); err != nil {
		s.logger.Error("event_publish_failed", "Failed to publish events after commit", requestID, err, map[string]interface{}{
			"events": pending,
		})
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func nonNil(orders []*models.Order) []*models.Order {
	if orders == nil {
		return []*models.Order{}
	}
	return orders
}
