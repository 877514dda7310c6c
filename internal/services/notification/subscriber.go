// Package notification prints a human-readable line for every broadcast event.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"restaurant-orders/internal/events"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/messaging"
	"restaurant-orders/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// Source delivers decoded events until ctx is done
type Source interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber handles notification messages
type Subscriber struct {
	source Source
	out    io.Writer
	logger *logger.Logger
}

// NewSubscriber creates a new notification subscriber writing to out
func NewSubscriber(source Source, out io.Writer, log *logger.Logger) *Subscriber {
	return &Subscriber{
		source: source,
		out:    out,
		logger: log,
	}
}

// Start consumes until ctx is cancelled
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.source.StartConsuming(ctx, s.HandleEvent)

	s.logger.Info("graceful_shutdown", "Starting graceful shutdown", requestID, nil)
	if closeErr := s.source.Close(); closeErr != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, closeErr, nil)
	}
	s.logger.Info("graceful_shutdown", "Graceful shutdown completed", requestID, nil)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleEvent formats one event and writes it out
func (s *Subscriber) HandleEvent(ctx context.Context, env messaging.Envelope) error {
	requestID := logger.RequestIDFrom(ctx)

	line, err := Format(env)
	if err != nil {
		s.logger.Error("message_parsing_failed", "Failed to parse notification payload", requestID, err, map[string]interface{}{
			"event_type": env.Type,
		})
		return fmt.Errorf("%w: %v", messaging.ErrMalformedMessage, err)
	}

	if _, err := fmt.Fprintln(s.out, line); err != nil {
		return err
	}

	s.logger.Debug("notification_displayed", "Notification displayed", requestID, map[string]interface{}{
		"event_type": env.Type,
	})
	return nil
}

// Format renders an event as a single line
func Format(env messaging.Envelope) (string, error) {
	ts := env.OccurredAt.UTC().Format(timeLayout)

	switch env.Type {
	case events.NewOrder:
		var o models.Order
		if err := json.Unmarshal(env.Payload, &o); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] New order %s for %s: %d item(s), total %s",
			ts, o.ID, o.TableName, len(o.Items), o.Total.StringFixed(2)), nil

	case events.OrderStatusUpdate:
		var m models.StatusUpdateMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return "", err
		}
		if m.OldStatus == m.NewStatus && m.Station != models.StationNone {
			return fmt.Sprintf("[%s] Order %s (%s): %s finished, done so far %s",
				ts, m.OrderID, m.TableName, m.Station, m.CompletedStations), nil
		}
		return fmt.Sprintf("[%s] Order %s (%s) changed from '%s' to '%s' by %s",
			ts, m.OrderID, m.TableName, m.OldStatus, m.NewStatus, m.ChangedBy), nil

	case events.StockUpdate:
		var m models.StockUpdateMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return "", err
		}
		parts := make([]string, 0, len(m.Items))
		for _, item := range m.Items {
			parts = append(parts, fmt.Sprintf("%s=%d (%s)", item.Name, item.Stock, item.StockStatus))
		}
		return fmt.Sprintf("[%s] Stock: %s", ts, strings.Join(parts, ", ")), nil

	case events.TableCleared:
		var m models.TableClearedMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] Table %s cleared by %s, %d order(s) paid",
			ts, m.TableName, m.ClearedBy, len(m.OrderIDs)), nil

	case events.DiscountApplied:
		var m models.DiscountAppliedMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] Discount %s%% applied to %s by %s (%d order(s))",
			ts, m.DiscountPercentage, m.TableName, m.AppliedBy, len(m.OrderIDs)), nil

	case events.TableStatusUpdate:
		var m models.TableStatusMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return "", err
		}
		return fmt.Sprintf("[%s] Table %s is now %s", ts, m.TableName, m.Status), nil

	default:
		return fmt.Sprintf("[%s] %s event", ts, env.Type), nil
	}
}
