package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"restaurant-orders/internal/events"
	"restaurant-orders/internal/logger"
)

// amqpPublisher is the part of a channel the Publisher needs
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher broadcasts events to the notifications fanout exchange
type Publisher struct {
	channel  amqpPublisher
	exchange string
	timeout  time.Duration
	logger   *logger.Logger
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return newPublisher(conn, conn.Exchange(), log)
}

func newPublisher(ch amqpPublisher, exchange string, log *logger.Logger) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		timeout:  10 * time.Second,
		logger:   log,
	}
}

// Publish sends each event as its own message, in order. It stops at the
// first failure.
func (p *Publisher) Publish(ctx context.Context, evts ...events.Event) error {
	for _, evt := range evts {
		if err := p.publishEvent(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishEvent(ctx context.Context, evt events.Event) error {
	requestID := logger.RequestIDFrom(ctx)

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}

	publishing := amqp091.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp091.Persistent,
		Timestamp:     evt.OccurredAt,
		MessageId:     uuid.NewString(),
		Type:          string(evt.Type),
		CorrelationId: requestID,
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		"",         // routing key
		false,      // mandatory
		false,      // immediate
		publishing,
	)
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish %s event to exchange %s", evt.Type, p.exchange),
			requestID, err, map[string]interface{}{
				"exchange":   p.exchange,
				"event_type": evt.Type,
			})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published %s event to exchange %s", evt.Type, p.exchange),
		requestID, map[string]interface{}{
			"exchange":     p.exchange,
			"event_type":   evt.Type,
			"message_size": len(body),
		})

	return nil
}
