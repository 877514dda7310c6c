package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"restaurant-orders/internal/events"
	"restaurant-orders/internal/logger"
)

// ErrMalformedMessage marks a delivery that can never be processed. Such
// messages are dropped instead of requeued.
var ErrMalformedMessage = errors.New("malformed message")

// Envelope is an event as read back from the queue, payload still encoded
type Envelope struct {
	Type       events.Type     `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// DecodeEnvelope parses a message body produced by Publisher
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing event type", ErrMalformedMessage)
	}
	return env, nil
}

// MessageHandler defines the interface for processing messages
type MessageHandler func(ctx context.Context, env Envelope) error

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
}

// NewConsumer creates a consumer on the connection's notification queue
func NewConsumer(conn *Connection, log *logger.Logger, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   conn.Queue(),
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming starts consuming messages from the queue
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ch := c.conn.Channel()

	err := ch.Qos(
		c.prefetch, // prefetch count
		0,          // prefetch size
		false,      // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack (we'll ack manually)
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started",
		fmt.Sprintf("Started consuming from queue %s", c.queueName),
		"", map[string]interface{}{
			"queue":    c.queueName,
			"consumer": c.consumerTag,
			"prefetch": c.prefetch,
		})

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", nil, nil)
				if err := c.conn.Reconnect(); err != nil {
					return fmt.Errorf("failed to reconnect after channel closed: %w", err)
				}
				return c.StartConsuming(ctx, handler)
			}

			c.processMessage(ctx, d, handler)
		}
	}
}

// acknowledger is the part of amqp091.Delivery used to settle a message
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) processMessage(ctx context.Context, delivery amqp091.Delivery, handler MessageHandler) {
	c.handle(ctx, &delivery, delivery.Body, delivery.CorrelationId, handler)
}

// handle runs handler on one message and settles it. Malformed messages
// are nacked without requeue.
func (c *Consumer) handle(ctx context.Context, ack acknowledger, body []byte, requestID string, handler MessageHandler) {
	startTime := time.Now()

	c.logger.Debug("message_received", "Processing message", requestID, map[string]interface{}{
		"queue":        c.queueName,
		"message_size": len(body),
	})

	processingCtx, cancel := context.WithTimeout(logger.WithRequestID(ctx, requestID), 30*time.Second)
	defer cancel()

	env, err := DecodeEnvelope(body)
	if err == nil {
		err = handler(processingCtx, env)
	}

	duration := time.Since(startTime)

	if err != nil {
		requeue := !errors.Is(err, ErrMalformedMessage)
		c.logger.Error("message_processing_failed", "Failed to process message", requestID, err, map[string]interface{}{
			"queue":       c.queueName,
			"event_type":  env.Type,
			"duration_ms": duration.Milliseconds(),
			"requeue":     requeue,
		})

		if nackErr := ack.Nack(false, requeue); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", requestID, nackErr, nil)
		}
		return
	}

	c.logger.Debug("message_processed", "Successfully processed message", requestID, map[string]interface{}{
		"queue":       c.queueName,
		"event_type":  env.Type,
		"duration_ms": duration.Milliseconds(),
	})

	if ackErr := ack.Ack(false); ackErr != nil {
		c.logger.Error("message_ack_failed", "Failed to ack message", requestID, ackErr, nil)
	}
}

// Close stops consuming messages
func (c *Consumer) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
		return c.conn.Close()
	}
	return nil
}
