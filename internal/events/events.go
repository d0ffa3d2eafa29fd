// Package events announces pipeline milestones (product optimized,
// product deployed, batch completed) on a RabbitMQ topic exchange.
// Publishing is best effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Exchange is the topic exchange events are published to.
const Exchange = "copyforge.events"

// Event types, also used as routing keys.
const (
	ProductOptimized = "product.optimized"
	ProductDeployed  = "product.deployed"
	ProductsSynced   = "products.synced"
	BatchCompleted   = "batch.completed"
)

// Event is the message envelope.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	ShopID     uuid.UUID `json:"shop_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// New builds an event stamped with a fresh id and the current time.
func New(eventType string, shopID uuid.UUID, data any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		ShopID:     shopID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitPublisher publishes events to Exchange with the event type as
// routing key.
type RabbitPublisher struct {
	conn *amqp091.Connection
	ch   channel
	log  *zap.Logger
}

// Dial connects to the broker at url and declares the exchange.
func Dial(url string, log *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", Exchange, err)
	}

	log.Info("event exchange declared", zap.String("exchange", Exchange))
	return &RabbitPublisher{conn: conn, ch: ch, log: log.Named("events")}, nil
}

// Publish sends e as a persistent JSON message.
func (p *RabbitPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := toPublishing(e)
	if err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, Exchange, e.Type, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	p.log.Debug("event published", zap.String("type", e.Type), zap.Stringer("shop_id", e.ShopID))
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func toPublishing(e Event) (amqp091.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal event %s: %w", e.Type, err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.ID.String(),
		Type:         e.Type,
		Timestamp:    e.OccurredAt,
		Body:         body,
	}, nil
}
