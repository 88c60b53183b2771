// Package events publishes lead lifecycle events to an AMQP broker so other
// systems (CRM sync, reporting) can react to qualified leads without polling
// the database. When no broker is configured the bot runs with a no-op
// fallback publisher.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hamavrikan/leadbot/internal/models"
)

// Routing keys for published events.
const (
	// DefaultExchange is the topic exchange leads are published to.
	DefaultExchange = "leadbot.events"
	// KeyLeadCreated is the routing key for finalized leads.
	KeyLeadCreated = "lead.created"
)

// Publisher emits domain events. Implementations must be safe for concurrent
// use.
type Publisher interface {
	PublishLeadCreated(ctx context.Context, lead *models.Lead) error
	Close() error
}

// Envelope is the wire format of every published event.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// Opts holds configuration options for the AMQP publisher.
type Opts struct {
	URL      string
	Exchange string
}

// Option defines a configuration option for the AMQP publisher.
type Option func(*Opts)

// WithURL sets the AMQP broker URL.
func WithURL(u string) Option {
	return func(o *Opts) { o.URL = u }
}

// WithExchange overrides the exchange name.
func WithExchange(name string) Option {
	return func(o *Opts) { o.Exchange = name }
}

// AMQPPublisher publishes events to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPPublisher connects to the broker and declares the exchange.
func NewAMQPPublisher(opts ...Option) (*AMQPPublisher, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp broker URL not set")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		slog.Error("Failed to connect to AMQP broker", "error", err)
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		slog.Error("Failed to open AMQP channel", "error", err)
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err := channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		slog.Error("Failed to declare AMQP exchange", "error", err, "exchange", cfg.Exchange)
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}
	slog.Info("AMQP publisher connected", "exchange", cfg.Exchange)
	return &AMQPPublisher{conn: conn, channel: channel, exchange: cfg.Exchange}, nil
}

// PublishLeadCreated emits a lead.created event with the full lead document.
func (p *AMQPPublisher) PublishLeadCreated(ctx context.Context, lead *models.Lead) error {
	env := Envelope{
		ID:         uuid.New().String(),
		Type:       KeyLeadCreated,
		OccurredAt: time.Now().UTC(),
		Payload:    lead,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode lead event: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, KeyLeadCreated, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Body:         body,
	})
	if err != nil {
		slog.Error("Failed to publish lead event", "error", err, "lead_id", lead.ID)
		return fmt.Errorf("failed to publish lead event: %w", err)
	}
	slog.Debug("Lead event published", "lead_id", lead.ID, "event_id", env.ID)
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close AMQP channel: %w", err)
	}
	return p.conn.Close()
}

// FallbackPublisher is used when no broker is configured. It logs the event
// and drops it.
type FallbackPublisher struct{}

// NewFallback returns a no-op publisher.
func NewFallback() *FallbackPublisher {
	return &FallbackPublisher{}
}

func (p *FallbackPublisher) PublishLeadCreated(ctx context.Context, lead *models.Lead) error {
	slog.Debug("Event broker not configured, dropping lead event", "lead_id", lead.ID)
	return nil
}

func (p *FallbackPublisher) Close() error { return nil }
