package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPForwarder republishes bus events to a topic exchange.
type AMQPForwarder struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	prefix   string
	logger   *zerolog.Logger
}

func NewAMQPForwarder(url, exchange, prefix string, logger *zerolog.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return newAMQPForwarder(conn, ch, exchange, prefix, logger), nil
}

func newAMQPForwarder(conn *amqp.Connection, ch amqpChannel, exchange, prefix string, logger *zerolog.Logger) *AMQPForwarder {
	if prefix == "" {
		prefix = "autoservice"
	}
	return &AMQPForwarder{conn: conn, ch: ch, exchange: exchange, prefix: prefix, logger: logger}
}

// RoutingKey maps "appointment_created" to "<prefix>.appointment.created".
func (f *AMQPForwarder) RoutingKey(eventType string) string {
	return f.prefix + "." + strings.ReplaceAll(eventType, "_", ".")
}

// Handle is an EventHandler; subscribe it with EventBus.SubscribeAll.
func (f *AMQPForwarder) Handle(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := f.ch.PublishWithContext(ctx, f.exchange, f.RoutingKey(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.CreatedAt,
		Type:         event.Type,
		Body:         event.Payload,
	})
	if err != nil {
		f.logger.Error().Err(err).Str("event_type", event.Type).Msg("Failed to forward event to AMQP")
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (f *AMQPForwarder) Close() error {
	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
