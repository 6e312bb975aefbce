package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

// EventProducer publishes JSON events to a durable topic exchange.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *slog.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	// A path is the vhost and is kept as given; no path means the default vhost.
	if u.Path == "" {
		u.Path = "/"
		return u.String(), nil
	}
	return clean, nil
}

func NewEventProducer(amqpURL, exchange string, logger *slog.Logger) (*EventProducer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}

	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &EventProducer{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger.With("component", "events"),
	}, nil
}

func (p *EventProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         jsonBody,
		})
	if err != nil {
		return err
	}

	p.logger.Debug("event published", "exchange", p.exchange, "routing_key", routingKey)
	return nil
}

func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// FallbackProducer logs events instead of publishing them. It is used when
// RabbitMQ is not configured or unreachable at startup.
type FallbackProducer struct {
	logger *slog.Logger
}

func NewFallbackProducer(logger *slog.Logger) *FallbackProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProducer{logger: logger.With("component", "events")}
}

func (p *FallbackProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	p.logger.Warn("event broker unavailable, event logged only", "routing_key", routingKey, "event", body)
	return nil
}

func (p *FallbackProducer) Close() {}

// PublishOrLog publishes body and logs instead of returning a failure.
func PublishOrLog(ctx context.Context, publisher Publisher, routingKey string, body interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, routingKey, body); err != nil {
		slog.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}
