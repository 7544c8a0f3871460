package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"newsbee/internal/history"
)

const (
	FetchRecordedEvent = "fetch.recorded"

	// SchemaVersion is bumped whenever FetchRecordedMessage changes shape.
	SchemaVersion = 1

	// Failed fetches go out under routingKey + failedSuffix so consumers can
	// bind to outages alone.
	failedSuffix = ".failed"
)

type FetchRecordedMessage struct {
	Event         string         `json:"event"`
	SchemaVersion int            `json:"schemaVersion"`
	Timestamp     time.Time      `json:"timestamp"`
	Fetch         history.Record `json:"fetch"`
}

type PublishingChannel interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp.Publishing,
	) error
	Close() error
}

type RabbitPublisher struct {
	conn       *amqp.Connection
	ch         PublishingChannel
	exchange   string
	routingKey string
	logger     *log.Logger
}

// NewRabbitPublisher dials uri and declares a durable topic exchange for fetch
// events. Channel-level failures close everything opened so far.
func NewRabbitPublisher(uri, exchange, routingKey string, logger *log.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = log.Default()
	}

	conn, err := amqp.DialConfig(uri, amqp.Config{
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Properties: amqp.Table{"connection_name": "newsbee-fetches"},
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	logger.Printf("publishing fetch events to %s (%s, %s%s)", exchange, routingKey, routingKey, failedSuffix)
	return &RabbitPublisher{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (p *RabbitPublisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *RabbitPublisher) PublishFetchRecorded(ctx context.Context, r *history.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	body, err := json.Marshal(FetchRecordedMessage{
		Event:         FetchRecordedEvent,
		SchemaVersion: SchemaVersion,
		Timestamp:     now,
		Fetch:         *r,
	})
	if err != nil {
		return fmt.Errorf("encode fetch %s: %w", r.ID, err)
	}

	key := p.routingKey
	if r.Failed() {
		key += failedSuffix
	}

	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    r.ID,
		Type:         FetchRecordedEvent,
		AppId:        "newsbee",
		Timestamp:    now,
		Headers: amqp.Table{
			"schema-version": int32(SchemaVersion),
			"fetch-kind":     r.Kind,
			"fetch-value":    r.Value,
		},
		Body: body,
	})
}
