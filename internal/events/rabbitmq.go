package events

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/sirupsen/logrus"
)

const exchangeType = "topic"

// RoutingKey maps an event type such as order.placed to bookstore.order.placed.
func RoutingKey(eventType string) string {
	return "bookstore." + eventType
}

type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// Dial connects to the broker, retrying while it starts up, and declares
// the durable topic exchange.
func Dial(ctx context.Context, url, exchange string, log *logrus.Entry) (*AMQPPublisher, error) {
	var conn *amqp.Connection

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 4), ctx)
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = amqp.Dial(url)
		return err
	}, policy, func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait).Warn("connect to RabbitMQ failed")
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event store.OutboxEvent) error {
	return p.ch.PublishWithContext(ctx,
		p.exchange,                  // exchange
		RoutingKey(event.EventType), // routing key
		false,                       // mandatory
		false,                       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Timestamp:    event.CreatedAt,
			Type:         event.EventType,
			Headers:      amqp.Table{"order_id": event.OrderID},
			Body:         event.Payload,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
