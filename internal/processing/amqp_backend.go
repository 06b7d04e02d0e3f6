package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/noah-isme/docmgmt-api/internal/models"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type taskMessage struct {
	ID          int64                 `json:"id"`
	Input       models.IngestionInput `json:"input"`
	CallbackURL string                `json:"callbackUrl"`
}

// AMQPBackend hands tasks to workers through a durable RabbitMQ queue.
// Ids are assigned here; workers report back through the callback endpoint.
type AMQPBackend struct {
	conn        *amqp.Connection
	channel     publisher
	queue       string
	callbackURL string
	ids         *IDGenerator
}

// DialAMQP connects, declares the durable queue and returns a ready backend.
func DialAMQP(url, queue, callbackURL string, ids *IDGenerator) (*AMQPBackend, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPBackend{conn: conn, channel: ch, queue: queue, callbackURL: callbackURL, ids: ids}, nil
}

// Submit publishes a persistent task message and returns its id.
func (b *AMQPBackend) Submit(ctx context.Context, input models.IngestionInput) (int64, error) {
	id := b.ids.Next()
	msg, err := b.message(id, input)
	if err != nil {
		return 0, err
	}
	if err := b.channel.PublishWithContext(ctx, "", b.queue, false, false, msg); err != nil {
		return 0, fmt.Errorf("publish ingestion task: %w", err)
	}
	return id, nil
}

func (b *AMQPBackend) message(id int64, input models.IngestionInput) (amqp.Publishing, error) {
	body, err := json.Marshal(taskMessage{ID: id, Input: input, CallbackURL: b.callbackURL})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal ingestion task: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    strconv.FormatInt(id, 10),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

// Close tears down the connection.
func (b *AMQPBackend) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
