package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/saem16/professional-networking-platform-sub001/pkg/logger"
)

// ActionHeader carries the event action name on published messages.
const ActionHeader = "x-action"

// Publisher is the offline-delivery side channel: events for recipients with
// no live connection are queued here for the push/email worker. Publishing is
// fire-and-forget from the caller's perspective; a broker outage must never
// abort a message send.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Connect dials the broker and declares the given queues. Returns a nil
// Publisher (still safe to use) when the broker is unreachable, so the chat
// core keeps working without the side channel.
func Connect(url string, queues []string) *Publisher {
	conn, err := amqp.Dial(url)
	if err != nil {
		logger.Warn().Err(err).Msg("RabbitMQ unreachable, offline delivery disabled")
		return nil
	}

	channel, err := conn.Channel()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open RabbitMQ channel, offline delivery disabled")
		conn.Close()
		return nil
	}

	for _, name := range queues {
		if _, err := channel.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			logger.Warn().Err(err).Str("queue", name).Msg("failed to declare queue")
		}
	}

	logger.Info().Msg("Connected to RabbitMQ")
	return &Publisher{conn: conn, channel: channel}
}

// Publish serializes payload as JSON and enqueues it with the action header.
// Failures are logged, never returned as fatal to the send path.
func (p *Publisher) Publish(ctx context.Context, queue, action string, payload interface{}) error {
	if p == nil || p.channel == nil {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers: amqp.Table{
				ActionHeader: action,
			},
			Body: body,
		},
	)
	if err != nil {
		logger.Warn().Err(err).Str("queue", queue).Str("action", action).Msg("failed to publish event")
	}
	return err
}

// Close tears down the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
