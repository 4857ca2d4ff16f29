package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/models"
)

// Publisher publishes send requests and dispatch events to RabbitMQ
type Publisher struct {
	conn        *Connection
	sendQueue   string
	eventsQueue string
}

// NewPublisher creates a new publisher instance and declares both queues
func NewPublisher(conn *Connection, sendQueue, eventsQueue string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if sendQueue == "" || eventsQueue == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	for _, name := range []string{sendQueue, eventsQueue} {
		if err := declareQueue(ch, name); err != nil {
			return nil, err
		}
	}

	return &Publisher{
		conn:        conn,
		sendQueue:   sendQueue,
		eventsQueue: eventsQueue,
	}, nil
}

// PublishSendRequest queues an asynchronous send-now request
func (p *Publisher) PublishSendRequest(ctx context.Context, req *SendRequest) error {
	return p.publish(ctx, p.sendQueue, req.RequestID, req)
}

// PublishDispatchEvent publishes the result of a finalized or reverted dispatch
func (p *Publisher) PublishDispatchEvent(ctx context.Context, event *models.DispatchEvent) error {
	return p.publish(ctx, p.eventsQueue, event.DispatchID, event)
}

func (p *Publisher) publish(ctx context.Context, queueName, messageID string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		"",        // exchange (default)
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    messageID,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}

// Close closes the publisher (no-op, connection managed externally)
func (p *Publisher) Close() error {
	return nil
}
