package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// SendHandler processes one send request
type SendHandler func(ctx context.Context, req *SendRequest) error

// Consumer consumes send requests from RabbitMQ, one at a time
type Consumer struct {
	conn      *Connection
	queueName string
	handler   SendHandler
	log       zerolog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// NewConsumer creates a new consumer instance
func NewConsumer(conn *Connection, queueName string, handler SendHandler, log zerolog.Logger) (*Consumer, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if err := declareQueue(ch, queueName); err != nil {
		return nil, err
	}

	return &Consumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		log:       log.With().Str("component", "consumer").Str("queue", queueName).Logger(),
	}, nil
}

// Start starts consuming. Canceling ctx stops taking new requests but lets
// the request in progress finish; only Stop can cut it short.
func (c *Consumer) Start(ctx context.Context) error {
	// Get a dedicated channel for consuming
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	// one dispatch at a time
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual acknowledgement)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.run(ctx, msgs)
	c.log.Info().Msg("consumer started")
	return nil
}

// run starts the delivery loop. Handlers get a context that only Stop cancels.
func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	c.stopChan = make(chan struct{})
	c.doneChan = make(chan struct{})

	var handlerCtx context.Context
	handlerCtx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	go func() {
		defer close(c.doneChan)
		for {
			// Check for shutdown before taking the next delivery
			select {
			case <-ctx.Done():
				c.log.Info().Msg("consumer stopping")
				return
			case <-c.stopChan:
				c.log.Info().Msg("consumer stopping")
				return
			default:
			}

			select {
			case <-ctx.Done():
				c.log.Info().Msg("consumer stopping")
				return
			case <-c.stopChan:
				c.log.Info().Msg("consumer stopping")
				return
			case d, ok := <-msgs:
				if !ok {
					c.log.Warn().Msg("delivery channel closed")
					return
				}
				c.settle(d, c.processMessage(handlerCtx, d.Body))
			}
		}
	}()
}

// acknowledger is the part of amqp.Delivery the consumer settles with
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) settle(d amqp.Delivery, err error) {
	settle(c.log, d, d.Redelivered, err)
}

// settle acks on success, requeues a transient failure once, drops permanent ones
func settle(log zerolog.Logger, d acknowledger, redelivered bool, err error) {
	if err == nil {
		_ = d.Ack(false)
		return
	}
	requeue := !IsPermanent(err) && !redelivered
	log.Error().Err(err).Bool("requeue", requeue).Msg("send request failed")
	_ = d.Nack(false, requeue)
}

// Stop stops taking requests and waits for the one in progress. When ctx
// expires first, the request is canceled and Stop waits for it to return.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.doneChan == nil {
		return nil
	}
	c.stopOnce.Do(func() { close(c.stopChan) })

	select {
	case <-c.doneChan:
	case <-ctx.Done():
		c.log.Warn().Msg("drain deadline reached, canceling request in progress")
		c.cancel()
		<-c.doneChan
	}
	c.cancel()
	c.log.Info().Msg("consumer stopped")
	return nil
}

func (c *Consumer) processMessage(ctx context.Context, body []byte) error {
	var req SendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return Permanent(fmt.Errorf("failed to unmarshal send request: %w", err))
	}
	if req.CampaignID <= 0 {
		return Permanent(fmt.Errorf("send request %s has no campaign id", req.RequestID))
	}

	if err := c.handler(ctx, &req); err != nil {
		return fmt.Errorf("handler failed: %w", err)
	}
	return nil
}
