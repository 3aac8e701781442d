package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/config"
)

// rabbitClient implements the Client over a durable RabbitMQ queue named
// after the configured topic.
type rabbitClient struct {
	url      string
	queue    string
	prefetch int
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	publish *amqp.Channel
}

func newRabbitClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	client := &rabbitClient{
		url:      cfg.Messaging.RabbitMQ.URL,
		queue:    cfg.Messaging.Kafka.Topic,
		prefetch: cfg.Messaging.RabbitMQ.Prefetch,
		logger:   logger,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.connect()
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing rabbitmq client")
			return client.close()
		},
	})

	return client, nil
}

func (r *rabbitClient) connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := declareQueue(ch, r.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	r.conn = conn
	r.publish = ch
	r.logger.Info("rabbitmq connected", zap.String("queue", r.queue))
	return nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

func (r *rabbitClient) Publish(ctx context.Context, key []byte, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.publish == nil {
		return errors.New("rabbitmq client not connected")
	}
	return r.publish.PublishWithContext(ctx,
		"",      // default exchange
		r.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  ContentTypeJSON,
			DeliveryMode: amqp.Persistent,
			MessageId:    string(key),
			Body:         value,
		},
	)
}

// Consume opens a dedicated channel so several workers can consume in parallel.
func (r *rabbitClient) Consume(ctx context.Context, handler Handler) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return errors.New("rabbitmq client not connected")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(r.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", r.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}

			r.settle(d, handler(ctx, fromDelivery(r.queue, d)))
		}
	}
}

// settle acks d on success. Failed deliveries are requeued unless the error
// wraps ErrPermanent.
func (r *rabbitClient) settle(d amqp.Delivery, err error) {
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			r.logger.Warn("ack failed", zap.Error(ackErr))
		}
		return
	}

	requeue := !errors.Is(err, ErrPermanent)
	r.logger.Error("message handler failed",
		zap.Error(err),
		zap.String("message_id", d.MessageId),
		zap.Bool("requeue", requeue),
	)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		r.logger.Warn("nack failed", zap.Error(nackErr))
	}
}

func (r *rabbitClient) Topic() string { return r.queue }

func (r *rabbitClient) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closeErr error
	if r.publish != nil {
		closeErr = errors.Join(closeErr, r.publish.Close())
		r.publish = nil
	}
	if r.conn != nil {
		closeErr = errors.Join(closeErr, r.conn.Close())
		r.conn = nil
	}
	return closeErr
}

func fromDelivery(queue string, d amqp.Delivery) Message {
	msg := Message{
		Topic:   queue,
		Key:     []byte(d.MessageId),
		Value:   d.Body,
		Offset:  int64(d.DeliveryTag),
		Time:    d.Timestamp,
		Headers: make(map[string]string, len(d.Headers)+1),
	}
	for k, v := range d.Headers {
		msg.Headers[k] = fmt.Sprint(v)
	}
	if d.ContentType != "" {
		msg.Headers[HeaderContentType] = d.ContentType
	}
	return msg
}
