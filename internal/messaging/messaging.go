package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/config"
)

// Supported drivers.
const (
	DriverKafka    = "kafka"
	DriverRabbitMQ = "rabbitmq"
	DriverNoop     = "noop"
)

// Header names and values attached to published messages.
const (
	HeaderContentType = "content-type"
	ContentTypeJSON   = "application/json"
)

// Message is a broker-neutral view of a consumed message. Offset is the
// partition offset for kafka and the delivery tag for rabbitmq.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// ErrPermanent marks handler failures that a retry cannot fix, such as an
// undecodable payload.
var ErrPermanent = errors.New("permanent message failure")

// Permanent wraps err with ErrPermanent. It returns nil for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Handler processes an inbound message. On error, rabbitmq requeues the
// message unless the error wraps ErrPermanent, in which case it is dropped.
// Kafka never redelivers: the offset stays uncommitted and the next
// successful commit on the partition moves past it.
type Handler func(context.Context, Message) error

// Client publishes to and consumes from the order events topic.
type Client interface {
	Publish(ctx context.Context, key []byte, value []byte) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient selects the broker implementation from cfg.Messaging.Driver.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == DriverNoop {
		logger.Info("messaging disabled; using noop client", zap.String("topic", topic))
		return NewNoop(topic), nil
	}

	switch cfg.Messaging.Driver {
	case DriverKafka:
		return newKafkaClient(lc, cfg, logger), nil
	case DriverRabbitMQ:
		return newRabbitClient(lc, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

// NewNoop returns a client that drops published messages and blocks on Consume.
func NewNoop(topic string) Client {
	return noopClient{topic: topic}
}

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, []byte, []byte) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }
