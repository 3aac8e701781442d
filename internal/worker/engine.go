package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/orderservice/internal/config"
	"github.com/Additional-Code/orderservice/internal/messaging"
)

const (
	instrumentationName = "github.com/Additional-Code/orderservice/worker"
	minBackoff          = time.Second
	maxBackoff          = 30 * time.Second
)

// HandlerRegistration binds a topic to its handler. Handlers are contributed
// through the "worker.handlers" value group.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs Concurrency consumers against the messaging client and routes
// each message to the handler registered for its topic.
type Engine struct {
	client    messaging.Client
	logger    *zap.Logger
	cfg       config.Config
	handlers  map[string]messaging.Handler
	processed metric.Int64Counter

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Module wires the engine into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// NewEngine builds an engine. Registrations without a topic or handler are
// dropped; a later registration for the same topic wins.
func NewEngine(p Params) (*Engine, error) {
	handlers := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		handlers[r.Topic] = r.Handler
	}

	processed, err := otel.Meter(instrumentationName).Int64Counter(
		"orders.worker.messages",
		metric.WithDescription("Messages handled by the worker, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker counter: %w", err)
	}

	return &Engine{
		client:    p.Client,
		logger:    p.Logger,
		cfg:       p.Config,
		handlers:  handlers,
		processed: processed,
	}, nil
}

// Start launches the consumers. It does nothing when messaging or workers are
// disabled or no handler is registered.
func (e *Engine) Start(context.Context) error {
	switch {
	case !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled:
		e.logger.Info("worker engine disabled")
		return nil
	case len(e.handlers) == 0:
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	workers := max(e.cfg.Messaging.Workers.Concurrency, 1)
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.group = &errgroup.Group{}

	for id := range workers {
		e.group.Go(func() error {
			e.consume(ctx, id)
			return nil
		})
	}

	e.logger.Info("worker engine started",
		zap.Int("workers", workers),
		zap.String("topic", e.client.Topic()),
	)
	return nil
}

// Stop cancels the consumers and waits for them to return, or for ctx to
// expire.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan error, 1)
	go func() { done <- e.group.Wait() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		e.logger.Info("worker engine stopped")
		return err
	}
}

// consume restarts Consume with exponential backoff until ctx is cancelled.
func (e *Engine) consume(ctx context.Context, workerID int) {
	logger := e.logger.With(zap.Int("worker", workerID))
	backoff := minBackoff
	for ctx.Err() == nil {
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, logger, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		logger.Error("consume loop error", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (e *Engine) dispatch(ctx context.Context, logger *zap.Logger, msg messaging.Message) (err error) {
	handler, ok := e.handlers[msg.Topic]
	if !ok {
		logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		e.record(ctx, msg.Topic, "unrouted")
		return nil
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "worker.dispatch")
	span.SetAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.String("messaging.message.key", string(msg.Key)),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		e.record(ctx, msg.Topic, outcome)
		span.End()
	}()

	logger.Debug("processing order message",
		zap.String("topic", msg.Topic),
		zap.ByteString("key", msg.Key),
	)
	return handler(ctx, msg)
}

func (e *Engine) record(ctx context.Context, topic, outcome string) {
	e.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	))
}
