package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/config"
	"github.com/Additional-Code/orderservice/internal/messaging"
	ordersvc "github.com/Additional-Code/orderservice/internal/service/order"
	"github.com/Additional-Code/orderservice/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/orderservice/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		func(svc *ordersvc.Service) Invalidator { return svc },
		fx.Annotate(
			NewOrderEventsHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Invalidator drops cached copies of an order.
type Invalidator interface {
	Invalidate(ctx context.Context, id int64)
}

// NewOrderEventsHandler consumes order events. Every event is logged;
// mutations from other instances evict the local cache entry.
func NewOrderEventsHandler(logger *zap.Logger, cfg config.Config, cache Invalidator) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return messaging.Permanent(fmt.Errorf("decode order event: %w", err))
		}
		span.SetAttributes(
			attribute.String("order.event", event.Type),
			attribute.Int64("order.id", event.Order.ID),
		)

		switch event.Type {
		case ordersvc.EventOrderCreated:
		case ordersvc.EventOrderUpdated, ordersvc.EventOrderStatusChanged, ordersvc.EventOrderDeleted:
			if cache != nil {
				cache.Invalidate(ctx, event.Order.ID)
			}
		default:
			logger.Warn("unknown order event type; skipping", zap.String("type", event.Type))
			return nil
		}

		logger.Info("order event processed",
			zap.String("type", event.Type),
			zap.Int64("id", event.Order.ID),
			zap.String("customer", event.Order.CustomerName),
			zap.String("product", event.Order.ProductName),
			zap.Int("quantity", event.Order.Quantity),
			zap.String("price", event.Order.Price.String()),
			zap.String("status", event.Order.Status),
			zap.Time("occurred_at", event.OccurredAt),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
