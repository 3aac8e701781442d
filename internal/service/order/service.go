package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/cache"
	"github.com/Additional-Code/orderservice/internal/clock"
	"github.com/Additional-Code/orderservice/internal/config"
	"github.com/Additional-Code/orderservice/internal/entity"
	"github.com/Additional-Code/orderservice/internal/messaging"
	repo "github.com/Additional-Code/orderservice/internal/repository/order"
	"github.com/Additional-Code/orderservice/pkg/errorbank"
)

const instrumentationName = "github.com/Additional-Code/orderservice/service/order"

var serviceTracer = otel.Tracer(instrumentationName)

// Store is the persistence contract the service depends on.
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	List(ctx context.Context, filter repo.Filter) ([]entity.Order, error)
	Update(ctx context.Context, order *entity.Order) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
}

// Service encapsulates business logic around orders.
type Service struct {
	repo      Store
	cache     cache.Store
	cacheTTL  time.Duration
	clock     clock.Clock
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	metrics   serviceMetrics
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

type serviceMetrics struct {
	created metric.Int64Counter
	updated metric.Int64Counter
	deleted metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository Store
	Cache      cache.Store
	Clock      clock.Clock
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) (*Service, error) {
	metrics, err := newServiceMetrics(otel.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		clock:     clk,
		logger:    logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		metrics: metrics,
	}, nil
}

func newServiceMetrics(meter metric.Meter) (serviceMetrics, error) {
	created, err := meter.Int64Counter("orders.created", metric.WithDescription("Orders created"))
	if err != nil {
		return serviceMetrics{}, fmt.Errorf("orders.created counter: %w", err)
	}
	updated, err := meter.Int64Counter("orders.updated", metric.WithDescription("Orders updated, including status changes"))
	if err != nil {
		return serviceMetrics{}, fmt.Errorf("orders.updated counter: %w", err)
	}
	deleted, err := meter.Int64Counter("orders.deleted", metric.WithDescription("Orders deleted"))
	if err != nil {
		return serviceMetrics{}, fmt.Errorf("orders.deleted counter: %w", err)
	}
	return serviceMetrics{created: created, updated: updated, deleted: deleted}, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := cache.GetJSON[entity.Order](ctx, s.cache, CacheKey(id))
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return order, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err = s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	s.storeInCache(ctx, order)
	return order, nil
}

// List returns orders matching filter, newest first.
func (s *Service) List(ctx context.Context, filter repo.Filter) ([]entity.Order, error) {
	filter = filter.Normalize()
	ctx, span := serviceTracer.Start(ctx, "OrderService.List", trace.WithAttributes(
		attribute.String("order.status", filter.Status),
		attribute.String("order.customer", filter.CustomerName),
	))
	defer span.End()

	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Create persists order. A zero OrderDate is stamped with the current time,
// Price is rounded to the stored scale and an empty Status becomes "New"; no
// other field is checked.
func (s *Service) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errorbank.BadRequest("order payload is required")
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = s.clock.Now()
	}
	order.OrderDate = order.OrderDate.UTC()
	order.Price = order.Price.Round(entity.PriceScale)
	if order.Status == "" {
		order.Status = entity.StatusNew
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.String("order.customer", order.CustomerName),
		attribute.String("order.product", order.ProductName),
	))
	defer span.End()

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	s.storeInCache(ctx, order)
	s.metrics.created.Add(ctx, 1)
	s.publish(ctx, EventOrderCreated, order)
	return nil
}

// Update replaces customer, product, quantity, price and status of order id.
// OrderDate keeps its stored value. An empty Status becomes "New".
func (s *Service) Update(ctx context.Context, id int64, changes *entity.Order) (*entity.Order, error) {
	if changes == nil {
		return nil, errorbank.BadRequest("order payload is required")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	current, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	current.CustomerName = changes.CustomerName
	current.ProductName = changes.ProductName
	current.Quantity = changes.Quantity
	current.Price = changes.Price.Round(entity.PriceScale)
	current.Status = changes.Status
	if current.Status == "" {
		current.Status = entity.StatusNew
	}

	if err := s.repo.Update(ctx, current); err != nil {
		return nil, s.mutationError(ctx, span, id, err, "failed to update order")
	}

	s.storeInCache(ctx, current)
	s.metrics.updated.Add(ctx, 1)
	s.publish(ctx, EventOrderUpdated, current)
	return current, nil
}

// UpdateStatus sets the status of order id. Any non-empty string is accepted.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*entity.Order, error) {
	if status == "" {
		return nil, errorbank.BadRequest("status is required")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", status),
	))
	defer span.End()

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, s.mutationError(ctx, span, id, err, "failed to update order status")
	}

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	s.storeInCache(ctx, order)
	s.metrics.updated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("status_only", true)))
	s.publish(ctx, EventOrderStatusChanged, order)
	return order, nil
}

// Delete removes order id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mutationError(ctx, span, id, err, "failed to delete order")
	}

	s.Invalidate(ctx, id)
	s.metrics.deleted.Add(ctx, 1)
	s.publish(ctx, EventOrderDeleted, &entity.Order{ID: id})
	return nil
}

// Invalidate drops the cached copy of order id.
func (s *Service) Invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, CacheKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

func (s *Service) load(ctx context.Context, span trace.Span, id int64) (*entity.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) mutationError(ctx context.Context, span trace.Span, id int64, err error, msg string) error {
	if errors.Is(err, repo.ErrNotFound) {
		s.Invalidate(ctx, id)
		return errorbank.NotFound("order not found", errorbank.WithDetail("id", id))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal(msg, errorbank.WithCause(err))
}

func (s *Service) publish(ctx context.Context, eventType string, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := Event{
		Type:       eventType,
		Order:      *order,
		OccurredAt: s.clock.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order event",
			zap.String("type", eventType),
			zap.String("topic", s.messaging.topic),
			zap.Int64("id", order.ID),
			zap.Error(err),
		)
	}
}

// CacheKey is the cache key holding order id.
func CacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if err := cache.SetJSON(ctx, s.cache, CacheKey(order.ID), order, s.cacheTTL); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}
