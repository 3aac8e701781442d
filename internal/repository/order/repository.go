package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderservice/internal/database"
	"github.com/Additional-Code/orderservice/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/orderservice/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// List bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status       string
	CustomerName string
	Limit        int
	Offset       int
}

// Normalize clamps Limit and Offset into the supported range. A missing
// limit becomes DefaultLimit; a larger one is capped at MaxLimit.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	f.Limit = min(f.Limit, MaxLimit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection and fills its ID.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.String("order.customer", order.CustomerName),
		attribute.String("order.product", order.ProductName),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns orders newest first, narrowed by filter.
func (r *Repository) List(ctx context.Context, filter Filter) ([]entity.Order, error) {
	filter = filter.Normalize()
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(
		attribute.String("order.status", filter.Status),
		attribute.Int("limit", filter.Limit),
		attribute.Int("offset", filter.Offset),
	))
	defer span.End()

	orders := make([]entity.Order, 0, filter.Limit)
	q := r.reader.NewSelect().Model(&orders)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CustomerName != "" {
		q = q.Where("customer_name = ?", filter.CustomerName)
	}
	err := q.OrderExpr("order_date DESC, id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Update overwrites every mutable column except order_date, which is set once.
func (r *Repository) Update(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(order).
		Column("customer_name", "product_name", "quantity", "price", "status").
		WherePK().
		Exec(ctx)
	return r.checkAffected(span, res, err, "update failed")
}

// UpdateStatus replaces the status of a single order.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", status),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return r.checkAffected(span, res, err, "update failed")
}

// Delete removes an order by primary key.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.Order)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return r.checkAffected(span, res, err, "delete failed")
}

func (r *Repository) checkAffected(span trace.Span, res sql.Result, err error, failure string) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, failure)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, failure)
		return err
	}
	if n == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}
