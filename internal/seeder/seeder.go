package seeder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/clock"
	"github.com/Additional-Code/orderservice/internal/database"
	"github.com/Additional-Code/orderservice/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	clock  clock.Clock
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, clk clock.Clock, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, clock: clk, logger: logger}
}

// SampleOrders returns the orders inserted into an empty table.
func SampleOrders(c clock.Clock) []entity.Order {
	first := entity.NewOrderAt(c.Now())
	first.CustomerName = "Ada Lovelace"
	first.ProductName = "Difference Engine Manual"
	first.Quantity = 1
	first.Price = decimal.RequireFromString("49.90")

	second := entity.NewOrderAt(c.Now())
	second.CustomerName = "Grace Hopper"
	second.ProductName = "COBOL Pocket Guide"
	second.Quantity = 3
	second.Price = decimal.RequireFromString("12.50")
	second.Status = "Shipped"

	return []entity.Order{*first, *second}
}

// Orders seeds example orders when the table is empty.
func (s *Seeder) Orders(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count orders: %w", err)
	}
	if count > 0 {
		if s.logger != nil {
			s.logger.Info("orders already present; skipping seed", zap.Int("count", count))
		}
		return nil
	}

	samples := SampleOrders(s.clock)
	if _, err := s.db.NewInsert().Model(&samples).Exec(ctx); err != nil {
		return fmt.Errorf("insert sample orders: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
