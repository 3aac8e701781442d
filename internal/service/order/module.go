package order

import (
	"go.uber.org/fx"

	repo "github.com/Additional-Code/orderservice/internal/repository/order"
)

// Module provides the order service to Fx, backed by the bun repository.
var Module = fx.Provide(
	NewService,
	func(r *repo.Repository) Store { return r },
)
