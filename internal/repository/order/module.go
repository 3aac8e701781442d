package order

import "go.uber.org/fx"

// Module provides the bun-backed order repository.
var Module = fx.Module("order_repository",
	fx.Provide(NewRepository),
)
