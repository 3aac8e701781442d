package order

import (
	"go.uber.org/fx"

	service "github.com/Additional-Code/orderservice/internal/service/order"
)

// Module serves /orders from the order service.
var Module = fx.Options(
	fx.Provide(
		func(svc *service.Service) Service { return svc },
		NewHandler,
	),
	fx.Invoke(Register),
)
