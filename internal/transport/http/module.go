package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/Additional-Code/orderservice/internal/transport/http/order"
)

// Module mounts every resource handler on the shared Echo instance.
var Module = fx.Module("http_transport",
	ordertransport.Module,
)
