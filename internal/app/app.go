package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orderservice/internal/cache"
	"github.com/Additional-Code/orderservice/internal/clock"
	"github.com/Additional-Code/orderservice/internal/config"
	"github.com/Additional-Code/orderservice/internal/database"
	"github.com/Additional-Code/orderservice/internal/discovery"
	"github.com/Additional-Code/orderservice/internal/logger"
	"github.com/Additional-Code/orderservice/internal/messaging"
	"github.com/Additional-Code/orderservice/internal/observability"
	repositoryorder "github.com/Additional-Code/orderservice/internal/repository/order"
	grpcserver "github.com/Additional-Code/orderservice/internal/server/grpc"
	httpserver "github.com/Additional-Code/orderservice/internal/server/http"
	serviceorder "github.com/Additional-Code/orderservice/internal/service/order"
	transporthttp "github.com/Additional-Code/orderservice/internal/transport/http"
	"github.com/Additional-Code/orderservice/internal/worker"
	workerorder "github.com/Additional-Code/orderservice/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	clock.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
	discovery.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP and gRPC).
var Module = HTTP
