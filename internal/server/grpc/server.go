package grpc

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/orderservice/internal/config"
	"github.com/Additional-Code/orderservice/pkg/errorbank"
)

// OrderServiceName is the health-check service name reported for orders.
const OrderServiceName = "orders.v1.OrderService"

// Module exposes the gRPC server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewServer, NewHealth),
	fx.Invoke(Register, Run),
)

// NewHealth returns the standard health service with the order service
// NOT_SERVING until Run starts listening.
func NewHealth() *health.Server {
	hs := health.NewServer()
	hs.SetServingStatus(OrderServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Register attaches health and reflection services.
func Register(server *grpc.Server, hs *health.Server) {
	healthpb.RegisterHealthServer(server, hs)
	reflection.Register(server)
}

// NewServer builds a server whose unary chain is logging, panic recovery,
// then errorbank translation.
func NewServer(logger *zap.Logger) *grpc.Server {
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(LoggingUnaryInterceptor(logger), RecoveryUnaryInterceptor(logger), ErrorUnaryInterceptor),
		grpc.ChainStreamInterceptor(LoggingStreamInterceptor(logger)),
	)
}

// ErrorUnaryInterceptor converts errorbank errors into gRPC statuses so
// clients receive the matching code instead of Unknown.
func ErrorUnaryInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return resp, appErr.GRPCStatus().Err()
	}
	return resp, err
}

// RecoveryUnaryInterceptor turns a handler panic into codes.Internal.
func RecoveryUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc handler panic", zap.String("method", info.FullMethod), zap.Any("panic", r))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingUnaryInterceptor logs every unary call with its status code.
func LoggingUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, "grpc unary call finished", info.FullMethod, start, err)
		return resp, err
	}
}

// LoggingStreamInterceptor logs every stream once it ends.
func LoggingStreamInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(logger, "grpc stream call finished", info.FullMethod, start, err)
		return err
	}
}

func logCall(logger *zap.Logger, msg, method string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", status.Code(err).String()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		logger.Warn(msg, append(fields, zap.Error(err))...)
		return
	}
	logger.Info(msg, fields...)
}

// Run listens on the configured address at start and drains gracefully on
// stop, forcing a hard stop if ctx expires first.
func Run(lc fx.Lifecycle, cfg config.Config, server *grpc.Server, hs *health.Server, logger *zap.Logger) {
	addr := net.JoinHostPort(cfg.GRPC.Host, strconv.Itoa(cfg.GRPC.Port))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
			if err != nil {
				return err
			}
			logger.Info("starting gRPC server", zap.String("addr", ln.Addr().String()))
			hs.SetServingStatus(OrderServiceName, healthpb.HealthCheckResponse_SERVING)
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logger.Error("grpc server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			hs.Shutdown()

			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()
			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				return nil
			}
		},
	})
}
