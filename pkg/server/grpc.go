package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// RegistrationFunc registers a grpc service with the server.
type RegistrationFunc func(*grpc.Server)

// GRPCConfig has the configuration for the gRPC server.
type GRPCConfig struct {
	EnableReflection bool
	// CallTimeout bounds unary calls when positive.
	CallTimeout time.Duration
}

// NewGRPCServer creates a new gRPC server instance with optional reflection and service registration.
// Calls are traced, logged through logger, and panics are turned into codes.Internal.
func NewGRPCServer(logger *slog.Logger, cfg GRPCConfig, registerFunc ...RegistrationFunc) *grpc.Server {
	logOpts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}
	recoveryOpts := []recovery.Option{
		recovery.WithRecoveryHandlerContext(func(ctx context.Context, p any) error {
			logger.ErrorContext(ctx, "Panic recovered in gRPC handler", "panic", p)
			return status.Error(codes.Internal, "internal error")
		}),
	}

	unary := []grpc.UnaryServerInterceptor{
		logging.UnaryServerInterceptor(InterceptorLogger(logger), logOpts...),
		recovery.UnaryServerInterceptor(recoveryOpts...),
	}
	if cfg.CallTimeout > 0 {
		unary = append(unary, UnaryServerTimeoutInterceptor(cfg.CallTimeout))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(
			logging.StreamServerInterceptor(InterceptorLogger(logger), logOpts...),
			recovery.StreamServerInterceptor(recoveryOpts...),
		),
	)

	if cfg.EnableReflection {
		reflection.Register(grpcServer)
	}

	for _, regFunc := range registerFunc {
		regFunc(grpcServer)
	}

	return grpcServer
}

// InterceptorLogger adapts slog to the go-grpc-middleware logging interface.
func InterceptorLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}
