// Package app wires stores, services and transports of the store manager.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/storemanager/internal/config"
	"github.com/abgdnv/storemanager/internal/service"
	"github.com/abgdnv/storemanager/internal/store"
	grpcImpl "github.com/abgdnv/storemanager/internal/transport/grpc"
	"github.com/abgdnv/storemanager/internal/transport/rest"
	pkgconfig "github.com/abgdnv/storemanager/pkg/config"
	"github.com/abgdnv/storemanager/pkg/messaging"
	pnats "github.com/abgdnv/storemanager/pkg/nats"
	"github.com/abgdnv/storemanager/pkg/server"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
)

type Dependencies struct {
	ProductService service.ProductService
	SaleService    service.SaleService
	Health         *grpcImpl.HealthServer
	DB             rest.Pinger
	Logger         *slog.Logger
}

// SetupDependencies builds the Postgres backed services.
func SetupDependencies(dbPool *pgxpool.Pool, publisher messaging.Publisher, logger *slog.Logger) *Dependencies {
	products := store.NewPgProductStore(dbPool)
	sales := store.NewPgSaleStore(dbPool)
	txManager := store.NewPgTxManager(dbPool)

	return &Dependencies{
		ProductService: service.NewProductService(products),
		SaleService:    service.NewSaleService(txManager, products, sales, publisher),
		Health:         grpcImpl.NewHealthServer(dbPool, logger),
		DB:             dbPool,
		Logger:         logger,
	}
}

// SetupPublisher connects to JetStream and provisions the SALES stream when NATS is enabled.
// Otherwise events are dropped. The returned close func is always safe to call.
func SetupPublisher(ctx context.Context, cfg pkgconfig.NATSConfig, cb pkgconfig.ResilienceConfig, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.Enabled {
		logger.Info("NATS disabled, sale events will not be published")
		return messaging.NopPublisher{}, func() {}, nil
	}

	nc, err := pnats.NewClient(cfg.Url, cfg.Timeout, logger)
	if err != nil {
		return nil, nil, err
	}
	js, err := pnats.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	streamCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if _, err := pnats.EnsureSalesStream(streamCtx, js, cfg.Stream); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to set up sales stream: %w", err)
	}
	logger.Info("Connected to NATS JetStream", "stream", messaging.SalesStream)

	publisher := messaging.NewBreakerPublisher(pnats.NewNatsPublisher(js), cb.CircuitBreaker)
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("Failed to drain NATS connection", "error", err)
		}
	}
	return publisher, closeFn, nil
}

// SetupHttpHandler builds the router with every route and middleware.
// Used by E2E tests to drive the service without a listening socket.
func SetupHttpHandler(deps *Dependencies, opts ...rest.Option) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps, opts...)
	return otelhttp.NewHandler(mux, "store-manager",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func wireRoutes(mux *chi.Mux, deps *Dependencies, opts ...rest.Option) {
	if deps.DB != nil {
		opts = append([]rest.Option{rest.WithPinger(deps.DB)}, opts...)
	}
	handler := rest.NewHandler(deps.ProductService, deps.SaleService, deps.Logger, opts...)
	handler.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures an HTTP server for the store manager.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps, rest.WithMaxBodyBytes(cfg.HTTPServer.BodyLimit()))

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}

// SetupGrpcServer initializes the gRPC server with the health service registered.
func SetupGrpcServer(deps *Dependencies, cfg pkgconfig.GrpcServerConfig) *grpc.Server {
	grpcCfg := server.GRPCConfig{
		EnableReflection: cfg.ReflectionEnabled,
		CallTimeout:      cfg.Timeout,
	}
	return server.NewGRPCServer(deps.Logger, grpcCfg, deps.Health.Register)
}
