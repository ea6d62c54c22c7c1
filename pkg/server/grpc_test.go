package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestUnaryServerTimeoutInterceptor(t *testing.T) {
	testCases := []struct {
		name        string
		callerLimit time.Duration
		timeout     time.Duration
		maxExpected time.Duration
	}{
		{name: "no caller deadline", timeout: time.Second, maxExpected: time.Second},
		{name: "shorter caller deadline wins", callerLimit: 100 * time.Millisecond, timeout: time.Second, maxExpected: 100 * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			ctx := context.Background()
			if tc.callerLimit > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tc.callerLimit)
				defer cancel()
			}
			var remaining time.Duration
			handler := func(ctx context.Context, _ any) (any, error) {
				deadline, ok := ctx.Deadline()
				require.True(t, ok, "handler context must have a deadline")
				remaining = time.Until(deadline)
				return nil, nil
			}

			// when
			_, err := UnaryServerTimeoutInterceptor(tc.timeout)(ctx, nil, &grpc.UnaryServerInfo{}, handler)

			// then
			require.NoError(t, err)
			assert.LessOrEqual(t, remaining, tc.maxExpected)
		})
	}
}

func TestNewGRPCServer_ServesRegisteredServices(t *testing.T) {
	// given
	lis := bufconn.Listen(1 << 20)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	gs := NewGRPCServer(logger, GRPCConfig{EnableReflection: true, CallTimeout: time.Second}, func(s *grpc.Server) {
		healthpb.RegisterHealthServer(s, health.NewServer())
	})
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// when
	res, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})

	// then
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())
	assert.Contains(t, gs.GetServiceInfo(), "grpc.reflection.v1.ServerReflection")
}
