package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// UnaryServerTimeoutInterceptor bounds every unary call with timeout unless the caller set a shorter deadline.
func UnaryServerTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return handler(callCtx, req)
	}
}
