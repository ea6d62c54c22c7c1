package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewContextHandler(slog.NewJSONHandler(buf, nil)))
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestContextHandler(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	testCases := []struct {
		name     string
		ctx      func() context.Context
		expected map[string]string
		absent   []string
	}{
		{
			name:   "plain context",
			ctx:    context.Background,
			absent: []string{"request_id", "trace_id", "sale_id"},
		},
		{
			name: "request id",
			ctx: func() context.Context {
				return context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
			},
			expected: map[string]string{"request_id": "req-1"},
			absent:   []string{"trace_id"},
		},
		{
			name: "appended attributes accumulate",
			ctx: func() context.Context {
				ctx := AppendCtx(context.Background(), slog.String("sale_id", "s-1"))
				return AppendCtx(ctx, slog.String("product_id", "p-1"))
			},
			expected: map[string]string{"sale_id": "s-1", "product_id": "p-1"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var buf bytes.Buffer
			logger := newTestLogger(&buf)

			// when
			logger.InfoContext(tc.ctx(), "hello")

			// then
			record := decode(t, &buf)
			for k, v := range tc.expected {
				assert.Equal(t, v, record[k], k)
			}
			for _, k := range tc.absent {
				assert.NotContains(t, record, k)
			}
		})
	}

	t.Run("trace id", func(t *testing.T) {
		// given
		var buf bytes.Buffer
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		// when
		newTestLogger(&buf).InfoContext(ctx, "hello")

		// then
		assert.Equal(t, span.SpanContext().TraceID().String(), decode(t, &buf)["trace_id"])
	})
}

func TestAppendCtx_DoesNotLeakIntoParent(t *testing.T) {
	// given
	parent := AppendCtx(context.Background(), slog.String("a", "1"))

	// when
	_ = AppendCtx(parent, slog.String("b", "2"))

	// then
	attrs, _ := parent.Value(attrsKey{}).([]slog.Attr)
	require.Len(t, attrs, 1)
	assert.Equal(t, "a", attrs[0].Key)
}

func TestContextHandler_WithAttrsKeepsContext(t *testing.T) {
	// given
	var buf bytes.Buffer
	logger := newTestLogger(&buf).With("component", "rest")
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-2")

	// when
	logger.InfoContext(ctx, "hello")

	// then
	record := decode(t, &buf)
	assert.Equal(t, "rest", record["component"])
	assert.Equal(t, "req-2", record["request_id"])
}
