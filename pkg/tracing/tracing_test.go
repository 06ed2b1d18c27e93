package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceparent(t *testing.T) {
	ctx := context.Background()
	tp, err := Init(ctx, "pix-disburser-test", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	assert.Empty(t, Traceparent(ctx))

	spanCtx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()

	tpHeader := Traceparent(spanCtx)
	require.Len(t, tpHeader, 55)
	assert.Equal(t, "00-"+span.SpanContext().TraceID().String()+"-"+span.SpanContext().SpanID().String()+"-01", tpHeader)
}
