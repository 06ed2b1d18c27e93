package asaas

import (
	"context"
	"log/slog"
	"time"
)

// Exchange is one request/response pair as seen by the client.
type Exchange struct {
	Method       string
	Path         string
	RequestBody  []byte
	StatusCode   int
	ResponseBody []byte
	Duration     time.Duration
	Err          error
}

// Hook observes every exchange, successful or not.
type Hook func(ctx context.Context, ex Exchange)

func LogHook(log *slog.Logger) Hook {
	return func(ctx context.Context, ex Exchange) {
		attrs := []any{
			"method", ex.Method,
			"path", ex.Path,
			"status", ex.StatusCode,
			"duration_ms", ex.Duration.Milliseconds(),
		}
		if ex.Err != nil {
			log.ErrorContext(ctx, "asaas request failed", append(attrs, "err", ex.Err, "response", string(ex.ResponseBody))...)
			return
		}
		log.DebugContext(ctx, "asaas request", append(attrs, "request", string(ex.RequestBody), "response", string(ex.ResponseBody))...)
	}
}

// Chain fans one exchange out to several hooks in order.
func Chain(hooks ...Hook) Hook {
	return func(ctx context.Context, ex Exchange) {
		for _, h := range hooks {
			if h != nil {
				h(ctx, ex)
			}
		}
	}
}
