package logger

import (
	"context"
	"log/slog"
)

type batchIDKey struct{}

type requestIDKey struct{}

// WithBatchID stores the batch id in the context.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey{}, id)
}

// BatchID returns the batch id stored in ctx, or an empty string.
func BatchID(ctx context.Context) string {
	v, _ := ctx.Value(batchIDKey{}).(string)
	return v
}

// BatchIDExtractor adds "batch_id" to every record logged within a dispatch.
func BatchIDExtractor() ContextExtractor {
	return stringExtractor("batch_id", BatchID)
}

// WithRequestID stores the HTTP request id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, or an empty string.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// RequestIDExtractor adds "request_id" to every record logged while serving a request.
func RequestIDExtractor() ContextExtractor {
	return stringExtractor("request_id", RequestID)
}

func stringExtractor(key string, get func(context.Context) string) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v := get(ctx); v != "" {
			return slog.String(key, v), true
		}
		return slog.Attr{}, false
	}
}
