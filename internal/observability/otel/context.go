package otel

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type handleKey struct{}

// Handle bundles the tracer commands create spans from with the provider
// shutdown the entrypoint flushes on exit.
type Handle struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

func WithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// From returns the context's Handle, or nil when tracing is disabled.
// Commands treat a nil handle as "skip span creation".
func From(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleKey{}).(*Handle)
	return h
}
