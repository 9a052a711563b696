package trace

import "context"

type tracerKey struct{}

type frameKey struct{}

// frame is what a context carries about the enclosing request and span.
type frame struct {
	span    uint64
	request string
}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches t to ctx. A nil t detaches tracing.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// WithRequest tags every event emitted under ctx with a JSON-RPC request id.
// Spans started below it inherit the tag.
func WithRequest(ctx context.Context, id string) context.Context {
	f := current(ctx)
	f.request = id
	return context.WithValue(ctx, frameKey{}, f)
}

// RequestID returns the request id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	return current(ctx).request
}

// SpanID returns the id of the innermost span carried by ctx, or 0.
func SpanID(ctx context.Context) uint64 {
	return current(ctx).span
}

func withSpan(ctx context.Context, id uint64) context.Context {
	f := current(ctx)
	f.span = id
	return context.WithValue(ctx, frameKey{}, f)
}

func current(ctx context.Context) frame {
	if ctx == nil {
		return frame{}
	}
	f, _ := ctx.Value(frameKey{}).(frame)
	return f
}
