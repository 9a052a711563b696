package feature

import (
	"context"
	"errors"
	"strconv"

	"lsbridge/internal/aggregate"
	"lsbridge/internal/trace"
)

// traceProvider wraps seq in a provider span. Failures other than
// cancellation are recorded as error events.
func traceProvider[R any](span string, provider Entry, seq aggregate.Seq[R]) aggregate.Seq[R] {
	if seq == nil {
		return nil
	}
	return func(ctx context.Context, yield func(R) error) error {
		s, ctx := trace.Start(ctx, trace.ScopeProvider, span)
		s.WithExtra("provider", provider.Name())
		n := 0
		err := seq(ctx, func(item R) error {
			n++
			return yield(item)
		})
		if err != nil && !isCancellation(err) {
			trace.Error(ctx, span, err)
		}
		s.End(strconv.Itoa(n) + " items")
		return err
	}
}

// traceCall is traceProvider for providers that answer with a single value.
func traceCall[R any](ctx context.Context, span string, provider Entry, call func(context.Context) (R, error)) (R, error) {
	s, ctx := trace.Start(ctx, trace.ScopeProvider, span)
	s.WithExtra("provider", provider.Name())
	out, err := call(ctx)
	if err != nil && !isCancellation(err) {
		trace.Error(ctx, span, err)
	}
	s.End("")
	return out, err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
