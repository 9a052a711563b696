// Package aggregate fans a request out to several providers concurrently and
// merges their results.
//
// Every provider contributes an asynchronous sequence. Items are merged in
// arrival order, so the order of the combined result is not deterministic.
// The first provider failure cancels the siblings and fails the whole
// request; cancellation of the caller's context reaches every provider.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrProviderFailure matches every *ProviderError.
var ErrProviderFailure = errors.New("provider failure")

// ProviderError reports the provider that failed a request.
type ProviderError struct {
	Index    int
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %d (%s): %v", e.Index, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports whether target is ErrProviderFailure.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailure }

// Token is an LSP progress token. It is absent when empty or JSON null.
type Token = json.RawMessage

// HasToken reports whether tok carries a usable progress token.
func HasToken(tok Token) bool {
	return len(tok) > 0 && string(tok) != "null"
}

// Transport delivers partial results to the client.
type Transport interface {
	NotifyPartialResult(ctx context.Context, token Token, value json.RawMessage) error
}

// Serializer encodes a batch of partial results.
type Serializer[R any] func(batch []R) (json.RawMessage, error)

// JSON serializes a batch as a JSON array.
func JSON[R any]() Serializer[R] {
	return func(batch []R) (json.RawMessage, error) {
		return json.Marshal(batch)
	}
}

// Collect runs every provider concurrently and returns all results once the
// last provider finishes. No providers means no work and an empty result.
func Collect[P, R any](ctx context.Context, providers []P, produce func(P) Seq[R]) ([]R, error) {
	return merge(ctx, providers, produce, nil)
}

// StreamOrRespond behaves like Collect, and when token is present also sends
// every batch of newly arrived results through tr as a partial result. The
// full list is returned either way.
func StreamOrRespond[P, R any](
	ctx context.Context,
	token Token,
	tr Transport,
	ser Serializer[R],
	providers []P,
	produce func(P) Seq[R],
) ([]R, error) {
	if !HasToken(token) || tr == nil {
		return merge(ctx, providers, produce, nil)
	}
	if ser == nil {
		ser = JSON[R]()
	}
	return merge(ctx, providers, produce, func(batch []R) error {
		value, err := ser(batch)
		if err != nil {
			return fmt.Errorf("serialize partial result: %w", err)
		}
		return tr.NotifyPartialResult(ctx, token, value)
	})
}

func merge[P, R any](ctx context.Context, providers []P, produce func(P) Seq[R], onBatch func([]R) error) ([]R, error) {
	if len(providers) == 0 {
		return []R{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	items := make(chan R, len(providers))
	for i, p := range providers {
		g.Go(func() error {
			return runProvider(gctx, i, p, produce, items)
		})
	}
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(items)
	}()

	out := make([]R, 0)
	var notifyErr error
	for item := range items {
		batch := append(make([]R, 0, 1+len(items)), item)
	drain:
		for {
			select {
			case more, ok := <-items:
				if !ok {
					break drain
				}
				batch = append(batch, more)
			default:
				break drain
			}
		}
		out = append(out, batch...)
		if onBatch != nil && notifyErr == nil {
			if err := onBatch(batch); err != nil {
				notifyErr = err
				cancel()
			}
		}
	}
	err := <-done

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if notifyErr != nil {
		return nil, notifyErr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func runProvider[P, R any](ctx context.Context, index int, p P, produce func(P) Seq[R], items chan<- R) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProviderError{Index: index, Provider: providerName(p), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	seq := produce(p)
	if seq == nil {
		return nil
	}
	err = seq(ctx, func(item R) error {
		select {
		case items <- item:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err == nil {
		return nil
	}
	// A sibling failed or the caller gave up; that is not this provider's fault.
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	return &ProviderError{Index: index, Provider: providerName(p), Err: err}
}

// Named is implemented by providers that can identify themselves in errors.
type Named interface {
	Name() string
}

func providerName(p any) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}
