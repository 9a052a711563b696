package aggregate

import "context"

// Seq is an asynchronous sequence. It pushes items to yield until it is
// exhausted, yield returns an error, or ctx is cancelled. A Seq may block
// between items.
type Seq[R any] func(ctx context.Context, yield func(R) error) error

// Empty yields nothing.
func Empty[R any]() Seq[R] {
	return func(context.Context, func(R) error) error { return nil }
}

// Slice yields the items in order.
func Slice[R any](items []R) Seq[R] {
	return func(ctx context.Context, yield func(R) error) error {
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := yield(item); err != nil {
				return err
			}
		}
		return nil
	}
}

// Single yields one item.
func Single[R any](item R) Seq[R] {
	return Slice([]R{item})
}

// Func runs a blocking call once and yields its results.
func Func[R any](fn func(ctx context.Context) ([]R, error)) Seq[R] {
	return func(ctx context.Context, yield func(R) error) error {
		items, err := fn(ctx)
		if err != nil {
			return err
		}
		return Slice(items)(ctx, yield)
	}
}

// Map converts every item of s with f. An error from f ends the sequence.
func Map[R, S any](s Seq[R], f func(R) (S, error)) Seq[S] {
	return func(ctx context.Context, yield func(S) error) error {
		return s(ctx, func(item R) error {
			out, err := f(item)
			if err != nil {
				return err
			}
			return yield(out)
		})
	}
}
