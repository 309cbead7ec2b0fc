package aggregate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"breezerelay/internal/apperr"
)

// Result holds the outcome of a keyed batch. Both lists keep the order in
// which keys were requested.
type Result[T any] struct {
	Succeeded []T
	Failed    []apperr.Failure
}

// Empty reports whether nothing succeeded.
func (r Result[T]) Empty() bool { return len(r.Succeeded) == 0 }

// Complete reports whether no key failed.
func (r Result[T]) Complete() bool { return len(r.Failed) == 0 }

// FailedKeys lists the keys that failed.
func (r Result[T]) FailedKeys() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Key)
	}
	return out
}

// Collect calls fn once per key and sorts each outcome into Succeeded or
// Failed. A failing key never stops the others. At most limit calls run at
// once; limit <= 1 runs them one after another.
func Collect[T any](ctx context.Context, keys []string, limit int, fn func(ctx context.Context, key string) (T, error)) Result[T] {
	type slot struct {
		v   T
		err error
	}
	slots := make([]slot, len(keys))

	if limit <= 1 {
		for i, k := range keys {
			v, err := fn(ctx, k)
			slots[i] = slot{v, err}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(limit)
		for i, k := range keys {
			g.Go(func() error {
				v, err := fn(ctx, k)
				slots[i] = slot{v, err}
				return nil
			})
		}
		_ = g.Wait()
	}

	res := Result[T]{Succeeded: make([]T, 0, len(keys))}
	for i, s := range slots {
		if s.err != nil {
			res.Failed = append(res.Failed, apperr.Failure{Key: keys[i], Reason: s.err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, s.v)
	}
	return res
}
