package live

import (
	"context"
	"errors"
	"fmt"
)

// ErrFeedClosed is delivered when the change notifications backing a
// feed stop unexpectedly.
var ErrFeedClosed = errors.New("live feed closed")

// Notifier delivers coalesced change signals per topic.
type Notifier interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func(), error)
}

// Watch emits load's result once immediately and again after every change
// signal on topic. Signals arriving while a load is running collapse into
// a single reload. A load error is delivered once and ends the feed.
func Watch[T any](ctx context.Context, n Notifier, topic string, load func(context.Context) (T, error)) *Subscription[T] {
	return Start(ctx, func(ctx context.Context, emit func(Update[T]) bool) {
		changes, stop, err := n.Subscribe(ctx, topic)
		if err != nil {
			emit(Update[T]{Err: fmt.Errorf("subscribe %s: %w", topic, err)})
			return
		}
		defer stop()

		for {
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				emit(Update[T]{Err: err})
				return
			}
			if !emit(Update[T]{Value: v}) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					if ctx.Err() == nil {
						emit(Update[T]{Err: ErrFeedClosed})
					}
					return
				}
			}
		}
	})
}
