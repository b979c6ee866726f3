package live

import (
	"context"
)

// Feed is a manually driven Subscription source. Values pushed with Send
// are delivered in order; Fail delivers a terminal error.
type Feed[T any] struct {
	in  chan Update[T]
	sub *Subscription[T]
}

func NewFeed[T any](ctx context.Context) *Feed[T] {
	f := &Feed[T]{in: make(chan Update[T])}
	f.sub = Start(ctx, func(ctx context.Context, emit func(Update[T]) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-f.in:
				if !emit(u) {
					return
				}
			}
		}
	})
	return f
}

func (f *Feed[T]) Subscription() *Subscription[T] {
	return f.sub
}

// Send hands v to the producer. It returns false when the subscription has
// already ended.
func (f *Feed[T]) Send(v T) bool {
	return f.push(Update[T]{Value: v})
}

func (f *Feed[T]) Fail(err error) bool {
	return f.push(Update[T]{Err: err})
}

func (f *Feed[T]) push(u Update[T]) bool {
	select {
	case f.in <- u:
		return true
	case <-f.sub.Done():
		return false
	}
}
