// Package live turns store queries into push-based feeds that re-deliver
// the full result set whenever the underlying collection changes.
package live

import (
	"context"
	"sync"
)

// Update is one delivery on a Subscription: either a value or a terminal
// error.
type Update[T any] struct {
	Value T
	Err   error
}

// Subscription is a cancellable feed of updates. After an error update the
// feed closes. Cancel is idempotent, safe from any goroutine and returns
// only once the producer has stopped, so nothing is delivered afterwards.
type Subscription[T any] struct {
	updates chan Update[T]
	done    chan struct{}
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

// Start runs produce on its own goroutine. emit blocks until the consumer
// receives the update and reports false once the subscription is cancelled
// or an error has been delivered; produce should return at that point.
func Start[T any](parent context.Context, produce func(ctx context.Context, emit func(Update[T]) bool)) *Subscription[T] {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription[T]{
		updates: make(chan Update[T]),
		done:    make(chan struct{}),
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go func() {
		defer close(s.stopped)
		defer close(s.updates)
		defer s.finish()

		terminal := false
		emit := func(u Update[T]) bool {
			if terminal {
				return false
			}
			select {
			case <-ctx.Done():
				return false
			default:
			}
			select {
			case s.updates <- u:
				if u.Err != nil {
					terminal = true
					return false
				}
				return true
			case <-ctx.Done():
				return false
			}
		}
		produce(ctx, emit)
	}()
	return s
}

func (s *Subscription[T]) finish() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
	})
}

// Updates returns the delivery channel. It is closed when the producer
// stops.
func (s *Subscription[T]) Updates() <-chan Update[T] {
	return s.updates
}

// Done is closed once the subscription has been cancelled or has ended.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription[T]) Cancel() {
	if s == nil {
		return
	}
	s.finish()
	<-s.stopped
}
