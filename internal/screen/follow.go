package screen

import (
	"context"
	"sync"

	"edusync/pkg/live"
)

// follow delivers every value of sub to onValue until the feed ends. The
// first error goes to onErr and stops the loop. follow returns once sub
// has been released.
func follow[T any](ctx context.Context, sub *live.Subscription[T], onValue func(T), onErr func(error)) {
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-sub.Updates():
			if !ok {
				return
			}
			if u.Err != nil {
				onErr(u.Err)
				return
			}
			onValue(u.Value)
		}
	}
}

// begin applies fn as the first step of an intent. It maps a refused
// transition to ErrBusy, or ErrClosed after teardown.
func begin[S any](st *State[S], fn func(S) (S, bool)) error {
	if st.Modify(fn) {
		return nil
	}
	if st.Closed() {
		return ErrClosed
	}
	return ErrBusy
}

// keyGuard admits one in-flight action per key.
type keyGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (g *keyGuard) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys == nil {
		g.keys = make(map[string]struct{})
	}
	if _, busy := g.keys[key]; busy {
		return false
	}
	g.keys[key] = struct{}{}
	return true
}

func (g *keyGuard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
}
