package screen

import "sync"

// State holds the current snapshot of one screen. Snapshots are replaced
// wholesale; callers must not mutate a value after handing it over.
// Once closed, every further update is discarded.
type State[S any] struct {
	mu       sync.Mutex
	cur      S
	closed   bool
	watchers map[int]chan S
	nextID   int
}

func NewState[S any](initial S) *State[S] {
	return &State[S]{cur: initial, watchers: make(map[int]chan S)}
}

func (s *State[S]) Get() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Update replaces the snapshot with fn(current). It reports false when the
// state is already closed.
func (s *State[S]) Update(fn func(S) S) bool {
	return s.Modify(func(cur S) (S, bool) { return fn(cur), true })
}

// Modify is a conditional Update: the new snapshot is applied only when fn
// returns true.
func (s *State[S]) Modify(fn func(S) (S, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	next, ok := fn(s.cur)
	if !ok {
		return false
	}
	s.cur = next
	for _, ch := range s.watchers {
		offerLatest(ch, next)
	}
	return true
}

// Watch returns a channel that always holds the most recent snapshot not
// yet received. Intermediate snapshots may be skipped by slow readers.
// The channel is closed by stop or when the state closes.
func (s *State[S]) Watch() (<-chan S, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan S, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- s.cur
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

func (s *State[S]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
}

func (s *State[S]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func offerLatest[S any](ch chan S, v S) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
