package screen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"edusync/internal/feedback"
)

// base owns a screen's lifetime. Aggregation runs in generations: each
// restart stops the previous generation before starting the next, and
// Close stops the current one before returning.
type base struct {
	name     string
	userID   string
	ctx      context.Context
	cancel   context.CancelFunc
	reporter feedback.CrashReporter
	sink     feedback.Notifier
	logger   *slog.Logger

	mu        sync.Mutex
	closed    bool
	onClose   []func()
	genCancel context.CancelFunc
	genDone   chan struct{}
}

func newBase(parent context.Context, name, userID string, d Deps) *base {
	ctx, cancel := context.WithCancel(feedback.WithScope(parent, name, userID))
	return &base{
		name:     name,
		userID:   userID,
		ctx:      ctx,
		cancel:   cancel,
		reporter: d.Reporter,
		sink:     d.Sink,
		logger:   d.Logger.With("screen", name),
	}
}

// closeWith registers fn to run when the screen closes.
func (b *base) closeWith(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onClose = append(b.onClose, fn)
}

// restart runs loop as the new aggregation generation.
func (b *base) restart(loop func(ctx context.Context)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.stopLocked()

	ctx, cancel := context.WithCancel(b.ctx)
	done := make(chan struct{})
	b.genCancel, b.genDone = cancel, done
	go func() {
		defer close(done)
		defer b.recoverPanic("aggregate")
		loop(ctx)
	}()
	return nil
}

func (b *base) stopLocked() {
	if b.genCancel == nil {
		return
	}
	b.genCancel()
	<-b.genDone
	b.genCancel, b.genDone = nil, nil
}

// Close tears the screen down. When it returns every subscription has been
// released and the state accepts no further updates.
func (b *base) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cancel()
	for _, fn := range b.onClose {
		fn()
	}
	b.stopLocked()
}

func (b *base) alive() error {
	if b.ctx.Err() != nil {
		return ErrClosed
	}
	return nil
}

// launch runs fn on its own goroutine. A returned error or a panic is
// reported and surfaced as a transient notification, unless the screen
// has been closed in the meantime.
func (b *base) launch(op string, fn func(ctx context.Context) error) {
	go func() {
		defer b.recoverPanic(op)
		if err := fn(b.ctx); err != nil && b.ctx.Err() == nil {
			b.uncaught(op, err)
		}
	}()
}

func (b *base) recoverPanic(op string) {
	if r := recover(); r != nil {
		b.uncaught(op, fmt.Errorf("panic in %s: %v", op, r))
	}
}

func (b *base) uncaught(op string, err error) {
	b.logger.Warn("action failed", "op", op, "err", err)
	b.report(err)
	b.sink.Notify(feedback.Message{Text: err.Error()})
}

func (b *base) report(err error) {
	b.reporter.ReportNonFatal(b.ctx, err)
}
