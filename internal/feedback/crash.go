// Package feedback carries failures out of the screens: non-fatal crash
// reports for operators and transient notifications for the user.
package feedback

import (
	"context"
	"log/slog"
	"time"

	"edusync/internal/util"
)

// CrashReporter records failures that were handled but should not have
// happened.
type CrashReporter interface {
	ReportNonFatal(ctx context.Context, err error)
}

type scopeKey struct{}

type scope struct {
	screen string
	userID string
}

// WithScope attaches the screen and user a report originates from.
func WithScope(ctx context.Context, screen, userID string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{screen: screen, userID: userID})
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// Report is the serialized form of a non-fatal failure.
type Report struct {
	Time      time.Time `json:"time"`
	Screen    string    `json:"screen,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Error     string    `json:"error"`
}

func newReport(ctx context.Context, err error, now time.Time) Report {
	s := scopeFrom(ctx)
	return Report{
		Time:      now.UTC(),
		Screen:    s.screen,
		UserID:    s.userID,
		RequestID: util.RequestIDFromContext(ctx),
		Error:     err.Error(),
	}
}

// LogReporter writes reports to slog at error level.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) ReportNonFatal(ctx context.Context, err error) {
	if err == nil {
		return
	}
	rep := newReport(ctx, err, time.Now())
	r.logger.ErrorContext(ctx, "non_fatal",
		"screen", rep.Screen,
		"user_id", rep.UserID,
		"request_id", rep.RequestID,
		"err", err,
	)
}
