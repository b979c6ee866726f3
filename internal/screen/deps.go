// Package screen implements the per-screen view state: live sources are
// folded into one snapshot, and intents run validation followed by a single
// backend call whose outcome lands in the same snapshot.
package screen

import (
	"context"
	"io"
	"log/slog"

	"edusync/internal/feedback"
	"edusync/pkg/account"
	"edusync/pkg/domain"
	"edusync/pkg/live"
)

// Backend is the subset of the service facade used by screens.
type Backend interface {
	WatchTasks(ctx context.Context, userID string) *live.Subscription[[]domain.Task]
	WatchTodayEvents(ctx context.Context, userID string) *live.Subscription[[]domain.Event]
	WatchAllGroups(ctx context.Context) *live.Subscription[[]domain.Group]
	WatchUserGroups(ctx context.Context, userID string) *live.Subscription[[]domain.Group]
	WatchUserDocuments(ctx context.Context, userID string) *live.Subscription[[]domain.Document]

	AddTask(ctx context.Context, t domain.Task) (string, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id, userID string) error
	AddEvent(ctx context.Context, e domain.Event) (string, error)
	CreateGroup(ctx context.Context, g domain.Group) (string, error)
	JoinGroup(ctx context.Context, groupID, userID string) error
	UploadDocument(ctx context.Context, doc domain.Document, body io.Reader, size int64) (string, error)
	DeleteDocument(ctx context.Context, id, userID string) error

	GetUserProfile(ctx context.Context, userID string) (domain.UserProfile, bool, error)
	InitUserProfile(ctx context.Context, email, username, userID string) error
	UpdateUserProfile(ctx context.Context, userID string, p domain.UserProfile) error
}

// Accounts is the authentication collaborator.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (domain.User, string, error)
	CreateAccount(ctx context.Context, email, password string) (domain.User, string, error)
}

// Deps are shared by every screen built from them. Reporter and Sink
// default to slog-backed implementations.
type Deps struct {
	Backend  Backend
	Accounts Accounts
	Session  *account.Session
	Reporter feedback.CrashReporter
	Sink     feedback.Notifier
	Logger   *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Reporter == nil {
		d.Reporter = feedback.NewLogReporter(d.Logger)
	}
	if d.Sink == nil {
		d.Sink = feedback.NewLogSink(d.Logger)
	}
	if d.Session == nil {
		d.Session = account.NewSession("", "")
	}
	return d
}
