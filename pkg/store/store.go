package store

import (
	"context"
	"errors"
	"time"

	"edusync/pkg/domain"
)

// ErrNotFound is returned by mutations that target a missing row.
var ErrNotFound = errors.New("not found")

// Store defines persistence for accounts, profiles and the four content
// collections.
type Store interface {
	// users
	SaveUser(ctx context.Context, u domain.User) error
	HasUserEmail(ctx context.Context, email string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)

	// profiles, keyed by user id
	SaveProfile(ctx context.Context, userID string, p domain.UserProfile) error
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, bool, error)

	// tasks
	SaveTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, id string) (domain.Task, bool, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasksByUser(ctx context.Context, userID string) ([]domain.Task, error)

	// events
	SaveEvent(ctx context.Context, e domain.Event) error
	ListEventsByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]domain.Event, error)

	// groups
	SaveGroup(ctx context.Context, g domain.Group) error
	GetGroup(ctx context.Context, id string) (domain.Group, bool, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
	ListGroupsByMember(ctx context.Context, userID string) ([]domain.Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error

	// documents
	SaveDocument(ctx context.Context, d domain.Document) error
	GetDocument(ctx context.Context, id string) (domain.Document, bool, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocumentsByOwner(ctx context.Context, userID string) ([]domain.Document, error)
}

// SessionStore issues and resolves session tokens.
type SessionStore interface {
	NewSession(ctx context.Context, userID string) (string, error)
	GetUserIDByToken(ctx context.Context, token string) (string, bool, error)
	DeleteSession(ctx context.Context, token string) error
}
