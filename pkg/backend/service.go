// Package backend is the service facade every screen talks to. It owns
// persistence, document bodies and change notifications, and exposes live
// reads that re-deliver full result sets whenever a collection changes.
package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"edusync/internal/util"
	"edusync/pkg/domain"
	"edusync/pkg/live"
	"edusync/pkg/storage"
	"edusync/pkg/store"
)

const (
	topicTasks     = "tasks"
	topicEvents    = "events"
	topicGroups    = "study_groups"
	topicDocuments = "documents"
	topicProfiles  = "users"

	defaultURLExpiry = 7 * 24 * time.Hour
)

// Config wires the facade to its collaborators.
type Config struct {
	Store    store.Store
	Objects  storage.ObjectStore
	Notifier live.Notifier

	// CallTimeout bounds every store call. Zero waits indefinitely.
	CallTimeout time.Duration
	// URLExpiry is the lifetime of document download links.
	URLExpiry time.Duration
	// Location decides where "today" starts for event feeds.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	store    store.Store
	objects  storage.ObjectStore
	notifier live.Notifier

	timeout   time.Duration
	urlExpiry time.Duration
	loc       *time.Location
	now       func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("backend store required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("backend object store required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = live.NewBroker()
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = defaultURLExpiry
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:     cfg.Store,
		objects:   cfg.Objects,
		notifier:  cfg.Notifier,
		timeout:   cfg.CallTimeout,
		urlExpiry: cfg.URLExpiry,
		loc:       cfg.Location,
		now:       cfg.Now,
	}, nil
}

func (s *Service) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func userTopic(collection, userID string) string {
	return collection + ":" + userID
}

// publish signals a change. The write has already committed, so a failed
// signal is logged rather than returned.
func (s *Service) publish(ctx context.Context, topic string) {
	if err := s.notifier.Publish(context.WithoutCancel(ctx), topic); err != nil {
		util.LoggerFromContext(ctx).Warn("change notification failed", "topic", topic, "err", err)
	}
}

func watch[T any](ctx context.Context, s *Service, topic string, load func(context.Context) (T, error)) *live.Subscription[T] {
	return live.Watch(ctx, s.notifier, topic, func(ctx context.Context) (T, error) {
		ctx, cancel := s.call(ctx)
		defer cancel()
		return load(ctx)
	})
}

// WatchTasks streams all tasks owned by userID.
func (s *Service) WatchTasks(ctx context.Context, userID string) *live.Subscription[[]domain.Task] {
	return watch(ctx, s, userTopic(topicTasks, userID), func(ctx context.Context) ([]domain.Task, error) {
		return s.store.ListTasksByUser(ctx, userID)
	})
}

// WatchTodayEvents streams the events userID created that start today,
// ordered by start time. The day boundary is evaluated on every reload.
func (s *Service) WatchTodayEvents(ctx context.Context, userID string) *live.Subscription[[]domain.Event] {
	return watch(ctx, s, userTopic(topicEvents, userID), func(ctx context.Context) ([]domain.Event, error) {
		now := s.now().In(s.loc)
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		return s.store.ListEventsByUserBetween(ctx, userID, start, start.AddDate(0, 0, 1))
	})
}

func (s *Service) WatchAllGroups(ctx context.Context) *live.Subscription[[]domain.Group] {
	return watch(ctx, s, topicGroups, s.store.ListGroups)
}

// WatchUserGroups streams the groups userID is a member of.
func (s *Service) WatchUserGroups(ctx context.Context, userID string) *live.Subscription[[]domain.Group] {
	return watch(ctx, s, topicGroups, func(ctx context.Context) ([]domain.Group, error) {
		return s.store.ListGroupsByMember(ctx, userID)
	})
}

// WatchUserDocuments streams userID's documents, newest upload first.
func (s *Service) WatchUserDocuments(ctx context.Context, userID string) *live.Subscription[[]domain.Document] {
	return watch(ctx, s, userTopic(topicDocuments, userID), func(ctx context.Context) ([]domain.Document, error) {
		return s.store.ListDocumentsByOwner(ctx, userID)
	})
}

// AddTask stores a new task and returns its id. Any id or creation time
// on t is replaced.
func (s *Service) AddTask(ctx context.Context, t domain.Task) (string, error) {
	if strings.TrimSpace(t.UserID) == "" {
		return "", ErrMissingOwner
	}
	t.ID = util.NewID()
	t.CreatedAt = s.now().UnixMilli()
	t.Priority = domain.ParsePriority(string(t.Priority))

	callCtx, cancel := s.call(ctx)
	defer cancel()
	if err := s.store.SaveTask(callCtx, t); err != nil {
		return "", err
	}
	s.publish(ctx, userTopic(topicTasks, t.UserID))
	return t.ID, nil
}

// UpdateTask replaces the stored task with t. The task must already belong
// to t.UserID; tasks of other users report ErrNotFound.
func (s *Service) UpdateTask(ctx context.Context, t domain.Task) error {
	if t.ID == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingOwner
	}
	t.Priority = domain.ParsePriority(string(t.Priority))

	callCtx, cancel := s.call(ctx)
	defer cancel()
	prev, found, err := s.store.GetTask(callCtx, t.ID)
	if err != nil {
		return err
	}
	if !found || prev.UserID != t.UserID {
		return ErrNotFound
	}
	t.CreatedAt = prev.CreatedAt
	if err := s.store.SaveTask(callCtx, t); err != nil {
		return err
	}
	s.publish(ctx, userTopic(topicTasks, t.UserID))
	return nil
}

// DeleteTask removes one of userID's tasks.
func (s *Service) DeleteTask(ctx context.Context, id, userID string) error {
	callCtx, cancel := s.call(ctx)
	defer cancel()
	t, found, err := s.store.GetTask(callCtx, id)
	if err != nil {
		return err
	}
	if !found || t.UserID != userID {
		return ErrNotFound
	}
	if err := s.store.DeleteTask(callCtx, id); err != nil {
		return err
	}
	s.publish(ctx, userTopic(topicTasks, t.UserID))
	return nil
}

// AddEvent stores a new event and returns its id.
func (s *Service) AddEvent(ctx context.Context, e domain.Event) (string, error) {
	if strings.TrimSpace(e.UserID) == "" {
		return "", ErrMissingOwner
	}
	now := s.now().UTC()
	e.ID = util.NewID()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Type == "" {
		e.Type = domain.EventOther
	}
	if e.Status == "" {
		e.Status = domain.EventUpcoming
	}
	e.Priority = domain.ParsePriority(string(e.Priority))

	callCtx, cancel := s.call(ctx)
	defer cancel()
	if err := s.store.SaveEvent(callCtx, e); err != nil {
		return "", err
	}
	s.publish(ctx, userTopic(topicEvents, e.UserID))
	return e.ID, nil
}

// CreateGroup stores a new group. The creator is always a member.
func (s *Service) CreateGroup(ctx context.Context, g domain.Group) (string, error) {
	if strings.TrimSpace(g.CreatedBy) == "" {
		return "", ErrMissingOwner
	}
	g.ID = util.NewID()
	g.CreatedAt = s.now().UnixMilli()
	g.Members = []string{g.CreatedBy}

	callCtx, cancel := s.call(ctx)
	defer cancel()
	if err := s.store.SaveGroup(callCtx, g); err != nil {
		return "", err
	}
	s.publish(ctx, topicGroups)
	return g.ID, nil
}

// JoinGroup adds userID to the group's members. Joining twice is a no-op.
func (s *Service) JoinGroup(ctx context.Context, groupID, userID string) error {
	if groupID == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(userID) == "" {
		return ErrMissingOwner
	}
	callCtx, cancel := s.call(ctx)
	defer cancel()
	if err := s.store.AddGroupMember(callCtx, groupID, userID); err != nil {
		return err
	}
	s.publish(ctx, topicGroups)
	return nil
}

// UploadDocument stores body in the object store and the metadata in the
// store. FileType, FileSize, FileURL and the timestamps are filled in here.
func (s *Service) UploadDocument(ctx context.Context, doc domain.Document, body io.Reader, size int64) (string, error) {
	if strings.TrimSpace(doc.UserID) == "" {
		return "", ErrMissingOwner
	}
	name := filepath.Base(strings.TrimSpace(doc.FileName))
	if name == "" || name == "." || name == "/" {
		return "", ErrMissingFilename
	}
	if size > domain.MaxFileSize {
		return "", ErrFileTooLarge
	}
	now := s.now().UTC()
	doc.ID = util.NewID()
	doc.FileName = name
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if doc.MimeType == "" {
		doc.MimeType = "application/octet-stream"
	}
	doc.FileType = domain.FileTypeFromMIME(doc.MimeType)
	doc.FileSize = size
	if doc.Category == "" {
		doc.Category = domain.CategoryOther
	}
	if doc.Visibility == "" {
		doc.Visibility = domain.VisibilityPrivate
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	doc.UploadDate = now
	doc.LastModified = now
	doc.StorageKey = storage.DocumentKey(doc.UserID, doc.ID, name)

	callCtx, cancel := s.call(ctx)
	defer cancel()
	limited := io.LimitReader(body, domain.MaxFileSize+1)
	if err := s.objects.Put(callCtx, doc.StorageKey, limited, size, doc.MimeType); err != nil {
		return "", err
	}
	url, err := s.objects.PresignGet(callCtx, doc.StorageKey, s.urlExpiry)
	if err != nil {
		s.discardObject(ctx, doc.StorageKey)
		return "", err
	}
	doc.FileURL = url
	if err := s.store.SaveDocument(callCtx, doc); err != nil {
		s.discardObject(ctx, doc.StorageKey)
		return "", err
	}
	s.publish(ctx, userTopic(topicDocuments, doc.UserID))
	return doc.ID, nil
}

func (s *Service) discardObject(ctx context.Context, key string) {
	if err := s.objects.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("failed to remove orphaned document body", "key", key, "err", err)
	}
}

// DeleteDocument removes one of userID's documents and its stored body.
func (s *Service) DeleteDocument(ctx context.Context, id, userID string) error {
	callCtx, cancel := s.call(ctx)
	defer cancel()
	doc, found, err := s.store.GetDocument(callCtx, id)
	if err != nil {
		return err
	}
	if !found || !doc.IsOwnedBy(userID) {
		return ErrNotFound
	}
	if err := s.store.DeleteDocument(callCtx, id); err != nil {
		return err
	}
	if doc.StorageKey != "" {
		s.discardObject(ctx, doc.StorageKey)
	}
	s.publish(ctx, userTopic(topicDocuments, doc.UserID))
	return nil
}

// GetUserProfile is a one-shot read; found is false for unknown users.
func (s *Service) GetUserProfile(ctx context.Context, userID string) (domain.UserProfile, bool, error) {
	callCtx, cancel := s.call(ctx)
	defer cancel()
	p, found, err := s.store.GetProfile(callCtx, userID)
	if err != nil {
		return domain.UserProfile{}, false, err
	}
	return p, found, nil
}

// InitUserProfile writes the profile created at sign-up.
func (s *Service) InitUserProfile(ctx context.Context, email, username, userID string) error {
	return s.UpdateUserProfile(ctx, userID, domain.UserProfile{Email: email, Username: username})
}

func (s *Service) UpdateUserProfile(ctx context.Context, userID string, p domain.UserProfile) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingOwner
	}
	callCtx, cancel := s.call(ctx)
	defer cancel()
	if err := s.store.SaveProfile(callCtx, userID, p); err != nil {
		return err
	}
	s.publish(ctx, userTopic(topicProfiles, userID))
	return nil
}
