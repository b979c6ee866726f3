package screen

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"edusync/internal/feedback"
	"edusync/pkg/account"
	"edusync/pkg/domain"
	"edusync/pkg/live"
)

const waitTimeout = 2 * time.Second

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	taskFeeds     chan *live.Feed[[]domain.Task]
	eventFeeds    chan *live.Feed[[]domain.Event]
	documentFeeds chan *live.Feed[[]domain.Document]
	groupFeeds    chan *live.Feed[[]domain.Group]
	myGroupFeeds  chan *live.Feed[[]domain.Group]

	joinGate chan struct{}
	taskGate chan struct{}
	err      error
	panicOn  string

	tasks    []domain.Task
	events   []domain.Event
	groups   []domain.Group
	members  map[string][]string
	profiles map[string]domain.UserProfile
	uploads  []domain.Document
	updated  []domain.Task
	deleted  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:         make(map[string]int),
		taskFeeds:     make(chan *live.Feed[[]domain.Task], 8),
		eventFeeds:    make(chan *live.Feed[[]domain.Event], 8),
		documentFeeds: make(chan *live.Feed[[]domain.Document], 8),
		groupFeeds:    make(chan *live.Feed[[]domain.Group], 8),
		myGroupFeeds:  make(chan *live.Feed[[]domain.Group], 8),
		members:       make(map[string][]string),
		profiles:      make(map[string]domain.UserProfile),
	}
}

func (f *fakeBackend) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.panicOn == op {
		panic(op + " exploded")
	}
	return f.err
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) WatchTasks(ctx context.Context, _ string) *live.Subscription[[]domain.Task] {
	feed := live.NewFeed[[]domain.Task](ctx)
	f.taskFeeds <- feed
	return feed.Subscription()
}

func (f *fakeBackend) WatchTodayEvents(ctx context.Context, _ string) *live.Subscription[[]domain.Event] {
	feed := live.NewFeed[[]domain.Event](ctx)
	f.eventFeeds <- feed
	return feed.Subscription()
}

func (f *fakeBackend) WatchAllGroups(ctx context.Context) *live.Subscription[[]domain.Group] {
	feed := live.NewFeed[[]domain.Group](ctx)
	f.groupFeeds <- feed
	return feed.Subscription()
}

func (f *fakeBackend) WatchUserGroups(ctx context.Context, _ string) *live.Subscription[[]domain.Group] {
	feed := live.NewFeed[[]domain.Group](ctx)
	f.myGroupFeeds <- feed
	return feed.Subscription()
}

func (f *fakeBackend) WatchUserDocuments(ctx context.Context, _ string) *live.Subscription[[]domain.Document] {
	feed := live.NewFeed[[]domain.Document](ctx)
	f.documentFeeds <- feed
	return feed.Subscription()
}

func (f *fakeBackend) AddTask(_ context.Context, t domain.Task) (string, error) {
	if err := f.record("AddTask"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
	return "t1", nil
}

func (f *fakeBackend) UpdateTask(ctx context.Context, t domain.Task) error {
	if err := f.record("UpdateTask"); err != nil {
		return err
	}
	if f.taskGate != nil {
		select {
		case <-f.taskGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, t)
	return nil
}

func (f *fakeBackend) DeleteTask(_ context.Context, id, userID string) error {
	if err := f.record("DeleteTask"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID+"/"+id)
	return nil
}

func (f *fakeBackend) AddEvent(_ context.Context, e domain.Event) (string, error) {
	if err := f.record("AddEvent"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return "e1", nil
}

func (f *fakeBackend) CreateGroup(_ context.Context, g domain.Group) (string, error) {
	if err := f.record("CreateGroup"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, g)
	return "g1", nil
}

func (f *fakeBackend) JoinGroup(ctx context.Context, groupID, userID string) error {
	if err := f.record("JoinGroup"); err != nil {
		return err
	}
	if f.joinGate != nil {
		select {
		case <-f.joinGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members[groupID] {
		if m == userID {
			return nil
		}
	}
	f.members[groupID] = append(f.members[groupID], userID)
	return nil
}

func (f *fakeBackend) UploadDocument(_ context.Context, doc domain.Document, body io.Reader, _ int64) (string, error) {
	if err := f.record("UploadDocument"); err != nil {
		return "", err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, doc)
	return "d1", nil
}

func (f *fakeBackend) DeleteDocument(context.Context, string, string) error {
	return f.record("DeleteDocument")
}

func (f *fakeBackend) GetUserProfile(_ context.Context, userID string) (domain.UserProfile, bool, error) {
	if err := f.record("GetUserProfile"); err != nil {
		return domain.UserProfile{}, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	return p, ok, nil
}

func (f *fakeBackend) InitUserProfile(ctx context.Context, email, username, userID string) error {
	return f.UpdateUserProfile(ctx, userID, domain.UserProfile{Email: email, Username: username})
}

func (f *fakeBackend) UpdateUserProfile(_ context.Context, userID string, p domain.UserProfile) error {
	if err := f.record("UpdateUserProfile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[userID] = p
	return nil
}

type fakeAccounts struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *fakeAccounts) Authenticate(_ context.Context, email, _ string) (domain.User, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return domain.User{}, "", a.err
	}
	return domain.User{ID: "u-" + email, Email: email}, "token-1", nil
}

func (a *fakeAccounts) CreateAccount(ctx context.Context, email, password string) (domain.User, string, error) {
	return a.Authenticate(ctx, email, password)
}

func (a *fakeAccounts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) ReportNonFatal(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

type harness struct {
	backend  *fakeBackend
	accounts *fakeAccounts
	reporter *recordingReporter
	sink     *feedback.ChannelSink
	deps     Deps
}

func newHarness(userID string) *harness {
	h := &harness{
		backend:  newFakeBackend(),
		accounts: &fakeAccounts{},
		reporter: &recordingReporter{},
		sink:     feedback.NewChannelSink(4),
	}
	h.deps = Deps{
		Backend:  h.backend,
		Accounts: h.accounts,
		Session:  account.NewSession(userID, ""),
		Reporter: h.reporter,
		Sink:     h.sink,
	}
	return h
}

var errBackend = errors.New("permission denied")

func waitFor[S any](t *testing.T, st *State[S], pred func(S) bool) S {
	t.Helper()
	ch, stop := st.Watch()
	defer stop()
	timer := time.NewTimer(waitTimeout)
	defer timer.Stop()
	var last S
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				t.Fatalf("state closed while waiting; last %+v", last)
			}
			last = s
			if pred(s) {
				return s
			}
		case <-timer.C:
			t.Fatalf("timed out waiting for state; last %+v", last)
		}
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for subscription")
	}
	var zero T
	return zero
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in %s", waitTimeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
