package screen

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"edusync/pkg/domain"
	"edusync/pkg/live"
)

type homeFeeds struct {
	tasks  *live.Feed[[]domain.Task]
	events *live.Feed[[]domain.Event]
	docs   *live.Feed[[]domain.Document]
}

func openHome(t *testing.T, h *harness) (*Home, homeFeeds) {
	t.Helper()
	home := NewHome(context.Background(), h.deps)
	t.Cleanup(home.Close)
	return home, homeFeeds{
		tasks:  receive(t, h.backend.taskFeeds),
		events: receive(t, h.backend.eventFeeds),
		docs:   receive(t, h.backend.documentFeeds),
	}
}

func docs(n int) []domain.Document {
	out := make([]domain.Document, n)
	for i := range out {
		out[i] = domain.Document{ID: fmt.Sprintf("d%d", i), UserID: "u1"}
	}
	return out
}

func TestHomeStartsLoading(t *testing.T) {
	h := newHarness("u1")
	home, f := openHome(t, h)

	s := home.State().Get()
	if !s.IsLoading || len(s.Tasks) != 0 || s.Error != "" {
		t.Fatalf("initial state = %+v", s)
	}
	f.tasks.Send([]domain.Task{{ID: "t1"}})
	f.events.Send(nil)
	if s := home.State().Get(); !s.IsLoading {
		t.Fatalf("loading cleared before every source emitted")
	}
	f.docs.Send(docs(7))
	s = waitFor(t, home.State(), func(s HomeState) bool { return !s.IsLoading })
	if len(s.Tasks) != 1 || len(s.RecentDocuments) != recentDocumentLimit {
		t.Fatalf("combined state = %+v", s)
	}
	if s.Events == nil {
		t.Fatalf("events should be an empty list, not nil")
	}
}

func TestHomeCombinesLatestValuePerSourceInAnyOrder(t *testing.T) {
	tasksV1 := []domain.Task{{ID: "t1"}}
	tasksV2 := []domain.Task{{ID: "t1"}, {ID: "t2"}}
	eventsV1 := []domain.Event{{ID: "e1"}}
	docsV1 := docs(1)
	docsV2 := docs(2)

	type step func(homeFeeds)
	sendTasks := func(v []domain.Task) step { return func(f homeFeeds) { f.tasks.Send(v) } }
	sendEvents := func(v []domain.Event) step { return func(f homeFeeds) { f.events.Send(v) } }
	sendDocs := func(v []domain.Document) step { return func(f homeFeeds) { f.docs.Send(v) } }

	orders := map[string][]step{
		"tasks first": {sendTasks(tasksV1), sendTasks(tasksV2), sendEvents(eventsV1), sendDocs(docsV1), sendDocs(docsV2)},
		"docs first":  {sendDocs(docsV1), sendDocs(docsV2), sendEvents(eventsV1), sendTasks(tasksV1), sendTasks(tasksV2)},
		"interleaved": {sendTasks(tasksV1), sendDocs(docsV1), sendEvents(eventsV1), sendTasks(tasksV2), sendDocs(docsV2)},
		"events last": {sendDocs(docsV1), sendTasks(tasksV1), sendDocs(docsV2), sendTasks(tasksV2), sendEvents(eventsV1)},
	}
	want := HomeState{Tasks: tasksV2, Events: eventsV1, RecentDocuments: docsV2}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			h := newHarness("u1")
			home, f := openHome(t, h)
			for _, s := range order {
				s(f)
			}
			got := waitFor(t, home.State(), func(s HomeState) bool {
				return !s.IsLoading && len(s.Tasks) == 2 && len(s.RecentDocuments) == 2
			})
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("state = %+v, want %+v", got, want)
			}
		})
	}
}

func TestHomeSourceErrorHaltsCombination(t *testing.T) {
	h := newHarness("u1")
	home, f := openHome(t, h)
	f.tasks.Send([]domain.Task{{ID: "t1"}})
	f.events.Send(nil)
	f.docs.Send(nil)
	waitFor(t, home.State(), func(s HomeState) bool { return !s.IsLoading })

	f.events.Fail(errors.New("quota exceeded"))
	s := waitFor(t, home.State(), func(s HomeState) bool { return s.Error != "" })
	if s.Error != "quota exceeded" || s.IsLoading {
		t.Fatalf("state after error = %+v", s)
	}
	receive(t, f.tasks.Subscription().Done())
	receive(t, f.docs.Subscription().Done())
	if got := home.State().Get().Tasks; len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("tasks changed after halt: %+v", got)
	}
	if h.reporter.count() != 1 {
		t.Fatalf("reported %d errors, want 1", h.reporter.count())
	}

	if err := home.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	tasks := receive(t, h.backend.taskFeeds)
	events := receive(t, h.backend.eventFeeds)
	documents := receive(t, h.backend.documentFeeds)
	tasks.Send([]domain.Task{{ID: "t2"}})
	events.Send(nil)
	documents.Send(nil)
	s = waitFor(t, home.State(), func(s HomeState) bool { return !s.IsLoading && len(s.Tasks) == 1 && s.Tasks[0].ID == "t2" })
	if s.Error != "" {
		t.Fatalf("error not cleared by refresh: %q", s.Error)
	}
}

func TestHomeIgnoresEmissionsAfterClose(t *testing.T) {
	h := newHarness("u1")
	home, f := openHome(t, h)
	f.tasks.Send([]domain.Task{{ID: "t1"}})
	f.events.Send(nil)
	f.docs.Send(nil)
	before := waitFor(t, home.State(), func(s HomeState) bool { return !s.IsLoading })

	home.Close()
	if f.tasks.Send([]domain.Task{{ID: "late"}}) {
		t.Fatalf("subscription still accepting values after close")
	}
	if err := home.AddTask(domain.Task{Title: "x"}); err != ErrClosed {
		t.Fatalf("AddTask after close = %v, want ErrClosed", err)
	}
	if err := home.Refresh(); err != ErrClosed {
		t.Fatalf("Refresh after close = %v, want ErrClosed", err)
	}
	if got := home.State().Get(); !reflect.DeepEqual(got, before) {
		t.Fatalf("state mutated after close: %+v", got)
	}
}

func TestHomeActionFailureSetsError(t *testing.T) {
	h := newHarness("u1")
	h.backend.err = errBackend
	home, _ := openHome(t, h)

	if err := home.JoinStudyGroup("g1"); err != nil {
		t.Fatalf("JoinStudyGroup: %v", err)
	}
	s := waitFor(t, home.State(), func(s HomeState) bool { return s.Error != "" })
	if s.Error != errBackend.Error() {
		t.Fatalf("error = %q, want %q", s.Error, errBackend.Error())
	}
	home.ClearError()
	if home.State().Get().Error != "" {
		t.Fatalf("ClearError left %q", home.State().Get().Error)
	}
}

func TestHomeUploadsForCurrentUser(t *testing.T) {
	h := newHarness("u1")
	home, _ := openHome(t, h)

	if err := home.UploadDocument(domain.Document{FileName: "notes.pdf", UserID: "someone-else"}, strings.NewReader("pdf"), 3); err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	waitUntil(t, func() bool { return h.backend.count("UploadDocument") == 1 })
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	if len(h.backend.uploads) != 1 || h.backend.uploads[0].UserID != "u1" {
		t.Fatalf("uploads = %+v", h.backend.uploads)
	}
}

func TestLaunchPanicIsReportedAndNotified(t *testing.T) {
	h := newHarness("u1")
	h.backend.panicOn = "AddTask"
	home, _ := openHome(t, h)

	if err := home.AddTask(domain.Task{Title: "boom"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	msg := receive(t, h.sink.Messages())
	if !strings.Contains(msg.Text, "AddTask exploded") {
		t.Fatalf("notification = %q", msg.Text)
	}
	waitUntil(t, func() bool { return h.reporter.count() == 1 })
}

func loadedHome(t *testing.T, h *harness, tasks []domain.Task) *Home {
	t.Helper()
	home, f := openHome(t, h)
	f.tasks.Send(tasks)
	f.events.Send(nil)
	f.docs.Send(nil)
	waitFor(t, home.State(), func(s HomeState) bool { return !s.IsLoading && len(s.Tasks) == len(tasks) })
	return home
}

func TestHomeAddTaskBlankTitleMakesNoBackendCall(t *testing.T) {
	h := newHarness("u1")
	home := loadedHome(t, h, nil)

	for _, title := range []string{"", "   "} {
		if err := home.AddTask(domain.Task{Title: title, Description: "x"}); err != nil {
			t.Fatalf("AddTask(%q) = %v", title, err)
		}
		if got := home.State().Get().Error; got != "Title cannot be empty" {
			t.Fatalf("error = %q", got)
		}
	}
	if n := h.backend.count("AddTask"); n != 0 {
		t.Fatalf("AddTask called %d times", n)
	}
}

func TestHomeAddTaskIgnoresClientIdentity(t *testing.T) {
	h := newHarness("u1")
	home := loadedHome(t, h, nil)

	if err := home.AddTask(domain.Task{ID: "someone-elses", CreatedAt: 42, UserID: "u2", Title: "Essay draft"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	waitUntil(t, func() bool { return h.backend.count("AddTask") == 1 })
	h.backend.mu.Lock()
	defer h.backend.mu.Unlock()
	got := h.backend.tasks[0]
	if got.ID != "" || got.CreatedAt != 0 || got.UserID != "u1" || got.Title != "Essay draft" {
		t.Fatalf("task sent to backend = %+v", got)
	}
}

func TestHomeTaskIntents(t *testing.T) {
	shown := []domain.Task{
		{ID: "t1", UserID: "u1", Title: "Read chapter 3"},
		{ID: "t2", UserID: "u1", Title: "Lab report", IsCompleted: true},
		{ID: "foreign", UserID: "u2", Title: "Not mine"},
	}
	tests := []struct {
		name    string
		act     func(*Home) error
		wantErr error
		op      string
		check   func(*testing.T, *fakeBackend)
	}{
		{
			name: "toggle flips completion",
			act:  func(h *Home) error { return h.ToggleTask("t1") },
			op:   "UpdateTask",
			check: func(t *testing.T, f *fakeBackend) {
				if len(f.updated) != 1 || f.updated[0].ID != "t1" || !f.updated[0].IsCompleted {
					t.Fatalf("updated = %+v", f.updated)
				}
			},
		},
		{
			name: "toggle reopens completed task",
			act:  func(h *Home) error { return h.ToggleTask("t2") },
			op:   "UpdateTask",
			check: func(t *testing.T, f *fakeBackend) {
				if len(f.updated) != 1 || f.updated[0].IsCompleted {
					t.Fatalf("updated = %+v", f.updated)
				}
			},
		},
		{name: "toggle unknown task", act: func(h *Home) error { return h.ToggleTask("missing") }, wantErr: ErrNotShown, op: "UpdateTask"},
		{name: "toggle task of another user", act: func(h *Home) error { return h.ToggleTask("foreign") }, wantErr: ErrNotShown, op: "UpdateTask"},
		{
			name: "delete shown task",
			act:  func(h *Home) error { return h.DeleteTask("t1") },
			op:   "DeleteTask",
			check: func(t *testing.T, f *fakeBackend) {
				if len(f.deleted) != 1 || f.deleted[0] != "u1/t1" {
					t.Fatalf("deleted = %v", f.deleted)
				}
			},
		},
		{name: "delete unknown task", act: func(h *Home) error { return h.DeleteTask("missing") }, wantErr: ErrNotShown, op: "DeleteTask"},
		{name: "delete task of another user", act: func(h *Home) error { return h.DeleteTask("foreign") }, wantErr: ErrNotShown, op: "DeleteTask"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness("u1")
			home := loadedHome(t, h, shown)

			if err := tc.act(home); err != tc.wantErr {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				if n := h.backend.count(tc.op); n != 0 {
					t.Fatalf("%s called %d times", tc.op, n)
				}
				return
			}
			waitUntil(t, func() bool { return h.backend.count(tc.op) == 1 })
			h.backend.mu.Lock()
			defer h.backend.mu.Unlock()
			tc.check(t, h.backend)
		})
	}
}

func TestHomeTaskActionWhilePendingIsBusy(t *testing.T) {
	h := newHarness("u1")
	h.backend.taskGate = make(chan struct{})
	home := loadedHome(t, h, []domain.Task{
		{ID: "t1", UserID: "u1"},
		{ID: "t2", UserID: "u1"},
	})

	if err := home.ToggleTask("t1"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if err := home.ToggleTask("t1"); err != ErrBusy {
		t.Fatalf("second toggle = %v, want ErrBusy", err)
	}
	if err := home.DeleteTask("t1"); err != ErrBusy {
		t.Fatalf("delete while toggling = %v, want ErrBusy", err)
	}
	if err := home.ToggleTask("t2"); err != nil {
		t.Fatalf("toggle of another task: %v", err)
	}
	close(h.backend.taskGate)

	waitUntil(t, func() bool { return h.backend.count("UpdateTask") == 2 })
	if n := h.backend.count("DeleteTask"); n != 0 {
		t.Fatalf("DeleteTask called %d times", n)
	}
	// the guard is released once the first toggle finishes
	waitUntil(t, func() bool { return home.ToggleTask("t1") == nil })
	waitUntil(t, func() bool { return h.backend.count("UpdateTask") == 3 })
}
