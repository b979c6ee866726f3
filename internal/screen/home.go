package screen

import (
	"context"
	"io"

	"edusync/pkg/domain"
	"edusync/pkg/validate"
)

const recentDocumentLimit = 5

type HomeState struct {
	IsLoading       bool              `json:"isLoading"`
	Tasks           []domain.Task     `json:"tasks"`
	Events          []domain.Event    `json:"events"`
	RecentDocuments []domain.Document `json:"recentDocuments"`
	Error           string            `json:"error,omitempty"`
}

// Home combines the user's tasks, today's events and recent documents.
type Home struct {
	*base
	backend Backend
	state   *State[HomeState]
	guard   keyGuard
}

func NewHome(ctx context.Context, d Deps) *Home {
	d = d.withDefaults()
	h := &Home{
		base:    newBase(ctx, "home", d.Session.CurrentUserID(), d),
		backend: d.Backend,
		state:   NewState(initialHome()),
	}
	h.closeWith(h.state.Close)
	_ = h.restart(h.aggregate)
	return h
}

func initialHome() HomeState {
	return HomeState{
		IsLoading:       true,
		Tasks:           []domain.Task{},
		Events:          []domain.Event{},
		RecentDocuments: []domain.Document{},
	}
}

func (h *Home) State() *State[HomeState] { return h.state }

func (h *Home) aggregate(ctx context.Context) {
	tasks := h.backend.WatchTasks(ctx, h.userID)
	defer tasks.Cancel()
	events := h.backend.WatchTodayEvents(ctx, h.userID)
	defer events.Cancel()
	documents := h.backend.WatchUserDocuments(ctx, h.userID)
	defer documents.Cancel()

	var (
		latestTasks     []domain.Task
		latestEvents    []domain.Event
		latestDocuments []domain.Document
		seen            [3]bool
	)
	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case u, ok := <-tasks.Updates():
			if !ok {
				return
			}
			if err = u.Err; err == nil {
				latestTasks, seen[0] = u.Value, true
			}
		case u, ok := <-events.Updates():
			if !ok {
				return
			}
			if err = u.Err; err == nil {
				latestEvents, seen[1] = u.Value, true
			}
		case u, ok := <-documents.Updates():
			if !ok {
				return
			}
			if err = u.Err; err == nil {
				latestDocuments, seen[2] = u.Value, true
			}
		}
		if err != nil {
			h.state.Update(func(s HomeState) HomeState {
				s.IsLoading = false
				s.Error = err.Error()
				return s
			})
			h.report(err)
			return
		}
		if !seen[0] || !seen[1] || !seen[2] {
			continue
		}
		recent := latestDocuments
		if len(recent) > recentDocumentLimit {
			recent = recent[:recentDocumentLimit]
		}
		snapshot := HomeState{
			Tasks:           nonNil(latestTasks),
			Events:          nonNil(latestEvents),
			RecentDocuments: nonNil(recent),
		}
		h.state.Update(func(HomeState) HomeState { return snapshot })
	}
}

// Refresh drops the current subscriptions and starts over with a loading
// snapshot. It is the way out of a failed feed.
func (h *Home) Refresh() error {
	return h.restart(func(ctx context.Context) {
		h.state.Update(func(s HomeState) HomeState {
			s.IsLoading = true
			s.Error = ""
			return s
		})
		h.aggregate(ctx)
	})
}

func (h *Home) ClearError() {
	h.state.Update(func(s HomeState) HomeState {
		s.Error = ""
		return s
	})
}

func (h *Home) fail(err error) {
	h.state.Update(func(s HomeState) HomeState {
		s.Error = err.Error()
		return s
	})
	h.report(err)
}

// run launches op under key, refusing a second one while the first is
// still running.
func (h *Home) run(key string, op func(ctx context.Context) error) error {
	if err := h.alive(); err != nil {
		return err
	}
	if !h.guard.acquire(key) {
		return ErrBusy
	}
	h.launch(key, func(ctx context.Context) error {
		defer h.guard.release(key)
		if err := op(ctx); err != nil && ctx.Err() == nil {
			h.fail(err)
		}
		return nil
	})
	return nil
}

// AddTask creates a task for the current user. The id and creation time
// are assigned by the backend; a blank title is refused without a call.
func (h *Home) AddTask(t domain.Task) error {
	if err := h.alive(); err != nil {
		return err
	}
	if msg := validate.Title(t.Title); msg != "" {
		h.state.Update(func(s HomeState) HomeState {
			s.Error = msg
			return s
		})
		return nil
	}
	t.ID = ""
	t.CreatedAt = 0
	t.UserID = h.userID
	return h.run("add_task", func(ctx context.Context) error {
		_, err := h.backend.AddTask(ctx, t)
		return err
	})
}

// shownTask returns the task with taskID if it is on screen and belongs to
// the current user.
func (h *Home) shownTask(taskID string) (domain.Task, bool) {
	for _, t := range h.state.Get().Tasks {
		if t.ID == taskID && t.UserID == h.userID {
			return t, true
		}
	}
	return domain.Task{}, false
}

// ToggleTask flips the completion flag of a task shown on the screen.
func (h *Home) ToggleTask(taskID string) error {
	task, ok := h.shownTask(taskID)
	if !ok {
		return ErrNotShown
	}
	task.IsCompleted = !task.IsCompleted
	return h.run("task:"+taskID, func(ctx context.Context) error {
		return h.backend.UpdateTask(ctx, task)
	})
}

func (h *Home) DeleteTask(taskID string) error {
	if _, ok := h.shownTask(taskID); !ok {
		return ErrNotShown
	}
	return h.run("task:"+taskID, func(ctx context.Context) error {
		return h.backend.DeleteTask(ctx, taskID, h.userID)
	})
}

func (h *Home) JoinStudyGroup(groupID string) error {
	return h.run("join:"+groupID, func(ctx context.Context) error {
		return h.backend.JoinGroup(ctx, groupID, h.userID)
	})
}

// UploadDocument stores doc for the current user. body is read on the
// launched goroutine, so the caller must keep it readable until the
// document appears or an error is shown.
func (h *Home) UploadDocument(doc domain.Document, body io.Reader, size int64) error {
	doc.UserID = h.userID
	return h.run("upload:"+doc.FileName, func(ctx context.Context) error {
		_, err := h.backend.UploadDocument(ctx, doc, body, size)
		return err
	})
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
