package screen

import (
	"context"
	"strings"

	"edusync/pkg/domain"
	"edusync/pkg/validate"
)

type AddTaskState struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Priority     domain.TaskPriority `json:"priority"`
	Category     string              `json:"category"`
	DueDate      int64               `json:"dueDate"`
	IsLoading    bool                `json:"isLoading"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	IsTaskAdded  bool                `json:"isTaskAdded"`
	Phase        Phase               `json:"phase"`
}

func initialAddTask() AddTaskState {
	return AddTaskState{Priority: domain.PriorityMedium, Phase: PhaseIdle}
}

type AddTask struct {
	*base
	backend Backend
	state   *State[AddTaskState]
}

func NewAddTask(ctx context.Context, d Deps) *AddTask {
	d = d.withDefaults()
	a := &AddTask{
		base:    newBase(ctx, "add_task", d.Session.CurrentUserID(), d),
		backend: d.Backend,
		state:   NewState(initialAddTask()),
	}
	a.closeWith(a.state.Close)
	return a
}

func (a *AddTask) State() *State[AddTaskState] { return a.state }

func (a *AddTask) SetTitle(title string) {
	a.state.Update(func(s AddTaskState) AddTaskState { s.Title = title; return s })
}

func (a *AddTask) SetDescription(description string) {
	a.state.Update(func(s AddTaskState) AddTaskState { s.Description = description; return s })
}

func (a *AddTask) SetPriority(p domain.TaskPriority) {
	a.state.Update(func(s AddTaskState) AddTaskState { s.Priority = domain.ParsePriority(string(p)); return s })
}

func (a *AddTask) SetCategory(category string) {
	a.state.Update(func(s AddTaskState) AddTaskState { s.Category = category; return s })
}

// SetDueDate takes epoch milliseconds; zero clears the due date.
func (a *AddTask) SetDueDate(dueDate int64) {
	a.state.Update(func(s AddTaskState) AddTaskState { s.DueDate = dueDate; return s })
}

// Submit adds the task. A blank title fails without reaching the backend.
func (a *AddTask) Submit() error {
	var form AddTaskState
	err := begin(a.state, func(s AddTaskState) (AddTaskState, bool) {
		if s.Phase.InFlight() {
			return s, false
		}
		s.IsLoading = true
		s.ErrorMessage = ""
		s.Phase = PhaseValidating
		if msg := validate.Title(s.Title); msg != "" {
			s.IsLoading = false
			s.ErrorMessage = msg
			s.Phase = PhaseFailed
		} else {
			s.Phase = PhaseSubmitting
		}
		form = s
		return s, true
	})
	if err != nil || form.Phase == PhaseFailed {
		return err
	}

	task := domain.Task{
		Title:       form.Title,
		Description: form.Description,
		UserID:      a.userID,
		Priority:    form.Priority,
		Category:    strings.TrimSpace(form.Category),
		DueDate:     form.DueDate,
	}
	a.launch("add_task", func(ctx context.Context) error {
		if _, err := a.backend.AddTask(ctx, task); err != nil {
			msg := err.Error()
			if msg == "" {
				msg = "Failed to add task"
			}
			a.state.Update(func(s AddTaskState) AddTaskState {
				s.IsLoading = false
				s.ErrorMessage = msg
				s.Phase = PhaseFailed
				return s
			})
			if ctx.Err() == nil {
				a.report(err)
			}
			return nil
		}
		a.state.Update(func(s AddTaskState) AddTaskState {
			s.IsLoading = false
			s.IsTaskAdded = true
			s.Phase = PhaseSucceeded
			return s
		})
		return nil
	})
	return nil
}

func (a *AddTask) Reset() error {
	return begin(a.state, func(s AddTaskState) (AddTaskState, bool) {
		if s.Phase.InFlight() {
			return s, false
		}
		return initialAddTask(), true
	})
}
