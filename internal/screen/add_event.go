package screen

import (
	"context"
	"strings"
	"time"

	"edusync/pkg/domain"
	"edusync/pkg/validate"
)

type AddEventState struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	StartTime    time.Time           `json:"startTime"`
	EndTime      time.Time           `json:"endTime"`
	Type         domain.EventType    `json:"type"`
	Priority     domain.TaskPriority `json:"priority"`
	Location     string              `json:"location"`
	IsOnline     bool                `json:"isOnline"`
	MeetingLink  string              `json:"meetingLink"`
	TitleError   string              `json:"titleError,omitempty"`
	TimeError    string              `json:"timeError,omitempty"`
	IsLoading    bool                `json:"isLoading"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	IsEventAdded bool                `json:"isEventAdded"`
	Phase        Phase               `json:"phase"`
}

func initialAddEvent() AddEventState {
	return AddEventState{Type: domain.EventOther, Priority: domain.PriorityMedium, Phase: PhaseIdle}
}

// AddEvent is the calendar entry form.
type AddEvent struct {
	*base
	backend Backend
	state   *State[AddEventState]
}

func NewAddEvent(ctx context.Context, d Deps) *AddEvent {
	d = d.withDefaults()
	a := &AddEvent{
		base:    newBase(ctx, "add_event", d.Session.CurrentUserID(), d),
		backend: d.Backend,
		state:   NewState(initialAddEvent()),
	}
	a.closeWith(a.state.Close)
	return a
}

func (a *AddEvent) State() *State[AddEventState] { return a.state }

func (a *AddEvent) SetTitle(title string) {
	a.state.Update(func(s AddEventState) AddEventState {
		s.Title = title
		s.TitleError = validate.Title(title)
		return s
	})
}

func (a *AddEvent) SetDescription(description string) {
	a.state.Update(func(s AddEventState) AddEventState { s.Description = description; return s })
}

func (a *AddEvent) SetWindow(start, end time.Time) {
	a.state.Update(func(s AddEventState) AddEventState {
		s.StartTime, s.EndTime = start, end
		s.TimeError = validate.EventWindow(start, end)
		return s
	})
}

func (a *AddEvent) SetType(t domain.EventType) {
	a.state.Update(func(s AddEventState) AddEventState { s.Type = t; return s })
}

func (a *AddEvent) SetPriority(p domain.TaskPriority) {
	a.state.Update(func(s AddEventState) AddEventState { s.Priority = domain.ParsePriority(string(p)); return s })
}

func (a *AddEvent) SetLocation(location string) {
	a.state.Update(func(s AddEventState) AddEventState { s.Location = location; return s })
}

// SetOnline toggles an online event. The meeting link is kept only for
// online events.
func (a *AddEvent) SetOnline(online bool, link string) {
	a.state.Update(func(s AddEventState) AddEventState {
		s.IsOnline = online
		s.MeetingLink = ""
		if online {
			s.MeetingLink = strings.TrimSpace(link)
		}
		return s
	})
}

func (a *AddEvent) Submit() error {
	var form AddEventState
	err := begin(a.state, func(s AddEventState) (AddEventState, bool) {
		if s.Phase.InFlight() {
			return s, false
		}
		s.Phase = PhaseValidating
		s.ErrorMessage = ""
		s.TitleError = validate.Title(s.Title)
		s.TimeError = validate.EventWindow(s.StartTime, s.EndTime)
		if s.StartTime.IsZero() && s.TimeError == "" {
			s.TimeError = "Start time is required"
		}
		if s.TitleError != "" || s.TimeError != "" {
			s.Phase = PhaseFailed
		} else {
			s.Phase = PhaseSubmitting
			s.IsLoading = true
		}
		form = s
		return s, true
	})
	if err != nil || form.Phase == PhaseFailed {
		return err
	}

	end := form.EndTime
	if end.IsZero() {
		end = form.StartTime.Add(time.Hour)
	}
	event := domain.Event{
		Title:       strings.TrimSpace(form.Title),
		Description: strings.TrimSpace(form.Description),
		StartTime:   form.StartTime,
		EndTime:     end,
		Type:        form.Type,
		Priority:    form.Priority,
		Location:    strings.TrimSpace(form.Location),
		IsOnline:    form.IsOnline,
		MeetingLink: form.MeetingLink,
		UserID:      a.userID,
	}
	a.launch("add_event", func(ctx context.Context) error {
		if _, err := a.backend.AddEvent(ctx, event); err != nil {
			a.state.Update(func(s AddEventState) AddEventState {
				s.IsLoading = false
				s.ErrorMessage = err.Error()
				s.Phase = PhaseFailed
				return s
			})
			if ctx.Err() == nil {
				a.report(err)
			}
			return nil
		}
		a.state.Update(func(s AddEventState) AddEventState {
			s.IsLoading = false
			s.IsEventAdded = true
			s.Phase = PhaseSucceeded
			return s
		})
		return nil
	})
	return nil
}

func (a *AddEvent) Reset() error {
	return begin(a.state, func(s AddEventState) (AddEventState, bool) {
		if s.Phase.InFlight() {
			return s, false
		}
		return initialAddEvent(), true
	})
}
