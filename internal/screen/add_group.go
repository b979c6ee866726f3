package screen

import (
	"context"
	"strings"

	"edusync/pkg/domain"
	"edusync/pkg/validate"
)

type AddGroupState struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	WhatsAppLink     string `json:"whatsAppLink"`
	NameError        string `json:"nameError,omitempty"`
	DescriptionError string `json:"descriptionError,omitempty"`
	LinkError        string `json:"linkError,omitempty"`
	IsLoading        bool   `json:"isLoading"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	IsGroupCreated   bool   `json:"isGroupCreated"`
	Phase            Phase  `json:"phase"`
}

// AddGroup is the study group creation form.
type AddGroup struct {
	*base
	backend Backend
	state   *State[AddGroupState]
}

func NewAddGroup(ctx context.Context, d Deps) *AddGroup {
	d = d.withDefaults()
	a := &AddGroup{
		base:    newBase(ctx, "add_group", d.Session.CurrentUserID(), d),
		backend: d.Backend,
		state:   NewState(AddGroupState{Phase: PhaseIdle}),
	}
	a.closeWith(a.state.Close)
	return a
}

func (a *AddGroup) State() *State[AddGroupState] { return a.state }

func (a *AddGroup) SetName(name string) {
	a.state.Update(func(s AddGroupState) AddGroupState {
		s.Name = name
		s.NameError = validate.Name(name)
		return s
	})
}

func (a *AddGroup) SetDescription(description string) {
	a.state.Update(func(s AddGroupState) AddGroupState {
		s.Description = description
		s.DescriptionError = validate.Description(description)
		return s
	})
}

func (a *AddGroup) SetWhatsAppLink(link string) {
	a.state.Update(func(s AddGroupState) AddGroupState {
		s.WhatsAppLink = link
		s.LinkError = validate.ExternalLink(link)
		return s
	})
}

// Create validates every field again and, when all pass, creates the group
// with the current user as its only member.
func (a *AddGroup) Create() error {
	var form AddGroupState
	err := begin(a.state, func(s AddGroupState) (AddGroupState, bool) {
		if s.Phase.InFlight() {
			return s, false
		}
		s.Phase = PhaseValidating
		s.NameError = validate.Name(s.Name)
		s.DescriptionError = validate.Description(s.Description)
		s.LinkError = validate.ExternalLink(s.WhatsAppLink)
		if s.NameError != "" || s.DescriptionError != "" || s.LinkError != "" {
			s.Phase = PhaseFailed
		} else {
			s.Phase = PhaseSubmitting
			s.IsLoading = true
			s.ErrorMessage = ""
		}
		form = s
		return s, true
	})
	if err != nil || form.Phase == PhaseFailed {
		return err
	}

	group := domain.Group{
		Name:         strings.TrimSpace(form.Name),
		Description:  strings.TrimSpace(form.Description),
		Members:      []string{a.userID},
		CreatedBy:    a.userID,
		WhatsAppLink: strings.TrimSpace(form.WhatsAppLink),
	}
	a.launch("create_group", func(ctx context.Context) error {
		if _, err := a.backend.CreateGroup(ctx, group); err != nil {
			a.state.Update(func(s AddGroupState) AddGroupState {
				s.Phase = PhaseFailed
				s.IsLoading = false
				s.ErrorMessage = "Failed to create group: " + err.Error()
				return s
			})
			if ctx.Err() == nil {
				a.report(err)
			}
			return nil
		}
		a.state.Update(func(s AddGroupState) AddGroupState {
			s.Phase = PhaseSucceeded
			s.IsLoading = false
			s.IsGroupCreated = true
			return s
		})
		return nil
	})
	return nil
}

// Reset clears the form. It is refused while a creation is in flight.
func (a *AddGroup) Reset() error {
	return begin(a.state, func(s AddGroupState) (AddGroupState, bool) {
		if s.Phase.InFlight() {
			return s, false
		}
		return AddGroupState{Phase: PhaseIdle}, true
	})
}
