package screen

import (
	"context"
	"strings"

	"edusync/pkg/domain"
	"edusync/pkg/validate"
)

type ProfileState struct {
	Profile       domain.UserProfile `json:"profile"`
	Found         bool               `json:"found"`
	IsLoading     bool               `json:"isLoading"`
	UsernameError string             `json:"usernameError,omitempty"`
	Error         string             `json:"error,omitempty"`
	IsSaved       bool               `json:"isSaved"`
	Phase         Phase              `json:"phase"`
}

// Profile shows and edits the current user's profile. It reads once on
// open and again on Refresh.
type Profile struct {
	*base
	backend Backend
	state   *State[ProfileState]
}

func NewProfile(ctx context.Context, d Deps) *Profile {
	d = d.withDefaults()
	p := &Profile{
		base:    newBase(ctx, "profile", d.Session.CurrentUserID(), d),
		backend: d.Backend,
		state:   NewState(ProfileState{IsLoading: true, Phase: PhaseIdle}),
	}
	p.closeWith(p.state.Close)
	_ = p.Refresh()
	return p
}

func (p *Profile) State() *State[ProfileState] { return p.state }

func (p *Profile) Refresh() error {
	return p.restart(func(ctx context.Context) {
		p.state.Update(func(s ProfileState) ProfileState {
			s.IsLoading = true
			s.Error = ""
			return s
		})
		profile, found, err := p.backend.GetUserProfile(ctx, p.userID)
		if ctx.Err() != nil {
			return
		}
		p.state.Update(func(s ProfileState) ProfileState {
			s.IsLoading = false
			if err != nil {
				s.Error = err.Error()
				return s
			}
			s.Profile = profile
			s.Found = found
			return s
		})
		if err != nil {
			p.report(err)
		}
	})
}

func (p *Profile) SetUsername(name string) {
	p.state.Update(func(s ProfileState) ProfileState {
		s.Profile.Username = name
		s.UsernameError = validate.DisplayName(name)
		s.IsSaved = false
		return s
	})
}

func (p *Profile) SetPictureURL(url string) {
	p.state.Update(func(s ProfileState) ProfileState {
		s.Profile.ProfilePictureURL = strings.TrimSpace(url)
		s.IsSaved = false
		return s
	})
}

// Save writes the edited profile.
func (p *Profile) Save() error {
	var form ProfileState
	err := begin(p.state, func(s ProfileState) (ProfileState, bool) {
		if s.Phase.InFlight() || s.IsLoading {
			return s, false
		}
		s.Phase = PhaseValidating
		s.Error = ""
		s.UsernameError = validate.DisplayName(s.Profile.Username)
		if s.UsernameError != "" {
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
	profile := form.Profile
	profile.Username = strings.TrimSpace(profile.Username)
	p.launch("save_profile", func(ctx context.Context) error {
		err := p.backend.UpdateUserProfile(ctx, p.userID, profile)
		p.state.Update(func(s ProfileState) ProfileState {
			if err != nil {
				s.Error = err.Error()
				s.Phase = PhaseFailed
				return s
			}
			s.Profile = profile
			s.Found = true
			s.IsSaved = true
			s.Phase = PhaseSucceeded
			return s
		})
		if err != nil && ctx.Err() == nil {
			p.report(err)
		}
		return nil
	})
	return nil
}
