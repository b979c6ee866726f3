package screen

import (
	"context"
	"strings"

	"edusync/pkg/account"
	"edusync/pkg/validate"
)

type LoginState struct {
	Email     string `json:"email"`
	Password  string `json:"-"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
	SignedIn  bool   `json:"signedIn"`
	Token     string `json:"token,omitempty"`
	Phase     Phase  `json:"phase"`
}

type Login struct {
	*base
	accounts Accounts
	session  *account.Session
	state    *State[LoginState]
}

func NewLogin(ctx context.Context, d Deps) *Login {
	d = d.withDefaults()
	l := &Login{
		base:     newBase(ctx, "login", "", d),
		accounts: d.Accounts,
		session:  d.Session,
		state:    NewState(LoginState{Phase: PhaseIdle}),
	}
	l.closeWith(l.state.Close)
	return l
}

func (l *Login) State() *State[LoginState] { return l.state }

func (l *Login) SetEmail(email string) {
	l.state.Update(func(s LoginState) LoginState { s.Email = email; s.Error = ""; return s })
}

func (l *Login) SetPassword(password string) {
	l.state.Update(func(s LoginState) LoginState { s.Password = password; s.Error = ""; return s })
}

// SignIn checks the email, then the password, then authenticates. On
// success the session is started and SignedIn is set.
func (l *Login) SignIn() error {
	var form LoginState
	err := begin(l.state, func(s LoginState) (LoginState, bool) {
		if s.Phase.InFlight() || s.SignedIn {
			return s, false
		}
		s.Phase = PhaseValidating
		s.Error = validate.Email(s.Email)
		if s.Error == "" && strings.TrimSpace(s.Password) == "" {
			s.Error = "Password can't be blank"
		}
		if s.Error != "" {
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

	l.launch("sign_in", func(ctx context.Context) error {
		user, token, err := l.accounts.Authenticate(ctx, strings.TrimSpace(form.Email), form.Password)
		if err == nil {
			err = l.session.Start(user.ID, token)
		}
		if err != nil {
			l.state.Update(func(s LoginState) LoginState {
				s.IsLoading = false
				s.Error = err.Error()
				s.Phase = PhaseFailed
				return s
			})
			return err
		}
		l.state.Update(func(s LoginState) LoginState {
			s.IsLoading = false
			s.SignedIn = true
			s.Token = token
			s.Password = ""
			s.Phase = PhaseSucceeded
			return s
		})
		return nil
	})
	return nil
}
