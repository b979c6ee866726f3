package screen

import (
	"context"
	"fmt"
	"strings"

	"edusync/pkg/account"
	"edusync/pkg/validate"
)

type SignUpState struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"-"`
	ConfirmPassword string `json:"-"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error,omitempty"`
	SignedUp        bool   `json:"signedUp"`
	Token           string `json:"token,omitempty"`
	Phase           Phase  `json:"phase"`
}

type SignUp struct {
	*base
	accounts Accounts
	backend  Backend
	session  *account.Session
	state    *State[SignUpState]
}

func NewSignUp(ctx context.Context, d Deps) *SignUp {
	d = d.withDefaults()
	s := &SignUp{
		base:     newBase(ctx, "sign_up", "", d),
		accounts: d.Accounts,
		backend:  d.Backend,
		session:  d.Session,
		state:    NewState(SignUpState{Phase: PhaseIdle}),
	}
	s.closeWith(s.state.Close)
	return s
}

func (u *SignUp) State() *State[SignUpState] { return u.state }

func (u *SignUp) SetName(name string) {
	u.state.Update(func(s SignUpState) SignUpState { s.Name = name; s.Error = ""; return s })
}

func (u *SignUp) SetEmail(email string) {
	u.state.Update(func(s SignUpState) SignUpState { s.Email = email; s.Error = ""; return s })
}

func (u *SignUp) SetPassword(password string) {
	u.state.Update(func(s SignUpState) SignUpState { s.Password = password; s.Error = ""; return s })
}

func (u *SignUp) SetConfirmPassword(confirm string) {
	u.state.Update(func(s SignUpState) SignUpState { s.ConfirmPassword = confirm; s.Error = ""; return s })
}

func firstError(msgs ...string) string {
	for _, m := range msgs {
		if m != "" {
			return m
		}
	}
	return ""
}

// Submit validates name, email, password and confirmation in that order,
// creates the account and writes the initial profile.
func (u *SignUp) Submit() error {
	var form SignUpState
	err := begin(u.state, func(s SignUpState) (SignUpState, bool) {
		if s.Phase.InFlight() || s.SignedUp {
			return s, false
		}
		s.Phase = PhaseValidating
		s.Error = firstError(
			validate.DisplayName(s.Name),
			validate.Email(s.Email),
			validate.Password(s.Password),
			validate.PasswordConfirmation(s.Password, s.ConfirmPassword),
		)
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

	u.launch("sign_up", func(ctx context.Context) error {
		email := strings.TrimSpace(form.Email)
		user, token, err := u.accounts.CreateAccount(ctx, email, form.Password)
		if err == nil {
			err = u.session.Start(user.ID, token)
		}
		if err == nil {
			if perr := u.backend.InitUserProfile(ctx, email, strings.TrimSpace(form.Name), user.ID); perr != nil {
				err = fmt.Errorf("account created but profile was not saved: %w", perr)
			}
		}
		if err != nil {
			u.state.Update(func(s SignUpState) SignUpState {
				s.IsLoading = false
				s.Error = err.Error()
				s.Phase = PhaseFailed
				return s
			})
			return err
		}
		u.state.Update(func(s SignUpState) SignUpState {
			s.IsLoading = false
			s.SignedUp = true
			s.Token = token
			s.Password, s.ConfirmPassword = "", ""
			s.Phase = PhaseSucceeded
			return s
		})
		return nil
	})
	return nil
}
