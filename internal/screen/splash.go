package screen

import (
	"context"

	"edusync/pkg/account"
)

type Route string

const (
	RouteNone  Route = ""
	RouteHome  Route = "HOME"
	RouteLogin Route = "LOGIN"
)

type SplashState struct {
	Route Route `json:"route"`
}

// Splash decides where the app opens.
type Splash struct {
	*base
	session *account.Session
	state   *State[SplashState]
}

func NewSplash(ctx context.Context, d Deps) *Splash {
	d = d.withDefaults()
	s := &Splash{
		base:    newBase(ctx, "splash", d.Session.CurrentUserID(), d),
		session: d.Session,
		state:   NewState(SplashState{}),
	}
	s.closeWith(s.state.Close)
	return s
}

func (s *Splash) State() *State[SplashState] { return s.state }

// Start routes to HOME when a session exists, LOGIN otherwise.
func (s *Splash) Start() (Route, error) {
	route := RouteLogin
	if s.session.HasSession() {
		route = RouteHome
	}
	if !s.state.Update(func(SplashState) SplashState { return SplashState{Route: route} }) {
		return RouteNone, ErrClosed
	}
	return route, nil
}
