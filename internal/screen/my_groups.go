package screen

import (
	"context"

	"edusync/pkg/domain"
)

type MyGroupsState struct {
	Groups    []domain.Group `json:"groups"`
	IsLoading bool           `json:"isLoading"`
	Error     string         `json:"error,omitempty"`
}

// MyGroups lists the groups the current user belongs to.
type MyGroups struct {
	*base
	backend Backend
	state   *State[MyGroupsState]
}

func NewMyGroups(ctx context.Context, d Deps) *MyGroups {
	d = d.withDefaults()
	m := &MyGroups{
		base:    newBase(ctx, "my_groups", d.Session.CurrentUserID(), d),
		backend: d.Backend,
		state:   NewState(MyGroupsState{Groups: []domain.Group{}, IsLoading: true}),
	}
	m.closeWith(m.state.Close)
	_ = m.restart(m.load)
	return m
}

func (m *MyGroups) State() *State[MyGroupsState] { return m.state }

func (m *MyGroups) load(ctx context.Context) {
	m.state.Update(func(s MyGroupsState) MyGroupsState {
		s.IsLoading = true
		s.Error = ""
		return s
	})
	follow(ctx, m.backend.WatchUserGroups(ctx, m.userID),
		func(groups []domain.Group) {
			groups = nonNil(groups)
			m.state.Update(func(MyGroupsState) MyGroupsState {
				return MyGroupsState{Groups: groups}
			})
		},
		func(err error) {
			m.state.Update(func(s MyGroupsState) MyGroupsState {
				s.IsLoading = false
				s.Error = err.Error()
				return s
			})
			m.report(err)
		})
}

func (m *MyGroups) Refresh() error {
	return m.restart(m.load)
}
