package screen

import (
	"context"
	"maps"

	"edusync/pkg/domain"
)

// GroupView is a study group as listed on the join screen. It is rebuilt
// from the raw group on every emission.
type GroupView struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	MemberCount         int    `json:"memberCount"`
	IsCurrentUserMember bool   `json:"isCurrentUserMember"`
	WhatsAppLink        string `json:"whatsAppLink"`
}

type GroupsState struct {
	Groups       []GroupView     `json:"groups"`
	IsLoading    bool            `json:"isLoading"`
	Joining      map[string]bool `json:"joining"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// Groups lists every study group and lets the user join them.
type Groups struct {
	*base
	backend Backend
	state   *State[GroupsState]
}

func NewGroups(ctx context.Context, d Deps) *Groups {
	d = d.withDefaults()
	g := &Groups{
		base:    newBase(ctx, "groups", d.Session.CurrentUserID(), d),
		backend: d.Backend,
		state:   NewState(GroupsState{Groups: []GroupView{}, IsLoading: true, Joining: map[string]bool{}}),
	}
	g.closeWith(g.state.Close)
	_ = g.restart(g.load)
	return g
}

func (g *Groups) State() *State[GroupsState] { return g.state }

func (g *Groups) load(ctx context.Context) {
	g.state.Update(func(s GroupsState) GroupsState {
		s.IsLoading = true
		s.ErrorMessage = ""
		return s
	})
	follow(ctx, g.backend.WatchAllGroups(ctx),
		func(groups []domain.Group) {
			views := toGroupViews(groups, g.userID)
			g.state.Update(func(s GroupsState) GroupsState {
				s.Groups = views
				s.IsLoading = false
				return s
			})
		},
		func(err error) {
			g.state.Update(func(s GroupsState) GroupsState {
				s.IsLoading = false
				s.ErrorMessage = "Failed to load groups: " + err.Error()
				return s
			})
			g.report(err)
		})
}

func toGroupViews(groups []domain.Group, userID string) []GroupView {
	views := make([]GroupView, 0, len(groups))
	for _, grp := range groups {
		views = append(views, GroupView{
			ID:                  grp.ID,
			Name:                grp.Name,
			Description:         grp.Description,
			MemberCount:         len(grp.Members),
			IsCurrentUserMember: grp.HasMember(userID),
			WhatsAppLink:        grp.WhatsAppLink,
		})
	}
	return views
}

// Refresh re-subscribes to the group list.
func (g *Groups) Refresh() error {
	return g.restart(g.load)
}

// JoinGroup adds the current user to groupID. While a join for the same
// group is pending a second call returns ErrBusy. On success the group is
// marked joined locally until the next emission brings the stored state.
func (g *Groups) JoinGroup(groupID string) error {
	err := begin(g.state, func(s GroupsState) (GroupsState, bool) {
		if s.Joining[groupID] {
			return s, false
		}
		s.Joining = withKey(s.Joining, groupID, true)
		s.ErrorMessage = ""
		return s, true
	})
	if err != nil {
		return err
	}
	g.launch("join_group", func(ctx context.Context) error {
		if err := g.backend.JoinGroup(ctx, groupID, g.userID); err != nil {
			g.state.Update(func(s GroupsState) GroupsState {
				s.Joining = withKey(s.Joining, groupID, false)
				s.ErrorMessage = "Failed to join group: " + err.Error()
				return s
			})
			if ctx.Err() == nil {
				g.report(err)
			}
			return nil
		}
		g.state.Update(func(s GroupsState) GroupsState {
			s.Groups = markJoined(s.Groups, groupID)
			s.Joining = withKey(s.Joining, groupID, false)
			return s
		})
		return nil
	})
	return nil
}

func markJoined(views []GroupView, groupID string) []GroupView {
	out := make([]GroupView, len(views))
	copy(out, views)
	for i := range out {
		if out[i].ID == groupID && !out[i].IsCurrentUserMember {
			out[i].MemberCount++
			out[i].IsCurrentUserMember = true
		}
	}
	return out
}

// withKey returns a copy of m with key set, or removed when on is false.
func withKey(m map[string]bool, key string, on bool) map[string]bool {
	out := maps.Clone(m)
	if out == nil {
		out = make(map[string]bool)
	}
	if on {
		out[key] = true
	} else {
		delete(out, key)
	}
	return out
}
