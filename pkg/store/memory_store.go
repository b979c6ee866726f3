package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"edusync/pkg/domain"
)

// MemoryStore keeps every collection in-process. It backs local runs
// without Postgres and most tests. Records are copied on the way in and
// out so callers never share slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User // key: user ID
	email    map[string]string      // lower-cased email -> user ID
	profiles map[string]domain.UserProfile
	tasks    map[string]domain.Task
	events   map[string]domain.Event
	groups   map[string]domain.Group
	docs     map[string]domain.Document
	order    map[string]int // insertion sequence per id
	seq      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		profiles: make(map[string]domain.UserProfile),
		tasks:    make(map[string]domain.Task),
		events:   make(map[string]domain.Event),
		groups:   make(map[string]domain.Group),
		docs:     make(map[string]domain.Document),
		order:    make(map[string]int),
	}
}

func (m *MemoryStore) track(id string) {
	if _, ok := m.order[id]; !ok {
		m.seq++
		m.order[id] = m.seq
	}
}

func (m *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok {
		delete(m.email, strings.ToLower(prev.Email))
	}
	m.users[u.ID] = u
	m.email[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[strings.ToLower(email)]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[strings.ToLower(email)]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, userID string, p domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = p
	return nil
}

func (m *MemoryStore) GetProfile(_ context.Context, userID string) (domain.UserProfile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

func (m *MemoryStore) SaveTask(_ context.Context, t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track(t.ID)
	m.tasks[t.ID] = t
	return nil
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (domain.Task, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok, nil
}

func (m *MemoryStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	delete(m.order, id)
	return nil
}

func (m *MemoryStore) ListTasksByUser(_ context.Context, userID string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Task, 0)
	for _, t := range m.tasks {
		if t.UserID == userID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt < res[j].CreatedAt
		}
		return m.order[res[i].ID] < m.order[res[j].ID]
	})
	return res, nil
}

func (m *MemoryStore) SaveEvent(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track(e.ID)
	m.events[e.ID] = copyEvent(e)
	return nil
}

func (m *MemoryStore) ListEventsByUserBetween(_ context.Context, userID string, from, to time.Time) ([]domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Event, 0)
	for _, e := range m.events {
		if e.UserID != userID || e.StartTime.Before(from) || !e.StartTime.Before(to) {
			continue
		}
		res = append(res, copyEvent(e))
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].StartTime.Equal(res[j].StartTime) {
			return res[i].StartTime.Before(res[j].StartTime)
		}
		return m.order[res[i].ID] < m.order[res[j].ID]
	})
	return res, nil
}

func (m *MemoryStore) SaveGroup(_ context.Context, g domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track(g.ID)
	m.groups[g.ID] = copyGroup(g)
	return nil
}

func (m *MemoryStore) GetGroup(_ context.Context, id string) (domain.Group, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return domain.Group{}, false, nil
	}
	return copyGroup(g), true, nil
}

func (m *MemoryStore) ListGroups(_ context.Context) ([]domain.Group, error) {
	return m.listGroups(func(domain.Group) bool { return true }), nil
}

func (m *MemoryStore) ListGroupsByMember(_ context.Context, userID string) ([]domain.Group, error) {
	return m.listGroups(func(g domain.Group) bool { return g.HasMember(userID) }), nil
}

func (m *MemoryStore) listGroups(keep func(domain.Group) bool) []domain.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Group, 0)
	for _, g := range m.groups {
		if keep(g) {
			res = append(res, copyGroup(g))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt < res[j].CreatedAt
		}
		return m.order[res[i].ID] < m.order[res[j].ID]
	})
	return res
}

func (m *MemoryStore) AddGroupMember(_ context.Context, groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	m.groups[groupID] = g.WithMember(userID)
	return nil
}

func (m *MemoryStore) SaveDocument(_ context.Context, d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track(d.ID)
	m.docs[d.ID] = copyDocument(d)
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return domain.Document{}, false, nil
	}
	return copyDocument(d), true, nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	delete(m.order, id)
	return nil
}

func (m *MemoryStore) ListDocumentsByOwner(_ context.Context, userID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0)
	for _, d := range m.docs {
		if d.UserID == userID {
			res = append(res, copyDocument(d))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].UploadDate.Equal(res[j].UploadDate) {
			return res[i].UploadDate.After(res[j].UploadDate)
		}
		return m.order[res[i].ID] > m.order[res[j].ID]
	})
	return res, nil
}

func copyEvent(e domain.Event) domain.Event {
	e.Participants = slices.Clone(e.Participants)
	if e.ReminderTime != nil {
		r := *e.ReminderTime
		e.ReminderTime = &r
	}
	return e
}

func copyGroup(g domain.Group) domain.Group {
	g.Members = slices.Clone(g.Members)
	return g
}

func copyDocument(d domain.Document) domain.Document {
	d.Tags = slices.Clone(d.Tags)
	d.SharedWithUserIDs = slices.Clone(d.SharedWithUserIDs)
	d.SharedWithGroupIDs = slices.Clone(d.SharedWithGroupIDs)
	d.PreviousVersions = slices.Clone(d.PreviousVersions)
	d.Comments = slices.Clone(d.Comments)
	if d.LastAccessedDate != nil {
		t := *d.LastAccessedDate
		d.LastAccessedDate = &t
	}
	return d
}
