package account

import "sync"

// Session holds the signed-in user for one client. It is written once when
// the user signs in and only read afterwards.
type Session struct {
	mu     sync.RWMutex
	userID string
	token  string
}

// NewSession returns a session that is already signed in when userID is
// non-empty.
func NewSession(userID, token string) *Session {
	return &Session{userID: userID, token: token}
}

// Start records the signed-in user. It fails if a user is already set.
func (s *Session) Start(userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != "" && s.userID != userID {
		return ErrSessionAlreadyStarted
	}
	s.userID = userID
	s.token = token
	return nil
}

func (s *Session) CurrentUserID() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) HasSession() bool {
	return s.CurrentUserID() != ""
}
