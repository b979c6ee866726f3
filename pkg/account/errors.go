package account

import "errors"

var (
	// ErrInvalidCredentials is shown to end users and must not reveal
	// whether the email is registered.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrNoSession                = errors.New("no active session")
)

// ErrSessionAlreadyStarted is returned when a second user signs in on a
// session that already has one.
var ErrSessionAlreadyStarted = errors.New("session already started for another user")
