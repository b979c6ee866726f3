package backend

import (
	"errors"

	"edusync/pkg/store"
)

var (
	// ErrNotFound is returned when a mutation targets a missing record.
	ErrNotFound = store.ErrNotFound

	ErrFileTooLarge    = errors.New("file exceeds the 50 MB upload limit")
	ErrMissingID       = errors.New("id required")
	ErrMissingOwner    = errors.New("user id required")
	ErrMissingFilename = errors.New("file name required")
)
