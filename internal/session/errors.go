package session

import "errors"

var (
	// ErrSessionNotFound is returned when the session is absent from the
	// registry, including sessions removed while a caller waited on the lock.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPermissionDenied is returned when a caller acts on a session owned
	// by a different user.
	ErrPermissionDenied = errors.New("permission denied")
)
