package library

import "errors"

var (
	// ErrNoActiveSession is returned by session-scoped operations called
	// without a session id before any folder was opened.
	ErrNoActiveSession = errors.New("no session active")
	// ErrNotFound is returned for unknown sessions and missing thumbnails.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument wraps rejected input such as a negative index.
	ErrInvalidArgument = errors.New("invalid argument")
)
