package sessions

import "errors"

// ErrNotFound indicates the session id does not exist in the store.
var ErrNotFound = errors.New("session not found")

// ErrNoSource indicates the source store holds no uploaded code for the session.
var ErrNoSource = errors.New("no uploaded source for session")

// ErrInvalidSession indicates a session with neither uploaded code nor a remote
// location. Input validation should make this unreachable; the worker still
// checks for it.
var ErrInvalidSession = errors.New("session has no uploaded code or remote location")

// ErrRemoteNotImplemented indicates the session references a remote repository,
// which this service does not ingest yet.
var ErrRemoteNotImplemented = errors.New("remote repository analysis not implemented")
