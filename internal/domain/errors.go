package domain

import "errors"

var (
	// ErrTransport marks a collaborator that could not be reached or timed out.
	ErrTransport = errors.New("collaborator unreachable")
	// ErrDataAbsent marks a collaborator that answered but had nothing for the query.
	ErrDataAbsent = errors.New("no data for query")
	// ErrStateInconsistency marks a session turn whose required context is missing.
	ErrStateInconsistency = errors.New("session state inconsistent")

	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrNotConfigured = errors.New("not configured")
)

// IsCollaboratorFailure reports whether err is a classified, expected
// collaborator failure that may be replaced by a fallback value.
func IsCollaboratorFailure(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrDataAbsent) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotConfigured)
}
