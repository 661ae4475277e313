package purchase

import "errors"

var (
	ErrInvalidAmount = errors.New("invalid xp amount")
	// ErrDuplicateSession means the session was already credited. The
	// engine recovers from it locally and reports idempotent success.
	ErrDuplicateSession = errors.New("duplicate session")
)
