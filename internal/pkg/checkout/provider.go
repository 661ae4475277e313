package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// XP type constants carried in session metadata
const (
	XPTypePlatform = "platform"
	XPTypeCreator  = "creator"
)

var (
	// ErrSessionNotFound means the provider does not know the session. Terminal.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrSessionUnpaid means the provider confirmed the session is not paid. Terminal.
	ErrSessionUnpaid = errors.New("checkout session not paid")
	// ErrMissingMetadata means a paid session lacks required metadata. Terminal.
	ErrMissingMetadata = errors.New("checkout session missing required metadata")
	// ErrProviderUnavailable means the provider could not be reached. Retryable.
	ErrProviderUnavailable = errors.New("checkout provider unavailable")
)

// Session is the provider-confirmed state of one checkout attempt.
// Amounts come from the provider's server-side record only; client-supplied
// values never reach the ledger.
type Session struct {
	ID               string
	Paid             bool
	XPAmount         int64
	AmountMinorUnits int64
	Currency         string
	UserID           uuid.UUID
	CreatorID        *uuid.UUID
	XPType           string
}

// Verifier confirms checkout sessions against the payment provider.
// The credit engine depends on this interface, not on a concrete client.
type Verifier interface {
	VerifySession(ctx context.Context, sessionID string) (*Session, error)
}
