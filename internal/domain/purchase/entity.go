package purchase

import (
	"time"

	"github.com/google/uuid"
)

// XPType says whether purchased XP is attributed to the platform or to a
// specific creator.
type XPType string

const (
	XPTypePlatform XPType = "platform"
	XPTypeCreator  XPType = "creator"
)

// Credit pipeline states, in order. A duplicate reservation short-circuits
// to terminal success.
type State string

const (
	StateReceived State = "received"
	StateVerified State = "verified"
	StateReserved State = "reserved"
	StateCredited State = "credited"
	StateRejected State = "rejected"
)

// Purchase is the append-only audit row for one credited checkout session.
// ExternalSessionID is the idempotency anchor: at most one row per session.
type Purchase struct {
	ExternalSessionID string        `db:"external_session_id" json:"external_session_id"`
	UserID            uuid.UUID     `db:"user_id" json:"user_id"`
	XPAmount          int64         `db:"xp_amount" json:"xp_amount"`
	AmountPaidMinor   int64         `db:"amount_paid_minor_units" json:"amount_paid_minor_units"`
	Currency          string        `db:"currency" json:"currency"`
	CreatorID         uuid.NullUUID `db:"creator_id" json:"creator_id,omitempty"`
	XPType            XPType        `db:"xp_type" json:"xp_type"`
	PurchasedAt       time.Time     `db:"purchased_at" json:"purchased_at"`
}

// Result reports a credit engine run that reached a terminal success state.
type Result struct {
	XPAdded         int64 `json:"xp_added"`
	AlreadyCredited bool  `json:"already_credited"`
}
