package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Roles understood by the economy surface
const (
	RoleFan     = "fan"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// User is the read model this service needs: identity, role and the stored
// subscription state the entitlement policy derives from.
type User struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	Role      string       `db:"role" json:"role"`
	ProUntil  sql.NullTime `db:"pro_until" json:"pro_until,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// ProActive reports whether the user's pro entitlement is active at the
// given instant. This is the single source of truth for the pro flag;
// nothing overrides the stored subscription state.
func ProActive(u *User, now time.Time) bool {
	if u == nil {
		return false
	}
	return u.ProUntil.Valid && now.Before(u.ProUntil.Time)
}
