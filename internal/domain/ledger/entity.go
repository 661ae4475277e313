package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Balance is one user's XP ledger row. The identity
// current_xp = total_earned_xp - total_spent_xp holds on every mutation
// path; all writes are expressed as increments except the explicitly
// labeled bulk overwrite.
type Balance struct {
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	CurrentXP     int64     `db:"current_xp" json:"current_xp"`
	TotalEarnedXP int64     `db:"total_earned_xp" json:"total_earned_xp"`
	TotalSpentXP  int64     `db:"total_spent_xp" json:"total_spent_xp"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// BulkError records one user's failure inside a bulk rewrite.
type BulkError struct {
	UserID uuid.UUID `json:"user_id"`
	Error  string    `json:"error"`
}

// BulkResult is the partial-success report of a bulk rewrite.
type BulkResult struct {
	UpdatedCount int         `json:"updated_count"`
	Errors       []BulkError `json:"errors"`
}
