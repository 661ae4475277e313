package leaderboard

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one fan's standing on one creator's board. Ranks are 1-based,
// ordered by total XP descending; ties go to the earlier last activity.
type Entry struct {
	CreatorID      uuid.UUID `db:"creator_id" json:"creator_id"`
	FanID          uuid.UUID `db:"fan_id" json:"fan_id"`
	TotalXPEarned  int64     `db:"total_xp_earned" json:"total_xp_earned"`
	RankPosition   int       `db:"rank_position" json:"rank_position"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}
