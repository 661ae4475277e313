package realtime

// Entity identifies which derived state a change event carries.
type Entity string

const (
	EntityBalance     Entity = "balance"
	EntityLeaderboard Entity = "leaderboard"
)

// ChangeEvent is what observers receive. Delivery is at-least-once and the
// newest event for a key carries the full new value, so an observer that
// overwrites local state on every event stays correct under duplicates.
type ChangeEvent struct {
	Entity   Entity      `json:"entity"`
	Key      string      `json:"key"`
	NewValue interface{} `json:"new_value"`
}
