package leaderboard

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// RecordCredit increments the (creator, fan) pair and rewrites rank
// positions for that creator's fan set only.
func (r *Repository) RecordCredit(ctx context.Context, creatorID, fanID uuid.UUID, amount int64) (*Entry, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO xp_leaderboard (creator_id, fan_id, total_xp_earned, rank_position, last_activity_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (creator_id, fan_id) DO UPDATE
		SET total_xp_earned = xp_leaderboard.total_xp_earned + $3,
		    last_activity_at = now()
	`, creatorID, fanID, amount); err != nil {
		return nil, err
	}

	if err := recomputeRanks(ctx, tx, creatorID); err != nil {
		return nil, err
	}

	var entry Entry
	if err := tx.GetContext(ctx, &entry, `
		SELECT creator_id, fan_id, total_xp_earned, rank_position, last_activity_at
		FROM xp_leaderboard
		WHERE creator_id = $1 AND fan_id = $2
	`, creatorID, fanID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

// recomputeRanks rewrites rank_position for a single creator's fan set.
// Ties on total XP break toward the earlier last activity (first mover
// keeps the higher rank).
func recomputeRanks(ctx context.Context, tx *sqlx.Tx, creatorID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE xp_leaderboard
		SET rank_position = ranked.position
		FROM (
			SELECT fan_id,
			       ROW_NUMBER() OVER (ORDER BY total_xp_earned DESC, last_activity_at ASC) AS position
			FROM xp_leaderboard
			WHERE creator_id = $1
		) ranked
		WHERE xp_leaderboard.creator_id = $1 AND xp_leaderboard.fan_id = ranked.fan_id
	`, creatorID)
	return err
}

// Top returns the highest-ranked fans for a creator.
func (r *Repository) Top(ctx context.Context, creatorID uuid.UUID, limit int) ([]Entry, error) {
	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT creator_id, fan_id, total_xp_earned, rank_position, last_activity_at
		FROM xp_leaderboard
		WHERE creator_id = $1
		ORDER BY rank_position ASC
		LIMIT $2
	`, creatorID, limit)
	return entries, err
}

// Get returns a single fan's entry, or nil when the fan is unranked.
func (r *Repository) Get(ctx context.Context, creatorID, fanID uuid.UUID) (*Entry, error) {
	var entry Entry
	err := r.db.GetContext(ctx, &entry, `
		SELECT creator_id, fan_id, total_xp_earned, rank_position, last_activity_at
		FROM xp_leaderboard
		WHERE creator_id = $1 AND fan_id = $2
	`, creatorID, fanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
