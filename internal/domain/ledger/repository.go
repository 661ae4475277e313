package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureBalance lazily creates the balance row. Balances are never deleted.
func (r *Repository) EnsureBalance(ctx context.Context, userID uuid.UUID) error {
	return ensureBalance(ctx, r.db, userID)
}

func ensureBalance(ctx context.Context, e sqlx.ExecerContext, userID uuid.UUID) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO xp_balances (user_id, current_xp, total_earned_xp, total_spent_xp)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	if err := r.EnsureBalance(ctx, userID); err != nil {
		return nil, err
	}

	var b Balance
	err := r.db.GetContext(ctx, &b, `
		SELECT user_id, current_xp, total_earned_xp, total_spent_xp, updated_at
		FROM xp_balances
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreditTx applies an additive credit inside the caller's transaction.
// The increment runs in SQL so concurrent credits to the same user never
// lose updates.
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount int64) error {
	if err := ensureBalance(ctx, tx, userID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE xp_balances
		SET current_xp = current_xp + $1,
		    total_earned_xp = total_earned_xp + $1,
		    updated_at = now()
		WHERE user_id = $2
	`, amount, userID)
	return err
}

// Spend atomically decrements the balance, guarded by sufficiency and an
// idempotency reference. A replayed reference with the same amount is a
// no-op success; a different amount is a conflict.
func (r *Repository) Spend(ctx context.Context, userID uuid.UUID, amount int64, referenceID string) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureBalance(ctx, tx, userID); err != nil {
		return err
	}

	var existing int64
	err = tx.GetContext(ctx, &existing, `
		SELECT amount FROM xp_spends WHERE user_id = $1 AND reference_id = $2
	`, userID, referenceID)
	if err == nil {
		if existing != amount {
			return ErrReferenceConflict
		}
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE xp_balances
		SET current_xp = current_xp - $1,
		    total_spent_xp = total_spent_xp + $1,
		    updated_at = now()
		WHERE user_id = $2 AND current_xp >= $1
	`, amount, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientXP
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO xp_spends (user_id, amount, reference_id)
		VALUES ($1, $2, $3)
	`, userID, amount, referenceID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Lost an insert race on the reference. The transaction is
			// aborted; classify the replay against the winner's committed
			// receipt, same as the pre-check above.
			var stored int64
			if err := r.db.GetContext(ctx, &stored, `
				SELECT amount FROM xp_spends WHERE user_id = $1 AND reference_id = $2
			`, userID, referenceID); err != nil {
				return err
			}
			if stored != amount {
				return ErrReferenceConflict
			}
			return nil
		}
		return err
	}

	return tx.Commit()
}

// Overwrite sets the balance to an absolute value. This is the privileged
// bulk-rewrite path only; every other mutation is a delta.
func (r *Repository) Overwrite(ctx context.Context, userID uuid.UUID, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO xp_balances (user_id, current_xp, total_earned_xp, total_spent_xp)
		VALUES ($1, $2, $2, 0)
		ON CONFLICT (user_id) DO UPDATE
		SET current_xp = $2,
		    total_earned_xp = $2,
		    total_spent_xp = 0,
		    updated_at = now()
	`, userID, amount)
	return err
}
