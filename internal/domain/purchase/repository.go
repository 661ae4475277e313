package purchase

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fanpulse/fanpulse-api/internal/domain/ledger"
)

type Repository struct {
	db      *sqlx.DB
	ledgers *ledger.Repository
}

func NewRepository(db *sqlx.DB, ledgers *ledger.Repository) *Repository {
	return &Repository{db: db, ledgers: ledgers}
}

// Commit reserves the session and applies the credits in one transaction.
// The purchase insert is the idempotency guard: its unique key is the
// atomic insert-if-absent, and a duplicate surfaces as ErrDuplicateSession
// with no ledger mutation. Either the purchase row and every balance
// increment land together, or none do.
func (r *Repository) Commit(ctx context.Context, p *Purchase, fanCredit, creatorCredit int64) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO xp_purchases (external_session_id, user_id, xp_amount, amount_paid_minor_units, currency, creator_id, xp_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ExternalSessionID, p.UserID, p.XPAmount, p.AmountPaidMinor, p.Currency, p.CreatorID, string(p.XPType)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSession
		}
		return err
	}

	if err := r.ledgers.CreditTx(ctx, tx, p.UserID, fanCredit); err != nil {
		return err
	}

	if creatorCredit > 0 && p.CreatorID.Valid {
		if err := r.ledgers.CreditTx(ctx, tx, p.CreatorID.UUID, creatorCredit); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetBySessionID loads the audit row for a session, if any.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (*Purchase, error) {
	var p Purchase
	err := r.db.GetContext(ctx, &p, `
		SELECT external_session_id, user_id, xp_amount, amount_paid_minor_units, currency, creator_id, xp_type, purchased_at
		FROM xp_purchases
		WHERE external_session_id = $1
	`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
