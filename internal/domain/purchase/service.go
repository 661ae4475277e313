package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fanpulse/fanpulse-api/internal/domain/ledger"
	"github.com/fanpulse/fanpulse-api/internal/pkg/checkout"
)

// Prefix marking administrative awards in the purchase audit trail. Awards
// skip payment verification but still pass the idempotency guard.
const manualSessionPrefix = "manual:"

// Store commits a reserved purchase and its balance credits atomically.
type Store interface {
	Commit(ctx context.Context, p *Purchase, fanCredit, creatorCredit int64) error
}

// BalanceReader reads committed balances for fan-out payloads.
type BalanceReader interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*ledger.Balance, error)
}

// BoardRecorder feeds committed creator credits to the leaderboard ranker.
type BoardRecorder interface {
	RecordCredit(ctx context.Context, creatorID, fanID uuid.UUID, amount int64) error
}

// Publisher receives committed balance changes. Delivery is fire-and-forget.
type Publisher interface {
	PublishBalanceChange(userID uuid.UUID, payload interface{})
}

// Service is the credit engine: it drives a session from received through
// verified, reserved and credited, or rejects it with no ledger mutation.
type Service struct {
	store     Store
	balances  BalanceReader
	verifier  checkout.Verifier
	boards    BoardRecorder
	publisher Publisher
	fanRatio  float64
}

func NewService(store Store, balances BalanceReader, verifier checkout.Verifier, boards BoardRecorder, publisher Publisher, fanRatio float64) *Service {
	return &Service{
		store:     store,
		balances:  balances,
		verifier:  verifier,
		boards:    boards,
		publisher: publisher,
		fanRatio:  fanRatio,
	}
}

// CreditFromSession turns a checkout session into a balance credit exactly
// once. Replays of an already-credited session return success with
// AlreadyCredited set and leave the ledger untouched.
func (s *Service) CreditFromSession(ctx context.Context, sessionID string) (*Result, error) {
	sess, err := s.verifier.VerifySession(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("state", string(StateRejected)).Msg("session verification failed")
		return nil, err
	}
	if sess.XPAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	p := &Purchase{
		ExternalSessionID: sess.ID,
		UserID:            sess.UserID,
		XPAmount:          sess.XPAmount,
		AmountPaidMinor:   sess.AmountMinorUnits,
		Currency:          sess.Currency,
		XPType:            XPType(sess.XPType),
		PurchasedAt:       time.Now(),
	}
	if sess.CreatorID != nil {
		p.CreatorID = uuid.NullUUID{UUID: *sess.CreatorID, Valid: true}
	}

	// The fan is credited the full amount; for creator-typed purchases the
	// creator's own balance receives the non-fan share of the split.
	creatorCredit := int64(0)
	if p.XPType == XPTypeCreator && p.CreatorID.Valid {
		_, remainder, err := Split(p.XPAmount, s.fanRatio)
		if err != nil {
			return nil, err
		}
		creatorCredit = remainder
	}

	return s.commit(ctx, p, creatorCredit)
}

// ManualAward credits XP without payment verification. The synthetic
// session id keeps the award in the audit trail and under the guard.
func (s *Service) ManualAward(ctx context.Context, userID uuid.UUID, amount int64) (*Result, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	p := &Purchase{
		ExternalSessionID: manualSessionPrefix + uuid.NewString(),
		UserID:            userID,
		XPAmount:          amount,
		Currency:          "",
		XPType:            XPTypePlatform,
		PurchasedAt:       time.Now(),
	}
	return s.commit(ctx, p, 0)
}

func (s *Service) commit(ctx context.Context, p *Purchase, creatorCredit int64) (*Result, error) {
	err := s.store.Commit(ctx, p, p.XPAmount, creatorCredit)
	if errors.Is(err, ErrDuplicateSession) {
		log.Info().Str("session_id", p.ExternalSessionID).Msg("session already credited, treating as success")
		return &Result{AlreadyCredited: true}, nil
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", p.ExternalSessionID).Str("state", string(StateReserved)).Msg("credit commit failed")
		return nil, err
	}

	log.Info().
		Str("session_id", p.ExternalSessionID).
		Str("user_id", p.UserID.String()).
		Int64("xp_amount", p.XPAmount).
		Str("state", string(StateCredited)).
		Msg("xp credited")

	// Derived state and fan-out run after the commit and never undo it.
	if s.boards != nil && p.CreatorID.Valid {
		if err := s.boards.RecordCredit(ctx, p.CreatorID.UUID, p.UserID, p.XPAmount); err != nil {
			log.Error().Err(err).Str("creator_id", p.CreatorID.UUID.String()).Msg("leaderboard update failed")
		}
	}

	s.publishBalance(ctx, p.UserID)
	if creatorCredit > 0 && p.CreatorID.Valid {
		s.publishBalance(ctx, p.CreatorID.UUID)
	}

	return &Result{XPAdded: p.XPAmount}, nil
}

func (s *Service) publishBalance(ctx context.Context, userID uuid.UUID) {
	if s.publisher == nil || s.balances == nil {
		return
	}
	balance, err := s.balances.GetBalance(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance read for publish failed")
		return
	}
	s.publisher.PublishBalanceChange(userID, balance)
}
