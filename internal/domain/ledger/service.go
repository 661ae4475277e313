package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Cap on per-user failures reported back from a bulk rewrite; the full
// set is still logged.
const maxBulkErrors = 20

// Store is the balance persistence the service drives.
type Store interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error)
	Spend(ctx context.Context, userID uuid.UUID, amount int64, referenceID string) error
	Overwrite(ctx context.Context, userID uuid.UUID, amount int64) error
}

// UserLister enumerates the user ids a bulk rewrite applies to.
type UserLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Publisher receives committed balance changes. Delivery is fire-and-forget.
type Publisher interface {
	PublishBalanceChange(userID uuid.UUID, payload interface{})
}

type Service struct {
	store     Store
	users     UserLister
	publisher Publisher
}

func NewService(store Store, users UserLister, publisher Publisher) *Service {
	return &Service{store: store, users: users, publisher: publisher}
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	return s.store.GetBalance(ctx, userID)
}

// Spend redeems XP against a balance. Idempotent by referenceID.
func (s *Service) Spend(ctx context.Context, userID uuid.UUID, amount int64, referenceID string) error {
	if amount <= 0 || referenceID == "" {
		return ErrInvalidAmount
	}
	if err := s.store.Spend(ctx, userID, amount, referenceID); err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Int64("amount", amount).Str("reference_id", referenceID).Msg("xp spend applied")

	s.publishBalance(ctx, userID)
	return nil
}

// SetAllBalances overwrites every user's balance with an absolute value.
// This is the privileged administrative override: per-user failures are
// collected, not fatal, and the result reports partial success.
func (s *Service) SetAllBalances(ctx context.Context, amount int64) (*BulkResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{Errors: []BulkError{}}
	for _, id := range ids {
		if err := s.store.Overwrite(ctx, id, amount); err != nil {
			log.Error().Err(err).Str("user_id", id.String()).Msg("bulk rewrite failed for user")
			if len(result.Errors) < maxBulkErrors {
				result.Errors = append(result.Errors, BulkError{UserID: id, Error: err.Error()})
			}
			continue
		}
		result.UpdatedCount++

		if s.publisher != nil {
			s.publisher.PublishBalanceChange(id, &Balance{
				UserID:        id,
				CurrentXP:     amount,
				TotalEarnedXP: amount,
				TotalSpentXP:  0,
				UpdatedAt:     time.Now(),
			})
		}
	}

	log.Info().Int64("amount", amount).Int("updated", result.UpdatedCount).Int("failed", len(result.Errors)).Msg("bulk balance rewrite finished")
	return result, nil
}

func (s *Service) publishBalance(ctx context.Context, userID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	balance, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance read for publish failed")
		return
	}
	s.publisher.PublishBalanceChange(userID, balance)
}
