package leaderboard

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultTopLimit = 50

// Store is the ranking persistence the service drives.
type Store interface {
	RecordCredit(ctx context.Context, creatorID, fanID uuid.UUID, amount int64) (*Entry, error)
	Top(ctx context.Context, creatorID uuid.UUID, limit int) ([]Entry, error)
}

// Publisher receives committed ranking changes. Delivery is fire-and-forget.
type Publisher interface {
	PublishLeaderboardChange(creatorID uuid.UUID, payload interface{})
}

type Service struct {
	store     Store
	publisher Publisher
}

func NewService(store Store, publisher Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

// RecordCredit folds a committed creator credit into the board. Called
// after the ledger commit; a failure here never unwinds the credit.
func (s *Service) RecordCredit(ctx context.Context, creatorID, fanID uuid.UUID, amount int64) error {
	entry, err := s.store.RecordCredit(ctx, creatorID, fanID, amount)
	if err != nil {
		return err
	}

	log.Debug().
		Str("creator_id", creatorID.String()).
		Str("fan_id", fanID.String()).
		Int64("amount", amount).
		Int("rank", entry.RankPosition).
		Msg("leaderboard entry updated")

	if s.publisher != nil {
		s.publisher.PublishLeaderboardChange(creatorID, entry)
	}
	return nil
}

// Top returns the creator's highest-ranked fans.
func (s *Service) Top(ctx context.Context, creatorID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultTopLimit
	}
	return s.store.Top(ctx, creatorID, limit)
}
