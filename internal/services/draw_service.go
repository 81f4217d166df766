package services

import (
	"fmt"
	"math/rand"

	"github.com/google/logger"

	"stamprally/internal/models"
	"stamprally/internal/storage"
)

// DrawService runs the two-phase lucky draw: Sample proposes candidates
// without touching storage, Confirm is the only durable mutation, Revoke
// undoes one. Re-rolling is just calling Sample again.
type DrawService struct {
	registry *storage.DrawRegistry
}

func NewDrawService(registry *storage.DrawRegistry) *DrawService {
	return &DrawService{registry: registry}
}

// ListEligible returns the full pool of completed participants.
func (s *DrawService) ListEligible() ([]models.LuckyDrawEntry, error) {
	return s.registry.ListEligible()
}

// ListWinners returns confirmed winners.
func (s *DrawService) ListWinners() ([]models.LuckyDrawEntry, error) {
	return s.registry.ListWinners()
}

// SampleCandidates picks n entries uniformly at random from the non-winner
// pool. Every entry in the pool has equal probability: the pool is shuffled
// with a full Fisher-Yates pass and the first n taken, so no position or
// registration order is favored. Read-only; nothing is persisted until
// Confirm.
func (s *DrawService) SampleCandidates(n int) ([]models.LuckyDrawEntry, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: requested %d", models.ErrInsufficientPool, n)
	}
	pool, err := s.registry.ListNonWinners()
	if err != nil {
		return nil, err
	}
	if n > len(pool) {
		return nil, fmt.Errorf("%w: requested %d, have %d", models.ErrInsufficientPool, n, len(pool))
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:n], nil
}

// ConfirmWinners marks every entry in ids as a winner, all or nothing.
// Returns how many entries were affected.
func (s *DrawService) ConfirmWinners(ids []string) (int, error) {
	if err := s.registry.ConfirmWinners(ids); err != nil {
		return 0, err
	}
	logger.Infof("Confirmed %d lucky draw winners", len(ids))
	return len(ids), nil
}

// RevokeWinner returns a confirmed winner to the draw pool.
func (s *DrawService) RevokeWinner(id string) error {
	if err := s.registry.RevokeWinner(id); err != nil {
		return err
	}
	logger.Infof("Revoked lucky draw winner %s", id)
	return nil
}
