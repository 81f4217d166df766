package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stamprally/internal/models"
)

// TicketStore keeps the derived lucky-draw ticket tallies.
type TicketStore struct {
	db *gorm.DB
}

func NewTicketStore(db *gorm.DB) *TicketStore {
	return &TicketStore{db: db}
}

// Set upserts the participant's tally to count. The value is derived from
// the ledger by the caller, so writing the same count twice is harmless.
func (s *TicketStore) Set(userID string, count int) (int, error) {
	now := time.Now()
	tally := models.TicketTally{
		ID:          uuid.NewString(),
		UserID:      userID,
		TicketCount: count,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"ticket_count": count,
			"updated_at":   now,
		}),
	}).Create(&tally).Error
	if err != nil {
		return 0, fmt.Errorf("upsert ticket tally: %w", err)
	}
	return count, nil
}

// Get returns the participant's current tally, zero when none exists yet.
func (s *TicketStore) Get(userID string) (int, error) {
	var tally models.TicketTally
	err := s.db.First(&tally, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load ticket tally: %w", err)
	}
	return tally.TicketCount, nil
}
