package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stamprally/internal/models"
)

// ParticipantStore manages participant identity rows.
type ParticipantStore struct {
	db *gorm.DB
}

func NewParticipantStore(db *gorm.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

// Get returns the participant with the given user id.
func (s *ParticipantStore) Get(userID string) (*models.Participant, error) {
	var p models.Participant
	if err := s.db.First(&p, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("load participant %s: %w", userID, err)
	}
	return &p, nil
}

// Register creates the participant if absent. Re-registering an existing id
// returns the original row untouched; participant rows are immutable.
func (s *ParticipantStore) Register(userID, name, studentID string) (*models.Participant, error) {
	p := models.Participant{
		UserID:    userID,
		Name:      name,
		StudentID: studentID,
		CreatedAt: time.Now(),
	}
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error
	if err != nil && !isDuplicate(err) {
		return nil, fmt.Errorf("register participant %s: %w", userID, err)
	}
	return s.Get(userID)
}
