package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stamprally/internal/models"
)

// DrawRegistry tracks lucky-draw entries: one per participant who has ever
// completed the rally. Entries are never deleted; only the winner flag
// toggles, and only through Confirm/Revoke.
type DrawRegistry struct {
	db *gorm.DB
}

func NewDrawRegistry(db *gorm.DB) *DrawRegistry {
	return &DrawRegistry{db: db}
}

// RegisterIfEligible creates the entry for a now-completed participant,
// snapshotting name and student id. If an entry already exists it is
// returned untouched, preserving the original completion timestamp. The
// unique index on user_id backstops concurrent registration attempts; the
// returned bool reports whether a new entry was created.
func (r *DrawRegistry) RegisterIfEligible(p *models.Participant, completedAt time.Time) (*models.LuckyDrawEntry, bool, error) {
	existing, err := r.byUser(p.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	entry := models.LuckyDrawEntry{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		Name:        p.Name,
		StudentID:   p.StudentID,
		CompletedAt: completedAt,
	}
	if err := r.db.Create(&entry).Error; err != nil {
		if isDuplicate(err) {
			// Lost the race to a concurrent completion; theirs stands.
			existing, err = r.byUser(p.UserID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create lucky draw entry: %w", err)
	}
	return &entry, true, nil
}

// ListEligible returns every entry regardless of winner status, oldest
// completion first. This is the full pool of completed participants.
func (r *DrawRegistry) ListEligible() ([]models.LuckyDrawEntry, error) {
	return r.list(r.db)
}

// ListWinners returns confirmed winners only.
func (r *DrawRegistry) ListWinners() ([]models.LuckyDrawEntry, error) {
	return r.list(r.db.Where("is_winner = ?", true))
}

// ListNonWinners returns entries that have not been confirmed as winners —
// the pool a draw samples from.
func (r *DrawRegistry) ListNonWinners() ([]models.LuckyDrawEntry, error) {
	return r.list(r.db.Where("is_winner = ?", false))
}

// ConfirmWinners flips the winner flag on every entry in ids inside one
// transaction. The whole call is rejected with ErrInvalidWinnerSet when any
// id is unknown, already a winner, or listed twice; nothing is applied in
// that case.
func (r *DrawRegistry) ConfirmWinners(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: empty id list", models.ErrInvalidWinnerSet)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %s", models.ErrInvalidWinnerSet, id)
		}
		seen[id] = true
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var entries []models.LuckyDrawEntry
		if err := tx.Where("id IN ?", ids).Find(&entries).Error; err != nil {
			return fmt.Errorf("load entries: %w", err)
		}
		if len(entries) != len(ids) {
			return fmt.Errorf("%w: %d of %d ids unknown", models.ErrInvalidWinnerSet, len(ids)-len(entries), len(ids))
		}
		for _, e := range entries {
			if e.IsWinner {
				return fmt.Errorf("%w: %s is already a winner", models.ErrInvalidWinnerSet, e.ID)
			}
		}
		err := tx.Model(&models.LuckyDrawEntry{}).
			Where("id IN ?", ids).
			Update("is_winner", true).Error
		if err != nil {
			return fmt.Errorf("confirm winners: %w", err)
		}
		return nil
	})
}

// RevokeWinner clears the winner flag on a previously confirmed entry,
// returning it to the draw pool. ErrInvalidWinnerSet when the entry is
// unknown or not currently a winner.
func (r *DrawRegistry) RevokeWinner(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var entry models.LuckyDrawEntry
		if err := tx.First(&entry, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unknown entry %s", models.ErrInvalidWinnerSet, id)
			}
			return fmt.Errorf("load entry: %w", err)
		}
		if !entry.IsWinner {
			return fmt.Errorf("%w: %s is not a winner", models.ErrInvalidWinnerSet, id)
		}
		err := tx.Model(&entry).Update("is_winner", false).Error
		if err != nil {
			return fmt.Errorf("revoke winner: %w", err)
		}
		return nil
	})
}

func (r *DrawRegistry) byUser(userID string) (*models.LuckyDrawEntry, error) {
	var entry models.LuckyDrawEntry
	err := r.db.First(&entry, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load lucky draw entry: %w", err)
	}
	return &entry, nil
}

func (r *DrawRegistry) list(query *gorm.DB) ([]models.LuckyDrawEntry, error) {
	var entries []models.LuckyDrawEntry
	if err := query.Order("completed_at asc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list lucky draw entries: %w", err)
	}
	return entries, nil
}
