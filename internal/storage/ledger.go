package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"stamprally/internal/models"
)

// Progress listing sort orders.
const (
	OrderStamps = "stamps"
	OrderRecent = "recent"
)

// StampLedger is the append-only record of verified booth visits. The
// unique index on (user_id, booth_id) is the single source of truth for
// duplicate detection; a violated insert comes back as ErrAlreadyStamped.
type StampLedger struct {
	db *gorm.DB
}

func NewStampLedger(db *gorm.DB) *StampLedger {
	return &StampLedger{db: db}
}

// Insert appends one visit record. Returns ErrAlreadyStamped when a record
// for the same (participant, booth) pair already exists, including when a
// concurrent attempt won the race.
func (l *StampLedger) Insert(record *models.StampRecord) error {
	if err := l.db.Create(record).Error; err != nil {
		if isDuplicate(err) {
			return models.ErrAlreadyStamped
		}
		return fmt.Errorf("insert stamp log: %w", err)
	}
	return nil
}

// Has reports whether the participant already stamped the booth.
func (l *StampLedger) Has(userID string, boothID int) (bool, error) {
	var count int64
	err := l.db.Model(&models.StampRecord{}).
		Where("user_id = ? AND booth_id = ?", userID, boothID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check stamp log: %w", err)
	}
	return count > 0, nil
}

// Count returns the number of distinct booths the participant has stamped.
// The unique index makes a plain row count equivalent.
func (l *StampLedger) Count(userID string) (int, error) {
	var count int64
	err := l.db.Model(&models.StampRecord{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count stamps: %w", err)
	}
	return int(count), nil
}

// ListForParticipant returns the participant's visit records, oldest first.
func (l *StampLedger) ListForParticipant(userID string) ([]models.StampRecord, error) {
	var records []models.StampRecord
	err := l.db.
		Where("user_id = ?", userID).
		Order("verified_at asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list stamps: %w", err)
	}
	return records, nil
}

// lastStampAt returns the time of the participant's most recent stamp, or
// nil when they have none.
func (l *StampLedger) lastStampAt(userID string) (*time.Time, error) {
	var record models.StampRecord
	err := l.db.
		Where("user_id = ?", userID).
		Order("verified_at desc").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load last stamp: %w", err)
	}
	return &record.VerifiedAt, nil
}

type stampCount struct {
	UserID string
	Stamps int
}

// ListProgress builds the admin progress listing: per-participant stamp
// counts with completion, optionally filtered by a name/student-id search,
// sorted by order (OrderStamps or OrderRecent) and paged. Page numbers start
// at 1.
func (l *StampLedger) ListProgress(search, order string, page, pageSize, requiredTotal int) ([]models.ParticipantProgress, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	query := l.db.Model(&models.Participant{})
	if s := strings.TrimSpace(search); s != "" {
		pattern := "%" + s + "%"
		query = query.Where("name LIKE ? OR student_id LIKE ?", pattern, pattern)
	}
	var participants []models.Participant
	if err := query.Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	var counts []stampCount
	err := l.db.Model(&models.StampRecord{}).
		Select("user_id, count(*) as stamps").
		Group("user_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count stamps per participant: %w", err)
	}
	byUser := make(map[string]int, len(counts))
	for _, c := range counts {
		byUser[c.UserID] = c.Stamps
	}

	rows := make([]models.ParticipantProgress, 0, len(participants))
	for _, p := range participants {
		stamps := byUser[p.UserID]
		rows = append(rows, models.ParticipantProgress{
			UserID:        p.UserID,
			Name:          p.Name,
			StudentID:     p.StudentID,
			Stamps:        stamps,
			Completed:     stamps >= requiredTotal,
			RequiredTotal: requiredTotal,
		})
	}

	// The page is small; last-stamp times are filled in only for rows that
	// survive pagination.
	switch order {
	case OrderRecent:
		for i := range rows {
			last, err := l.lastStampAt(rows[i].UserID)
			if err != nil {
				return nil, err
			}
			rows[i].LastStampAt = last
		}
		sort.SliceStable(rows, func(i, j int) bool {
			li, lj := rows[i].LastStampAt, rows[j].LastStampAt
			if li == nil {
				return false
			}
			if lj == nil {
				return true
			}
			return li.After(*lj)
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Stamps != rows[j].Stamps {
				return rows[i].Stamps > rows[j].Stamps
			}
			return rows[i].StudentID < rows[j].StudentID
		})
	}

	start := (page - 1) * pageSize
	if start >= len(rows) {
		return []models.ParticipantProgress{}, nil
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	rows = rows[start:end]

	if order != OrderRecent {
		for i := range rows {
			last, err := l.lastStampAt(rows[i].UserID)
			if err != nil {
				return nil, err
			}
			rows[i].LastStampAt = last
		}
	}
	return rows, nil
}
