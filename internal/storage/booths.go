package storage

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stamprally/internal/models"
)

// BoothStore manages booth rows, their credentials, and the rotation audit
// log.
type BoothStore struct {
	db *gorm.DB
}

func NewBoothStore(db *gorm.DB) *BoothStore {
	return &BoothStore{db: db}
}

// Get returns the booth with the given id.
func (s *BoothStore) Get(boothID int) (*models.Booth, error) {
	var booth models.Booth
	if err := s.db.First(&booth, "booth_id = ?", boothID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrBoothNotFound
		}
		return nil, fmt.Errorf("load booth %d: %w", boothID, err)
	}
	return &booth, nil
}

// List returns every booth ordered by id.
func (s *BoothStore) List() ([]models.Booth, error) {
	var booths []models.Booth
	if err := s.db.Order("booth_id asc").Find(&booths).Error; err != nil {
		return nil, fmt.Errorf("list booths: %w", err)
	}
	return booths, nil
}

// Upsert creates the booth or overwrites an existing row with the same id.
func (s *BoothStore) Upsert(booth *models.Booth) error {
	if booth.BoothID <= 0 {
		return fmt.Errorf("booth id must be positive, got %d", booth.BoothID)
	}
	if booth.CreatedAt.IsZero() {
		booth.CreatedAt = time.Now()
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "booth_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "location", "teacher",
			"staff_pin", "qr_token", "quiz_answer", "is_active",
		}),
	}).Create(booth).Error
	if err != nil {
		return fmt.Errorf("upsert booth %d: %w", booth.BoothID, err)
	}
	return nil
}

// RotateSecret replaces the named credential with a freshly generated value
// and appends an audit row. The old value stops matching the moment the
// transaction commits.
func (s *BoothStore) RotateSecret(boothID int, kind string) (string, error) {
	var secret string
	var err error
	var column string

	switch kind {
	case models.SecretKindPIN:
		secret, err = generatePIN()
		column = "staff_pin"
	case models.SecretKindQR:
		secret, err = generateToken()
		column = "qr_token"
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnknownSecretKind, kind)
	}
	if err != nil {
		return "", fmt.Errorf("generate %s secret: %w", kind, err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Booth{}).Where("booth_id = ?", boothID).Update(column, secret)
		if res.Error != nil {
			return fmt.Errorf("rotate booth %d: %w", boothID, res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrBoothNotFound
		}
		rotation := models.SecretRotation{
			ID:        uuid.NewString(),
			BoothID:   boothID,
			Kind:      kind,
			RotatedAt: time.Now(),
		}
		if err := tx.Create(&rotation).Error; err != nil {
			return fmt.Errorf("record rotation: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return secret, nil
}

// ListRotations returns the rotation audit trail for a booth, newest first.
func (s *BoothStore) ListRotations(boothID int) ([]models.SecretRotation, error) {
	var rotations []models.SecretRotation
	err := s.db.
		Where("booth_id = ?", boothID).
		Order("rotated_at desc").
		Find(&rotations).Error
	if err != nil {
		return nil, fmt.Errorf("list rotations for booth %d: %w", boothID, err)
	}
	return rotations, nil
}

// SeedFromFile loads booths from a JSON array and upserts each one. Used
// for event setup; safe to run repeatedly.
func (s *BoothStore) SeedFromFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var booths []models.Booth
	if err := json.Unmarshal(raw, &booths); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	for i := range booths {
		if err := s.Upsert(&booths[i]); err != nil {
			return i, err
		}
	}
	return len(booths), nil
}

func generatePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
