package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"stamprally/internal/models"
)

// Open opens (and if necessary creates) the SQLite database at path.
// TranslateError turns unique-constraint violations into
// gorm.ErrDuplicatedKey, which the repositories rely on for duplicate
// detection.
func Open(path string) (*gorm.DB, error) {
	if err := ensureDirectory(path); err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; one connection avoids busy errors
	// under concurrent stamp attempts.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Booth{},
		&models.Participant{},
		&models.StampRecord{},
		&models.LuckyDrawEntry{},
		&models.TicketTally{},
		&models.SecretRotation{},
	)
}

// Store bundles the repositories over one database handle.
type Store struct {
	Booths       *BoothStore
	Participants *ParticipantStore
	Ledger       *StampLedger
	Registry     *DrawRegistry
	Tickets      *TicketStore
}

// NewStore wires all repositories to db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Booths:       NewBoothStore(db),
		Participants: NewParticipantStore(db),
		Ledger:       NewStampLedger(db),
		Registry:     NewDrawRegistry(db),
		Tickets:      NewTicketStore(db),
	}
}

// isDuplicate reports whether err is a unique-constraint violation. The
// raw-message check covers drivers that predate gorm's error translation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func ensureDirectory(path string) error {
	candidate := strings.TrimSpace(path)
	if candidate == "" || candidate == ":memory:" || strings.HasPrefix(candidate, "file:") {
		return nil
	}
	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
