package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"stamprally/internal/models"
	"stamprally/internal/storage"
)

// StampService verifies stamp claims, evaluates rally completion, and keeps
// the derived lucky-draw state (entries, tickets) in step with the ledger.
type StampService struct {
	store            *storage.Store
	requiredTotal    int
	ticketsPerStamps int
}

// NewStampService creates a StampService. requiredTotal is the number of
// distinct booths a participant must stamp to complete the rally;
// ticketsPerStamps is how many stamps earn one lucky-draw ticket.
func NewStampService(store *storage.Store, requiredTotal, ticketsPerStamps int) *StampService {
	return &StampService{
		store:            store,
		requiredTotal:    requiredTotal,
		ticketsPerStamps: ticketsPerStamps,
	}
}

// AttemptStamp validates a claimed code for a booth and records the visit on
// success. The duplicate check runs before any credential comparison so that
// an already-stamped participant learns nothing about whether their code is
// currently valid. Wrong codes and duplicates come back as a definitive
// non-accepted result with a reason category, not an error; unknown or
// inactive booths and unknown participants are errors.
func (s *StampService) AttemptStamp(userID string, boothID int, code string) (*models.StampResult, error) {
	participant, err := s.store.Participants.Get(userID)
	if err != nil {
		return nil, err
	}

	booth, err := s.store.Booths.Get(boothID)
	if err != nil {
		return nil, err
	}
	if !booth.IsActive {
		return nil, models.ErrBoothInactive
	}

	already, err := s.store.Ledger.Has(userID, boothID)
	if err != nil {
		return nil, err
	}
	if already {
		return s.rejected(userID, models.ReasonAlreadyStamped)
	}

	method, err := matchCredential(booth, code)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCode) {
			return s.rejected(userID, models.ReasonInvalidCode)
		}
		return nil, err
	}

	record := models.StampRecord{
		LogID:      uuid.NewString(),
		UserID:     userID,
		BoothID:    boothID,
		MethodUsed: method,
		VerifiedAt: time.Now(),
	}
	if err := s.store.Ledger.Insert(&record); err != nil {
		if errors.Is(err, models.ErrAlreadyStamped) {
			// A concurrent attempt for the same pair landed first.
			return s.rejected(userID, models.ReasonAlreadyStamped)
		}
		return nil, err
	}

	progress, err := s.evaluate(participant)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Tickets.Set(userID, progress.Count/s.ticketsPerStamps); err != nil {
		return nil, err
	}

	return &models.StampResult{
		Accepted: true,
		Method:   method,
		Progress: progress,
	}, nil
}

// GetProgress derives the participant's progress from the ledger.
func (s *StampService) GetProgress(userID string) (models.Progress, error) {
	if _, err := s.store.Participants.Get(userID); err != nil {
		return models.Progress{}, err
	}
	count, err := s.store.Ledger.Count(userID)
	if err != nil {
		return models.Progress{}, err
	}
	return s.progress(count), nil
}

// RefreshTickets recomputes the participant's ticket tally from the ledger
// and, as a recovery path, registers their lucky-draw entry if they already
// completed the rally but the registration never landed. Idempotent.
func (s *StampService) RefreshTickets(userID string) (int, error) {
	participant, err := s.store.Participants.Get(userID)
	if err != nil {
		return 0, err
	}
	progress, err := s.evaluate(participant)
	if err != nil {
		return 0, err
	}
	return s.store.Tickets.Set(userID, progress.Count/s.ticketsPerStamps)
}

// RegisterParticipant records a new participant identity. Re-registering an
// existing id returns the original row.
func (s *StampService) RegisterParticipant(userID, name, studentID string) (*models.Participant, error) {
	return s.store.Participants.Register(userID, name, studentID)
}

// ListBooths returns the secret-free booth listing served to participants.
func (s *StampService) ListBooths() ([]models.PublicBooth, error) {
	booths, err := s.store.Booths.List()
	if err != nil {
		return nil, err
	}
	public := make([]models.PublicBooth, 0, len(booths))
	for i := range booths {
		public = append(public, booths[i].Public())
	}
	return public, nil
}

// UpsertBooth creates or updates a booth, credentials included.
func (s *StampService) UpsertBooth(booth *models.Booth) error {
	return s.store.Booths.Upsert(booth)
}

// RotateBoothSecret replaces the booth's PIN or QR token with a fresh value.
// All previously issued codes of that kind stop working immediately.
func (s *StampService) RotateBoothSecret(boothID int, kind string) (string, error) {
	secret, err := s.store.Booths.RotateSecret(boothID, kind)
	if err != nil {
		return "", err
	}
	logger.Infof("Rotated %s secret for booth %d", kind, boothID)
	return secret, nil
}

// ListRotations returns the rotation audit trail for a booth.
func (s *StampService) ListRotations(boothID int) ([]models.SecretRotation, error) {
	return s.store.Booths.ListRotations(boothID)
}

// ListProgress serves the admin progress listing.
func (s *StampService) ListProgress(search, order string, page, pageSize int) ([]models.ParticipantProgress, error) {
	return s.store.Ledger.ListProgress(search, order, page, pageSize, s.requiredTotal)
}

// evaluate recomputes progress from the ledger and, on completion, ensures
// the lucky-draw entry exists. Safe to call any number of times: entry
// creation is existence-checked and constraint-backed, so only the first
// completion ever creates one.
func (s *StampService) evaluate(participant *models.Participant) (models.Progress, error) {
	count, err := s.store.Ledger.Count(participant.UserID)
	if err != nil {
		return models.Progress{}, err
	}
	progress := s.progress(count)

	if progress.Completed {
		_, created, err := s.store.Registry.RegisterIfEligible(participant, time.Now())
		if err != nil {
			return models.Progress{}, err
		}
		if created {
			logger.Infof("Participant %s completed the rally, lucky draw entry created", participant.UserID)
		}
	}
	return progress, nil
}

func (s *StampService) progress(count int) models.Progress {
	return models.Progress{
		Count:         count,
		Completed:     count >= s.requiredTotal,
		RequiredTotal: s.requiredTotal,
	}
}

func (s *StampService) rejected(userID, reason string) (*models.StampResult, error) {
	count, err := s.store.Ledger.Count(userID)
	if err != nil {
		return nil, err
	}
	return &models.StampResult{
		Accepted: false,
		Reason:   reason,
		Progress: s.progress(count),
	}, nil
}

// matchCredential compares the entered code against each credential the
// booth carries and names the one that matched. A code that matches none
// of them comes back as ErrInvalidCode. Comparison is exact after
// trimming; empty credentials never match.
func matchCredential(booth *models.Booth, code string) (string, error) {
	entered := strings.TrimSpace(code)
	if entered == "" {
		return "", models.ErrInvalidCode
	}
	switch {
	case booth.StaffPIN != "" && entered == booth.StaffPIN:
		return models.MethodPIN, nil
	case booth.QRToken != "" && entered == booth.QRToken:
		return models.MethodQR, nil
	case booth.QuizAnswer != "" && entered == booth.QuizAnswer:
		return models.MethodQuiz, nil
	}
	return "", models.ErrInvalidCode
}
