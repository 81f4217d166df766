package models

import "time"

// Verification methods recorded on a stamp log, naming which booth
// credential the participant presented.
const (
	MethodPIN  = "pin"
	MethodQR   = "qr"
	MethodQuiz = "quiz"
)

// Rotatable secret kinds. The quiz answer is set by an admin booth
// update rather than rotated, so it is not listed here.
const (
	SecretKindPIN = "pin"
	SecretKindQR  = "qr"
)

// Booth represents a festival station with the secret codes a participant
// must submit to register a visit. StaffPIN is always present; the QR token
// and quiz answer are optional extra credentials checked by the same
// match-any rule.
type Booth struct {
	BoothID     int       `gorm:"column:booth_id;primaryKey" json:"booth_id"`
	Name        string    `gorm:"column:name;type:text;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	Location    string    `gorm:"column:location;type:text" json:"location,omitempty"`
	Teacher     string    `gorm:"column:teacher;type:text" json:"teacher,omitempty"`
	StaffPIN    string    `gorm:"column:staff_pin;type:text;not null" json:"staff_pin,omitempty"`
	QRToken     string    `gorm:"column:qr_token;type:text" json:"qr_token,omitempty"`
	QuizAnswer  string    `gorm:"column:quiz_answer;type:text" json:"quiz_answer,omitempty"`
	IsActive    bool      `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Booth) TableName() string { return "booths" }

// PublicBooth is the secret-free projection of a booth served to participants.
type PublicBooth struct {
	BoothID     int    `json:"booth_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Teacher     string `json:"teacher,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Public strips the credentials from a booth.
func (b *Booth) Public() PublicBooth {
	return PublicBooth{
		BoothID:     b.BoothID,
		Name:        b.Name,
		Description: b.Description,
		Location:    b.Location,
		Teacher:     b.Teacher,
		IsActive:    b.IsActive,
	}
}

// Participant is one authenticated person in the rally. Rows are created at
// registration and never modified afterward.
type Participant struct {
	UserID    string    `gorm:"column:user_id;primaryKey" json:"user_id"`
	Name      string    `gorm:"column:name;type:text;not null" json:"name"`
	StudentID string    `gorm:"column:student_id;type:text;not null" json:"student_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Participant) TableName() string { return "participants" }

// StampRecord is one verified booth visit. The unique index over
// (user_id, booth_id) is what makes duplicate claims impossible: concurrent
// inserts for the same pair cannot both pass it. Rows are append-only.
type StampRecord struct {
	LogID      string    `gorm:"column:log_id;primaryKey" json:"log_id"`
	UserID     string    `gorm:"column:user_id;type:text;not null;uniqueIndex:idx_stamp_user_booth" json:"user_id"`
	BoothID    int       `gorm:"column:booth_id;not null;uniqueIndex:idx_stamp_user_booth" json:"booth_id"`
	MethodUsed string    `gorm:"column:method_used;type:text;not null" json:"method_used"`
	VerifiedAt time.Time `gorm:"column:verified_at;not null" json:"verified_at"`
}

func (StampRecord) TableName() string { return "stamp_logs" }

// LuckyDrawEntry is created once when a participant first stamps every
// required booth. Name and StudentID are snapshots taken at completion time.
// Only IsWinner ever changes after creation, via confirm/revoke.
type LuckyDrawEntry struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	UserID      string    `gorm:"column:user_id;type:text;not null;uniqueIndex" json:"user_id"`
	Name        string    `gorm:"column:name;type:text;not null" json:"name"`
	StudentID   string    `gorm:"column:student_id;type:text;not null" json:"student_id"`
	CompletedAt time.Time `gorm:"column:completed_at;not null" json:"completed_at"`
	IsWinner    bool      `gorm:"column:is_winner;not null" json:"is_winner"`
}

func (LuckyDrawEntry) TableName() string { return "lucky_draw_entries" }

// TicketTally holds the derived lucky-draw ticket count for a participant.
// It is recomputed from the stamp ledger on every refresh and carries no
// state of its own.
type TicketTally struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	UserID      string    `gorm:"column:user_id;type:text;not null;uniqueIndex" json:"user_id"`
	TicketCount int       `gorm:"column:ticket_count;not null" json:"ticket_count"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (TicketTally) TableName() string { return "lucky_draw_tickets" }

// SecretRotation is the audit record of one credential rotation. The booth
// row keeps only the current secret; old values are gone the moment the
// rotation lands.
type SecretRotation struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	BoothID   int       `gorm:"column:booth_id;not null;index" json:"booth_id"`
	Kind      string    `gorm:"column:kind;type:text;not null" json:"kind"`
	RotatedAt time.Time `gorm:"column:rotated_at;not null" json:"rotated_at"`
}

func (SecretRotation) TableName() string { return "secret_rotations" }

// Progress is derived from the ledger on demand and never stored.
type Progress struct {
	Count         int  `json:"count"`
	Completed     bool `json:"completed"`
	RequiredTotal int  `json:"required_total"`
}

// ParticipantProgress is one row of the admin progress listing.
type ParticipantProgress struct {
	UserID        string     `json:"user_id"`
	Name          string     `json:"name"`
	StudentID     string     `json:"student_id"`
	Stamps        int        `json:"stamps"`
	Completed     bool       `json:"completed"`
	RequiredTotal int        `json:"required_total"`
	LastStampAt   *time.Time `json:"last_stamp_at,omitempty"`
}

// StampResult is the definitive outcome of a stamp attempt. Reason is set
// only when the attempt was not accepted.
type StampResult struct {
	Accepted bool     `json:"accepted"`
	Reason   string   `json:"reason,omitempty"`
	Method   string   `json:"method,omitempty"`
	Progress Progress `json:"progress"`
}
