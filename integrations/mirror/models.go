package mirror

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Loan status labels stored in LoanRow.Status.
const (
	StatusActive    = "active"
	StatusRepaid    = "repaid"
	StatusDefaulted = "defaulted"
)

// EventRow is every committed event, keyed by its position in the ledger.
type EventRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Height     uint64    `gorm:"uniqueIndex:idx_event_position;not null"`
	EventIndex int       `gorm:"uniqueIndex:idx_event_position;not null"`
	Type       string    `gorm:"size:64;index"`
	Timestamp  int64     `gorm:"index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// UserRow is the per-principal projection.
type UserRow struct {
	Address              string    `gorm:"primaryKey;size:64" json:"address"`
	Score                uint64    `json:"score"`
	TotalLoans           uint64    `json:"totalLoans"`
	SuccessfulRepayments uint64    `json:"successfulRepayments"`
	DefaultedLoans       uint64    `json:"defaultedLoans"`
	TotalBorrowed        string    `gorm:"size:80;default:0" json:"totalBorrowed"`
	TotalRepaid          string    `gorm:"size:80;default:0" json:"totalRepaid"`
	HasCredential        bool      `gorm:"index" json:"hasCredential"`
	CredentialTier       string    `gorm:"size:16" json:"credentialTier,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// LoanRow is the per-loan projection. Amounts are decimal strings.
type LoanRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Borrower    string    `gorm:"size:64;uniqueIndex:idx_loan_key" json:"borrower"`
	LoanID      uint64    `gorm:"uniqueIndex:idx_loan_key" json:"loanId"`
	Principal   string    `gorm:"size:80" json:"principal"`
	InterestDue string    `gorm:"size:80" json:"interestDue"`
	Score       uint64    `json:"score"`
	Status      string    `gorm:"size:16;index" json:"status"`
	StartTime   int64     `json:"startTime"`
	DueDate     int64     `json:"dueDate"`
	ClosedAt    int64     `json:"closedAt,omitempty"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// ReasonInitial marks the history entry written when a profile is created.
const ReasonInitial = "initial"

// ScoreChangeRow is one entry of a principal's score history.
type ScoreChangeRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Address    string    `gorm:"size:64;index" json:"address"`
	OldScore   uint64    `json:"oldScore"`
	NewScore   uint64    `json:"newScore"`
	Reason     string    `gorm:"size:32" json:"reason"`
	Height     uint64    `gorm:"index" json:"height"`
	EventIndex int       `json:"index"`
	Timestamp  int64     `json:"timestamp"`
}

// CredentialRow mirrors a minted credential.
type CredentialRow struct {
	TokenID    uint64 `gorm:"primaryKey;autoIncrement:false" json:"tokenId"`
	Owner      string `gorm:"size:64;uniqueIndex" json:"owner"`
	Score      uint64 `json:"score"`
	Repayments uint64 `json:"repayments"`
	Tier       string `gorm:"size:16" json:"tier"`
	MintedAt   int64  `json:"mintedAt"`
}

// LenderActivityRow records a deposit or withdrawal.
type LenderActivityRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Lender    string    `gorm:"size:64;index" json:"lender"`
	Kind      string    `gorm:"size:16" json:"kind"`
	Amount    string    `gorm:"size:80" json:"amount"`
	Position  string    `gorm:"size:80" json:"position"`
	Height    uint64    `json:"height"`
	Timestamp int64     `json:"timestamp"`
}

func (EventRow) TableName() string          { return "events" }
func (UserRow) TableName() string           { return "users" }
func (LoanRow) TableName() string           { return "loans" }
func (ScoreChangeRow) TableName() string    { return "score_changes" }
func (CredentialRow) TableName() string     { return "credentials" }
func (LenderActivityRow) TableName() string { return "lender_activity" }

// AutoMigrate performs all schema migrations for the mirror.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&EventRow{},
		&UserRow{},
		&LoanRow{},
		&ScoreChangeRow{},
		&CredentialRow{},
		&LenderActivityRow{},
	)
}
