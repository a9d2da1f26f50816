package lending

import (
	"math/big"

	"sentechain/crypto"
)

// LoanStatus tracks a loan through Active -> {Repaid | Defaulted}.
type LoanStatus uint8

const (
	LoanStatusActive LoanStatus = iota + 1
	LoanStatusRepaid
	LoanStatusDefaulted
)

func (s LoanStatus) String() string {
	switch s {
	case LoanStatusActive:
		return "active"
	case LoanStatusRepaid:
		return "repaid"
	case LoanStatusDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON payloads.
func (s LoanStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether the status can no longer change.
func (s LoanStatus) Terminal() bool {
	return s == LoanStatusRepaid || s == LoanStatusDefaulted
}

// Loan is a single collateral-free loan. ID is the ordinal index within the
// borrower's loan list.
type Loan struct {
	ID             uint64         `json:"id"`
	Borrower       crypto.Address `json:"borrower"`
	Principal      *big.Int       `json:"principal"`
	InterestDue    *big.Int       `json:"interestDue"`
	StartTime      uint64         `json:"startTime"`
	DueDate        uint64         `json:"dueDate"`
	Status         LoanStatus     `json:"status"`
	ScoreAtRequest uint64         `json:"scoreAtRequest"`
	ClosedAt       uint64         `json:"closedAt,omitempty"`
}

// TotalDue returns principal plus interest.
func (l *Loan) TotalDue() *big.Int {
	total := new(big.Int)
	if l == nil {
		return total
	}
	if l.Principal != nil {
		total.Add(total, l.Principal)
	}
	if l.InterestDue != nil {
		total.Add(total, l.InterestDue)
	}
	return total
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Principal = cloneAmount(l.Principal)
	clone.InterestDue = cloneAmount(l.InterestDue)
	return &clone
}

// LenderPosition stores the net deposit of a single lender.
type LenderPosition struct {
	Deposited       *big.Int `json:"deposited"`
	LastDepositTime uint64   `json:"lastDepositTime"`
}

// Totals captures pool-wide accounting. TotalRepaid includes interest.
type Totals struct {
	TotalDeposits *big.Int `json:"totalDeposits"`
	TotalBorrowed *big.Int `json:"totalBorrowed"`
	TotalRepaid   *big.Int `json:"totalRepaid"`
}

func (t *Totals) normalize() {
	if t.TotalDeposits == nil {
		t.TotalDeposits = big.NewInt(0)
	}
	if t.TotalBorrowed == nil {
		t.TotalBorrowed = big.NewInt(0)
	}
	if t.TotalRepaid == nil {
		t.TotalRepaid = big.NewInt(0)
	}
}

// Quote summarises the terms a borrower would receive right now.
type Quote struct {
	Borrower  crypto.Address `json:"borrower"`
	Score     uint64         `json:"score"`
	Tier      string         `json:"tier"`
	RateBps   uint64         `json:"rateBps"`
	Amount    *big.Int       `json:"amount,omitempty"`
	Interest  *big.Int       `json:"interest,omitempty"`
	Eligible  bool           `json:"eligible"`
	HasActive bool           `json:"hasActiveLoan"`
	MinAmount *big.Int       `json:"minAmount"`
	MaxAmount *big.Int       `json:"maxAmount"`
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
