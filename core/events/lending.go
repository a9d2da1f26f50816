package events

import (
	"math/big"

	"sentechain/core/types"
	"sentechain/crypto"
)

const (
	// TypeLendingDeposited is emitted when a lender adds liquidity.
	TypeLendingDeposited = "lending.deposited"
	// TypeLendingWithdrawn is emitted when a lender removes liquidity.
	TypeLendingWithdrawn = "lending.withdrawn"
	// TypeLendingLoanRequested is emitted when a loan is opened.
	TypeLendingLoanRequested = "lending.loan.requested"
	// TypeLendingLoanRepaid is emitted when a loan is repaid in full.
	TypeLendingLoanRepaid = "lending.loan.repaid"
	// TypeLendingLoanDefaulted is emitted when a loan is declared defaulted.
	TypeLendingLoanDefaulted = "lending.loan.defaulted"
)

// Deposited captures a liquidity deposit and the resulting position.
type Deposited struct {
	Lender        crypto.Address
	Amount        *big.Int
	Position      *big.Int
	TotalDeposits *big.Int
	Timestamp     uint64
}

// EventType implements the Event interface.
func (Deposited) EventType() string { return TypeLendingDeposited }

func (e Deposited) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingDeposited,
		Attributes: map[string]string{
			"lender":        addrString(e.Lender),
			"amount":        amountString(e.Amount),
			"position":      amountString(e.Position),
			"totalDeposits": amountString(e.TotalDeposits),
			"timestamp":     uintString(e.Timestamp),
		},
	}
}

// Withdrawn captures a liquidity withdrawal and the resulting position.
type Withdrawn struct {
	Lender        crypto.Address
	Amount        *big.Int
	Position      *big.Int
	TotalDeposits *big.Int
	Timestamp     uint64
}

// EventType implements the Event interface.
func (Withdrawn) EventType() string { return TypeLendingWithdrawn }

func (e Withdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingWithdrawn,
		Attributes: map[string]string{
			"lender":        addrString(e.Lender),
			"amount":        amountString(e.Amount),
			"position":      amountString(e.Position),
			"totalDeposits": amountString(e.TotalDeposits),
			"timestamp":     uintString(e.Timestamp),
		},
	}
}

// LoanRequested captures a newly opened loan.
type LoanRequested struct {
	Borrower    crypto.Address
	LoanID      uint64
	Principal   *big.Int
	InterestDue *big.Int
	Score       uint64
	StartTime   uint64
	DueDate     uint64
}

// EventType implements the Event interface.
func (LoanRequested) EventType() string { return TypeLendingLoanRequested }

func (e LoanRequested) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingLoanRequested,
		Attributes: map[string]string{
			"borrower":    addrString(e.Borrower),
			"loanId":      uintString(e.LoanID),
			"principal":   amountString(e.Principal),
			"interestDue": amountString(e.InterestDue),
			"score":       uintString(e.Score),
			"startTime":   uintString(e.StartTime),
			"dueDate":     uintString(e.DueDate),
		},
	}
}

// LoanRepaid captures a successful repayment.
type LoanRepaid struct {
	Borrower  crypto.Address
	LoanID    uint64
	Principal *big.Int
	Interest  *big.Int
	RepaidAt  uint64
}

// EventType implements the Event interface.
func (LoanRepaid) EventType() string { return TypeLendingLoanRepaid }

func (e LoanRepaid) Event() *types.Event {
	total := new(big.Int)
	if e.Principal != nil {
		total.Add(total, e.Principal)
	}
	if e.Interest != nil {
		total.Add(total, e.Interest)
	}
	return &types.Event{
		Type: TypeLendingLoanRepaid,
		Attributes: map[string]string{
			"borrower":  addrString(e.Borrower),
			"loanId":    uintString(e.LoanID),
			"principal": amountString(e.Principal),
			"interest":  amountString(e.Interest),
			"total":     total.String(),
			"repaidAt":  uintString(e.RepaidAt),
		},
	}
}

// LoanDefaulted captures the terminal default transition.
type LoanDefaulted struct {
	Borrower    crypto.Address
	LoanID      uint64
	Principal   *big.Int
	DueDate     uint64
	DefaultedAt uint64
	Caller      crypto.Address
}

// EventType implements the Event interface.
func (LoanDefaulted) EventType() string { return TypeLendingLoanDefaulted }

func (e LoanDefaulted) Event() *types.Event {
	return &types.Event{
		Type: TypeLendingLoanDefaulted,
		Attributes: map[string]string{
			"borrower":    addrString(e.Borrower),
			"loanId":      uintString(e.LoanID),
			"principal":   amountString(e.Principal),
			"dueDate":     uintString(e.DueDate),
			"defaultedAt": uintString(e.DefaultedAt),
			"caller":      addrString(e.Caller),
		},
	}
}
