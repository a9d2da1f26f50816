package exports

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"sentechain/native/lending"
)

type loanLine struct {
	Borrower       string `json:"borrower"`
	LoanID         uint64 `json:"loanId"`
	Principal      string `json:"principal"`
	InterestDue    string `json:"interestDue"`
	TotalDue       string `json:"totalDue"`
	Status         string `json:"status"`
	ScoreAtRequest uint64 `json:"scoreAtRequest"`
	StartTime      uint64 `json:"startTime"`
	DueDate        uint64 `json:"dueDate"`
	ClosedAt       uint64 `json:"closedAt,omitempty"`
}

// LoansJSONL writes loans as JSON Lines to path.
func LoansJSONL(path string, loans []*lending.Loan) (*Manifest, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("exports: create jsonl: %w", err)
	}
	if err := WriteJSONL(file, loans); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("exports: close jsonl: %w", err)
	}
	return manifest(path, "jsonl", countLoans(loans))
}

// WriteJSONL streams one JSON object per loan to w.
func WriteJSONL(w io.Writer, loans []*lending.Loan) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for _, loan := range loans {
		if loan == nil {
			continue
		}
		line := loanLine{
			Borrower:       loan.Borrower.String(),
			LoanID:         loan.ID,
			Principal:      amount(loan.Principal),
			InterestDue:    amount(loan.InterestDue),
			TotalDue:       loan.TotalDue().String(),
			Status:         loan.Status.String(),
			ScoreAtRequest: loan.ScoreAtRequest,
			StartTime:      loan.StartTime,
			DueDate:        loan.DueDate,
			ClosedAt:       loan.ClosedAt,
		}
		if err := encoder.Encode(line); err != nil {
			return fmt.Errorf("exports: write jsonl row: %w", err)
		}
	}
	return nil
}
