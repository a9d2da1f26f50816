package lending

import (
	"math/big"

	"sentechain/crypto"
)

// GetLoan returns the borrower's loan with the given ordinal id.
func (e *Engine) GetLoan(borrower crypto.Address, loanID uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loanForUpdate(borrower, loanID)
}

// GetLoans returns every loan the borrower ever took, oldest first.
func (e *Engine) GetLoans(borrower crypto.Address) ([]*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, err := e.loanCount(borrower)
	if err != nil {
		return nil, err
	}
	loans := make([]*Loan, 0, count)
	for id := uint64(0); id < count; id++ {
		loan, ok, err := e.loadLoan(borrower, id)
		if err != nil {
			return nil, err
		}
		if ok {
			loans = append(loans, loan)
		}
	}
	return loans, nil
}

// LoanCount returns the number of loans the borrower has taken.
func (e *Engine) LoanCount(borrower crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.loanCount(borrower)
}

// ActiveLoan returns the borrower's active loan, if any.
func (e *Engine) ActiveLoan(borrower crypto.Address) (*Loan, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	id, ok, err := e.activeLoanID(borrower)
	if err != nil || !ok {
		return nil, false, err
	}
	return e.loadLoan(borrower, id)
}

// GetLenderPosition returns the lender's net deposit.
func (e *Engine) GetLenderPosition(lender crypto.Address) (*LenderPosition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPosition(lender)
}

// Totals returns the pool-wide accounting totals.
func (e *Engine) Totals() (*Totals, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadTotals()
}

// Borrowers lists every address that has ever opened a loan, in first-loan
// order.
func (e *Engine) Borrowers() ([]crypto.Address, error) {
	return e.addressIndex(borrowersKey)
}

// Lenders lists every address that has ever deposited.
func (e *Engine) Lenders() ([]crypto.Address, error) {
	return e.addressIndex(lendersKey)
}

func (e *Engine) addressIndex(key []byte) ([]crypto.Address, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(raw))
	for _, b := range raw {
		out = append(out, crypto.BytesToAddress(b))
	}
	return out, nil
}

// AvailableLiquidity returns the pool's held balance on the value ledger.
func (e *Engine) AvailableLiquidity() (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNotWired
	}
	return e.ledger.BalanceOf(e.address)
}

// UtilizationRate returns (TotalBorrowed - TotalRepaid) * 100 / TotalDeposits
// truncated. TotalRepaid includes interest, so the figure is approximate and
// reports 0 once repaid interest outweighs outstanding principal.
func (e *Engine) UtilizationRate() (uint64, error) {
	totals, err := e.Totals()
	if err != nil {
		return 0, err
	}
	if totals.TotalDeposits.Sign() == 0 {
		return 0, nil
	}
	outstanding := new(big.Int).Sub(totals.TotalBorrowed, totals.TotalRepaid)
	if outstanding.Sign() <= 0 {
		return 0, nil
	}
	rate := outstanding.Mul(outstanding, big.NewInt(100))
	rate.Quo(rate, totals.TotalDeposits)
	if !rate.IsUint64() {
		return 0, nil
	}
	return rate.Uint64(), nil
}

// OverdueLoans returns every active loan whose grace period has elapsed.
func (e *Engine) OverdueLoans() ([]*Loan, error) {
	borrowers, err := e.Borrowers()
	if err != nil {
		return nil, err
	}
	now := e.now()
	var out []*Loan
	for _, borrower := range borrowers {
		loan, ok, err := e.ActiveLoan(borrower)
		if err != nil {
			return nil, err
		}
		if ok && e.overdue(loan, now) {
			out = append(out, loan)
		}
	}
	return out, nil
}

// quotedMax caps the score ceiling at the pool-wide maximum.
func quotedMax(score uint64, poolMax *big.Int) *big.Int {
	ceiling := MaxLoanForScore(score)
	if poolMax != nil && poolMax.Cmp(ceiling) < 0 {
		return new(big.Int).Set(poolMax)
	}
	return ceiling
}

// Quote reports the terms borrower would get for amount right now. A nil
// amount skips the interest figure.
func (e *Engine) Quote(borrower crypto.Address, amount *big.Int) (*Quote, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.registry == nil {
		return nil, errNotWired
	}
	score, err := e.registry.GetScore(borrower)
	if err != nil {
		return nil, err
	}
	_, active, err := e.activeLoanID(borrower)
	if err != nil {
		return nil, err
	}
	q := &Quote{
		Borrower:  borrower,
		Score:     score,
		Tier:      ScoreTier(score),
		RateBps:   InterestRateBps(score),
		Eligible:  score >= e.params.MinCreditScore && !active,
		HasActive: active,
		MinAmount: cloneAmount(e.params.MinLoanAmount),
		MaxAmount: quotedMax(score, e.params.MaxLoanAmount),
	}
	if amount != nil && amount.Sign() > 0 {
		q.Amount = new(big.Int).Set(amount)
		q.Interest = CalculateInterest(amount, score)
	}
	return q, nil
}
