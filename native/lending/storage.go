package lending

import (
	"fmt"
	"math/big"

	"sentechain/crypto"
)

// engineState abstracts the state manager: keyed RLP values plus nested
// snapshots for the credential side effect.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	Snapshot() int
	RevertToSnapshot(id int) error
}

var (
	loanPrefix     = []byte("lending/loan/")
	loanCountPref  = []byte("lending/loan-count/")
	activeLoanPref = []byte("lending/active/")
	positionPrefix = []byte("lending/position/")
	totalsKey      = []byte("lending/totals")
	borrowersKey   = []byte("lending/borrowers")
	lendersKey     = []byte("lending/lenders")
)

func loanKey(borrower crypto.Address, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%x/%020d", loanPrefix, borrower[:], id))
}

func loanCountKey(borrower crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", loanCountPref, borrower[:]))
}

func activeLoanKey(borrower crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", activeLoanPref, borrower[:]))
}

func positionKey(lender crypto.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", positionPrefix, lender[:]))
}

func (e *Engine) loadTotals() (*Totals, error) {
	var totals Totals
	if _, err := e.state.KVGet(totalsKey, &totals); err != nil {
		return nil, err
	}
	totals.normalize()
	return &totals, nil
}

func (e *Engine) storeTotals(t *Totals) error {
	t.normalize()
	return e.state.KVPut(totalsKey, t)
}

func (e *Engine) loadPosition(lender crypto.Address) (*LenderPosition, error) {
	var pos LenderPosition
	if _, err := e.state.KVGet(positionKey(lender), &pos); err != nil {
		return nil, err
	}
	if pos.Deposited == nil {
		pos.Deposited = big.NewInt(0)
	}
	return &pos, nil
}

func (e *Engine) storePosition(lender crypto.Address, pos *LenderPosition) error {
	return e.state.KVPut(positionKey(lender), pos)
}

func (e *Engine) loanCount(borrower crypto.Address) (uint64, error) {
	var count uint64
	if _, err := e.state.KVGet(loanCountKey(borrower), &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Engine) loadLoan(borrower crypto.Address, id uint64) (*Loan, bool, error) {
	var loan Loan
	ok, err := e.state.KVGet(loanKey(borrower, id), &loan)
	if err != nil || !ok {
		return nil, ok, err
	}
	loan.Principal = cloneAmount(loan.Principal)
	loan.InterestDue = cloneAmount(loan.InterestDue)
	return &loan, true, nil
}

func (e *Engine) storeLoan(loan *Loan) error {
	return e.state.KVPut(loanKey(loan.Borrower, loan.ID), loan)
}

func (e *Engine) activeLoanID(borrower crypto.Address) (uint64, bool, error) {
	var id uint64
	ok, err := e.state.KVGet(activeLoanKey(borrower), &id)
	if err != nil {
		return 0, false, err
	}
	return id, ok, nil
}
