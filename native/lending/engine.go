package lending

import (
	"errors"
	"log/slog"
	"math/big"
	"time"

	"sentechain/core/events"
	"sentechain/crypto"
	nativecommon "sentechain/native/common"
	"sentechain/native/credential"
	"sentechain/native/reputation"
)

var (
	errNilState    = errors.New("lending: state not configured")
	errNotWired    = errors.New("lending: registry or ledger not configured")
	errInvalidAddr = errors.New("lending: address required")

	ErrInvalidAmount         = errors.New("lending: amount must be positive")
	ErrInsufficientBalance   = errors.New("lending: insufficient deposited balance")
	ErrInsufficientLiquidity = errors.New("lending: insufficient pool liquidity")
	ErrAmountTooLow          = errors.New("lending: loan amount below minimum")
	ErrAmountTooHigh         = errors.New("lending: loan amount above maximum")
	ErrActiveLoanExists      = errors.New("lending: borrower already has an active loan")
	ErrCreditScoreTooLow     = errors.New("lending: credit score below minimum")
	ErrInvalidLoanID         = errors.New("lending: invalid loan id")
	ErrNotLoanOwner          = errors.New("lending: caller does not own the loan")
	ErrLoanNotActive         = errors.New("lending: loan is not active")
	ErrLoanDefaulted         = errors.New("lending: loan defaulted after grace period")
	ErrNotOverdue            = errors.New("lending: loan is not past its grace period")
	ErrReentrantCall         = nativecommon.ErrReentrantCall
)

// MinCredentialRepayments is the repayment count at which the post-repayment
// trigger mints a credential for a borrower without defaults.
const MinCredentialRepayments uint64 = 3

type registry interface {
	GetScore(principal crypto.Address) (uint64, error)
	GetProfile(principal crypto.Address) (*reputation.Profile, error)
	RecordLoan(caller, principal crypto.Address) error
	RecordRepayment(caller, principal crypto.Address) error
	RecordDefault(caller, principal crypto.Address) error
}

type ledger interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Transfer(from, to crypto.Address, amount *big.Int) error
	TransferFrom(spender, from, to crypto.Address, amount *big.Int) error
}

type issuer interface {
	HasCredential(principal crypto.Address) (bool, error)
	Mint(caller, principal crypto.Address, scoreAtMint, repayments uint64) (*credential.Credential, error)
}

// Engine is the lending pool. It holds lender liquidity in the value ledger
// under its own address, prices loans from the reputation registry and
// reports every loan outcome back to it.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	nowFn    func() int64
	logger   *slog.Logger
	address  crypto.Address
	params   Params
	registry registry
	ledger   ledger
	issuer   issuer
	guard    nativecommon.ReentrancyGuard
}

// NewEngine constructs a pool custodied at address.
func NewEngine(address crypto.Address, params Params) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
		address: address,
		params:  params,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) SetRegistry(r registry) { e.registry = r }

func (e *Engine) SetLedger(l ledger) { e.ledger = l }

// SetIssuer wires the credential issuer invoked after repayments. A nil
// issuer disables the trigger.
func (e *Engine) SetIssuer(i issuer) { e.issuer = i }

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the clock. Primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the pool custody address.
func (e *Engine) Address() crypto.Address { return e.address }

// Params returns a copy of the pool policy.
func (e *Engine) Params() Params {
	p := e.params
	p.MinLoanAmount = cloneAmount(p.MinLoanAmount)
	p.MaxLoanAmount = cloneAmount(p.MaxLoanAmount)
	return p
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// begin claims the re-entrancy guard and runs the common preconditions of
// every mutating call.
func (e *Engine) begin() (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.registry == nil || e.ledger == nil {
		return nil, errNotWired
	}
	release, err := e.guard.Enter()
	if err != nil {
		return nil, ErrReentrantCall
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleLending); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// Deposit moves amount from the lender into pool custody. The lender must
// have approved the pool address on the value ledger.
func (e *Engine) Deposit(lender crypto.Address, amount *big.Int) (*LenderPosition, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if lender.IsZero() {
		return nil, errInvalidAddr
	}
	if err := e.ledger.TransferFrom(e.address, lender, e.address, amount); err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(lender)
	if err != nil {
		return nil, err
	}
	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	now := e.now()
	pos.Deposited = new(big.Int).Add(pos.Deposited, amount)
	pos.LastDepositTime = now
	totals.TotalDeposits = new(big.Int).Add(totals.TotalDeposits, amount)
	if err := e.storePosition(lender, pos); err != nil {
		return nil, err
	}
	if err := e.storeTotals(totals); err != nil {
		return nil, err
	}
	if err := e.state.KVAppend(lendersKey, lender.Bytes()); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.Deposited{
		Lender:        lender,
		Amount:        new(big.Int).Set(amount),
		Position:      new(big.Int).Set(pos.Deposited),
		TotalDeposits: new(big.Int).Set(totals.TotalDeposits),
		Timestamp:     now,
	})
	return pos, nil
}

// Withdraw returns amount of the lender's deposit. Funds currently lent out
// are not available.
func (e *Engine) Withdraw(lender crypto.Address, amount *big.Int) (*LenderPosition, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pos, err := e.loadPosition(lender)
	if err != nil {
		return nil, err
	}
	if pos.Deposited.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	available, err := e.ledger.BalanceOf(e.address)
	if err != nil {
		return nil, err
	}
	if available.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	pos.Deposited = new(big.Int).Sub(pos.Deposited, amount)
	totals.TotalDeposits = new(big.Int).Sub(totals.TotalDeposits, amount)
	if err := e.storePosition(lender, pos); err != nil {
		return nil, err
	}
	if err := e.storeTotals(totals); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(e.address, lender, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.Withdrawn{
		Lender:        lender,
		Amount:        new(big.Int).Set(amount),
		Position:      new(big.Int).Set(pos.Deposited),
		TotalDeposits: new(big.Int).Set(totals.TotalDeposits),
		Timestamp:     e.now(),
	})
	return pos, nil
}

// RequestLoan opens a loan for borrower. Preconditions are checked in a fixed
// order so callers can tell which one failed.
func (e *Engine) RequestLoan(borrower crypto.Address, amount *big.Int) (*Loan, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	if borrower.IsZero() {
		return nil, errInvalidAddr
	}
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(e.params.MinLoanAmount) < 0 {
		return nil, ErrAmountTooLow
	}
	if amount.Cmp(e.params.MaxLoanAmount) > 0 {
		return nil, ErrAmountTooHigh
	}
	if _, active, err := e.activeLoanID(borrower); err != nil {
		return nil, err
	} else if active {
		return nil, ErrActiveLoanExists
	}
	score, err := e.registry.GetScore(borrower)
	if err != nil {
		return nil, err
	}
	if score < e.params.MinCreditScore {
		return nil, ErrCreditScoreTooLow
	}
	available, err := e.ledger.BalanceOf(e.address)
	if err != nil {
		return nil, err
	}
	if available.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	id, err := e.loanCount(borrower)
	if err != nil {
		return nil, err
	}
	now := e.now()
	loan := &Loan{
		ID:             id,
		Borrower:       borrower,
		Principal:      new(big.Int).Set(amount),
		InterestDue:    CalculateInterest(amount, score),
		StartTime:      now,
		DueDate:        now + e.params.durationSeconds(),
		Status:         LoanStatusActive,
		ScoreAtRequest: score,
	}
	if err := e.storeLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(loanCountKey(borrower), id+1); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(activeLoanKey(borrower), id); err != nil {
		return nil, err
	}
	if err := e.state.KVAppend(borrowersKey, borrower.Bytes()); err != nil {
		return nil, err
	}
	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	totals.TotalBorrowed = new(big.Int).Add(totals.TotalBorrowed, amount)
	if err := e.storeTotals(totals); err != nil {
		return nil, err
	}
	if err := e.registry.RecordLoan(e.address, borrower); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(e.address, borrower, amount); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanRequested{
		Borrower:    borrower,
		LoanID:      loan.ID,
		Principal:   new(big.Int).Set(loan.Principal),
		InterestDue: new(big.Int).Set(loan.InterestDue),
		Score:       score,
		StartTime:   loan.StartTime,
		DueDate:     loan.DueDate,
	})
	return loan.Clone(), nil
}

// RepayLoan settles the borrower's loan. Past the grace period the loan is
// defaulted instead and the call returns the defaulted loan together with
// ErrLoanDefaulted; that transition is final and must be committed.
func (e *Engine) RepayLoan(caller, borrower crypto.Address, loanID uint64) (*Loan, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	loan, err := e.loanForUpdate(borrower, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != LoanStatusActive {
		return nil, ErrLoanNotActive
	}
	if loan.Borrower != caller {
		return nil, ErrNotLoanOwner
	}
	now := e.now()
	if e.overdue(loan, now) {
		if err := e.markDefaulted(loan, caller, now); err != nil {
			return nil, err
		}
		return loan.Clone(), ErrLoanDefaulted
	}

	total := loan.TotalDue()
	if err := e.ledger.TransferFrom(e.address, caller, e.address, total); err != nil {
		return nil, err
	}
	loan.Status = LoanStatusRepaid
	loan.ClosedAt = now
	if err := e.storeLoan(loan); err != nil {
		return nil, err
	}
	if err := e.state.KVDelete(activeLoanKey(borrower)); err != nil {
		return nil, err
	}
	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	totals.TotalRepaid = new(big.Int).Add(totals.TotalRepaid, total)
	if err := e.storeTotals(totals); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.LoanRepaid{
		Borrower:  borrower,
		LoanID:    loan.ID,
		Principal: new(big.Int).Set(loan.Principal),
		Interest:  new(big.Int).Set(loan.InterestDue),
		RepaidAt:  now,
	})
	if err := e.registry.RecordRepayment(e.address, borrower); err != nil {
		return nil, err
	}
	e.triggerCredential(borrower)
	return loan.Clone(), nil
}

// MarkDefault declares an overdue loan defaulted. Anyone may call it once the
// grace period has elapsed.
func (e *Engine) MarkDefault(caller, borrower crypto.Address, loanID uint64) (*Loan, error) {
	release, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer release()
	loan, err := e.loanForUpdate(borrower, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != LoanStatusActive {
		return nil, ErrLoanNotActive
	}
	now := e.now()
	if !e.overdue(loan, now) {
		return nil, ErrNotOverdue
	}
	if err := e.markDefaulted(loan, caller, now); err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

func (e *Engine) loanForUpdate(borrower crypto.Address, loanID uint64) (*Loan, error) {
	count, err := e.loanCount(borrower)
	if err != nil {
		return nil, err
	}
	if loanID >= count {
		return nil, ErrInvalidLoanID
	}
	loan, ok, err := e.loadLoan(borrower, loanID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidLoanID
	}
	return loan, nil
}

func (e *Engine) overdue(loan *Loan, now uint64) bool {
	return now > loan.DueDate+e.params.graceSeconds()
}

func (e *Engine) markDefaulted(loan *Loan, caller crypto.Address, now uint64) error {
	loan.Status = LoanStatusDefaulted
	loan.ClosedAt = now
	if err := e.storeLoan(loan); err != nil {
		return err
	}
	if err := e.state.KVDelete(activeLoanKey(loan.Borrower)); err != nil {
		return err
	}
	if err := e.registry.RecordDefault(e.address, loan.Borrower); err != nil {
		return err
	}
	e.emitter.Emit(events.LoanDefaulted{
		Borrower:    loan.Borrower,
		LoanID:      loan.ID,
		Principal:   new(big.Int).Set(loan.Principal),
		DueDate:     loan.DueDate,
		DefaultedAt: now,
		Caller:      caller,
	})
	return nil
}

// triggerCredential mints a credential for a borrower with enough clean
// repayments. It runs inside its own snapshot; a failure is reverted and
// logged without affecting the repayment.
func (e *Engine) triggerCredential(borrower crypto.Address) {
	if e.issuer == nil {
		return
	}
	snap := e.state.Snapshot()
	minted, err := e.issueCredential(borrower)
	if err != nil {
		if revertErr := e.state.RevertToSnapshot(snap); revertErr != nil {
			e.logger.Error("credential trigger revert failed", "borrower", borrower.String(), "error", revertErr)
		}
		e.logger.Warn("credential trigger failed", "borrower", borrower.String(), "error", err)
		return
	}
	if minted != nil {
		e.logger.Info("credential minted", "borrower", borrower.String(), "tokenId", minted.TokenID, "tier", minted.Tier.String())
	}
}

func (e *Engine) issueCredential(borrower crypto.Address) (*credential.Credential, error) {
	profile, err := e.registry.GetProfile(borrower)
	if err != nil {
		return nil, err
	}
	if profile.SuccessfulRepayments < MinCredentialRepayments || profile.DefaultedLoans != 0 {
		return nil, nil
	}
	has, err := e.issuer.HasCredential(borrower)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, nil
	}
	return e.issuer.Mint(e.address, borrower, profile.Score, profile.SuccessfulRepayments)
}
