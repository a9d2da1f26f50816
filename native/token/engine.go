package token

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"sentechain/core/events"
	"sentechain/crypto"
	nativecommon "sentechain/native/common"
)

var (
	errNilState = errors.New("token: state not configured")

	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrInvalidRecipient      = errors.New("token: recipient required")
	ErrInsufficientFunds     = errors.New("token: insufficient funds")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnauthorized          = errors.New("token: caller not authorized")
	ErrAlreadyInitialised    = errors.New("token: owner already initialised")
	ErrOverflow              = errors.New("token: amount overflows 256 bits")
)

// Engine is the fungible value ledger the pool settles against.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
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

// Initialize assigns the ledger owner. It succeeds exactly once.
func (e *Engine) Initialize(owner crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if owner.IsZero() {
		return ErrInvalidRecipient
	}
	var existing crypto.Address
	ok, err := e.state.KVGet(ownerKey, &existing)
	if err != nil {
		return err
	}
	if ok && !existing.IsZero() {
		return ErrAlreadyInitialised
	}
	return e.state.KVPut(ownerKey, owner)
}

// Owner returns the configured ledger owner.
func (e *Engine) Owner() (crypto.Address, error) {
	if e == nil || e.state == nil {
		return crypto.Address{}, errNilState
	}
	var owner crypto.Address
	if _, err := e.state.KVGet(ownerKey, &owner); err != nil {
		return crypto.Address{}, err
	}
	return owner, nil
}

// SetMinter grants or revokes mint rights. Only the owner may call it.
func (e *Engine) SetMinter(caller, minter crypto.Address, allowed bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	owner, err := e.Owner()
	if err != nil {
		return err
	}
	if owner.IsZero() || caller != owner {
		return ErrUnauthorized
	}
	return e.state.KVPut(minterKey(minter), allowed)
}

// IsMinter reports whether addr may mint.
func (e *Engine) IsMinter(addr crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	var allowed bool
	if _, err := e.state.KVGet(minterKey(addr), &allowed); err != nil {
		return false, err
	}
	return allowed, nil
}

// BalanceOf returns the balance held by addr.
func (e *Engine) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadAmount(balanceKey(addr))
}

// TotalSupply returns the amount minted so far.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadAmount(supplyKey)
}

// Allowance returns the amount spender may still move on behalf of owner.
func (e *Engine) Allowance(owner, spender crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadAmount(allowanceKey(owner, spender))
}

// Approve sets the allowance spender may draw from owner. Zero clears it.
func (e *Engine) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleToken); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender.IsZero() {
		return ErrInvalidRecipient
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrOverflow
	}
	if err := e.storeAmount(allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	e.emitter.Emit(events.Approval{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from sender to recipient.
func (e *Engine) Transfer(from, to crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleToken); err != nil {
		return err
	}
	return e.move(from, to, amount)
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming the allowance. A spender moving its own funds needs no allowance.
func (e *Engine) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleToken); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if spender != from {
		allowance, err := e.Allowance(from, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		if err := e.storeAmount(allowanceKey(from, spender), new(big.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return e.move(from, to, amount)
}

// Mint credits amount to recipient. Only the owner or an authorised minter may
// call it.
func (e *Engine) Mint(caller, to crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleToken); err != nil {
		return err
	}
	if err := e.requireMinter(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrInvalidRecipient
	}
	supply, err := e.TotalSupply()
	if err != nil {
		return err
	}
	nextSupply, err := checkedAdd(supply, amount)
	if err != nil {
		return err
	}
	balance, err := e.BalanceOf(to)
	if err != nil {
		return err
	}
	nextBalance, err := checkedAdd(balance, amount)
	if err != nil {
		return err
	}
	if err := e.storeAmount(supplyKey, nextSupply); err != nil {
		return err
	}
	if err := e.storeAmount(balanceKey(to), nextBalance); err != nil {
		return err
	}
	e.emitter.Emit(events.Transfer{To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) requireMinter(caller crypto.Address) error {
	owner, err := e.Owner()
	if err != nil {
		return err
	}
	if !owner.IsZero() && caller == owner {
		return nil
	}
	allowed, err := e.IsMinter(caller)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) move(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrInvalidRecipient
	}
	fromBalance, err := e.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if from != to {
		toBalance, err := e.BalanceOf(to)
		if err != nil {
			return err
		}
		nextTo, err := checkedAdd(toBalance, amount)
		if err != nil {
			return err
		}
		if err := e.storeAmount(balanceKey(from), new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := e.storeAmount(balanceKey(to), nextTo); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.Transfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, ErrOverflow
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return sum.ToBig(), nil
}
