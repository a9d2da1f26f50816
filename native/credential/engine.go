package credential

import (
	"errors"
	"time"

	"sentechain/core/events"
	"sentechain/crypto"
	nativecommon "sentechain/native/common"
)

var (
	errNilState = errors.New("credential: state not configured")

	ErrUnauthorized         = errors.New("credential: caller is not an authorized minter")
	ErrNotOwner             = errors.New("credential: caller is not the issuer owner")
	ErrAlreadyInitialised   = errors.New("credential: owner already initialised")
	ErrAlreadyHasCredential = errors.New("credential: principal already holds a credential")
	ErrScoreTooLow          = errors.New("credential: score below minting threshold")
	ErrNonTransferable      = errors.New("credential: credentials are non-transferable")
	ErrCredentialNotFound   = errors.New("credential: not found")
	ErrInvalidPrincipal     = errors.New("credential: principal required")
)

// Engine issues at most one non-transferable credential per principal.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
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

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Initialize assigns the issuer owner. It succeeds exactly once.
func (e *Engine) Initialize(owner crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if owner.IsZero() {
		return ErrInvalidPrincipal
	}
	current, err := e.Owner()
	if err != nil {
		return err
	}
	if !current.IsZero() {
		return ErrAlreadyInitialised
	}
	return e.state.KVPut(ownerKey, owner)
}

// Owner returns the issuer owner.
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

// AuthorizeMinter grants mint rights to minter.
func (e *Engine) AuthorizeMinter(caller, minter crypto.Address) error {
	return e.setMinter(caller, minter, true)
}

// RevokeMinter removes mint rights from minter.
func (e *Engine) RevokeMinter(caller, minter crypto.Address) error {
	return e.setMinter(caller, minter, false)
}

func (e *Engine) setMinter(caller, minter crypto.Address, allowed bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	owner, err := e.Owner()
	if err != nil {
		return err
	}
	if owner.IsZero() || caller != owner {
		return ErrNotOwner
	}
	if minter.IsZero() {
		return ErrInvalidPrincipal
	}
	if err := e.state.KVPut(minterKey(minter), allowed); err != nil {
		return err
	}
	e.emitter.Emit(events.CredentialMinterUpdated{Minter: minter, Authorized: allowed, Caller: caller})
	return nil
}

// IsMinter reports whether addr may mint credentials. The owner always may.
func (e *Engine) IsMinter(addr crypto.Address) (bool, error) {
	owner, err := e.Owner()
	if err != nil {
		return false, err
	}
	if !owner.IsZero() && addr == owner {
		return true, nil
	}
	var allowed bool
	if _, err := e.state.KVGet(minterKey(addr), &allowed); err != nil {
		return false, err
	}
	return allowed, nil
}

// Mint issues a credential to principal. The tier is fixed from the score and
// repayment count supplied by the caller.
func (e *Engine) Mint(caller, principal crypto.Address, scoreAtMint, repayments uint64) (*Credential, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleCredential); err != nil {
		return nil, err
	}
	allowed, err := e.IsMinter(caller)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrUnauthorized
	}
	if principal.IsZero() {
		return nil, ErrInvalidPrincipal
	}
	has, err := e.HasCredential(principal)
	if err != nil {
		return nil, err
	}
	if has {
		return nil, ErrAlreadyHasCredential
	}
	if scoreAtMint < MinScore {
		return nil, ErrScoreTooLow
	}

	var next uint64
	if _, err := e.state.KVGet(nextIDKey, &next); err != nil {
		return nil, err
	}
	if next == 0 {
		next = 1
	}
	now := e.nowFn()
	if now < 0 {
		now = 0
	}
	cred := &Credential{
		TokenID:          next,
		Owner:            principal,
		ScoreAtMint:      scoreAtMint,
		RepaymentsAtMint: repayments,
		MintedAt:         uint64(now),
		Tier:             CalculateTier(scoreAtMint, repayments),
	}
	if err := e.state.KVPut(tokenKey(cred.TokenID), cred); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(holderKey(principal), cred.TokenID); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(flagKey(principal), true); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(nextIDKey, next+1); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.CredentialMinted{
		Owner:      principal,
		TokenID:    cred.TokenID,
		Score:      scoreAtMint,
		Repayments: repayments,
		Tier:       cred.Tier.String(),
		MintedAt:   cred.MintedAt,
	})
	return cred, nil
}

// HasCredential reports the has-credential flag for principal.
func (e *Engine) HasCredential(principal crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	var has bool
	if _, err := e.state.KVGet(flagKey(principal), &has); err != nil {
		return false, err
	}
	return has, nil
}

// CredentialOf returns the credential held by principal.
func (e *Engine) CredentialOf(principal crypto.Address) (*Credential, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var id uint64
	ok, err := e.state.KVGet(holderKey(principal), &id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return e.Get(id)
}

// Get returns the credential with the given token identifier.
func (e *Engine) Get(tokenID uint64) (*Credential, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var cred Credential
	ok, err := e.state.KVGet(tokenKey(tokenID), &cred)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return &cred, nil
}

// OwnerOf returns the holder of tokenID.
func (e *Engine) OwnerOf(tokenID uint64) (crypto.Address, error) {
	cred, err := e.Get(tokenID)
	if err != nil {
		return crypto.Address{}, err
	}
	return cred.Owner, nil
}

// TotalSupply returns the number of credentials minted.
func (e *Engine) TotalSupply() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var next uint64
	if _, err := e.state.KVGet(nextIDKey, &next); err != nil {
		return 0, err
	}
	if next == 0 {
		return 0, nil
	}
	return next - 1, nil
}

// Transfer always fails: credentials are bound to the principal they were
// minted for.
func (e *Engine) Transfer(caller, from, to crypto.Address, tokenID uint64) error {
	return ErrNonTransferable
}

// Approve always fails with ErrNonTransferable.
func (e *Engine) Approve(caller, spender crypto.Address, tokenID uint64) error {
	return ErrNonTransferable
}

// SetApprovalForAll always fails with ErrNonTransferable.
func (e *Engine) SetApprovalForAll(caller, operator crypto.Address, approved bool) error {
	return ErrNonTransferable
}
