package reputation

import (
	"errors"
	"time"

	"sentechain/core/events"
	"sentechain/crypto"
	nativecommon "sentechain/native/common"
)

var (
	errNilState = errors.New("reputation: state not configured")

	ErrUnauthorized       = errors.New("reputation: caller is not an authorized oracle")
	ErrNotOwner           = errors.New("reputation: caller is not the registry owner")
	ErrAlreadyInitialised = errors.New("reputation: owner already initialised")
	ErrAlreadyExists      = errors.New("reputation: profile already exists")
	ErrInvalidScore       = errors.New("reputation: score must be within [0,100]")
	ErrNoProfile          = errors.New("reputation: profile not found")
	ErrInvalidPrincipal   = errors.New("reputation: principal required")
)

// Engine is the reputation registry. Reads are open to anyone; every mutation
// is restricted to the oracle set administered by the registry owner.
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

// SetNowFunc overrides the clock used for LastUpdated. Primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Initialize assigns the registry owner. It succeeds exactly once.
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

// Owner returns the registry owner, or the zero address before Initialize.
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

// AuthorizeOracle adds oracle to the set of principals allowed to mutate
// profiles.
func (e *Engine) AuthorizeOracle(caller, oracle crypto.Address) error {
	return e.setOracle(caller, oracle, true)
}

// RevokeOracle removes oracle from the authorised set.
func (e *Engine) RevokeOracle(caller, oracle crypto.Address) error {
	return e.setOracle(caller, oracle, false)
}

func (e *Engine) setOracle(caller, oracle crypto.Address, allowed bool) error {
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
	if oracle.IsZero() {
		return ErrInvalidPrincipal
	}
	if err := e.state.KVPut(oracleKey(oracle), allowed); err != nil {
		return err
	}
	e.emitter.Emit(events.OracleUpdated{Oracle: oracle, Authorized: allowed, Caller: caller})
	return nil
}

// IsOracle reports whether addr belongs to the oracle set.
func (e *Engine) IsOracle(addr crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	var allowed bool
	if _, err := e.state.KVGet(oracleKey(addr), &allowed); err != nil {
		return false, err
	}
	return allowed, nil
}

func (e *Engine) authorize(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, nativecommon.ModuleReputation); err != nil {
		return err
	}
	allowed, err := e.IsOracle(caller)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrUnauthorized
	}
	return nil
}

// CreateProfile activates a profile for principal with the supplied score.
func (e *Engine) CreateProfile(caller, principal crypto.Address, initialScore int64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if principal.IsZero() {
		return ErrInvalidPrincipal
	}
	profile, err := e.loadProfile(principal)
	if err != nil {
		return err
	}
	if profile.Active {
		return ErrAlreadyExists
	}
	if !validScore(initialScore) {
		return ErrInvalidScore
	}
	return e.create(caller, principal, uint64(initialScore))
}

func (e *Engine) create(caller, principal crypto.Address, score uint64) error {
	now := e.now()
	profile := &Profile{Score: score, LastUpdated: now, Active: true}
	if err := e.storeProfile(principal, profile); err != nil {
		return err
	}
	e.emitter.Emit(events.ProfileCreated{Principal: principal, Score: score, Oracle: caller, CreatedAt: now})
	return nil
}

// UpdateScore replaces the principal's score, creating the profile when it
// does not exist yet.
func (e *Engine) UpdateScore(caller, principal crypto.Address, newScore int64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if principal.IsZero() {
		return ErrInvalidPrincipal
	}
	if !validScore(newScore) {
		return ErrInvalidScore
	}
	profile, err := e.loadProfile(principal)
	if err != nil {
		return err
	}
	if !profile.Active {
		return e.create(caller, principal, uint64(newScore))
	}
	return e.applyScore(principal, profile, uint64(newScore), events.ScoreReasonOracle, true)
}

// RecordLoan increments the principal's loan counter.
func (e *Engine) RecordLoan(caller, principal crypto.Address) error {
	profile, err := e.activeProfile(caller, principal)
	if err != nil {
		return err
	}
	profile.TotalLoans++
	return e.storeProfile(principal, profile)
}

// RecordRepayment increments the repayment counter and applies the capped
// repayment bonus.
func (e *Engine) RecordRepayment(caller, principal crypto.Address) error {
	profile, err := e.activeProfile(caller, principal)
	if err != nil {
		return err
	}
	profile.SuccessfulRepayments++
	next := profile.Score + RepaymentBonus
	if next > MaxScore {
		next = MaxScore
	}
	return e.applyScore(principal, profile, next, events.ScoreReasonRepayment, false)
}

// RecordDefault increments the default counter and applies the floored
// default penalty.
func (e *Engine) RecordDefault(caller, principal crypto.Address) error {
	profile, err := e.activeProfile(caller, principal)
	if err != nil {
		return err
	}
	profile.DefaultedLoans++
	next := uint64(0)
	if profile.Score > DefaultPenalty {
		next = profile.Score - DefaultPenalty
	}
	return e.applyScore(principal, profile, next, events.ScoreReasonDefault, false)
}

func (e *Engine) activeProfile(caller, principal crypto.Address) (*Profile, error) {
	if err := e.authorize(caller); err != nil {
		return nil, err
	}
	profile, err := e.loadProfile(principal)
	if err != nil {
		return nil, err
	}
	if !profile.Active {
		return nil, ErrNoProfile
	}
	return profile, nil
}

// applyScore persists profile with next as its score. An explicit oracle
// update always bumps LastUpdated and emits ScoreUpdated; automatic
// adjustments only do so when the score moves.
func (e *Engine) applyScore(principal crypto.Address, profile *Profile, next uint64, reason string, explicit bool) error {
	old := profile.Score
	changed := old != next || explicit
	if changed {
		profile.LastUpdated = e.now()
	}
	profile.Score = next
	if err := e.storeProfile(principal, profile); err != nil {
		return err
	}
	if changed {
		e.emitter.Emit(events.ScoreUpdated{
			Principal: principal,
			OldScore:  old,
			NewScore:  next,
			Reason:    reason,
			UpdatedAt: profile.LastUpdated,
		})
	}
	return nil
}

// GetScore returns the stored score, or DefaultScore without an active
// profile.
func (e *Engine) GetScore(principal crypto.Address) (uint64, error) {
	profile, err := e.GetProfile(principal)
	if err != nil {
		return 0, err
	}
	if !profile.Active {
		return DefaultScore, nil
	}
	return profile.Score, nil
}

// GetProfile returns the stored profile, or the zero profile with Active=false.
func (e *Engine) GetProfile(principal crypto.Address) (*Profile, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadProfile(principal)
}

// IsEligibleForLoan reports whether the principal's score reaches minScore.
func (e *Engine) IsEligibleForLoan(principal crypto.Address, minScore uint64) (bool, error) {
	score, err := e.GetScore(principal)
	if err != nil {
		return false, err
	}
	return score >= minScore, nil
}

// GetRepaymentRate returns successful repayments as a truncated percentage of
// total loans.
func (e *Engine) GetRepaymentRate(principal crypto.Address) (uint64, error) {
	profile, err := e.GetProfile(principal)
	if err != nil {
		return 0, err
	}
	return profile.RepaymentRate(), nil
}
