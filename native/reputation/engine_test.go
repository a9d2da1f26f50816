package reputation

import (
	"errors"
	"testing"

	"sentechain/core/events"
	"sentechain/core/state"
	"sentechain/crypto"
	nativecommon "sentechain/native/common"
	"sentechain/storage"
)

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(e events.Event) { c.events = append(c.events, e) }

func (c *captureEmitter) scoreUpdates() []events.ScoreUpdated {
	var out []events.ScoreUpdated
	for _, e := range c.events {
		if su, ok := e.(events.ScoreUpdated); ok {
			out = append(out, su)
		}
	}
	return out
}

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

var (
	owner  = crypto.ModuleAddress("owner")
	oracle = crypto.ModuleAddress("oracle")
	alice  = crypto.ModuleAddress("alice")
)

func newTestEngine(t *testing.T) (*Engine, *captureEmitter) {
	t.Helper()
	manager, err := state.NewManager(storage.NewMemDB())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	engine := NewEngine()
	engine.SetState(manager)
	emitter := &captureEmitter{}
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	if err := engine.Initialize(owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.AuthorizeOracle(owner, oracle); err != nil {
		t.Fatalf("authorize oracle: %v", err)
	}
	return engine, emitter
}

func TestMutationsRequireOracle(t *testing.T) {
	engine, _ := newTestEngine(t)
	calls := map[string]func() error{
		"create":    func() error { return engine.CreateProfile(alice, alice, 70) },
		"update":    func() error { return engine.UpdateScore(alice, alice, 70) },
		"loan":      func() error { return engine.RecordLoan(alice, alice) },
		"repayment": func() error { return engine.RecordRepayment(alice, alice) },
		"default":   func() error { return engine.RecordDefault(alice, alice) },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
	if err := engine.AuthorizeOracle(alice, alice); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner check, got %v", err)
	}
	if err := engine.RevokeOracle(owner, oracle); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := engine.CreateProfile(oracle, alice, 70); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("revoked oracle must be rejected, got %v", err)
	}
}

func TestScoreRangeValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	for _, score := range []int64{-1, 101, 1000} {
		if err := engine.CreateProfile(oracle, alice, score); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("create %d: expected invalid score, got %v", score, err)
		}
		if err := engine.UpdateScore(oracle, alice, score); !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("update %d: expected invalid score, got %v", score, err)
		}
	}
	profile, _ := engine.GetProfile(alice)
	if profile.Active {
		t.Fatalf("invalid scores must not create a profile")
	}
	for _, score := range []int64{0, 100} {
		if err := engine.UpdateScore(oracle, alice, score); err != nil {
			t.Fatalf("update %d: %v", score, err)
		}
	}
}

func TestCreateProfileOnce(t *testing.T) {
	engine, emitter := newTestEngine(t)
	if err := engine.CreateProfile(oracle, alice, 75); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.CreateProfile(oracle, alice, 80); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	score, _ := engine.GetScore(alice)
	if score != 75 {
		t.Fatalf("unexpected score %d", score)
	}
	var created int
	for _, e := range emitter.events {
		if _, ok := e.(events.ProfileCreated); ok {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected one ProfileCreated event, got %d", created)
	}
}

func TestDefaultsWithoutProfile(t *testing.T) {
	engine, _ := newTestEngine(t)
	score, err := engine.GetScore(alice)
	if err != nil || score != DefaultScore {
		t.Fatalf("expected default score, got %d err=%v", score, err)
	}
	eligible, _ := engine.IsEligibleForLoan(alice, 60)
	if eligible {
		t.Fatalf("default score must not pass a 60 floor")
	}
	rate, _ := engine.GetRepaymentRate(alice)
	if rate != 0 {
		t.Fatalf("expected zero repayment rate, got %d", rate)
	}
	for name, call := range map[string]func() error{
		"loan":      func() error { return engine.RecordLoan(oracle, alice) },
		"repayment": func() error { return engine.RecordRepayment(oracle, alice) },
		"default":   func() error { return engine.RecordDefault(oracle, alice) },
	} {
		if err := call(); !errors.Is(err, ErrNoProfile) {
			t.Fatalf("%s: expected no profile, got %v", name, err)
		}
	}
}

func TestUpdateScoreCreatesThenReplaces(t *testing.T) {
	engine, emitter := newTestEngine(t)
	if err := engine.UpdateScore(oracle, alice, 65); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := engine.UpdateScore(oracle, alice, 72); err != nil {
		t.Fatalf("update: %v", err)
	}
	updates := emitter.scoreUpdates()
	if len(updates) != 1 || updates[0].OldScore != 65 || updates[0].NewScore != 72 || updates[0].Reason != events.ScoreReasonOracle {
		t.Fatalf("unexpected score updates %+v", updates)
	}
}

func TestRepaymentBonusAndDefaultPenalty(t *testing.T) {
	engine, emitter := newTestEngine(t)
	if err := engine.CreateProfile(oracle, alice, 99); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := engine.RecordLoan(oracle, alice); err != nil {
			t.Fatalf("record loan: %v", err)
		}
	}
	if err := engine.RecordRepayment(oracle, alice); err != nil {
		t.Fatalf("repayment: %v", err)
	}
	if score, _ := engine.GetScore(alice); score != 100 {
		t.Fatalf("expected capped score 100, got %d", score)
	}
	updatesBefore := len(emitter.scoreUpdates())
	if err := engine.RecordRepayment(oracle, alice); err != nil {
		t.Fatalf("repayment: %v", err)
	}
	if len(emitter.scoreUpdates()) != updatesBefore {
		t.Fatalf("unchanged score must not emit ScoreUpdated")
	}
	if err := engine.UpdateScore(oracle, alice, 10); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := engine.RecordDefault(oracle, alice); err != nil {
		t.Fatalf("default: %v", err)
	}
	profile, _ := engine.GetProfile(alice)
	if profile.Score != 0 {
		t.Fatalf("expected floored score 0, got %d", profile.Score)
	}
	if profile.TotalLoans < profile.SuccessfulRepayments+profile.DefaultedLoans {
		t.Fatalf("counter invariant violated: %+v", profile)
	}
	if rate, _ := engine.GetRepaymentRate(alice); rate != 66 {
		t.Fatalf("expected truncated repayment rate 66, got %d", rate)
	}
	last := emitter.scoreUpdates()
	if got := last[len(last)-1]; got.Reason != events.ScoreReasonDefault || got.OldScore != 10 || got.NewScore != 0 {
		t.Fatalf("unexpected default score update %+v", got)
	}
}

func TestPausedRegistryRejectsMutations(t *testing.T) {
	engine, _ := newTestEngine(t)
	engine.SetPauses(pauseSet{nativecommon.ModuleReputation: true})
	if err := engine.CreateProfile(oracle, alice, 70); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
}
