package sweeper

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"sentechain/core"
	"sentechain/core/genesis"
	"sentechain/crypto"
	"sentechain/storage"
)

type fakeTarget struct {
	mu     sync.Mutex
	calls  int
	caller crypto.Address
	result int
	err    error
}

func (f *fakeTarget) SweepDefaults(caller crypto.Address) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.caller = caller
	return f.result, f.err
}

func (f *fakeTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New(&fakeTarget{}, crypto.Address{}, "every tuesday", nil); err == nil {
		t.Fatalf("expected schedule error")
	}
	if _, err := New(nil, crypto.Address{}, "", nil); err == nil {
		t.Fatalf("expected nil target error")
	}
}

func TestRunOnceRecordsStatus(t *testing.T) {
	caller := crypto.ModuleAddress("sweeper/operator")
	target := &fakeTarget{result: 2}
	svc, err := New(target, caller, "", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n, err := svc.RunOnce(); err != nil || n != 2 {
		t.Fatalf("run once: n=%d err=%v", n, err)
	}
	target.err = errors.New("boom")
	target.result = 1
	if _, err := svc.RunOnce(); err == nil {
		t.Fatalf("expected error")
	}
	status := svc.Status()
	if status.Total != 3 || status.Defaulted != 1 || status.LastError != "boom" {
		t.Fatalf("unexpected status %+v", status)
	}
	if target.caller != caller {
		t.Fatalf("sweep must run as the configured caller")
	}
}

func TestScheduledSweepRuns(t *testing.T) {
	target := &fakeTarget{}
	svc, err := New(target, crypto.Address{}, "@every 1s", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for target.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if target.count() == 0 {
		t.Fatalf("scheduled sweep never ran")
	}
}

func TestSweepAgainstNode(t *testing.T) {
	admin := crypto.ModuleAddress("sweeper/admin")
	lender := crypto.ModuleAddress("sweeper/lender")
	borrower := crypto.ModuleAddress("sweeper/borrower")
	spec := &genesis.Spec{
		GenesisTime: "2026-01-01T00:00:00Z",
		Admin:       admin.String(),
		Oracles:     []string{admin.String()},
		Alloc:       map[string]string{lender.String(): "5000"},
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	now := int64(1_767_225_600)
	node, err := core.NewNode(storage.NewMemDB(), core.Config{Genesis: spec, Now: func() int64 { return now }})
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	pool := node.PoolAddress()
	if _, err := node.Approve(lender, pool, big.NewInt(5000)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := node.CreateProfile(admin, borrower, 70); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if _, err := node.Deposit(lender, big.NewInt(5000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := node.RequestLoan(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("request: %v", err)
	}

	svc, err := New(node, admin, "", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now += 38 * 24 * 60 * 60
	if n, err := svc.RunOnce(); err != nil || n != 1 {
		t.Fatalf("expected one default, n=%d err=%v", n, err)
	}
	if score, _ := node.Score(borrower); score != 55 {
		t.Fatalf("expected score 55 after default, got %d", score)
	}
}
