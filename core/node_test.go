package core

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"sentechain/core/events"
	"sentechain/core/genesis"
	"sentechain/crypto"
	nativecommon "sentechain/native/common"
	"sentechain/native/lending"
	"sentechain/native/token"
	"sentechain/storage"
)

const day = int64(24 * 60 * 60)

var (
	admin    = crypto.ModuleAddress("test/admin")
	oracle   = crypto.ModuleAddress("test/oracle")
	lender   = crypto.ModuleAddress("test/lender")
	borrower = crypto.ModuleAddress("test/borrower")
)

type recorder struct {
	mu      sync.Mutex
	records []events.Record
}

func (r *recorder) Emit(evt events.Event) {
	rec, ok := evt.(events.Record)
	if !ok {
		return
	}
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Event.Type
	}
	return out
}

type harness struct {
	t    *testing.T
	now  int64
	db   storage.Database
	node *Node
	feed *recorder
}

func testGenesis(t *testing.T) *genesis.Spec {
	t.Helper()
	spec := &genesis.Spec{
		GenesisTime: "2026-01-01T00:00:00Z",
		Admin:       admin.String(),
		Oracles:     []string{oracle.String()},
		Alloc: map[string]string{
			lender.String():   "10000",
			borrower.String(): "1000",
		},
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	return spec
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, now: 1_767_225_600, db: storage.NewMemDB(), feed: &recorder{}}
	node, err := NewNode(h.db, Config{Genesis: testGenesis(t), Now: func() int64 { return h.now }})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	node.Subscribe(h.feed)
	h.node = node
	return h
}

func (h *harness) must(err error) {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("unexpected error: %v", err)
	}
}

func (h *harness) commit(height uint64, err error) uint64 {
	h.t.Helper()
	h.must(err)
	return height
}

func (h *harness) seed() {
	h.t.Helper()
	pool := h.node.PoolAddress()
	h.commit(h.node.Approve(lender, pool, big.NewInt(10000)))
	if _, err := h.node.Deposit(lender, big.NewInt(5000)); err != nil {
		h.t.Fatalf("deposit: %v", err)
	}
	h.commit(h.node.Approve(borrower, pool, big.NewInt(1000)))
	h.commit(h.node.CreateProfile(oracle, borrower, 75))
}

func TestGenesisBootstrap(t *testing.T) {
	h := newHarness(t)
	if h.node.Height() != 1 {
		t.Fatalf("genesis must commit height 1, got %d", h.node.Height())
	}
	if h.node.Admin() != admin {
		t.Fatalf("unexpected admin %s", h.node.Admin())
	}
	for _, addr := range []crypto.Address{oracle, h.node.PoolAddress()} {
		ok, err := h.node.IsOracle(addr)
		if err != nil || !ok {
			t.Fatalf("expected %s to be an oracle (err=%v)", addr, err)
		}
	}
	bal, _ := h.node.BalanceOf(lender)
	if bal.Int64() != 10000 {
		t.Fatalf("unexpected lender allocation %s", bal)
	}
	supply, _ := h.node.TotalSupply()
	if supply.Int64() != 11000 {
		t.Fatalf("unexpected supply %s", supply)
	}

	reopened, err := NewNode(h.db, Config{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Height() != 1 || reopened.Admin() != admin {
		t.Fatalf("reopened node lost state: height %d admin %s", reopened.Height(), reopened.Admin())
	}
	if _, err := NewNode(storage.NewMemDB(), Config{}); !errors.Is(err, ErrNoGenesis) {
		t.Fatalf("expected ErrNoGenesis, got %v", err)
	}
}

func TestMutationsAdvanceHeightAndPublish(t *testing.T) {
	h := newHarness(t)
	h.seed()
	base := h.node.Height()

	loan, err := h.node.RequestLoan(borrower, big.NewInt(100))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if loan.InterestDue.Int64() != 8 {
		t.Fatalf("expected interest 8, got %s", loan.InterestDue)
	}
	if h.node.Height() != base+1 {
		t.Fatalf("expected one committed mutation, height %d", h.node.Height())
	}
	h.now += 5 * day
	if _, err := h.node.RepayLoan(borrower, borrower, loan.ID); err != nil {
		t.Fatalf("repay: %v", err)
	}
	score, _ := h.node.Score(borrower)
	if score != 77 {
		t.Fatalf("expected score 77, got %d", score)
	}

	h.feed.mu.Lock()
	records := append([]events.Record(nil), h.feed.records...)
	h.feed.mu.Unlock()
	var last uint64
	for _, rec := range records {
		if rec.Height < last {
			t.Fatalf("records out of order: %d after %d", rec.Height, last)
		}
		last = rec.Height
	}
	if last != h.node.Height() {
		t.Fatalf("last record height %d, node height %d", last, h.node.Height())
	}
}

func TestFailedMutationDiscardsEverything(t *testing.T) {
	h := newHarness(t)
	h.seed()
	height := h.node.Height()
	published := len(h.feed.types())

	if _, err := h.node.RequestLoan(borrower, big.NewInt(5)); !errors.Is(err, lending.ErrAmountTooLow) {
		t.Fatalf("expected amount too low, got %v", err)
	}
	if _, err := h.node.Transfer(borrower, lender, big.NewInt(1_000_000)); !errors.Is(err, token.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if h.node.Height() != height {
		t.Fatalf("failed mutations must not advance height")
	}
	if got := len(h.feed.types()); got != published {
		t.Fatalf("failed mutations must not publish events (%d -> %d)", published, got)
	}
	if loans, _ := h.node.Loans(borrower); len(loans) != 0 {
		t.Fatalf("failed request must not create a loan")
	}
	profile, _ := h.node.Profile(borrower)
	if profile.TotalLoans != 0 {
		t.Fatalf("failed request must not touch the profile")
	}
}

func TestLateRepaymentCommitsDefault(t *testing.T) {
	h := newHarness(t)
	h.seed()
	loan, err := h.node.RequestLoan(borrower, big.NewInt(100))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	height := h.node.Height()

	h.now = int64(loan.DueDate) + 7*day + 1
	if _, err := h.node.RepayLoan(borrower, borrower, loan.ID); !errors.Is(err, lending.ErrLoanDefaulted) {
		t.Fatalf("expected loan defaulted, got %v", err)
	}
	if h.node.Height() != height+1 {
		t.Fatalf("default must be committed despite the error")
	}
	stored, _ := h.node.Loan(borrower, loan.ID)
	if stored.Status != lending.LoanStatusDefaulted {
		t.Fatalf("expected defaulted loan, got %s", stored.Status)
	}
	if score, _ := h.node.Score(borrower); score != 60 {
		t.Fatalf("expected score 60, got %d", score)
	}
	types := h.feed.types()
	if types[len(types)-1] != events.TypeLendingLoanDefaulted {
		t.Fatalf("expected default event last, got %v", types)
	}
}

func TestSweepDefaults(t *testing.T) {
	h := newHarness(t)
	h.seed()
	if _, err := h.node.RequestLoan(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if n, err := h.node.SweepDefaults(lender); err != nil || n != 0 {
		t.Fatalf("nothing is overdue yet: n=%d err=%v", n, err)
	}
	h.now += 38 * day
	n, err := h.node.SweepDefaults(lender)
	if err != nil || n != 1 {
		t.Fatalf("expected one default, n=%d err=%v", n, err)
	}
	if overdue, _ := h.node.OverdueLoans(); len(overdue) != 0 {
		t.Fatalf("sweep must clear overdue loans, %d left", len(overdue))
	}
	if n, _ := h.node.SweepDefaults(lender); n != 0 {
		t.Fatalf("second sweep must be a no-op, got %d", n)
	}
}

func TestSetPaused(t *testing.T) {
	h := newHarness(t)
	h.seed()
	if _, err := h.node.SetPaused(lender, nativecommon.ModuleLending, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := h.node.SetPaused(admin, "staking", true); !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("expected unknown module, got %v", err)
	}
	h.commit(h.node.SetPaused(admin, nativecommon.ModuleLending, true))
	if !h.node.IsPaused(nativecommon.ModuleLending) {
		t.Fatalf("expected lending paused")
	}
	if _, err := h.node.RequestLoan(borrower, big.NewInt(100)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected module paused, got %v", err)
	}
	if _, err := h.node.Quote(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("reads must work while paused: %v", err)
	}
	h.commit(h.node.SetPaused(admin, nativecommon.ModuleLending, false))
	if _, err := h.node.RequestLoan(borrower, big.NewInt(100)); err != nil {
		t.Fatalf("request after unpause: %v", err)
	}
}

func TestMutationsReportTheirCommitHeight(t *testing.T) {
	h := newHarness(t)
	base := h.node.Height()
	pool := h.node.PoolAddress()
	const writers = 16
	heights := make(chan uint64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			height, err := h.node.Approve(lender, pool, big.NewInt(int64(i+1)))
			if err != nil {
				t.Errorf("approve: %v", err)
			}
			heights <- height
		}(i)
	}
	wg.Wait()
	close(heights)
	seen := make(map[uint64]bool, writers)
	for height := range heights {
		if height <= base || height > base+writers || seen[height] {
			t.Fatalf("height %d outside (%d, %d] or reported twice", height, base, base+writers)
		}
		seen[height] = true
	}
	if h.node.Height() != base+writers {
		t.Fatalf("expected height %d, got %d", base+writers, h.node.Height())
	}
	if height, err := h.node.SetPaused(lender, nativecommon.ModuleLending, true); err == nil || height != 0 {
		t.Fatalf("rejected mutation must report height 0, got %d err=%v", height, err)
	}
}

func TestConcurrentRequestsSerialise(t *testing.T) {
	h := newHarness(t)
	h.seed()
	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.node.RequestLoan(borrower, big.NewInt(100))
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, lending.ErrActiveLoanExists):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one concurrent request may succeed, got %d", succeeded)
	}
	if count, _ := h.node.Loans(borrower); len(count) != 1 {
		t.Fatalf("expected one loan, got %d", len(count))
	}
}
