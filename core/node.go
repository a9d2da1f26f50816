package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sentechain/core/events"
	"sentechain/core/genesis"
	"sentechain/core/state"
	"sentechain/crypto"
	nativecommon "sentechain/native/common"
	"sentechain/native/credential"
	"sentechain/native/lending"
	"sentechain/native/reputation"
	"sentechain/native/token"
	"sentechain/observability"
	"sentechain/storage"
)

var (
	ErrUnauthorized  = errors.New("core: caller is not the admin")
	ErrUnknownModule = errors.New("core: unknown module")
	ErrNoGenesis     = errors.New("core: database has no genesis and none was supplied")
)

var (
	genesisKey  = []byte("system/genesis")
	pausePrefix = "system/paused/"
)

// PoolModule names the lending pool's custody account.
const PoolModule = "lending-pool"

// Config wires a node.
type Config struct {
	// Genesis is applied when the database is empty. It may be nil when the
	// database was bootstrapped before.
	Genesis *genesis.Spec
	Lending lending.Params
	Logger  *slog.Logger
	// Now returns unix seconds. Defaults to the wall clock.
	Now func() int64
}

type genesisRecord struct {
	Time  uint64
	Admin crypto.Address
}

// Node is the single sequencer. Every mutation runs under the write lock and
// is committed all-or-nothing with its events; reads take the read lock.
type Node struct {
	mu sync.RWMutex

	db      storage.Database
	state   *state.Manager
	feed    *events.Fanout
	logger  *slog.Logger
	nowFn   func() int64
	metrics *observability.LedgerMetrics
	admin   crypto.Address

	registry *reputation.Engine
	issuer   *credential.Engine
	token    *token.Engine
	pool     *lending.Engine
}

// NewNode opens the ledger stored in db, applying cfg.Genesis when the
// database is empty.
func NewNode(db storage.Database, cfg Config) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: nil database")
	}
	params := cfg.Lending
	if params.MinLoanAmount == nil && params.MaxLoanAmount == nil && params.LoanDuration == 0 {
		params = lending.DefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}

	manager, err := state.NewManager(db)
	if err != nil {
		return nil, err
	}
	n := &Node{
		db:      db,
		state:   manager,
		feed:    events.NewFanout(observability.EventCounter{}),
		logger:  logger.With("component", "node"),
		nowFn:   now,
		metrics: observability.Ledger(),
	}
	manager.SetSink(n.feed)
	manager.SetNowFunc(now)

	pauses := pauseView{state: manager}

	n.registry = reputation.NewEngine()
	n.registry.SetState(manager)
	n.registry.SetEmitter(manager)
	n.registry.SetPauses(pauses)
	n.registry.SetNowFunc(now)

	n.issuer = credential.NewEngine()
	n.issuer.SetState(manager)
	n.issuer.SetEmitter(manager)
	n.issuer.SetPauses(pauses)
	n.issuer.SetNowFunc(now)

	n.token = token.NewEngine()
	n.token.SetState(manager)
	n.token.SetEmitter(manager)
	n.token.SetPauses(pauses)

	n.pool = lending.NewEngine(crypto.ModuleAddress(PoolModule), params)
	n.pool.SetState(manager)
	n.pool.SetEmitter(manager)
	n.pool.SetPauses(pauses)
	n.pool.SetRegistry(n.registry)
	n.pool.SetLedger(n.token)
	n.pool.SetIssuer(n.issuer)
	n.pool.SetLogger(logger.With("component", "lending"))
	n.pool.SetNowFunc(now)

	if err := n.bootstrap(cfg.Genesis); err != nil {
		return nil, err
	}
	n.metrics.SetHeight(manager.Height())
	return n, nil
}

func (n *Node) bootstrap(spec *genesis.Spec) error {
	var rec genesisRecord
	ok, err := n.state.KVGet(genesisKey, &rec)
	if err != nil {
		return fmt.Errorf("core: load genesis: %w", err)
	}
	if ok {
		n.admin = rec.Admin
		return nil
	}
	if spec == nil {
		return ErrNoGenesis
	}
	_, err = n.Mutate("genesis", func() error { return n.applyGenesis(spec) })
	return err
}

func (n *Node) applyGenesis(spec *genesis.Spec) error {
	admin := spec.AdminAddress()
	pool := n.pool.Address()
	n.admin = admin
	for _, initialize := range []func(crypto.Address) error{
		n.registry.Initialize,
		n.issuer.Initialize,
		n.token.Initialize,
	} {
		if err := initialize(admin); err != nil {
			return fmt.Errorf("core: genesis: %w", err)
		}
	}
	if err := n.registry.AuthorizeOracle(admin, pool); err != nil {
		return fmt.Errorf("core: genesis pool oracle: %w", err)
	}
	if err := n.issuer.AuthorizeMinter(admin, pool); err != nil {
		return fmt.Errorf("core: genesis pool minter: %w", err)
	}
	for _, oracle := range spec.OracleAddresses() {
		if err := n.registry.AuthorizeOracle(admin, oracle); err != nil {
			return fmt.Errorf("core: genesis oracle %s: %w", oracle, err)
		}
	}
	for _, minter := range spec.MinterAddresses() {
		if err := n.issuer.AuthorizeMinter(admin, minter); err != nil {
			return fmt.Errorf("core: genesis minter %s: %w", minter, err)
		}
	}
	for _, alloc := range spec.Allocations() {
		if err := n.token.Mint(admin, alloc.Address, alloc.Amount); err != nil {
			return fmt.Errorf("core: genesis alloc %s: %w", alloc.Address, err)
		}
	}
	for _, module := range spec.Paused {
		if err := n.setPaused(admin, module, true); err != nil {
			return err
		}
	}
	ts := spec.GenesisTimestamp().Unix()
	if ts < 0 {
		ts = 0
	}
	if err := n.state.KVPut(genesisKey, genesisRecord{Time: uint64(ts), Admin: admin}); err != nil {
		return err
	}
	n.logger.Info("applied genesis", "admin", admin.String(), "pool", pool.String(),
		"oracles", len(spec.OracleAddresses()), "allocations", len(spec.Allocations()))
	return nil
}

// Mutate runs fn under the write lock. When fn fails its writes and events
// are discarded, except for lending.ErrLoanDefaulted whose default
// transition is committed before the error is returned. Subscribers receive
// the committed records before Mutate returns and must not block. The
// returned height is the one fn was committed at, zero when nothing was
// committed.
func (n *Node) Mutate(op string, fn func() error) (uint64, error) {
	start := time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()

	err := fn()
	if err != nil && !errors.Is(err, lending.ErrLoanDefaulted) {
		n.state.Discard()
		n.metrics.ObserveMutation(op, "rejected", time.Since(start))
		return 0, err
	}
	height, records, commitErr := n.state.Commit()
	if commitErr != nil {
		n.metrics.ObserveMutation(op, "failed", time.Since(start))
		n.logger.Error("commit failed", "operation", op, "error", commitErr)
		return 0, commitErr
	}
	for _, rec := range records {
		if rec.EventType() == events.TypeLendingLoanDefaulted {
			n.metrics.RecordDefault()
		}
	}
	n.metrics.SetHeight(height)
	outcome := "committed"
	if err != nil {
		outcome = "defaulted"
	}
	n.metrics.ObserveMutation(op, outcome, time.Since(start))
	if len(records) > 0 {
		n.logger.Debug("committed mutation", "operation", op, "height", height, "events", len(records))
	}
	return height, err
}

// View runs fn under the read lock.
func (n *Node) View(fn func() error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return fn()
}

// Subscribe registers an emitter for committed event records.
func (n *Node) Subscribe(emitter events.Emitter) { n.feed.Add(emitter) }

// Height returns the number of committed mutations.
func (n *Node) Height() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.Height()
}

// Admin returns the genesis administrator.
func (n *Node) Admin() crypto.Address { return n.admin }

// PoolAddress returns the lending pool custody account.
func (n *Node) PoolAddress() crypto.Address { return n.pool.Address() }

// LendingParams returns the pool policy.
func (n *Node) LendingParams() lending.Params { return n.pool.Params() }

// Now returns the node clock in unix seconds.
func (n *Node) Now() int64 { return n.nowFn() }

// Close releases the underlying database.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.db.Close()
	return nil
}

// SetPaused toggles the pause flag of module. Only the admin may call it.
func (n *Node) SetPaused(caller crypto.Address, module string, paused bool) (uint64, error) {
	return n.Mutate("system_setPaused", func() error { return n.setPaused(caller, module, paused) })
}

func (n *Node) setPaused(caller crypto.Address, module string, paused bool) error {
	if !knownModule(module) {
		return fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	if caller != n.admin {
		return ErrUnauthorized
	}
	if err := n.state.KVPut(pauseKey(module), paused); err != nil {
		return err
	}
	n.state.Emit(events.ModulePaused{Module: module, Paused: paused, Caller: caller})
	return nil
}

// IsPaused reports the committed pause flag of module.
func (n *Node) IsPaused(module string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return pauseView{state: n.state}.IsPaused(module)
}

// SweepDefaults marks every overdue active loan defaulted, one committed
// mutation per loan, and returns how many were defaulted. Loans settled
// between the scan and their mutation are skipped.
func (n *Node) SweepDefaults(caller crypto.Address) (int, error) {
	var overdue []*lending.Loan
	if err := n.View(func() error {
		var err error
		overdue, err = n.pool.OverdueLoans()
		return err
	}); err != nil {
		return 0, err
	}
	count := 0
	for _, loan := range overdue {
		_, err := n.Mutate("lending_markDefault", func() error {
			_, err := n.pool.MarkDefault(caller, loan.Borrower, loan.ID)
			return err
		})
		switch {
		case err == nil:
			count++
		case errors.Is(err, lending.ErrNotOverdue), errors.Is(err, lending.ErrLoanNotActive):
		default:
			return count, err
		}
	}
	return count, nil
}

type pauseView struct {
	state *state.Manager
}

func (p pauseView) IsPaused(module string) bool {
	var paused bool
	ok, err := p.state.KVGet(pauseKey(module), &paused)
	return err == nil && ok && paused
}

func pauseKey(module string) []byte { return []byte(pausePrefix + module) }

func knownModule(name string) bool {
	for _, m := range nativecommon.Modules {
		if m == name {
			return true
		}
	}
	return false
}
