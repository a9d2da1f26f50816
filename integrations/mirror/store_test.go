package mirror

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentechain/core/events"
	"sentechain/crypto"
)

var (
	alice = crypto.ModuleAddress("mirror/alice")
	bob   = crypto.ModuleAddress("mirror/bob")
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite", filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type feed struct {
	height uint64
	recs   []events.Record
}

func (f *feed) commit(evts ...events.Event) {
	f.height++
	for i, evt := range evts {
		f.recs = append(f.recs, events.Record{
			Height:    f.height,
			Index:     i,
			Timestamp: 1_767_225_600 + int64(f.height),
			Event:     events.ToTypes(evt),
		})
	}
}

func (f *feed) apply(t *testing.T, store *Store) {
	t.Helper()
	for _, rec := range f.recs {
		require.NoError(t, store.Apply(context.Background(), rec))
	}
}

func lifecycle() *feed {
	f := &feed{}
	f.commit(events.ProfileCreated{Principal: alice, Score: 75, CreatedAt: 1})
	f.commit(events.ProfileCreated{Principal: bob, Score: 50, CreatedAt: 1})
	f.commit(events.Deposited{Lender: bob, Amount: big.NewInt(5000), Position: big.NewInt(5000), TotalDeposits: big.NewInt(5000), Timestamp: 2})
	f.commit(events.LoanRequested{Borrower: alice, LoanID: 0, Principal: big.NewInt(100), InterestDue: big.NewInt(8), Score: 75, StartTime: 3, DueDate: 30})
	f.commit(
		events.LoanRepaid{Borrower: alice, LoanID: 0, Principal: big.NewInt(100), Interest: big.NewInt(8), RepaidAt: 10},
		events.ScoreUpdated{Principal: alice, OldScore: 75, NewScore: 77, Reason: events.ScoreReasonRepayment, UpdatedAt: 10},
	)
	f.commit(events.LoanRequested{Borrower: alice, LoanID: 1, Principal: big.NewInt(200), InterestDue: big.NewInt(16), Score: 77, StartTime: 11, DueDate: 41})
	f.commit(events.CredentialMinted{Owner: alice, TokenID: 1, Score: 77, Repayments: 1, Tier: "bronze", MintedAt: 12})
	return f
}

func TestApplyProjectsLifecycle(t *testing.T) {
	store := openTestStore(t)
	lifecycle().apply(t, store)
	ctx := context.Background()

	user, err := store.User(ctx, alice.String())
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, uint64(77), user.Score)
	require.Equal(t, uint64(2), user.TotalLoans)
	require.Equal(t, uint64(1), user.SuccessfulRepayments)
	require.True(t, user.HasCredential)
	require.Equal(t, "bronze", user.CredentialTier)

	loans, err := store.UserLoans(ctx, alice.String(), false)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	require.Equal(t, StatusRepaid, loans[0].Status)
	require.Equal(t, int64(10), loans[0].ClosedAt)
	require.Equal(t, StatusActive, loans[1].Status)

	active, err := store.UserLoans(ctx, alice.String(), true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, uint64(1), active[0].LoanID)

	require.Equal(t, "300", user.TotalBorrowed)
	require.Equal(t, "108", user.TotalRepaid)

	bobRow, err := store.User(ctx, bob.String())
	require.NoError(t, err)
	require.Equal(t, "0", bobRow.TotalBorrowed)
	require.Equal(t, "0", bobRow.TotalRepaid)

	missing, err := store.User(ctx, crypto.ModuleAddress("mirror/nobody").String())
	require.NoError(t, err)
	require.Nil(t, missing)

	height, err := store.LastHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(7), height)
}

func TestApplyIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	f := lifecycle()
	f.apply(t, store)
	f.apply(t, store)

	ctx := context.Background()
	user, err := store.User(ctx, alice.String())
	require.NoError(t, err)
	require.Equal(t, uint64(2), user.TotalLoans)

	var count int64
	require.NoError(t, store.DB().Model(&EventRow{}).Count(&count).Error)
	require.Equal(t, int64(len(f.recs)), count)
}

func TestDefaultProjection(t *testing.T) {
	store := openTestStore(t)
	f := &feed{}
	f.commit(events.ProfileCreated{Principal: alice, Score: 75})
	f.commit(events.LoanRequested{Borrower: alice, LoanID: 0, Principal: big.NewInt(100), InterestDue: big.NewInt(8), Score: 75})
	f.commit(
		events.LoanDefaulted{Borrower: alice, LoanID: 0, Principal: big.NewInt(100), DueDate: 30, DefaultedAt: 40},
		events.ScoreUpdated{Principal: alice, OldScore: 75, NewScore: 60, Reason: events.ScoreReasonDefault, UpdatedAt: 40},
	)
	f.apply(t, store)

	ctx := context.Background()
	user, err := store.User(ctx, alice.String())
	require.NoError(t, err)
	require.Equal(t, uint64(1), user.DefaultedLoans)
	require.Equal(t, uint64(60), user.Score)

	loans, err := store.UserLoans(ctx, alice.String(), false)
	require.NoError(t, err)
	require.Equal(t, StatusDefaulted, loans[0].Status)
	require.Equal(t, int64(40), loans[0].ClosedAt)
}

func TestUserProfile(t *testing.T) {
	store := openTestStore(t)
	lifecycle().apply(t, store)
	ctx := context.Background()

	profile, err := store.UserProfile(ctx, alice.String())
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.Equal(t, uint64(77), profile.Score)
	require.Equal(t, "300", profile.TotalBorrowed)
	require.Equal(t, "108", profile.TotalRepaid)
	require.NotNil(t, profile.RepaymentRate)
	require.Equal(t, 50.0, *profile.RepaymentRate)

	noLoans, err := store.UserProfile(ctx, bob.String())
	require.NoError(t, err)
	require.Nil(t, noLoans.RepaymentRate)

	missing, err := store.UserProfile(ctx, crypto.ModuleAddress("mirror/nobody").String())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestScoreHistoryNewestFirst(t *testing.T) {
	store := openTestStore(t)
	f := &feed{}
	f.commit(events.ProfileCreated{Principal: alice, Score: 50})
	score := uint64(50)
	for i := 0; i < 12; i++ {
		f.commit(events.ScoreUpdated{Principal: alice, OldScore: score, NewScore: score + 1, Reason: events.ScoreReasonOracle, UpdatedAt: uint64(i)})
		score++
	}
	f.apply(t, store)

	history, err := store.ScoreHistory(context.Background(), alice.String(), 0)
	require.NoError(t, err)
	require.Len(t, history, DefaultHistoryLimit)
	require.Equal(t, uint64(62), history[0].NewScore)
	for i := 1; i < len(history); i++ {
		require.Greater(t, history[i-1].Height, history[i].Height)
	}

	short, err := store.ScoreHistory(context.Background(), alice.String(), 3)
	require.NoError(t, err)
	require.Len(t, short, 3)

	full, err := store.ScoreHistory(context.Background(), alice.String(), 50)
	require.NoError(t, err)
	require.Len(t, full, 13)
	initial := full[len(full)-1]
	require.Equal(t, ReasonInitial, initial.Reason)
	require.Equal(t, uint64(0), initial.OldScore)
	require.Equal(t, uint64(50), initial.NewScore)
	require.Equal(t, uint64(1), initial.Height)
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	empty, err := store.LoanStats(ctx)
	require.NoError(t, err)
	require.Zero(t, empty.TotalLoans)
	require.Zero(t, empty.RepaymentRate)
	require.Equal(t, "0", empty.TotalBorrowed)

	lifecycle().apply(t, store)

	loans, err := store.LoanStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), loans.TotalLoans)
	require.Equal(t, int64(1), loans.ActiveLoans)
	require.Equal(t, int64(1), loans.RepaidLoans)
	require.Equal(t, "300", loans.TotalBorrowed)
	require.Equal(t, "108", loans.TotalRepaid)
	require.Equal(t, 50.0, loans.RepaymentRate)

	platform, err := store.PlatformStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), platform.TotalUsers)
	require.Equal(t, int64(1), platform.UsersWithLoans)
	require.Equal(t, int64(1), platform.UsersWithBadges)
	require.Equal(t, 63.5, platform.AverageCreditScore)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}

func TestEmitterDrainsOnClose(t *testing.T) {
	store := openTestStore(t)
	emitter := NewEmitter(store, 64, nil)
	emitter.Start(context.Background())
	for _, rec := range lifecycle().recs {
		emitter.Emit(rec)
	}
	emitter.Emit(events.ModulePaused{Module: "lending"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, emitter.Close(ctx))

	user, err := store.User(context.Background(), alice.String())
	require.NoError(t, err)
	require.Equal(t, uint64(2), user.TotalLoans)

	emitter.Emit(lifecycle().recs[0])
}

func TestEmitterDrainsAfterStartContextCancelled(t *testing.T) {
	store := openTestStore(t)
	emitter := NewEmitter(store, 64, nil)
	startCtx, stop := context.WithCancel(context.Background())
	recs := lifecycle().recs
	for _, rec := range recs {
		emitter.Emit(rec)
	}
	stop()
	emitter.Start(startCtx)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, emitter.Close(ctx))

	var count int64
	require.NoError(t, store.DB().Model(&EventRow{}).Count(&count).Error)
	require.Equal(t, int64(len(recs)), count)
	user, err := store.User(context.Background(), alice.String())
	require.NoError(t, err)
	require.Equal(t, uint64(2), user.TotalLoans)
}

type blockingApplier struct{ release chan struct{} }

func (b blockingApplier) Apply(ctx context.Context, rec events.Record) error {
	<-b.release
	return nil
}

func TestEmitterDropsWhenFull(t *testing.T) {
	applier := blockingApplier{release: make(chan struct{})}
	emitter := NewEmitter(applier, 1, nil)
	recs := lifecycle().recs
	for _, rec := range recs {
		emitter.Emit(rec)
	}
	require.Len(t, emitter.queue, 1)
	close(applier.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, emitter.Close(ctx))
}
