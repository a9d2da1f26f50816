package credential

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sentechain/core/events"
	"sentechain/core/state"
	"sentechain/crypto"
	"sentechain/storage"
)

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(e events.Event) { c.events = append(c.events, e) }

var (
	owner = crypto.ModuleAddress("owner")
	pool  = crypto.ModuleAddress("lending")
	alice = crypto.ModuleAddress("alice")
	bob   = crypto.ModuleAddress("bob")
)

func newTestEngine(t *testing.T) (*Engine, *captureEmitter) {
	t.Helper()
	manager, err := state.NewManager(storage.NewMemDB())
	require.NoError(t, err)
	engine := NewEngine()
	engine.SetState(manager)
	emitter := &captureEmitter{}
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	require.NoError(t, engine.Initialize(owner))
	require.NoError(t, engine.AuthorizeMinter(owner, pool))
	return engine, emitter
}

func TestCalculateTier(t *testing.T) {
	cases := []struct {
		score      uint64
		repayments uint64
		want       Tier
	}{
		{score: 95, repayments: 10, want: TierPlatinum},
		{score: 95, repayments: 9, want: TierGold},
		{score: 89, repayments: 12, want: TierGold},
		{score: 80, repayments: 7, want: TierGold},
		{score: 80, repayments: 6, want: TierSilver},
		{score: 70, repayments: 5, want: TierSilver},
		{score: 70, repayments: 4, want: TierBronze},
		{score: 69, repayments: 50, want: TierBronze},
		{score: 60, repayments: 0, want: TierBronze},
	}
	for _, tc := range cases {
		if got := CalculateTier(tc.score, tc.repayments); got != tc.want {
			t.Fatalf("CalculateTier(%d,%d) = %s, want %s", tc.score, tc.repayments, got, tc.want)
		}
	}
}

func TestMintAuthorizationAndOrdering(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Mint(alice, alice, 90, 10)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = engine.Mint(pool, alice, 59, 3)
	require.ErrorIs(t, err, ErrScoreTooLow)
	has, err := engine.HasCredential(alice)
	require.NoError(t, err)
	require.False(t, has)

	cred, err := engine.Mint(pool, alice, 77, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(1), cred.TokenID)
	require.Equal(t, TierBronze, cred.Tier)

	_, err = engine.Mint(owner, alice, 95, 12)
	require.ErrorIs(t, err, ErrAlreadyHasCredential)

	second, err := engine.Mint(owner, bob, 91, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.TokenID)
	require.Equal(t, TierPlatinum, second.Tier)

	supply, err := engine.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, uint64(2), supply)

	holder, err := engine.OwnerOf(2)
	require.NoError(t, err)
	require.Equal(t, bob, holder)

	stored, err := engine.CredentialOf(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(77), stored.ScoreAtMint)
	require.Equal(t, uint64(1_700_000_000), stored.MintedAt)
}

func TestCredentialsAreNonTransferable(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Mint(pool, alice, 80, 7)
	require.NoError(t, err)

	require.ErrorIs(t, engine.Transfer(alice, alice, bob, 1), ErrNonTransferable)
	require.ErrorIs(t, engine.Approve(alice, bob, 1), ErrNonTransferable)
	require.ErrorIs(t, engine.SetApprovalForAll(alice, bob, true), ErrNonTransferable)

	holder, err := engine.OwnerOf(1)
	require.NoError(t, err)
	require.Equal(t, alice, holder)
}

func TestMinterAdministration(t *testing.T) {
	engine, emitter := newTestEngine(t)
	require.ErrorIs(t, engine.AuthorizeMinter(alice, alice), ErrNotOwner)
	require.NoError(t, engine.RevokeMinter(owner, pool))
	_, err := engine.Mint(pool, alice, 80, 7)
	require.True(t, errors.Is(err, ErrUnauthorized))
	require.NotEmpty(t, emitter.events)
	_, err = engine.CredentialOf(alice)
	require.ErrorIs(t, err, ErrCredentialNotFound)
}
