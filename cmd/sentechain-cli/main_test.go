package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentechain/core"
	"sentechain/core/genesis"
	"sentechain/crypto"
	"sentechain/gateway/middleware"
	"sentechain/integrations/exports"
	"sentechain/storage"
)

func TestKeygenAndAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.keystore")
	var out bytes.Buffer
	require.NoError(t, run([]string{"keygen", "--out", path, "--no-passphrase"}, &out))
	require.Contains(t, out.String(), "Address: ")
	printed := strings.TrimSpace(strings.SplitAfter(out.String(), "Address: ")[1])

	out.Reset()
	require.NoError(t, run([]string{"address", path}, &out))
	require.Equal(t, printed, strings.TrimSpace(out.String()))

	require.Error(t, run([]string{"keygen", "--out", path, "--no-passphrase"}, io.Discard), "existing keystores must not be overwritten")
	require.Error(t, run([]string{"address"}, io.Discard))
}

func TestTokenIsAcceptedByAuthenticator(t *testing.T) {
	t.Setenv("TEST_CLI_SECRET", "s3cret")
	subject := crypto.ModuleAddress("test/caller")
	var out bytes.Buffer
	require.NoError(t, run([]string{"token", "--secret-env", "TEST_CLI_SECRET", "--subject", subject.String(), "--issuer", "sente", "--ttl", "10m"}, &out))

	auth := middleware.NewAuthenticator(middleware.AuthConfig{Enabled: true, HMACSecret: "s3cret", Issuer: "sente"}, nil)
	caller, err := auth.Authenticate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	require.Equal(t, subject, caller)

	require.Error(t, run([]string{"token", "--secret-env", "TEST_CLI_UNSET", "--subject", subject.String()}, io.Discard))
	require.Error(t, run([]string{"token", "--secret-env", "TEST_CLI_SECRET", "--subject", "nope"}, io.Discard))
}

func TestCallSendsJSONRPC(t *testing.T) {
	var seen rpcRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		if seen.Method == "lending_repayLoan" {
			_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32010,"message":"loan defaulted"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"available":"4900"}}`)
	}))
	defer srv.Close()

	origEndpoint, origToken := rpcEndpoint, rpcAuthToken
	defer func() { rpcEndpoint, rpcAuthToken = origEndpoint, origToken }()
	rpcAuthToken = "tok"

	var out bytes.Buffer
	require.NoError(t, run([]string{"--rpc", srv.URL, "call", "lending_getAvailableLiquidity"}, &out))
	require.Equal(t, "lending_getAvailableLiquidity", seen.Method)
	require.Empty(t, seen.Params)
	require.Equal(t, "Bearer tok", auth)
	require.Contains(t, out.String(), `"available": "4900"`)

	err := run([]string{"--rpc=" + srv.URL, "call", "lending_repayLoan", `{"loanId":0}`}, io.Discard)
	require.ErrorContains(t, err, "-32010")
	require.Len(t, seen.Params, 1)
	require.JSONEq(t, `{"loanId":0}`, string(seen.Params[0]))

	require.Error(t, run([]string{"--rpc", srv.URL, "call", "x", "{not json"}, io.Discard))
	require.Error(t, run([]string{"--rpc"}, io.Discard))
}

func TestExportWritesSnapshots(t *testing.T) {
	dataDir := t.TempDir()
	admin := crypto.ModuleAddress("test/admin")
	lender := crypto.ModuleAddress("test/lender")
	borrower := crypto.ModuleAddress("test/borrower")
	spec := &genesis.Spec{
		GenesisTime: "2026-01-01T00:00:00Z",
		Admin:       admin.String(),
		Oracles:     []string{admin.String()},
		Alloc:       map[string]string{lender.String(): "5000", borrower.String(): "100"},
	}
	require.NoError(t, spec.Validate())

	db, err := storage.Open(storage.BackendBolt, dataDir)
	require.NoError(t, err)
	node, err := core.NewNode(db, core.Config{Genesis: spec})
	require.NoError(t, err)
	pool := node.PoolAddress()
	_, err = node.Approve(lender, pool, big.NewInt(5000))
	require.NoError(t, err)
	_, err = node.Deposit(lender, big.NewInt(5000))
	require.NoError(t, err)
	_, err = node.CreateProfile(admin, borrower, 75)
	require.NoError(t, err)
	_, err = node.RequestLoan(borrower, big.NewInt(100))
	require.NoError(t, err)
	require.NoError(t, node.Close())

	nowFn = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { nowFn = time.Now }()

	outDir := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer
	require.NoError(t, run([]string{"export", "--data-dir", dataDir, "--backend", "bolt", "--out", outDir}, &out))

	var manifests []exports.Manifest
	require.NoError(t, json.Unmarshal(out.Bytes(), &manifests))
	require.Len(t, manifests, 3)
	for _, m := range manifests {
		require.Equal(t, 1, m.Rows)
		require.FileExists(t, m.Path)
		require.True(t, strings.HasPrefix(filepath.Base(m.Path), "loans-20260201T120000Z"))
	}
	_, err = os.Stat(filepath.Join(outDir, "loans-20260201T120000Z.b3sums"))
	require.NoError(t, err)

	require.Error(t, run([]string{"export", "--backend", "memory"}, io.Discard))
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, run([]string{"frobnicate"}, &out))
	require.Contains(t, out.String(), "Usage: sentechain-cli")
	require.NoError(t, run(nil, io.Discard))
}
