package genesis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sentechain/crypto"
)

func addr(b byte) crypto.Address {
	var a crypto.Address
	a[19] = b
	return a
}

func TestParseResolvesAuthoritiesAndAlloc(t *testing.T) {
	doc := `{
		"genesisTime": "2026-01-01T00:00:00Z",
		"admin": "` + addr(1).String() + `",
		"oracles": ["` + addr(2).String() + `"],
		"minters": ["` + addr(3).Hex() + `"],
		"alloc": {"` + addr(5).String() + `": "500", "` + addr(4).String() + `": "400", "` + addr(6).String() + `": "0"},
		"paused": ["credential"]
	}`
	spec, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if spec.AdminAddress() != addr(1) {
		t.Fatalf("unexpected admin %s", spec.AdminAddress())
	}
	if got := spec.OracleAddresses(); len(got) != 1 || got[0] != addr(2) {
		t.Fatalf("unexpected oracles %v", got)
	}
	if got := spec.MinterAddresses(); len(got) != 1 || got[0] != addr(3) {
		t.Fatalf("unexpected minters %v", got)
	}
	alloc := spec.Allocations()
	if len(alloc) != 2 || alloc[0].Address != addr(4) || alloc[0].Amount.Int64() != 400 || alloc[1].Amount.Int64() != 500 {
		t.Fatalf("unexpected alloc %+v", alloc)
	}
	if !spec.GenesisTimestamp().Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected genesis time %s", spec.GenesisTimestamp())
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	admin := addr(1).String()
	cases := map[string]string{
		"missing time":   `{"admin":"` + admin + `"}`,
		"bad admin":      `{"genesisTime":"2026-01-01T00:00:00Z","admin":"nope"}`,
		"duplicate":      `{"genesisTime":"2026-01-01T00:00:00Z","admin":"` + admin + `","oracles":["` + admin + `","` + admin + `"]}`,
		"negative alloc": `{"genesisTime":"2026-01-01T00:00:00Z","admin":"` + admin + `","alloc":{"` + admin + `":"-1"}}`,
		"unknown module": `{"genesisTime":"2026-01-01T00:00:00Z","admin":"` + admin + `","paused":["staking"]}`,
		"unknown field":  `{"genesisTime":"2026-01-01T00:00:00Z","admin":"` + admin + `","chainId":1}`,
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadAndDev(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	doc := `{"genesisTime":"2026-01-01T00:00:00Z","admin":"` + addr(9).String() + `"}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	spec, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if spec.AdminAddress() != addr(9) {
		t.Fatalf("unexpected admin")
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil || !strings.Contains(err.Error(), "missing.json") {
		t.Fatalf("expected read error naming the file, got %v", err)
	}

	dev := Dev(addr(7), time.Unix(1_700_000_000, 0))
	if dev.AdminAddress() != addr(7) || len(dev.Allocations()) != 0 {
		t.Fatalf("unexpected dev spec %+v", dev)
	}
}
