package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"sentechain/crypto"
	nativecommon "sentechain/native/common"
)

// Spec describes the ledger's initial authorities and balances. It is applied
// exactly once, the first time a node opens an empty database.
type Spec struct {
	GenesisTime string            `json:"genesisTime"`
	Admin       string            `json:"admin"`
	Oracles     []string          `json:"oracles,omitempty"`
	Minters     []string          `json:"minters,omitempty"`
	Alloc       map[string]string `json:"alloc,omitempty"` // addr -> amount
	Paused      []string          `json:"paused,omitempty"`

	genesisTimestamp time.Time
	admin            crypto.Address
	oracles          []crypto.Address
	minters          []crypto.Address
	alloc            []Allocation
}

// Allocation is an initial balance minted by the admin.
type Allocation struct {
	Address crypto.Address
	Amount  *big.Int
}

// Load reads and validates a JSON genesis file.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// Parse decodes and validates a JSON genesis document. Unknown fields are
// rejected.
func Parse(raw []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Dev returns a spec with admin as the only authority, suitable for local
// nodes and tests.
func Dev(admin crypto.Address, now time.Time) *Spec {
	spec := &Spec{
		GenesisTime: now.UTC().Format(time.RFC3339),
		Admin:       admin.String(),
	}
	if err := spec.Validate(); err != nil {
		panic(err)
	}
	return spec
}

// Validate resolves addresses and amounts. It must succeed before the
// accessors are used.
func (s *Spec) Validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	admin, err := crypto.DecodeAddress(strings.TrimSpace(s.Admin))
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if admin.IsZero() {
		return fmt.Errorf("admin must not be the zero address")
	}
	s.admin = admin

	if s.oracles, err = parseAddressList("oracles", s.Oracles); err != nil {
		return err
	}
	if s.minters, err = parseAddressList("minters", s.Minters); err != nil {
		return err
	}

	s.alloc = s.alloc[:0]
	for raw, value := range s.Alloc {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("alloc %q: %w", raw, err)
		}
		amount, err := parseAmountString(value)
		if err != nil {
			return fmt.Errorf("alloc %q: %w", raw, err)
		}
		if amount.Sign() == 0 {
			continue
		}
		s.alloc = append(s.alloc, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(s.alloc, func(i, j int) bool {
		return bytes.Compare(s.alloc[i].Address[:], s.alloc[j].Address[:]) < 0
	})

	for i, module := range s.Paused {
		if !knownModule(module) {
			return fmt.Errorf("paused[%d]: unknown module %q", i, module)
		}
	}
	return nil
}

func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }
func (s *Spec) AdminAddress() crypto.Address { return s.admin }

// OracleAddresses returns the configured reputation oracles in file order.
func (s *Spec) OracleAddresses() []crypto.Address {
	return append([]crypto.Address(nil), s.oracles...)
}

// MinterAddresses returns the configured credential minters in file order.
func (s *Spec) MinterAddresses() []crypto.Address {
	return append([]crypto.Address(nil), s.minters...)
}

// Allocations returns the initial balances sorted by address.
func (s *Spec) Allocations() []Allocation {
	out := make([]Allocation, len(s.alloc))
	for i, a := range s.alloc {
		out[i] = Allocation{Address: a.Address, Amount: new(big.Int).Set(a.Amount)}
	}
	return out
}

func parseAddressList(field string, values []string) ([]crypto.Address, error) {
	out := make([]crypto.Address, 0, len(values))
	seen := make(map[crypto.Address]struct{}, len(values))
	for i, raw := range values {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("%s[%d]: duplicate address %s", field, i, addr)
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

func knownModule(name string) bool {
	for _, m := range nativecommon.Modules {
		if m == name {
			return true
		}
	}
	return false
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
