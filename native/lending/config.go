package lending

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Params are the fixed lending policy values.
type Params struct {
	MinLoanAmount  *big.Int
	MaxLoanAmount  *big.Int
	MinCreditScore uint64
	LoanDuration   time.Duration
	GracePeriod    time.Duration
}

// DefaultParams returns the policy used when no configuration is supplied.
func DefaultParams() Params {
	return Params{
		MinLoanAmount:  big.NewInt(10),
		MaxLoanAmount:  big.NewInt(1_000_000_000),
		MinCreditScore: 60,
		LoanDuration:   30 * 24 * time.Hour,
		GracePeriod:    7 * 24 * time.Hour,
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.MinLoanAmount == nil || p.MinLoanAmount.Sign() <= 0 {
		return errors.New("lending: MinLoanAmount must be positive")
	}
	if p.MaxLoanAmount == nil || p.MaxLoanAmount.Cmp(p.MinLoanAmount) < 0 {
		return errors.New("lending: MaxLoanAmount must be >= MinLoanAmount")
	}
	if p.MinCreditScore > 100 {
		return errors.New("lending: MinCreditScore must be within [0,100]")
	}
	if p.LoanDuration < time.Second {
		return errors.New("lending: LoanDuration must be at least one second")
	}
	if p.GracePeriod < 0 {
		return errors.New("lending: GracePeriod must not be negative")
	}
	return nil
}

func (p Params) durationSeconds() uint64 { return uint64(p.LoanDuration / time.Second) }
func (p Params) graceSeconds() uint64    { return uint64(p.GracePeriod / time.Second) }

// Config captures the runtime configuration for the lending pool. Amounts are
// decimal strings so they survive TOML/YAML without precision loss. A nil
// MinCreditScore keeps the default floor; an explicit 0 disables it.
type Config struct {
	MinLoanAmount  string `toml:"MinLoanAmount" yaml:"minLoanAmount"`
	MaxLoanAmount  string `toml:"MaxLoanAmount" yaml:"maxLoanAmount"`
	MinCreditScore *uint64 `toml:"MinCreditScore" yaml:"minCreditScore"`
	LoanDuration   string `toml:"LoanDuration" yaml:"loanDuration"`
	GracePeriod    string `toml:"GracePeriod" yaml:"gracePeriod"`
}

// DefaultConfig mirrors DefaultParams in its textual form.
func DefaultConfig() Config {
	return Config{
		MinLoanAmount:  "10",
		MaxLoanAmount:  "1000000000",
		MinCreditScore: scoreFloor(60),
		LoanDuration:   "720h",
		GracePeriod:    "168h",
	}
}

func scoreFloor(v uint64) *uint64 { return &v }

// Params parses the configuration, filling unset fields from DefaultParams.
func (c Config) Params() (Params, error) {
	params := DefaultParams()
	if v := strings.TrimSpace(c.MinLoanAmount); v != "" {
		parsed, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return Params{}, fmt.Errorf("lending: invalid MinLoanAmount %q", c.MinLoanAmount)
		}
		params.MinLoanAmount = parsed
	}
	if v := strings.TrimSpace(c.MaxLoanAmount); v != "" {
		parsed, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return Params{}, fmt.Errorf("lending: invalid MaxLoanAmount %q", c.MaxLoanAmount)
		}
		params.MaxLoanAmount = parsed
	}
	if c.MinCreditScore != nil {
		params.MinCreditScore = *c.MinCreditScore
	}
	if v := strings.TrimSpace(c.LoanDuration); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Params{}, fmt.Errorf("lending: invalid LoanDuration: %w", err)
		}
		params.LoanDuration = d
	}
	if v := strings.TrimSpace(c.GracePeriod); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Params{}, fmt.Errorf("lending: invalid GracePeriod: %w", err)
		}
		params.GracePeriod = d
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}
