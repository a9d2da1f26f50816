package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.StorageBackend != "leveldb" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.OperatorKeystorePath != filepath.Join(dir, "operator.keystore") {
		t.Fatalf("unexpected keystore path %q", cfg.OperatorKeystorePath)
	}
	if _, err := os.Stat(cfg.OperatorKeystorePath); err != nil {
		t.Fatalf("keystore not written: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not persisted: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.OperatorKeystorePath != cfg.OperatorKeystorePath {
		t.Fatalf("reload changed keystore path")
	}
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	contents := `Environment = "Staging"
RPCAddress = "127.0.0.1:9000"
DataDir = "./data"
StorageBackend = "BOLT"
OperatorKeystorePath = "` + filepath.ToSlash(filepath.Join(dir, "op.keystore")) + `"

[Lending]
MinLoanAmount = "50"
MaxLoanAmount = "5000"
MinCreditScore = 65
LoanDuration = "240h"
GracePeriod = "48h"

[Mirror]
Enabled = true
Driver = "sqlite"
DSN = "mirror.db"

[Sweeper]
Enabled = true
Schedule = "*/5 * * * *"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "staging" || cfg.StorageBackend != "bolt" {
		t.Fatalf("expected normalized values, got %+v", cfg)
	}
	params, err := cfg.Lending.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.MinLoanAmount.Int64() != 50 || params.MinCreditScore != 65 || params.GracePeriod.Hours() != 48 {
		t.Fatalf("unexpected lending params %+v", params)
	}
	if cfg.Mirror.QueueSize != 1024 {
		t.Fatalf("expected default queue size, got %d", cfg.Mirror.QueueSize)
	}
	if got := cfg.ResolvePath("mirror.db"); got != filepath.Join("./data", "mirror.db") {
		t.Fatalf("unexpected resolved path %q", got)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	contents := `environment: prod
rpcAddress: ":8181"
dataDir: ` + dir + `
operatorKeystorePath: ` + filepath.Join(dir, "op.keystore") + `
auth:
  enabled: true
rateLimit:
  requestsPerSecond: 5
  burst: 10
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8181" || !cfg.Auth.Enabled || cfg.Auth.SecretEnv != "SENTE_JWT_SECRET" {
		t.Fatalf("unexpected yaml config %+v", cfg)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
}

func TestLendingScoreFloorZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[Lending]\nMinCreditScore = 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	params, err := cfg.Lending.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.MinCreditScore != 0 {
		t.Fatalf("explicit zero floor replaced by %d", params.MinCreditScore)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvEnvironment, "QA")
	t.Setenv(EnvOTLPEndpoint, "collector:4318")
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "qa" || cfg.Telemetry.Endpoint != "collector:4318" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "RPCAddress = \":1\"\nBogus = 1\n",
		"bad backend":  "StorageBackend = \"redis\"\n",
		"bad schedule": "[Sweeper]\nEnabled = true\nSchedule = \"every tuesday\"\n",
		"bad lending":  "[Lending]\nMinLoanAmount = \"ten\"\n",
		"bad mirror":   "[Mirror]\nEnabled = true\nDriver = \"mysql\"\n",
		"bad burst":    "[RateLimit]\nRequestsPerSecond = 5\nBurst = 0\n",
		"bad sample":   "[Telemetry]\nSampleRatio = 2.0\n",
	}
	for name, contents := range cases {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
			t.Fatalf("%s: write: %v", name, err)
		}
		_, err := Load(path)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if name == "unknown key" && !strings.Contains(err.Error(), "Bogus") {
			t.Fatalf("unknown key error should name the key, got %v", err)
		}
	}
}
