package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"sentechain/crypto"
	"sentechain/native/lending"
)

// Environment variables that override file settings.
const (
	EnvEnvironment  = "SENTE_ENV"
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

type Config struct {
	Environment    string `toml:"Environment" yaml:"environment"`
	RPCAddress     string `toml:"RPCAddress" yaml:"rpcAddress"`
	DataDir        string `toml:"DataDir" yaml:"dataDir"`
	StorageBackend string `toml:"StorageBackend" yaml:"storageBackend"`
	// GenesisFile is optional. Without it the operator key becomes the admin
	// of a dev genesis.
	GenesisFile          string `toml:"GenesisFile" yaml:"genesisFile"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath" yaml:"operatorKeystorePath"`

	Lending   lending.Config `toml:"Lending" yaml:"lending"`
	Auth      Auth           `toml:"Auth" yaml:"auth"`
	RateLimit RateLimit      `toml:"RateLimit" yaml:"rateLimit"`
	Mirror    Mirror         `toml:"Mirror" yaml:"mirror"`
	Sweeper   Sweeper        `toml:"Sweeper" yaml:"sweeper"`
	Logging   Logging        `toml:"Logging" yaml:"logging"`
	Telemetry Telemetry      `toml:"Telemetry" yaml:"telemetry"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		Environment:    "dev",
		RPCAddress:     ":8080",
		DataDir:        "./sente-data",
		StorageBackend: "leveldb",
		Lending:        lending.DefaultConfig(),
		RateLimit:      RateLimit{RequestsPerSecond: 20, Burst: 40},
		Mirror:         Mirror{Driver: "sqlite", DSN: "mirror.db", QueueSize: 1024},
		Sweeper:        Sweeper{Enabled: true, Schedule: "@every 1h"},
		Logging:        Logging{Level: "info"},
		Telemetry:      Telemetry{SampleRatio: 1},
	}
}

// Load loads the configuration from the given path. A missing file is
// created with defaults and a fresh operator keystore. Paths ending in .yaml
// or .yml are decoded as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
		}
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvEnvironment)); v != "" {
		c.Environment = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOTLPEndpoint)); v != "" {
		c.Telemetry.Endpoint = v
	}
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if c.StorageBackend == "" {
		c.StorageBackend = "leveldb"
	}
	c.Mirror.Driver = strings.ToLower(strings.TrimSpace(c.Mirror.Driver))
	if c.Mirror.Driver == "" {
		c.Mirror.Driver = "sqlite"
	}
	if c.Mirror.QueueSize <= 0 {
		c.Mirror.QueueSize = 1024
	}
	if strings.TrimSpace(c.Sweeper.Schedule) == "" {
		c.Sweeper.Schedule = "@every 1h"
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.SecretEnv) == "" {
		c.Auth.SecretEnv = "SENTE_JWT_SECRET"
	}
}

// ResolvePath interprets p relative to the data directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		if !isYAML(configPath) {
			return persist(configPath, cfg)
		}
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.OperatorKeystorePath = keystorePath
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
