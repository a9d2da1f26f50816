package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

var (
	MaxRequestsPerSecond = float64(10_000)
)

// Validate rejects settings the node cannot start with.
func (c *Config) Validate() error {
	if c.RPCAddress == "" {
		return fmt.Errorf("rpc: RPCAddress must be set")
	}
	switch c.StorageBackend {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("storage: unknown backend %q", c.StorageBackend)
	}
	if c.StorageBackend != "memory" && c.DataDir == "" {
		return fmt.Errorf("storage: DataDir must be set for %s", c.StorageBackend)
	}
	if _, err := c.Lending.Params(); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.RequestsPerSecond > MaxRequestsPerSecond {
		return fmt.Errorf("ratelimit: RequestsPerSecond out of range")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("ratelimit: Burst must be positive")
	}
	if c.Mirror.Enabled {
		switch c.Mirror.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("mirror: unknown driver %q", c.Mirror.Driver)
		}
		if c.Mirror.DSN == "" {
			return fmt.Errorf("mirror: DSN must be set")
		}
	}
	if c.Sweeper.Enabled {
		if _, err := cron.ParseStandard(c.Sweeper.Schedule); err != nil {
			return fmt.Errorf("sweeper: invalid schedule %q: %w", c.Sweeper.Schedule, err)
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}
