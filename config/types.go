package config

// Auth configures bearer-token caller authentication on the RPC server.
type Auth struct {
	Enabled bool `toml:"Enabled" yaml:"enabled"`
	// SecretEnv names the environment variable holding the HS256 secret.
	SecretEnv string `toml:"SecretEnv" yaml:"secretEnv"`
	Issuer    string `toml:"Issuer" yaml:"issuer"`
	Audience  string `toml:"Audience" yaml:"audience"`
}

// RateLimit bounds per-client request throughput.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond" yaml:"requestsPerSecond"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// Mirror configures the relational read mirror.
type Mirror struct {
	Enabled bool `toml:"Enabled" yaml:"enabled"`
	// Driver is sqlite or postgres.
	Driver    string `toml:"Driver" yaml:"driver"`
	DSN       string `toml:"DSN" yaml:"dsn"`
	QueueSize int    `toml:"QueueSize" yaml:"queueSize"`
}

// Sweeper schedules the overdue-loan default sweep.
type Sweeper struct {
	Enabled bool `toml:"Enabled" yaml:"enabled"`
	// Schedule is a robfig/cron spec such as "@every 1h" or "0 * * * *".
	Schedule string `toml:"Schedule" yaml:"schedule"`
}

// Logging mirrors observability/logging.Options.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sampleRatio"`
}
