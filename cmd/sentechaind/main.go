package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sentechain/cmd/internal/passphrase"
	"sentechain/config"
	"sentechain/core"
	"sentechain/core/genesis"
	"sentechain/crypto"
	"sentechain/gateway/middleware"
	"sentechain/integrations/mirror"
	"sentechain/observability/logging"
	telemetry "sentechain/observability/otel"
	"sentechain/rpc"
	"sentechain/services/sweeper"
	"sentechain/storage"
)

const (
	serviceName = "sentechaind"
	genesisEnv  = "SENTE_GENESIS"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis document (overrides config and "+genesisEnv+")")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:        cfg.Telemetry.Metrics,
		Traces:         cfg.Telemetry.Traces,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	operator, err := loadOperatorKey(cfg.OperatorKeystorePath, passphrase.NewSource(passphrase.EnvOperatorPassphrase, "operator keystore").Get)
	if err != nil {
		return err
	}
	operatorAddr := operator.PubKey().Address()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
	}

	spec, err := resolveGenesis(genesisFlag, cfg.GenesisFile, os.LookupEnv, operatorAddr, time.Now())
	if err != nil {
		db.Close()
		return err
	}
	params, err := cfg.Lending.Params()
	if err != nil {
		db.Close()
		return fmt.Errorf("lending config: %w", err)
	}
	node, err := core.NewNode(db, core.Config{Genesis: spec, Lending: params, Logger: logger})
	if err != nil {
		db.Close()
		return fmt.Errorf("start node: %w", err)
	}
	defer node.Close()
	logger.Info("ledger opened",
		"height", node.Height(),
		"admin", node.Admin().String(),
		"operator", operatorAddr.String(),
		"pool", node.PoolAddress().String(),
		"backend", cfg.StorageBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reader rpc.MirrorReader
	var emitter *mirror.Emitter
	if cfg.Mirror.Enabled {
		store, err := mirror.Open(cfg.Mirror.Driver, mirrorDSN(cfg))
		if err != nil {
			return fmt.Errorf("open mirror: %w", err)
		}
		defer store.Close()
		if last, err := store.LastHeight(ctx); err == nil && last < node.Height() {
			logger.Warn("mirror is behind the ledger; history before this run is not replayed",
				"mirrorHeight", last, "ledgerHeight", node.Height())
		}
		emitter = mirror.NewEmitter(store, cfg.Mirror.QueueSize, logger)
		emitter.Start(context.Background())
		node.Subscribe(emitter)
		reader = store
	}

	var sweep *sweeper.Service
	if cfg.Sweeper.Enabled {
		sweep, err = sweeper.New(node, operatorAddr, cfg.Sweeper.Schedule, logger)
		if err != nil {
			return err
		}
		if err := sweep.Start(); err != nil {
			return err
		}
	}

	var authenticator *middleware.Authenticator
	if cfg.Auth.Enabled {
		secret := strings.TrimSpace(os.Getenv(cfg.Auth.SecretEnv))
		if secret == "" {
			return fmt.Errorf("auth enabled but %s is empty", cfg.Auth.SecretEnv)
		}
		authenticator = middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:        true,
			HMACSecret:     secret,
			Issuer:         cfg.Auth.Issuer,
			Audience:       cfg.Auth.Audience,
			AllowAnonymous: true,
		}, logger)
	}

	server, err := rpc.NewServer(rpc.Config{
		Node:          node,
		Mirror:        reader,
		Logger:        logger,
		Version:       version,
		Authenticator: authenticator,
		AuthEnabled:   cfg.Auth.Enabled,
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName:   serviceName,
			MetricsPrefix: "sentechain",
			LogRequests:   cfg.Environment == "dev",
		}, logger),
	})
	if err != nil {
		return fmt.Errorf("initialise RPC server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RPCAddress, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	logger.Info("RPC server listening", "address", listener.Addr().String(), "methods", len(server.Methods()))

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("RPC server terminated", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("RPC shutdown", "error", err)
	}
	if sweep != nil {
		if err := sweep.Stop(shutdownCtx); err != nil {
			logger.Warn("sweeper shutdown", "error", err)
		}
	}
	if emitter != nil {
		if err := emitter.Close(shutdownCtx); err != nil {
			logger.Warn("mirror drain", "error", err)
		}
	}
	logger.Info("node stopped", "height", node.Height())
	return nil
}

// loadOperatorKey opens the keystore with an empty passphrase first, which
// is how generated dev keystores are written, and falls back to resolve.
func loadOperatorKey(path string, resolve func() (string, error)) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("operator keystore path not configured")
	}
	if key, err := crypto.LoadFromKeystore(path, ""); err == nil {
		return key, nil
	}
	if resolve == nil {
		return nil, fmt.Errorf("operator keystore %s is encrypted and no passphrase source is available", path)
	}
	pass, err := resolve()
	if err != nil {
		return nil, fmt.Errorf("operator keystore passphrase: %w", err)
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt keystore %s: %w", path, err)
	}
	return key, nil
}

// resolveGenesis picks the genesis document from the flag, the environment
// or the config, in that order. With none of them a dev genesis naming the
// operator as admin is returned; it only applies to an empty database.
func resolveGenesis(cliPath, cfgPath string, lookup func(string) (string, bool), operator crypto.Address, now time.Time) (*genesis.Spec, error) {
	path := strings.TrimSpace(cliPath)
	if path == "" && lookup != nil {
		if value, ok := lookup(genesisEnv); ok {
			path = strings.TrimSpace(value)
		}
	}
	if path == "" {
		path = strings.TrimSpace(cfgPath)
	}
	if path == "" {
		return genesis.Dev(operator, now), nil
	}
	spec, err := genesis.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load genesis %s: %w", path, err)
	}
	return spec, nil
}

func mirrorDSN(cfg *config.Config) string {
	if cfg.Mirror.Driver == "sqlite" {
		return cfg.ResolvePath(cfg.Mirror.DSN)
	}
	return cfg.Mirror.DSN
}
