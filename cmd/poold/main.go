package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"tranchepool/config"
	"tranchepool/events"
	"tranchepool/gateway"
	"tranchepool/genesis"
	"tranchepool/native/credit"
	"tranchepool/native/epoch"
	"tranchepool/native/pool"
	"tranchepool/observability"
	"tranchepool/observability/logging"
	"tranchepool/registry"
	"tranchepool/state"
	"tranchepool/storage"
)

const envEnvVar = "POOLD_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv(envEnvVar))
	logger := logging.Setup("poold", env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := state.NewStore(db, cfg.PoolID)

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		doc, err := genesis.Load(genesisPath)
		if err != nil {
			logger.Error("failed to load genesis", "path", genesisPath, "error", err)
			os.Exit(1)
		}
		if err := genesis.Apply(store, doc); err != nil {
			logger.Error("failed to apply genesis", "path", genesisPath, "error", err)
			os.Exit(1)
		}
	}

	emitter := events.Tee(observability.Events().Emitter(), logEmitter(logger))

	policy, err := pool.NewPolicy(cfg.Pool.PolicyName, cfg.Pool.PolicyAdjustmentBps, cfg.Pool.SeniorYieldBps)
	if err != nil {
		logger.Error("invalid tranches policy", "error", err)
		os.Exit(1)
	}
	poolEngine := pool.NewEngine(policy, pool.FeeSchedule{
		FixedFee:       big.NewInt(cfg.Pool.FixedFee),
		ProtocolFeeBps: cfg.Pool.ProtocolFeeBps,
	})
	poolEngine.SetState(store)
	poolEngine.SetEmitter(emitter)
	poolEngine.SetCoverRewardBps(cfg.Pool.CoverRewardBps)

	reg := registry.New()
	reg.Register(cfg.PoolID, poolEngine)

	credits := make(map[credit.Kind]*gateway.CreditModule)
	for _, kind := range []credit.Kind{credit.KindCreditLine, credit.KindReceivableBacked, credit.KindReceivableFactoring} {
		engine := credit.NewEngine(kind)
		engine.SetState(store)
		engine.SetRegistry(reg, cfg.PoolID)
		engine.SetEmitter(emitter)

		manager := credit.NewManager(kind)
		manager.SetState(store)
		manager.SetRegistry(reg, cfg.PoolID)
		manager.SetEmitter(emitter)

		credits[kind] = &gateway.CreditModule{Engine: engine, Manager: manager}
	}

	vaults := make(map[pool.Tranche]*epoch.Vault)
	for _, tranche := range []pool.Tranche{pool.Senior, pool.Junior} {
		vault := epoch.NewVault(tranche)
		vault.SetState(store)
		vault.SetRegistry(reg, cfg.PoolID)
		vault.SetEmitter(emitter)
		vaults[tranche] = vault
	}

	epochs := epoch.NewManager()
	epochs.SetState(store)
	epochs.SetRegistry(reg, cfg.PoolID)
	epochs.SetEmitter(emitter)
	epochs.SetSeniorFirst(cfg.Pool.SeniorFirstRedemption)
	epochs.SetLiquiditySource(registry.NewPoolLiquidity(poolEngine, cfg.Pool.RedemptionLiquidityBps))

	adminSecret := []byte(strings.TrimSpace(os.Getenv(cfg.AdminJWTSecretEnv)))
	if len(adminSecret) == 0 {
		logger.Warn("admin secret not set, administrative routes disabled", "env", cfg.AdminJWTSecretEnv)
	}

	server := gateway.New(gateway.Deps{
		Logger:      logger,
		Pool:        poolEngine,
		Credits:     credits,
		Vaults:      vaults,
		Epochs:      epochs,
		AdminSecret: adminSecret,
	})

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.EpochCloseSchedule, func() {
		result, err := epochs.CloseEpoch()
		if err != nil {
			logger.Error("scheduled epoch close failed", "error", err)
			return
		}
		for _, settlement := range result.Settlements {
			observability.Settlement().ObserveEpochClose(
				settlement.Tranche.String(), settlement.SharesProcessed, settlement.AmountProcessed)
		}
		logger.Info("epoch closed",
			"liquidity_used", result.LiquidityUsed.String(),
			"tranches", len(result.Settlements))
	})
	if err != nil {
		logger.Error("invalid epoch close schedule", "schedule", cfg.EpochCloseSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "address", cfg.ListenAddress, "pool", cfg.PoolID)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "ledger.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// logEmitter mirrors engine events into the structured log at debug level.
func logEmitter(logger *slog.Logger) events.Emitter {
	return events.EmitterFunc(func(evt events.Event) {
		attrs := make([]any, 0, len(evt.Attributes)*2)
		for key, value := range evt.Attributes {
			attrs = append(attrs, key, value)
		}
		logger.Debug("event "+evt.Type, attrs...)
	})
}
