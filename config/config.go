package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the poold daemon configuration. One file configures one pool
// instance: its gateway, storage backend, settlement policies and the epoch
// close cadence.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	// StorageBackend selects the key-value store: memory, leveldb or bolt.
	StorageBackend string `toml:"StorageBackend"`
	GenesisFile    string `toml:"GenesisFile"`
	PoolID         string `toml:"PoolID"`
	// AdminJWTSecretEnv names the environment variable holding the HMAC
	// secret for administrator tokens. The secret itself never lives in the
	// config file.
	AdminJWTSecretEnv string `toml:"AdminJWTSecretEnv"`
	// EpochCloseSchedule is a cron expression driving the epoch close.
	EpochCloseSchedule string `toml:"EpochCloseSchedule"`

	Pool    PoolConfig    `toml:"pool"`
	Logging LoggingConfig `toml:"logging"`
}

// PoolConfig carries the settlement policy parameters fixed at startup.
type PoolConfig struct {
	// PolicyName selects the tranche profit split: risk-adjusted or
	// fixed-senior-yield.
	PolicyName          string `toml:"PolicyName"`
	PolicyAdjustmentBps uint64 `toml:"PolicyAdjustmentBps"`
	SeniorYieldBps      uint64 `toml:"SeniorYieldBps"`
	CoverRewardBps      uint64 `toml:"CoverRewardBps"`
	FixedFee            int64  `toml:"FixedFee"`
	ProtocolFeeBps      uint64 `toml:"ProtocolFeeBps"`
	// SeniorFirstRedemption draws settlement liquidity for senior requests
	// before junior ones.
	SeniorFirstRedemption bool `toml:"SeniorFirstRedemption"`
	// RedemptionLiquidityBps caps the share of pool value a single epoch
	// close may pay out. Zero means the full pool value.
	RedemptionLiquidityBps uint64 `toml:"RedemptionLiquidityBps"`
}

// LoggingConfig controls the structured log output and its rotation.
type LoggingConfig struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./poold-data"
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = "leveldb"
	}
	if strings.TrimSpace(cfg.PoolID) == "" {
		cfg.PoolID = "pool-1"
	}
	if strings.TrimSpace(cfg.AdminJWTSecretEnv) == "" {
		cfg.AdminJWTSecretEnv = "POOLD_ADMIN_JWT_SECRET"
	}
	if strings.TrimSpace(cfg.EpochCloseSchedule) == "" {
		cfg.EpochCloseSchedule = "0 0 * * *"
	}
	if strings.TrimSpace(cfg.Pool.PolicyName) == "" {
		cfg.Pool.PolicyName = "risk-adjusted"
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays <= 0 {
		cfg.Logging.MaxAgeDays = 28
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
