package config

import "fmt"

func Validate(cfg *Config) error {
	switch cfg.StorageBackend {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
	switch cfg.Pool.PolicyName {
	case "risk-adjusted", "fixed-senior-yield":
	default:
		return fmt.Errorf("pool: unknown policy %q", cfg.Pool.PolicyName)
	}
	if cfg.Pool.PolicyAdjustmentBps > 10_000 {
		return fmt.Errorf("pool: policy_adjustment_bps > 10000")
	}
	if cfg.Pool.ProtocolFeeBps > 10_000 {
		return fmt.Errorf("pool: protocol_fee_bps > 10000")
	}
	if cfg.Pool.CoverRewardBps > 10_000 {
		return fmt.Errorf("pool: cover_reward_bps > 10000")
	}
	if cfg.Pool.RedemptionLiquidityBps > 10_000 {
		return fmt.Errorf("pool: redemption_liquidity_bps > 10000")
	}
	if cfg.Pool.FixedFee < 0 {
		return fmt.Errorf("pool: fixed_fee < 0")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}
	return nil
}
