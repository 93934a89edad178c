package pool

import (
	"fmt"
	"math/big"
	"strings"
)

var basisPoints = big.NewInt(10_000)

// TrancheSnapshot carries the balances a policy needs to split profit. The
// values are copies; policies never mutate pool state.
type TrancheSnapshot struct {
	SeniorAssets *big.Int
	JuniorAssets *big.Int
}

// TranchesPolicy decides how net profit is split between the senior and
// junior tranches. Variants are selected once at pool construction; every
// variant must satisfy senior + junior == profit.
type TranchesPolicy interface {
	Name() string
	DistProfitToTranches(profit *big.Int, snap TrancheSnapshot) (senior, junior *big.Int)
}

// RiskAdjustedPolicy splits profit pro rata by tranche assets, then shifts a
// configured share of the senior allocation to the junior tranche as
// compensation for bearing first loss.
type RiskAdjustedPolicy struct {
	AdjustmentBps uint64
}

func (RiskAdjustedPolicy) Name() string { return "risk-adjusted" }

func (p RiskAdjustedPolicy) DistProfitToTranches(profit *big.Int, snap TrancheSnapshot) (*big.Int, *big.Int) {
	if profit == nil || profit.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	total := new(big.Int).Add(cloneBigInt(snap.SeniorAssets), cloneBigInt(snap.JuniorAssets))
	if total.Sign() == 0 {
		return big.NewInt(0), cloneBigInt(profit)
	}
	senior := new(big.Int).Mul(profit, cloneBigInt(snap.SeniorAssets))
	senior.Quo(senior, total)

	adjustment := mulBps(senior, p.AdjustmentBps)
	senior.Sub(senior, adjustment)
	if senior.Sign() < 0 {
		senior.SetInt64(0)
	}
	junior := new(big.Int).Sub(profit, senior)
	return senior, junior
}

// FixedSeniorYieldPolicy pays the senior tranche a fixed per-period yield on
// its asset base, capped by the profit actually available; the junior tranche
// absorbs the remainder (and the entire shortfall when profit is thin).
type FixedSeniorYieldPolicy struct {
	YieldBps uint64
}

func (FixedSeniorYieldPolicy) Name() string { return "fixed-senior-yield" }

func (p FixedSeniorYieldPolicy) DistProfitToTranches(profit *big.Int, snap TrancheSnapshot) (*big.Int, *big.Int) {
	if profit == nil || profit.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	target := mulBps(cloneBigInt(snap.SeniorAssets), p.YieldBps)
	senior := minBigInt(target, profit)
	junior := new(big.Int).Sub(profit, senior)
	return senior, junior
}

// NewPolicy constructs the policy variant named in configuration.
func NewPolicy(name string, adjustmentBps, seniorYieldBps uint64) (TranchesPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "risk-adjusted", "riskadjusted":
		if adjustmentBps > 10_000 {
			return nil, fmt.Errorf("pool: risk adjustment %d bps exceeds 100%%", adjustmentBps)
		}
		return RiskAdjustedPolicy{AdjustmentBps: adjustmentBps}, nil
	case "fixed-senior-yield", "fixedsenioryield":
		return FixedSeniorYieldPolicy{YieldBps: seniorYieldBps}, nil
	default:
		return nil, fmt.Errorf("pool: unknown tranches policy %q", name)
	}
}

func mulBps(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, basisPoints)
}
