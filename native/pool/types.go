package pool

import "math/big"

// Tranche identifies one of the two loss-ordered slices of pool capital.
type Tranche uint8

const (
	Senior Tranche = iota
	Junior
)

func (t Tranche) String() string {
	switch t {
	case Senior:
		return "senior"
	case Junior:
		return "junior"
	default:
		return "unknown"
	}
}

// Valid reports whether the tranche value is within the supported range.
func (t Tranche) Valid() bool {
	return t == Senior || t == Junior
}

// PoolState is the ledger of tranche balances. Assets are mutated exclusively
// by the distribution operations on Engine; the cumulative loss counters cap
// how much a later recovery may credit back so balances never exceed their
// pre-loss high-water mark.
type PoolState struct {
	SeniorAssets *big.Int
	JuniorAssets *big.Int
	SeniorLoss   *big.Int
	JuniorLoss   *big.Int
	AccruedFees  *big.Int
	Enabled      bool
}

// Clone returns a deep copy of the pool state.
func (p *PoolState) Clone() *PoolState {
	if p == nil {
		return nil
	}
	return &PoolState{
		SeniorAssets: cloneBigInt(p.SeniorAssets),
		JuniorAssets: cloneBigInt(p.JuniorAssets),
		SeniorLoss:   cloneBigInt(p.SeniorLoss),
		JuniorLoss:   cloneBigInt(p.JuniorLoss),
		AccruedFees:  cloneBigInt(p.AccruedFees),
		Enabled:      p.Enabled,
	}
}

func (p *PoolState) ensureDefaults() {
	if p.SeniorAssets == nil {
		p.SeniorAssets = big.NewInt(0)
	}
	if p.JuniorAssets == nil {
		p.JuniorAssets = big.NewInt(0)
	}
	if p.SeniorLoss == nil {
		p.SeniorLoss = big.NewInt(0)
	}
	if p.JuniorLoss == nil {
		p.JuniorLoss = big.NewInt(0)
	}
	if p.AccruedFees == nil {
		p.AccruedFees = big.NewInt(0)
	}
}

// TrancheAssets returns the asset balance for the requested tranche.
func (p *PoolState) TrancheAssets(t Tranche) *big.Int {
	switch t {
	case Senior:
		return cloneBigInt(p.SeniorAssets)
	case Junior:
		return cloneBigInt(p.JuniorAssets)
	default:
		return big.NewInt(0)
	}
}

// Cover is a ranked first-loss buffer. Lower ranks absorb losses earlier and
// recover later; MaxLiquidity caps how much capital the buffer may hold.
type Cover struct {
	ID           string
	Rank         uint8
	Assets       *big.Int
	MaxLiquidity *big.Int
	Loss         *big.Int
}

// Clone returns a deep copy of the cover.
func (c *Cover) Clone() *Cover {
	if c == nil {
		return nil
	}
	return &Cover{
		ID:           c.ID,
		Rank:         c.Rank,
		Assets:       cloneBigInt(c.Assets),
		MaxLiquidity: cloneBigInt(c.MaxLiquidity),
		Loss:         cloneBigInt(c.Loss),
	}
}

func (c *Cover) ensureDefaults() {
	if c.Assets == nil {
		c.Assets = big.NewInt(0)
	}
	if c.MaxLiquidity == nil {
		c.MaxLiquidity = big.NewInt(0)
	}
	if c.Loss == nil {
		c.Loss = big.NewInt(0)
	}
}

// CoverShare records the amount moved into or out of a single cover during a
// distribution.
type CoverShare struct {
	CoverID string
	Amount  *big.Int
}

// ProfitDistribution summarises how a gross profit amount was allocated.
type ProfitDistribution struct {
	Gross  *big.Int
	Fees   *big.Int
	Senior *big.Int
	Junior *big.Int
	Covers []CoverShare
}

// LossDistribution summarises how a loss was absorbed. Shortfall carries any
// portion exceeding total pool capital; it is reported, never dropped.
type LossDistribution struct {
	Total     *big.Int
	Covers    []CoverShare
	Junior    *big.Int
	Senior    *big.Int
	Shortfall *big.Int
}

// RecoveryDistribution summarises how a loss recovery was credited back.
// Surplus is the portion exceeding all recorded losses; the caller decides
// whether to redistribute it as profit.
type RecoveryDistribution struct {
	Total   *big.Int
	Senior  *big.Int
	Junior  *big.Int
	Covers  []CoverShare
	Surplus *big.Int
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func minBigInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
