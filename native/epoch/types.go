package epoch

import (
	"math/big"

	"tranchepool/native/pool"
)

// VaultState is the per-tranche share ledger. TotalShares is the full
// outstanding supply; EscrowedShares the portion parked for redemption and
// still awaiting settlement. CurrentEpoch identifies the open epoch new
// requests accumulate into.
type VaultState struct {
	Tranche        pool.Tranche
	TotalShares    *big.Int
	EscrowedShares *big.Int
	CurrentEpoch   uint64
}

// Clone returns a deep copy of the vault state.
func (v *VaultState) Clone() *VaultState {
	if v == nil {
		return nil
	}
	clone := *v
	clone.TotalShares = cloneBigInt(v.TotalShares)
	clone.EscrowedShares = cloneBigInt(v.EscrowedShares)
	return &clone
}

func (v *VaultState) ensureDefaults() {
	if v.TotalShares == nil {
		v.TotalShares = big.NewInt(0)
	}
	if v.EscrowedShares == nil {
		v.EscrowedShares = big.NewInt(0)
	}
	if v.CurrentEpoch == 0 {
		v.CurrentEpoch = 1
	}
}

// RedemptionSummary aggregates one epoch's redemption activity for one
// tranche. TotalSharesRequested includes shares carried over unprocessed from
// earlier epochs. Once Sealed the summary is immutable and lenders diff
// against it at disbursement time.
type RedemptionSummary struct {
	Tranche              pool.Tranche
	EpochID              uint64
	TotalSharesRequested *big.Int
	TotalSharesProcessed *big.Int
	TotalAmountProcessed *big.Int
	Sealed               bool
}

// Clone returns a deep copy of the summary.
func (s *RedemptionSummary) Clone() *RedemptionSummary {
	if s == nil {
		return nil
	}
	clone := *s
	clone.TotalSharesRequested = cloneBigInt(s.TotalSharesRequested)
	clone.TotalSharesProcessed = cloneBigInt(s.TotalSharesProcessed)
	clone.TotalAmountProcessed = cloneBigInt(s.TotalAmountProcessed)
	return &clone
}

func (s *RedemptionSummary) ensureDefaults() {
	if s.TotalSharesRequested == nil {
		s.TotalSharesRequested = big.NewInt(0)
	}
	if s.TotalSharesProcessed == nil {
		s.TotalSharesProcessed = big.NewInt(0)
	}
	if s.TotalAmountProcessed == nil {
		s.TotalAmountProcessed = big.NewInt(0)
	}
}

// LenderPosition is the per-lender, per-tranche ledger entry. Shares is the
// freely held balance; SharesRequested the escrowed remainder of past
// redemption requests. Entitlements from sealed epochs between
// NextEpochToProcess and the vault's current epoch have not been folded in
// yet; folding happens lazily on the lender's next interaction.
type LenderPosition struct {
	Lender             string
	Tranche            pool.Tranche
	Shares             *big.Int
	SharesRequested    *big.Int
	NextEpochToProcess uint64
	Withdrawable       *big.Int
	Withdrawn          *big.Int
}

// Clone returns a deep copy of the position.
func (p *LenderPosition) Clone() *LenderPosition {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Shares = cloneBigInt(p.Shares)
	clone.SharesRequested = cloneBigInt(p.SharesRequested)
	clone.Withdrawable = cloneBigInt(p.Withdrawable)
	clone.Withdrawn = cloneBigInt(p.Withdrawn)
	return &clone
}

func (p *LenderPosition) ensureDefaults() {
	if p.Shares == nil {
		p.Shares = big.NewInt(0)
	}
	if p.SharesRequested == nil {
		p.SharesRequested = big.NewInt(0)
	}
	if p.Withdrawable == nil {
		p.Withdrawable = big.NewInt(0)
	}
	if p.Withdrawn == nil {
		p.Withdrawn = big.NewInt(0)
	}
	if p.NextEpochToProcess == 0 {
		p.NextEpochToProcess = 1
	}
}

// TrancheSettlement reports one tranche's slice of an epoch close.
type TrancheSettlement struct {
	Tranche         pool.Tranche
	EpochID         uint64
	SharesRequested *big.Int
	SharesProcessed *big.Int
	AmountProcessed *big.Int
}

// CloseResult reports a full epoch close across both tranches.
type CloseResult struct {
	Settlements []*TrancheSettlement
	// LiquidityUsed is the total paid out of pool liquidity this close.
	LiquidityUsed *big.Int
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

// mulDiv computes a*b/c with floor rounding, zero when c is zero.
func mulDiv(a, b, c *big.Int) *big.Int {
	if c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}
