package pool

import "math/big"

// FeeSchedule configures the protocol cut taken off gross profit before the
// tranche split: a flat amount per distribution plus a proportional share.
type FeeSchedule struct {
	FixedFee       *big.Int
	ProtocolFeeBps uint64
}

// FeeManager applies the fee schedule to gross profit. It holds no
// loss-absorption role; accrued fees live on the pool ledger until withdrawn.
type FeeManager struct {
	schedule FeeSchedule
}

func NewFeeManager(schedule FeeSchedule) *FeeManager {
	if schedule.FixedFee == nil {
		schedule.FixedFee = big.NewInt(0)
	}
	return &FeeManager{schedule: schedule}
}

// Apply returns the fee cut and the net profit remaining for the tranches.
// The cut never exceeds the gross amount.
func (m *FeeManager) Apply(gross *big.Int) (fees, net *big.Int) {
	if gross == nil || gross.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	fees = new(big.Int).Add(cloneBigInt(m.schedule.FixedFee), mulBps(gross, m.schedule.ProtocolFeeBps))
	if fees.Cmp(gross) > 0 {
		fees = cloneBigInt(gross)
	}
	net = new(big.Int).Sub(gross, fees)
	return fees, net
}
