package pool

import (
	"math/big"

	"tranchepool/events"
)

const (
	EventTypeProfitDistributed = "pool.profit.distributed"
	EventTypeLossDistributed   = "pool.loss.distributed"
	EventTypeLossRecovered     = "pool.loss.recovered"
	EventTypeCoverDeposit      = "pool.cover.deposit"
	EventTypeTrancheDeposit    = "pool.tranche.deposit"
	EventTypePoolEnabled       = "pool.enabled"
	EventTypePoolDisabled      = "pool.disabled"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newProfitDistributedEvent(dist *ProfitDistribution) events.Event {
	return events.Event{
		Type: EventTypeProfitDistributed,
		Attributes: map[string]string{
			"gross":  amountString(dist.Gross),
			"fees":   amountString(dist.Fees),
			"senior": amountString(dist.Senior),
			"junior": amountString(dist.Junior),
		},
	}
}

func newLossDistributedEvent(dist *LossDistribution) events.Event {
	return events.Event{
		Type: EventTypeLossDistributed,
		Attributes: map[string]string{
			"total":     amountString(dist.Total),
			"junior":    amountString(dist.Junior),
			"senior":    amountString(dist.Senior),
			"shortfall": amountString(dist.Shortfall),
		},
	}
}

func newLossRecoveredEvent(dist *RecoveryDistribution) events.Event {
	return events.Event{
		Type: EventTypeLossRecovered,
		Attributes: map[string]string{
			"total":   amountString(dist.Total),
			"senior":  amountString(dist.Senior),
			"junior":  amountString(dist.Junior),
			"surplus": amountString(dist.Surplus),
		},
	}
}

func newCoverDepositEvent(coverID string, amount *big.Int) events.Event {
	return events.Event{
		Type: EventTypeCoverDeposit,
		Attributes: map[string]string{
			"cover":  coverID,
			"amount": amountString(amount),
		},
	}
}

func newTrancheDepositEvent(tranche Tranche, amount *big.Int) events.Event {
	return events.Event{
		Type: EventTypeTrancheDeposit,
		Attributes: map[string]string{
			"tranche": tranche.String(),
			"amount":  amountString(amount),
		},
	}
}

func newEnabledEvent(enabled bool) events.Event {
	evtType := EventTypePoolEnabled
	if !enabled {
		evtType = EventTypePoolDisabled
	}
	return events.Event{Type: evtType, Attributes: map[string]string{}}
}
