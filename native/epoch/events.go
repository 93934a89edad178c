package epoch

import (
	"math/big"
	"strconv"

	"tranchepool/events"
	"tranchepool/native/pool"
)

const (
	EventTypeDeposit             = "epoch.deposit"
	EventTypeRedemptionRequested = "epoch.redemption.requested"
	EventTypeDisbursed           = "epoch.disbursed"
	EventTypeClosed              = "epoch.closed"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newDepositEvent(tranche pool.Tranche, lender string, amount, shares *big.Int) events.Event {
	return events.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"tranche": tranche.String(),
			"lender":  lender,
			"amount":  amountString(amount),
			"shares":  amountString(shares),
		},
	}
}

func newRedemptionRequestedEvent(tranche pool.Tranche, lender string, shares *big.Int, epochID uint64) events.Event {
	return events.Event{
		Type: EventTypeRedemptionRequested,
		Attributes: map[string]string{
			"tranche": tranche.String(),
			"lender":  lender,
			"shares":  amountString(shares),
			"epoch":   strconv.FormatUint(epochID, 10),
		},
	}
}

func newDisbursedEvent(tranche pool.Tranche, lender string, amount *big.Int) events.Event {
	return events.Event{
		Type: EventTypeDisbursed,
		Attributes: map[string]string{
			"tranche": tranche.String(),
			"lender":  lender,
			"amount":  amountString(amount),
		},
	}
}

func newEpochClosedEvent(result *CloseResult) events.Event {
	attrs := map[string]string{
		"liquidity_used": amountString(result.LiquidityUsed),
	}
	for _, s := range result.Settlements {
		prefix := s.Tranche.String()
		attrs[prefix+"_epoch"] = strconv.FormatUint(s.EpochID, 10)
		attrs[prefix+"_shares_requested"] = amountString(s.SharesRequested)
		attrs[prefix+"_shares_processed"] = amountString(s.SharesProcessed)
		attrs[prefix+"_amount_processed"] = amountString(s.AmountProcessed)
	}
	return events.Event{Type: EventTypeClosed, Attributes: attrs}
}
