package credit

import (
	"math/big"
	"time"

	"tranchepool/calendar"
)

var (
	basisPoints = big.NewInt(10_000)
	yearBasis   = big.NewInt(int64(calendar.DaysPerYear) * 10_000)
)

// accruedYield computes simple yield on an amount over a number of days at an
// annualised bps rate, floored division.
func accruedYield(amount *big.Int, yieldBps uint64, days int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || yieldBps == 0 || days <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(yieldBps))
	out.Mul(out, big.NewInt(int64(days)))
	return out.Quo(out, yearBasis)
}

// periodYield computes the yield billed for one full period. When a
// commitment exists the pool is guaranteed the greater of the yield on the
// drawn balance and the yield on the committed amount, regardless of
// utilisation.
func periodYield(cfg Config, borrowed *big.Int, days int) *big.Int {
	onBorrowed := accruedYield(borrowed, cfg.YieldBps, days)
	if cfg.CommittedAmount == nil || cfg.CommittedAmount.Sign() == 0 {
		return onBorrowed
	}
	onCommitted := accruedYield(cfg.CommittedAmount, cfg.YieldBps, days)
	if onCommitted.Cmp(onBorrowed) > 0 {
		return onCommitted
	}
	return onBorrowed
}

// frontLoadingFees computes the fees withheld from a drawdown.
func frontLoadingFees(cfg Config, amount *big.Int) *big.Int {
	fees := cloneBigInt(cfg.FrontFeeFlat)
	if cfg.FrontFeeBps > 0 {
		proportional := new(big.Int).Mul(amount, new(big.Int).SetUint64(cfg.FrontFeeBps))
		proportional.Quo(proportional, basisPoints)
		fees.Add(fees, proportional)
	}
	if fees.Cmp(amount) > 0 {
		fees = cloneBigInt(amount)
	}
	return fees
}

// refreshBill rolls the record forward across every period boundary that has
// passed without payment. Each missed boundary moves the open bill into past
// due (plus the configured late fee), bills a fresh period of yield, and
// bumps the missed-period counter. The state degrades to Delayed once the
// grace threshold is exceeded; escalation to Defaulted is an explicit manager
// decision, never an automatic one.
func refreshBill(r *Record, now time.Time) {
	if r.State != StateGoodStanding && r.State != StateDelayed {
		return
	}
	for r.RemainingPeriods > 0 && !r.NextDueDate.IsZero() && !calendar.StartOfDay(now).Before(r.NextDueDate) {
		lateFee := big.NewInt(0)
		if r.NextDue.Sign() > 0 {
			lateFee = new(big.Int).Mul(r.NextDue, new(big.Int).SetUint64(r.Config.LateFeeBps))
			lateFee.Quo(lateFee, basisPoints)
			r.PastDue = new(big.Int).Add(r.PastDue, r.NextDue)
			r.PastDue.Add(r.PastDue, lateFee)
			r.PastDueYield = new(big.Int).Add(r.PastDueYield, r.YieldDue)
			r.PastDueYield.Add(r.PastDueYield, lateFee)
			r.MissedPeriods++
		}
		r.RemainingPeriods--
		if r.RemainingPeriods > 0 {
			r.YieldDue = periodYield(r.Config, r.Principal, r.Config.PeriodDays)
			r.NextDue = cloneBigInt(r.YieldDue)
		} else {
			r.YieldDue = big.NewInt(0)
			r.NextDue = big.NewInt(0)
		}
		r.NextDueDate = r.NextDueDate.AddDate(0, 0, r.Config.PeriodDays)
	}
	if r.MissedPeriods > r.Config.DelayGracePeriods && r.State == StateGoodStanding {
		r.State = StateDelayed
	}
}

// finalPeriod reports whether the record has no billing periods left beyond
// the one currently open.
func finalPeriod(r *Record) bool {
	return r.RemainingPeriods <= 1
}
