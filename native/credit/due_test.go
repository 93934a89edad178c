package credit

import (
	"math/big"
	"testing"
	"time"
)

func TestAccruedYieldFlooredDivision(t *testing.T) {
	// 1000 * 1200bps * 30/365 = 9.86..., floored.
	got := accruedYield(big.NewInt(1000), 1200, 30)
	requireAmount(t, got, 9, "accrued yield")

	requireAmount(t, accruedYield(nil, 1200, 30), 0, "nil amount")
	requireAmount(t, accruedYield(big.NewInt(1000), 0, 30), 0, "zero rate")
	requireAmount(t, accruedYield(big.NewInt(1000), 1200, 0), 0, "zero days")
}

func TestPeriodYieldCommittedFloor(t *testing.T) {
	cfg := Config{YieldBps: 1200, CommittedAmount: big.NewInt(2000)}

	// Under-utilised: the committed amount sets the floor.
	onCommitted := accruedYield(big.NewInt(2000), 1200, 30)
	requireAmount(t, periodYield(cfg, big.NewInt(1000), 30), onCommitted.Int64(), "committed floor")

	// Over-utilised: the drawn balance wins.
	onBorrowed := accruedYield(big.NewInt(5000), 1200, 30)
	requireAmount(t, periodYield(cfg, big.NewInt(5000), 30), onBorrowed.Int64(), "borrowed above commitment")
}

func TestFrontLoadingFeesCappedAtAmount(t *testing.T) {
	cfg := Config{FrontFeeFlat: big.NewInt(50), FrontFeeBps: 200}
	// 50 flat + 2% of 1000.
	requireAmount(t, frontLoadingFees(cfg, big.NewInt(1000)), 70, "fees")
	// Fees can never exceed the draw itself.
	requireAmount(t, frontLoadingFees(cfg, big.NewInt(30)), 30, "capped fees")
}

func TestRefreshBillRollsMultipleBoundaries(t *testing.T) {
	record := billedRecord(KindCreditLine, "alice", 0, 100, 1000)
	record.Config.LateFeeBps = 0
	record.Config.DelayGracePeriods = 1
	record.NextDueDate = time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	record.RemainingPeriods = 5

	// Two full 30-day boundaries have passed by March 1.
	refreshBill(record, testNow)

	if record.MissedPeriods != 2 {
		t.Fatalf("missed periods: got %d want 2", record.MissedPeriods)
	}
	if record.RemainingPeriods != 3 {
		t.Fatalf("remaining periods: got %d want 3", record.RemainingPeriods)
	}
	// First boundary rolls the seeded 100, the second rolls the rebilled 9.
	requireAmount(t, record.PastDue, 109, "past due")
	if record.State != StateDelayed {
		t.Fatalf("state: got %s want delayed", record.State)
	}
}

func TestRefreshBillStopsAfterLastPeriod(t *testing.T) {
	record := billedRecord(KindCreditLine, "alice", 0, 100, 1000)
	record.Config.LateFeeBps = 0
	record.RemainingPeriods = 1
	record.NextDueDate = testNow.AddDate(0, 0, -1)

	refreshBill(record, testNow)

	requireAmount(t, record.PastDue, 100, "past due")
	// No periods left: nothing new is billed.
	requireAmount(t, record.NextDue, 0, "next due")
	if record.RemainingPeriods != 0 {
		t.Fatalf("remaining periods: got %d want 0", record.RemainingPeriods)
	}
}

func TestRefreshBillIgnoresTerminalStates(t *testing.T) {
	record := billedRecord(KindCreditLine, "alice", 0, 100, 1000)
	record.State = StateDefaulted
	record.NextDueDate = testNow.AddDate(0, 0, -1)

	refreshBill(record, testNow)

	requireAmount(t, record.PastDue, 0, "past due")
	requireAmount(t, record.NextDue, 100, "next due untouched")
}
