package credit

import (
	"errors"
	"math/big"
	"testing"
	"time"
)

func newTestManager(kind Kind) (*Manager, *mockState, *mockDistributor) {
	state := newMockState()
	dist := newMockDistributor()
	manager := NewManager(kind)
	manager.SetState(state)
	manager.SetRegistry(&mockRegistry{dist: dist}, "pool-1")
	manager.SetNowFunc(func() time.Time { return testNow })
	return manager, state, dist
}

func TestApproveBorrowerCreditLineOpensFullLimit(t *testing.T) {
	manager, state, _ := newTestManager(KindCreditLine)

	record, err := manager.ApproveBorrower("alice", big.NewInt(5000), Config{YieldBps: 1000})
	if err != nil {
		t.Fatalf("approve borrower: %v", err)
	}
	if record.State != StateApproved {
		t.Fatalf("state: got %s want approved", record.State)
	}
	requireAmount(t, record.AvailableCredit, 5000, "available credit")

	if _, err := manager.ApproveBorrower("alice", big.NewInt(5000), Config{}); !errors.Is(err, ErrRecordExists) {
		t.Fatalf("expected record exists, got %v", err)
	}

	// A closed record can be re-approved.
	state.records[recordKey(KindCreditLine, "alice")].State = StateClosed
	if _, err := manager.ApproveBorrower("alice", big.NewInt(5000), Config{}); err != nil {
		t.Fatalf("re-approve after close: %v", err)
	}
}

func TestApproveBorrowerReceivableVariantStartsEmpty(t *testing.T) {
	manager, _, _ := newTestManager(KindReceivableBacked)

	record, err := manager.ApproveBorrower("alice", big.NewInt(5000), Config{AdvanceRateBps: 8000})
	if err != nil {
		t.Fatalf("approve borrower: %v", err)
	}
	requireAmount(t, record.AvailableCredit, 0, "available credit")
}

func TestApproveReceivableExtendsAvailableCredit(t *testing.T) {
	manager, state, _ := newTestManager(KindReceivableBacked)
	if _, err := manager.ApproveBorrower("alice", big.NewInt(1000), Config{AdvanceRateBps: 8000}); err != nil {
		t.Fatalf("approve borrower: %v", err)
	}

	receivable, err := manager.CreateReceivable("alice", big.NewInt(500), testNow.AddDate(0, 0, 90))
	if err != nil {
		t.Fatalf("create receivable: %v", err)
	}
	advance, err := manager.ApproveReceivable(receivable.ID)
	if err != nil {
		t.Fatalf("approve receivable: %v", err)
	}
	// 80% of 500.
	requireAmount(t, advance, 400, "advance")
	requireAmount(t, state.records[recordKey(KindReceivableBacked, "alice")].AvailableCredit, 400, "available credit")

	// A second large receivable is capped by the remaining limit headroom.
	second, err := manager.CreateReceivable("alice", big.NewInt(1000), testNow.AddDate(0, 0, 90))
	if err != nil {
		t.Fatalf("create receivable: %v", err)
	}
	if _, err := manager.ApproveReceivable(second.ID); err != nil {
		t.Fatalf("approve receivable: %v", err)
	}
	requireAmount(t, state.records[recordKey(KindReceivableBacked, "alice")].AvailableCredit, 1000, "capped available credit")
}

func TestApproveReceivableRejectsMatureOrHandled(t *testing.T) {
	manager, _, _ := newTestManager(KindReceivableBacked)
	if _, err := manager.ApproveBorrower("alice", big.NewInt(1000), Config{AdvanceRateBps: 8000}); err != nil {
		t.Fatalf("approve borrower: %v", err)
	}

	stale, err := manager.CreateReceivable("alice", big.NewInt(500), testNow.AddDate(0, 0, -5))
	if err != nil {
		t.Fatalf("create receivable: %v", err)
	}
	if _, err := manager.ApproveReceivable(stale.ID); !errors.Is(err, ErrMaturityExceeded) {
		t.Fatalf("expected maturity exceeded, got %v", err)
	}

	receivable, err := manager.CreateReceivable("alice", big.NewInt(500), testNow.AddDate(0, 0, 90))
	if err != nil {
		t.Fatalf("create receivable: %v", err)
	}
	if err := manager.RejectReceivable(receivable.ID); err != nil {
		t.Fatalf("reject receivable: %v", err)
	}
	if _, err := manager.ApproveReceivable(receivable.ID); !errors.Is(err, ErrInvalidReceivableState) {
		t.Fatalf("expected invalid receivable state, got %v", err)
	}
	if _, err := manager.ApproveReceivable("missing"); !errors.Is(err, ErrReceivableNotFound) {
		t.Fatalf("expected receivable not found, got %v", err)
	}
}

func TestMarkReceivablePaymentProgressesToPaid(t *testing.T) {
	manager, state, _ := newTestManager(KindReceivableFactoring)
	state.PutReceivable(&Receivable{
		ID:           "rcv-1",
		Borrower:     "alice",
		Amount:       big.NewInt(500),
		Paid:         big.NewInt(0),
		MaturityDate: testNow.AddDate(0, 0, 60),
		State:        ReceivableApproved,
	})

	partial, err := manager.MarkReceivablePayment("rcv-1", big.NewInt(200))
	if err != nil {
		t.Fatalf("mark payment: %v", err)
	}
	if partial.State != ReceivablePartiallyPaid {
		t.Fatalf("state: got %s want partially_paid", partial.State)
	}

	full, err := manager.MarkReceivablePayment("rcv-1", big.NewInt(300))
	if err != nil {
		t.Fatalf("mark payment: %v", err)
	}
	if full.State != ReceivablePaid {
		t.Fatalf("state: got %s want paid", full.State)
	}
	requireAmount(t, full.Paid, 500, "paid")

	if _, err := manager.MarkReceivablePayment("rcv-1", big.NewInt(1)); !errors.Is(err, ErrInvalidReceivableState) {
		t.Fatalf("expected invalid receivable state, got %v", err)
	}
}

func TestTriggerDefaultDistributesPrincipalLoss(t *testing.T) {
	manager, state, dist := newTestManager(KindCreditLine)
	record := billedRecord(KindCreditLine, "alice", 105, 9, 700)
	record.Principal = big.NewInt(700)
	record.State = StateDelayed
	record.MissedPeriods = 3
	record.Config.DefaultGracePeriods = 3
	state.PutCredit(record)

	loss, err := manager.TriggerDefault("alice", false)
	if err != nil {
		t.Fatalf("trigger default: %v", err)
	}
	requireAmount(t, loss, 700, "loss")
	requireAmount(t, dist.loss, 700, "distributed loss")
	if state.records[recordKey(KindCreditLine, "alice")].State != StateDefaulted {
		t.Fatal("expected defaulted state")
	}
}

func TestTriggerDefaultRequiresThresholdOrForce(t *testing.T) {
	manager, state, dist := newTestManager(KindCreditLine)
	record := billedRecord(KindCreditLine, "alice", 105, 9, 700)
	record.State = StateDelayed
	record.MissedPeriods = 1
	record.Config.DefaultGracePeriods = 3
	state.PutCredit(record)

	if _, err := manager.TriggerDefault("alice", false); !errors.Is(err, ErrNotEligibleForDefault) {
		t.Fatalf("expected not eligible, got %v", err)
	}
	if _, err := manager.TriggerDefault("alice", true); err != nil {
		t.Fatalf("forced default: %v", err)
	}
	requireAmount(t, dist.loss, 700, "distributed loss")

	// Defaulting twice is a state error.
	if _, err := manager.TriggerDefault("alice", true); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestCloseDefaultedRequiresSettledBuckets(t *testing.T) {
	manager, state, _ := newTestManager(KindCreditLine)
	record := billedRecord(KindCreditLine, "alice", 0, 0, 200)
	record.YieldDue = big.NewInt(0)
	record.State = StateDefaulted
	state.PutCredit(record)

	if err := manager.CloseDefaulted("alice"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state with outstanding balance, got %v", err)
	}

	record = state.records[recordKey(KindCreditLine, "alice")].Clone()
	record.UnbilledPrincipal = big.NewInt(0)
	record.Principal = big.NewInt(0)
	state.PutCredit(record)

	if err := manager.CloseDefaulted("alice"); err != nil {
		t.Fatalf("close defaulted: %v", err)
	}
	if state.records[recordKey(KindCreditLine, "alice")].State != StateClosed {
		t.Fatal("expected closed state")
	}
}
