package credit

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"tranchepool/events"
)

type mockState struct {
	records     map[string]*Record
	receivables map[string]*Receivable
}

func newMockState() *mockState {
	return &mockState{
		records:     make(map[string]*Record),
		receivables: make(map[string]*Receivable),
	}
}

func recordKey(kind Kind, borrower string) string { return kind.String() + "/" + borrower }

func (m *mockState) GetCredit(kind Kind, borrower string) (*Record, error) {
	return m.records[recordKey(kind, borrower)], nil
}

func (m *mockState) PutCredit(r *Record) error {
	m.records[recordKey(r.Kind, r.Borrower)] = r
	return nil
}

func (m *mockState) GetReceivable(id string) (*Receivable, error) {
	return m.receivables[id], nil
}

func (m *mockState) PutReceivable(r *Receivable) error {
	m.receivables[r.ID] = r
	return nil
}

type mockDistributor struct {
	profit    *big.Int
	loss      *big.Int
	recovered *big.Int
	// surplus is handed back from DistributeLossRecovery, simulating recovery
	// beyond the recorded losses.
	surplus *big.Int
}

func newMockDistributor() *mockDistributor {
	return &mockDistributor{
		profit:    big.NewInt(0),
		loss:      big.NewInt(0),
		recovered: big.NewInt(0),
		surplus:   big.NewInt(0),
	}
}

func (d *mockDistributor) DistributeProfit(amount *big.Int) error {
	d.profit.Add(d.profit, amount)
	return nil
}

func (d *mockDistributor) DistributeLoss(amount *big.Int) (*big.Int, error) {
	d.loss.Add(d.loss, amount)
	return big.NewInt(0), nil
}

func (d *mockDistributor) DistributeLossRecovery(amount *big.Int) (*big.Int, error) {
	surplus := minBigInt(d.surplus, amount)
	d.recovered.Add(d.recovered, new(big.Int).Sub(amount, surplus))
	return surplus, nil
}

type mockRegistry struct {
	dist Distributor
}

func (r *mockRegistry) Distributor(string) (Distributor, error) { return r.dist, nil }

type mockCustody struct {
	released  *big.Int
	collected *big.Int
}

func newMockCustody() *mockCustody {
	return &mockCustody{released: big.NewInt(0), collected: big.NewInt(0)}
}

func (c *mockCustody) ReleaseToBorrower(_ string, amount *big.Int) error {
	c.released.Add(c.released, amount)
	return nil
}

func (c *mockCustody) CollectFromBorrower(_ string, amount *big.Int) error {
	c.collected.Add(c.collected, amount)
	return nil
}

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	engine  *Engine
	state   *mockState
	dist    *mockDistributor
	custody *mockCustody
	events  []events.Event
}

func newTestEnv(t *testing.T, kind Kind) *testEnv {
	t.Helper()
	env := &testEnv{
		state:   newMockState(),
		dist:    newMockDistributor(),
		custody: newMockCustody(),
	}
	env.engine = NewEngine(kind)
	env.engine.SetState(env.state)
	env.engine.SetRegistry(&mockRegistry{dist: env.dist}, "pool-1")
	env.engine.SetCustody(env.custody)
	env.engine.SetNowFunc(func() time.Time { return testNow })
	env.engine.SetEmitter(events.EmitterFunc(func(evt events.Event) {
		env.events = append(env.events, evt)
	}))
	return env
}

func approvedRecord(kind Kind, borrower string, limit int64) *Record {
	record := &Record{
		Borrower: borrower,
		Kind:     kind,
		Config: Config{
			CreditLimit: big.NewInt(limit),
			YieldBps:    1200,
			PeriodDays:  30,
			NumPeriods:  6,
		},
		State: StateApproved,
	}
	record.ensureDefaults()
	record.AvailableCredit = big.NewInt(limit)
	return record
}

func requireAmount(t *testing.T, got *big.Int, want int64, label string) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: got %s want %d", label, got, want)
	}
}

func TestDrawdownBillsYieldAndRoutesFees(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	record := approvedRecord(KindCreditLine, "alice", 10_000)
	record.Config.FrontFeeFlat = big.NewInt(10)
	record.Config.FrontFeeBps = 100
	env.state.PutCredit(record)

	result, err := env.engine.Drawdown("alice", big.NewInt(1000))
	if err != nil {
		t.Fatalf("drawdown: %v", err)
	}
	// 10 flat + 1% of 1000.
	requireAmount(t, result.Fees, 20, "fees")
	requireAmount(t, result.NetToBorrower, 980, "net to borrower")
	requireAmount(t, env.dist.profit, 20, "fees routed as profit")
	requireAmount(t, env.custody.released, 980, "custody release")

	stored := env.state.records[recordKey(KindCreditLine, "alice")]
	requireAmount(t, stored.Principal, 1000, "principal")
	requireAmount(t, stored.UnbilledPrincipal, 1000, "unbilled principal")
	requireAmount(t, stored.AvailableCredit, 9000, "available credit")
	// 1000 * 1200bps * 30/365, floored.
	requireAmount(t, stored.NextDue, 9, "next due")
	if stored.State != StateGoodStanding {
		t.Fatalf("state: got %s want good_standing", stored.State)
	}
	if stored.RemainingPeriods != 6 {
		t.Fatalf("remaining periods: got %d want 6", stored.RemainingPeriods)
	}
	wantDue := testNow.AddDate(0, 0, 30)
	if !stored.NextDueDate.Equal(time.Date(wantDue.Year(), wantDue.Month(), wantDue.Day(), 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("next due date: got %s", stored.NextDueDate)
	}
}

func TestDrawdownRejectsOverLimit(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	env.state.PutCredit(approvedRecord(KindCreditLine, "alice", 500))

	if _, err := env.engine.Drawdown("alice", big.NewInt(501)); !errors.Is(err, ErrInsufficientCredit) {
		t.Fatalf("expected insufficient credit, got %v", err)
	}
	if _, err := env.engine.Drawdown("alice", big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := env.engine.Drawdown("bob", big.NewInt(100)); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestDrawdownFactoringRequiresReceivable(t *testing.T) {
	env := newTestEnv(t, KindReceivableFactoring)
	record := approvedRecord(KindReceivableFactoring, "alice", 10_000)
	record.AvailableCredit = big.NewInt(400)
	env.state.PutCredit(record)

	if _, err := env.engine.Drawdown("alice", big.NewInt(100)); !errors.Is(err, ErrReceivableRequired) {
		t.Fatalf("expected receivable required, got %v", err)
	}

	env.state.PutReceivable(&Receivable{
		ID:           "rcv-1",
		Borrower:     "alice",
		Amount:       big.NewInt(500),
		Paid:         big.NewInt(0),
		MaturityDate: testNow.AddDate(0, 0, 60),
		State:        ReceivableApproved,
	})
	if _, err := env.engine.DrawdownWithReceivable("alice", "rcv-1", big.NewInt(100)); err != nil {
		t.Fatalf("drawdown with receivable: %v", err)
	}

	env.state.PutReceivable(&Receivable{
		ID:           "rcv-stale",
		Borrower:     "alice",
		Amount:       big.NewInt(500),
		Paid:         big.NewInt(0),
		MaturityDate: testNow.AddDate(0, 0, -1),
		State:        ReceivableApproved,
	})
	if _, err := env.engine.DrawdownWithReceivable("alice", "rcv-stale", big.NewInt(100)); !errors.Is(err, ErrMaturityExceeded) {
		t.Fatalf("expected maturity exceeded, got %v", err)
	}
}

// billedRecord builds a mid-life record with an open bill and optional past
// due, with the next boundary still in the future so a refresh is a no-op.
func billedRecord(kind Kind, borrower string, pastDue, nextDue, unbilled int64) *Record {
	record := &Record{
		Borrower: borrower,
		Kind:     kind,
		Config: Config{
			CreditLimit: big.NewInt(10_000),
			YieldBps:    1200,
			PeriodDays:  30,
			NumPeriods:  6,
		},
		Principal:         big.NewInt(unbilled),
		UnbilledPrincipal: big.NewInt(unbilled),
		NextDue:           big.NewInt(nextDue),
		YieldDue:          big.NewInt(nextDue),
		PastDue:           big.NewInt(pastDue),
		PastDueYield:      big.NewInt(pastDue),
		AvailableCredit:   big.NewInt(0),
		RemainingPeriods:  5,
		State:             StateGoodStanding,
		StartDate:         testNow.AddDate(0, 0, -40),
		NextDueDate:       testNow.AddDate(0, 0, 10),
	}
	record.ensureDefaults()
	return record
}

func TestMakePaymentClearsPastDueFirst(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	record := billedRecord(KindCreditLine, "alice", 50, 100, 1000)
	record.State = StateDelayed
	record.MissedPeriods = 1
	env.state.PutCredit(record)

	result, err := env.engine.MakePayment("alice", big.NewInt(120))
	if err != nil {
		t.Fatalf("make payment: %v", err)
	}
	requireAmount(t, result.PastDuePaid, 50, "past due paid")
	requireAmount(t, result.NextDuePaid, 70, "next due paid")
	requireAmount(t, result.ProfitRouted, 120, "profit routed")
	requireAmount(t, env.dist.profit, 120, "distributor profit")
	requireAmount(t, env.custody.collected, 120, "custody collection")

	stored := env.state.records[recordKey(KindCreditLine, "alice")]
	requireAmount(t, stored.PastDue, 0, "past due")
	requireAmount(t, stored.NextDue, 30, "next due")
	requireAmount(t, stored.UnbilledPrincipal, 1000, "unbilled principal")
	if stored.State != StateGoodStanding {
		t.Fatalf("state: got %s want good_standing", stored.State)
	}
	if stored.MissedPeriods != 0 {
		t.Fatalf("missed periods: got %d want 0", stored.MissedPeriods)
	}
}

func TestMakePaymentFullPayoffClosesFinalPeriod(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	record := billedRecord(KindCreditLine, "alice", 50, 100, 1000)
	record.RemainingPeriods = 1
	env.state.PutCredit(record)

	result, err := env.engine.MakePayment("alice", big.NewInt(1200))
	if err != nil {
		t.Fatalf("make payment: %v", err)
	}
	requireAmount(t, result.Applied, 1150, "applied")
	requireAmount(t, result.Excess, 50, "excess")
	requireAmount(t, result.PrincipalPaid, 1000, "principal paid")
	// 50 past-due yield + 100 current yield.
	requireAmount(t, result.ProfitRouted, 150, "profit routed")

	stored := env.state.records[recordKey(KindCreditLine, "alice")]
	if stored.State != StateClosed {
		t.Fatalf("state: got %s want closed", stored.State)
	}
	requireAmount(t, stored.Principal, 0, "principal")
	requireAmount(t, stored.PastDue, 0, "past due")
	requireAmount(t, stored.NextDue, 0, "next due")
	requireAmount(t, stored.UnbilledPrincipal, 0, "unbilled principal")
}

func TestMakePaymentRevolvingRestoresAvailableCredit(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	record := billedRecord(KindCreditLine, "alice", 0, 0, 1000)
	record.YieldDue = big.NewInt(0)
	record.AvailableCredit = big.NewInt(9000)
	env.state.PutCredit(record)

	result, err := env.engine.MakePayment("alice", big.NewInt(400))
	if err != nil {
		t.Fatalf("make payment: %v", err)
	}
	requireAmount(t, result.PrincipalPaid, 400, "principal paid")

	stored := env.state.records[recordKey(KindCreditLine, "alice")]
	requireAmount(t, stored.AvailableCredit, 9400, "available credit restored")
	requireAmount(t, stored.Principal, 600, "principal")
}

func TestMakePaymentAfterDefaultRoutesRecovery(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	record := billedRecord(KindCreditLine, "alice", 0, 0, 500)
	record.YieldDue = big.NewInt(0)
	record.State = StateDefaulted
	env.state.PutCredit(record)

	result, err := env.engine.MakePayment("alice", big.NewInt(300))
	if err != nil {
		t.Fatalf("make payment: %v", err)
	}
	requireAmount(t, result.RecoveryRouted, 300, "recovery routed")
	requireAmount(t, result.ProfitRouted, 0, "profit routed")
	requireAmount(t, env.dist.recovered, 300, "distributor recovery")

	stored := env.state.records[recordKey(KindCreditLine, "alice")]
	if stored.State != StateDefaulted {
		t.Fatalf("state: got %s want defaulted", stored.State)
	}
	requireAmount(t, stored.UnbilledPrincipal, 200, "unbilled principal")
	// A revolving line never reopens after default.
	requireAmount(t, stored.AvailableCredit, 0, "available credit")
}

func TestMakePaymentRecoverySurplusBecomesProfit(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	env.dist.surplus = big.NewInt(40)
	record := billedRecord(KindCreditLine, "alice", 0, 0, 500)
	record.YieldDue = big.NewInt(0)
	record.State = StateDefaulted
	env.state.PutCredit(record)

	result, err := env.engine.MakePayment("alice", big.NewInt(300))
	if err != nil {
		t.Fatalf("make payment: %v", err)
	}
	requireAmount(t, result.RecoveryRouted, 260, "recovery routed")
	requireAmount(t, result.ProfitRouted, 40, "surplus routed as profit")
	requireAmount(t, env.dist.profit, 40, "distributor profit")
}

func TestMakePaymentRejectsInactiveStates(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	env.state.PutCredit(approvedRecord(KindCreditLine, "alice", 1000))

	if _, err := env.engine.MakePayment("alice", big.NewInt(10)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for approved record, got %v", err)
	}

	closed := approvedRecord(KindCreditLine, "bob", 1000)
	closed.State = StateClosed
	env.state.PutCredit(closed)
	if _, err := env.engine.MakePayment("bob", big.NewInt(10)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state for closed record, got %v", err)
	}
}

func TestRefreshBillRollsMissedPeriods(t *testing.T) {
	env := newTestEnv(t, KindCreditLine)
	record := billedRecord(KindCreditLine, "alice", 0, 100, 1000)
	record.Config.LateFeeBps = 500
	record.NextDueDate = testNow.AddDate(0, 0, -1)
	record.NextDueDate = time.Date(record.NextDueDate.Year(), record.NextDueDate.Month(), record.NextDueDate.Day(), 0, 0, 0, 0, time.UTC)
	env.state.PutCredit(record)

	refreshed, err := env.engine.RefreshBill("alice")
	if err != nil {
		t.Fatalf("refresh bill: %v", err)
	}
	// 100 rolled plus 5% late fee.
	requireAmount(t, refreshed.PastDue, 105, "past due")
	requireAmount(t, refreshed.PastDueYield, 105, "past due yield")
	// Fresh period billed on the drawn balance.
	requireAmount(t, refreshed.NextDue, 9, "rebilled next due")
	if refreshed.MissedPeriods != 1 {
		t.Fatalf("missed periods: got %d want 1", refreshed.MissedPeriods)
	}
	if refreshed.RemainingPeriods != 4 {
		t.Fatalf("remaining periods: got %d want 4", refreshed.RemainingPeriods)
	}
	if refreshed.State != StateDelayed {
		t.Fatalf("state: got %s want delayed", refreshed.State)
	}

	var sawDelinquent bool
	for _, evt := range env.events {
		if evt.Type == EventTypeDelinquent {
			sawDelinquent = true
		}
	}
	if !sawDelinquent {
		t.Fatal("expected a delinquency event")
	}
}
