package credit

import (
	"math/big"
	"time"

	"tranchepool/calendar"
	"tranchepool/events"
	"tranchepool/native/common"
)

const moduleName = "credit"

type engineState interface {
	GetCredit(kind Kind, borrower string) (*Record, error)
	PutCredit(*Record) error
	GetReceivable(id string) (*Receivable, error)
	PutReceivable(*Receivable) error
}

// Distributor is the slice of the pool engine the credit module needs. The
// concrete pool is resolved through the registry by identifier, never held
// directly, so the credit and pool modules stay acyclic.
type Distributor interface {
	DistributeProfit(amount *big.Int) error
	DistributeLoss(amount *big.Int) (shortfall *big.Int, err error)
	DistributeLossRecovery(amount *big.Int) (surplus *big.Int, err error)
}

// DistributorRegistry resolves a pool identifier to its distributor.
type DistributorRegistry interface {
	Distributor(poolID string) (Distributor, error)
}

// Custody abstracts the value-transfer collaborator. The engine decides how
// much moves and in which direction; the mechanism lives outside the core.
type Custody interface {
	ReleaseToBorrower(borrower string, amount *big.Int) error
	CollectFromBorrower(borrower string, amount *big.Int) error
}

// Engine drives the billing and payment state machine for one credit variant.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	pauses   common.PauseView
	registry DistributorRegistry
	custody  Custody
	poolID   string
	kind     Kind
	nowFn    func() time.Time
}

// NewEngine constructs a credit engine for the given variant.
func NewEngine(kind Kind) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		kind:    kind,
		nowFn:   time.Now,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the administrative pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetRegistry wires the distributor lookup and the pool this engine bills
// into.
func (e *Engine) SetRegistry(registry DistributorRegistry, poolID string) {
	e.registry = registry
	e.poolID = poolID
}

// SetCustody wires the value-transfer collaborator.
func (e *Engine) SetCustody(c Custody) { e.custody = c }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// Kind returns the credit variant this engine administers.
func (e *Engine) Kind() Kind { return e.kind }

func (e *Engine) now() time.Time { return e.nowFn() }

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) distributor() (Distributor, error) {
	if e.registry == nil {
		return nil, ErrNilPool
	}
	return e.registry.Distributor(e.poolID)
}

func (e *Engine) loadRecord(borrower string) (*Record, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	record, err := e.state.GetCredit(e.kind, borrower)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	record = record.Clone()
	record.ensureDefaults()
	return record, nil
}

// Record returns a copy of the borrower's billing record, refreshed to the
// current period so callers observe up-to-date buckets without mutating
// persisted state.
func (e *Engine) Record(borrower string) (*Record, error) {
	record, err := e.loadRecord(borrower)
	if err != nil {
		return nil, err
	}
	refreshBill(record, e.now())
	return record, nil
}

// RefreshBill rolls the borrower's record across any elapsed period
// boundaries and persists the result. Billing refresh is the only operation
// that locally recovers from a missed period: it degrades state instead of
// failing.
func (e *Engine) RefreshBill(borrower string) (*Record, error) {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	record, err := e.loadRecord(borrower)
	if err != nil {
		return nil, err
	}
	before := record.State
	refreshBill(record, e.now())
	if err := e.state.PutCredit(record); err != nil {
		return nil, err
	}
	if before != record.State && record.State == StateDelayed {
		e.emit(newDelinquentEvent(record))
	}
	return record.Clone(), nil
}

// Drawdown releases funds against the borrower's available credit. Fees are
// withheld at source, billed and immediately settled, then forwarded to the
// pool as profit; the borrower receives amount minus fees.
func (e *Engine) Drawdown(borrower string, amount *big.Int) (*DrawdownResult, error) {
	if e.kind == KindReceivableFactoring {
		return nil, ErrReceivableRequired
	}
	return e.drawdown(borrower, amount, nil)
}

// DrawdownWithReceivable releases funds against a specific approved
// receivable (the factoring variant). The receivable's advance capacity backs
// the draw and is consumed by it.
func (e *Engine) DrawdownWithReceivable(borrower, receivableID string, amount *big.Int) (*DrawdownResult, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	receivable, err := e.state.GetReceivable(receivableID)
	if err != nil {
		return nil, err
	}
	if receivable == nil {
		return nil, ErrReceivableNotFound
	}
	receivable = receivable.Clone()
	receivable.ensureDefaults()
	if receivable.Borrower != borrower {
		return nil, ErrReceivableNotFound
	}
	if receivable.State != ReceivableApproved && receivable.State != ReceivablePartiallyPaid {
		return nil, ErrInvalidReceivableState
	}
	if calendar.IsMature(receivable.MaturityDate, e.now()) {
		return nil, ErrMaturityExceeded
	}
	return e.drawdown(borrower, amount, receivable)
}

func (e *Engine) drawdown(borrower string, amount *big.Int, receivable *Receivable) (*DrawdownResult, error) {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	record, err := e.loadRecord(borrower)
	if err != nil {
		return nil, err
	}
	now := e.now()
	refreshBill(record, now)
	if record.State != StateApproved && record.State != StateGoodStanding {
		return nil, ErrInvalidState
	}
	if record.AvailableCredit.Cmp(amount) < 0 {
		return nil, ErrInsufficientCredit
	}

	if record.State == StateApproved {
		record.State = StateGoodStanding
		record.StartDate = calendar.StartOfDay(now)
		record.NextDueDate = record.StartDate.AddDate(0, 0, record.Config.PeriodDays)
		record.RemainingPeriods = record.Config.NumPeriods
	}

	fees := frontLoadingFees(record.Config, amount)
	net := new(big.Int).Sub(amount, fees)

	record.Principal = new(big.Int).Add(record.Principal, amount)
	record.UnbilledPrincipal = new(big.Int).Add(record.UnbilledPrincipal, amount)
	record.AvailableCredit = new(big.Int).Sub(record.AvailableCredit, amount)
	record.YieldDue = periodYield(record.Config, record.Principal, record.Config.PeriodDays)
	record.NextDue = cloneBigInt(record.YieldDue)

	dist, err := e.distributor()
	if err != nil {
		return nil, err
	}
	if fees.Sign() > 0 {
		if err := dist.DistributeProfit(fees); err != nil {
			return nil, err
		}
	}
	if e.custody != nil && net.Sign() > 0 {
		if err := e.custody.ReleaseToBorrower(borrower, net); err != nil {
			return nil, err
		}
	}

	if err := e.state.PutCredit(record); err != nil {
		return nil, err
	}
	if receivable != nil {
		if err := e.state.PutReceivable(receivable); err != nil {
			return nil, err
		}
	}

	result := &DrawdownResult{
		Amount:        cloneBigInt(amount),
		Fees:          fees,
		NetToBorrower: net,
		YieldDue:      cloneBigInt(record.YieldDue),
	}
	e.emit(newDrawdownEvent(record, result))
	return result, nil
}

// MakePayment applies a borrower payment in strict priority order: past due,
// then next due, then unbilled principal, then (when the amount covers the
// full payoff) the remaining balance. Proceeds route to the pool as profit,
// or as loss recovery when the record is in default.
func (e *Engine) MakePayment(borrower string, amount *big.Int) (*PaymentResult, error) {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	record, err := e.loadRecord(borrower)
	if err != nil {
		return nil, err
	}
	if record.State == StateApproved || record.State == StateClosed {
		return nil, ErrInvalidState
	}
	now := e.now()
	refreshBill(record, now)
	wasDefaulted := record.State == StateDefaulted

	payoff := record.PayoffAmount()
	applied := minBigInt(amount, payoff)
	excess := new(big.Int).Sub(amount, applied)

	result := &PaymentResult{
		Applied:        applied,
		PastDuePaid:    big.NewInt(0),
		NextDuePaid:    big.NewInt(0),
		PrincipalPaid:  big.NewInt(0),
		ProfitRouted:   big.NewInt(0),
		RecoveryRouted: big.NewInt(0),
		Excess:         excess,
	}

	remaining := cloneBigInt(applied)
	clearedPastDue := record.PastDue.Sign() == 0

	// Tier 1: past due.
	if remaining.Sign() > 0 && record.PastDue.Sign() > 0 {
		paid := minBigInt(remaining, record.PastDue)
		record.PastDue = new(big.Int).Sub(record.PastDue, paid)
		yieldPart := minBigInt(paid, record.PastDueYield)
		record.PastDueYield = new(big.Int).Sub(record.PastDueYield, yieldPart)
		result.PastDuePaid = paid
		result.ProfitRouted.Add(result.ProfitRouted, yieldPart)
		remaining.Sub(remaining, paid)
		clearedPastDue = record.PastDue.Sign() == 0
	}

	// Tier 2: next due.
	if remaining.Sign() > 0 && record.NextDue.Sign() > 0 {
		paid := minBigInt(remaining, record.NextDue)
		record.NextDue = new(big.Int).Sub(record.NextDue, paid)
		yieldPart := minBigInt(paid, record.YieldDue)
		record.YieldDue = new(big.Int).Sub(record.YieldDue, yieldPart)
		result.NextDuePaid = paid
		result.ProfitRouted.Add(result.ProfitRouted, yieldPart)
		remaining.Sub(remaining, paid)
	}

	// Tier 3: unbilled principal.
	if remaining.Sign() > 0 && record.UnbilledPrincipal.Sign() > 0 {
		paid := minBigInt(remaining, record.UnbilledPrincipal)
		record.UnbilledPrincipal = new(big.Int).Sub(record.UnbilledPrincipal, paid)
		record.Principal = new(big.Int).Sub(record.Principal, paid)
		if record.Principal.Sign() < 0 {
			record.Principal = big.NewInt(0)
		}
		result.PrincipalPaid = paid
		remaining.Sub(remaining, paid)
		if e.kind == KindCreditLine && !wasDefaulted {
			// Revolving line: repaid principal becomes available again.
			restored := new(big.Int).Add(record.AvailableCredit, paid)
			record.AvailableCredit = minBigInt(restored, record.Config.CreditLimit)
		}
	}

	paidOff := applied.Cmp(payoff) == 0 && payoff.Sign() > 0

	switch {
	case paidOff:
		record.NextDue = big.NewInt(0)
		record.YieldDue = big.NewInt(0)
		record.PastDue = big.NewInt(0)
		record.PastDueYield = big.NewInt(0)
		record.UnbilledPrincipal = big.NewInt(0)
		record.Principal = big.NewInt(0)
		record.MissedPeriods = 0
		if !wasDefaulted {
			if finalPeriod(record) {
				record.State = StateClosed
			} else {
				record.State = StateGoodStanding
			}
		}
	case clearedPastDue:
		record.MissedPeriods = 0
		if record.State == StateDelayed {
			record.State = StateGoodStanding
		}
	}

	if e.custody != nil && applied.Sign() > 0 {
		if err := e.custody.CollectFromBorrower(borrower, applied); err != nil {
			return nil, err
		}
	}

	dist, err := e.distributor()
	if err != nil {
		return nil, err
	}
	if wasDefaulted {
		// Post-default proceeds reverse recorded losses senior-first; any
		// surplus past the recorded losses is ordinary profit.
		if applied.Sign() > 0 {
			surplus, err := dist.DistributeLossRecovery(applied)
			if err != nil {
				return nil, err
			}
			result.RecoveryRouted = new(big.Int).Sub(applied, surplus)
			if surplus.Sign() > 0 {
				if err := dist.DistributeProfit(surplus); err != nil {
					return nil, err
				}
				result.ProfitRouted = surplus
			} else {
				result.ProfitRouted = big.NewInt(0)
			}
		}
	} else if result.ProfitRouted.Sign() > 0 {
		if err := dist.DistributeProfit(result.ProfitRouted); err != nil {
			return nil, err
		}
	}

	if err := e.state.PutCredit(record); err != nil {
		return nil, err
	}
	result.State = record.State
	e.emit(newPaymentEvent(record, result))
	return result, nil
}
