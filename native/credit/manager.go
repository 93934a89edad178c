package credit

import (
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"tranchepool/calendar"
	"tranchepool/events"
	"tranchepool/native/common"
)

// Manager handles approval, credit-limit bookkeeping and default triggering
// for one credit variant. Eligibility itself (KYC, allow-listing) is an
// external collaborator decision; the manager only records its outcome.
type Manager struct {
	state    engineState
	emitter  events.Emitter
	pauses   common.PauseView
	registry DistributorRegistry
	poolID   string
	kind     Kind
	nowFn    func() time.Time
}

// NewManager constructs a credit manager for the given variant.
func NewManager(kind Kind) *Manager {
	return &Manager{
		emitter: events.NoopEmitter{},
		kind:    kind,
		nowFn:   time.Now,
	}
}

// SetState wires the manager to the external persistence layer.
func (m *Manager) SetState(state engineState) { m.state = state }

// SetPauses wires the administrative pause view.
func (m *Manager) SetPauses(p common.PauseView) { m.pauses = p }

// SetRegistry wires the distributor lookup and owning pool.
func (m *Manager) SetRegistry(registry DistributorRegistry, poolID string) {
	m.registry = registry
	m.poolID = poolID
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (m *Manager) SetNowFunc(now func() time.Time) {
	if now == nil {
		m.nowFn = time.Now
		return
	}
	m.nowFn = now
}

func (m *Manager) now() time.Time { return m.nowFn() }

func (m *Manager) emit(evt events.Event) {
	if m.emitter != nil {
		m.emitter.Emit(evt)
	}
}

// ApproveBorrower creates the borrower's credit record in the Approved state.
// The plain credit line opens with the full limit available; the receivable
// variants start at zero and earn capacity through approved receivables.
func (m *Manager) ApproveBorrower(borrower string, limit *big.Int, cfg Config) (*Record, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(m.pauses, moduleName); err != nil {
		return nil, err
	}
	borrower = strings.TrimSpace(borrower)
	if borrower == "" || limit == nil || limit.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	existing, err := m.state.GetCredit(m.kind, borrower)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.State != StateClosed {
		return nil, ErrRecordExists
	}

	cfg.CreditLimit = cloneBigInt(limit)
	cfg.ensureDefaults()

	record := &Record{
		Borrower: borrower,
		Kind:     m.kind,
		Config:   cfg,
		State:    StateApproved,
	}
	record.ensureDefaults()
	if m.kind == KindCreditLine {
		record.AvailableCredit = cloneBigInt(limit)
	}
	if err := m.state.PutCredit(record); err != nil {
		return nil, err
	}
	m.emit(newBorrowerApprovedEvent(record))
	return record.Clone(), nil
}

// CreateReceivable registers a pending receivable owned by the borrower.
// Returns the generated identifier.
func (m *Manager) CreateReceivable(borrower string, amount *big.Int, maturity time.Time) (*Receivable, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(m.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	receivable := &Receivable{
		ID:           uuid.NewString(),
		Borrower:     strings.TrimSpace(borrower),
		Amount:       cloneBigInt(amount),
		Paid:         big.NewInt(0),
		MaturityDate: calendar.StartOfDay(maturity),
		State:        ReceivablePending,
	}
	if err := m.state.PutReceivable(receivable); err != nil {
		return nil, err
	}
	return receivable.Clone(), nil
}

// Receivable returns a copy of the stored receivable.
func (m *Manager) Receivable(receivableID string) (*Receivable, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	receivable, err := m.state.GetReceivable(receivableID)
	if err != nil {
		return nil, err
	}
	if receivable == nil {
		return nil, ErrReceivableNotFound
	}
	receivable = receivable.Clone()
	receivable.ensureDefaults()
	return receivable, nil
}

// ApproveReceivable accepts a pending receivable and extends the borrower's
// available credit by face value times the advance rate, capped at the
// configured credit limit.
func (m *Manager) ApproveReceivable(receivableID string) (*big.Int, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(m.pauses, moduleName); err != nil {
		return nil, err
	}
	receivable, err := m.state.GetReceivable(receivableID)
	if err != nil {
		return nil, err
	}
	if receivable == nil {
		return nil, ErrReceivableNotFound
	}
	receivable = receivable.Clone()
	receivable.ensureDefaults()
	if receivable.State != ReceivablePending {
		return nil, ErrInvalidReceivableState
	}
	if calendar.IsMature(receivable.MaturityDate, m.now()) {
		return nil, ErrMaturityExceeded
	}

	record, err := m.state.GetCredit(m.kind, receivable.Borrower)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	record = record.Clone()
	record.ensureDefaults()

	advance := new(big.Int).Mul(receivable.Amount, new(big.Int).SetUint64(record.Config.AdvanceRateBps))
	advance.Quo(advance, basisPoints)

	next := new(big.Int).Add(record.AvailableCredit, advance)
	headroom := new(big.Int).Sub(record.Config.CreditLimit, record.Principal)
	if headroom.Sign() < 0 {
		headroom = big.NewInt(0)
	}
	record.AvailableCredit = minBigInt(next, headroom)

	receivable.State = ReceivableApproved
	if err := m.state.PutReceivable(receivable); err != nil {
		return nil, err
	}
	if err := m.state.PutCredit(record); err != nil {
		return nil, err
	}
	m.emit(newReceivableApprovedEvent(receivable, advance))
	return advance, nil
}

// RejectReceivable declines a pending receivable.
func (m *Manager) RejectReceivable(receivableID string) error {
	if m == nil || m.state == nil {
		return ErrNilState
	}
	if err := common.Guard(m.pauses, moduleName); err != nil {
		return err
	}
	receivable, err := m.state.GetReceivable(receivableID)
	if err != nil {
		return err
	}
	if receivable == nil {
		return ErrReceivableNotFound
	}
	receivable = receivable.Clone()
	if receivable.State != ReceivablePending {
		return ErrInvalidReceivableState
	}
	receivable.State = ReceivableRejected
	if err := m.state.PutReceivable(receivable); err != nil {
		return err
	}
	m.emit(newReceivableRejectedEvent(receivable))
	return nil
}

// MarkReceivablePayment records the payer settling part of a receivable.
// The receivable moves to PartiallyPaid or Paid; routing the proceeds into
// the borrower's bill stays with Engine.MakePayment.
func (m *Manager) MarkReceivablePayment(receivableID string, amount *big.Int) (*Receivable, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	receivable, err := m.state.GetReceivable(receivableID)
	if err != nil {
		return nil, err
	}
	if receivable == nil {
		return nil, ErrReceivableNotFound
	}
	receivable = receivable.Clone()
	receivable.ensureDefaults()
	if receivable.State != ReceivableApproved && receivable.State != ReceivablePartiallyPaid {
		return nil, ErrInvalidReceivableState
	}
	receivable.Paid = new(big.Int).Add(receivable.Paid, amount)
	if receivable.Paid.Cmp(receivable.Amount) >= 0 {
		receivable.Paid = cloneBigInt(receivable.Amount)
		receivable.State = ReceivablePaid
	} else {
		receivable.State = ReceivablePartiallyPaid
	}
	if err := m.state.PutReceivable(receivable); err != nil {
		return nil, err
	}
	m.emit(newReceivablePaidEvent(receivable, amount))
	return receivable.Clone(), nil
}

// TriggerDefault moves a delinquent record into default and distributes the
// outstanding principal as a loss through the pool waterfall. The force flag
// is the administrative override; otherwise the missed-period threshold must
// have been reached.
func (m *Manager) TriggerDefault(borrower string, force bool) (*big.Int, error) {
	if m == nil || m.state == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(m.pauses, moduleName); err != nil {
		return nil, err
	}
	record, err := m.state.GetCredit(m.kind, borrower)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrRecordNotFound
	}
	record = record.Clone()
	record.ensureDefaults()
	refreshBill(record, m.now())

	if record.State != StateGoodStanding && record.State != StateDelayed {
		return nil, ErrInvalidState
	}
	if !force && record.MissedPeriods < record.Config.DefaultGracePeriods {
		return nil, ErrNotEligibleForDefault
	}

	loss := cloneBigInt(record.Principal)
	if loss.Sign() > 0 {
		if m.registry == nil {
			return nil, ErrNilPool
		}
		dist, err := m.registry.Distributor(m.poolID)
		if err != nil {
			return nil, err
		}
		if _, err := dist.DistributeLoss(loss); err != nil {
			return nil, err
		}
	}

	record.State = StateDefaulted
	if err := m.state.PutCredit(record); err != nil {
		return nil, err
	}
	m.emit(newDefaultedEvent(record, loss))
	return loss, nil
}

// CloseDefaulted concludes the administrative recovery workflow for a
// defaulted record whose buckets have been fully settled.
func (m *Manager) CloseDefaulted(borrower string) error {
	if m == nil || m.state == nil {
		return ErrNilState
	}
	if err := common.Guard(m.pauses, moduleName); err != nil {
		return err
	}
	record, err := m.state.GetCredit(m.kind, borrower)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrRecordNotFound
	}
	record = record.Clone()
	record.ensureDefaults()
	if record.State != StateDefaulted {
		return ErrInvalidState
	}
	if record.PayoffAmount().Sign() != 0 {
		return ErrInvalidState
	}
	record.State = StateClosed
	if err := m.state.PutCredit(record); err != nil {
		return err
	}
	m.emit(newClosedEvent(record))
	return nil
}
