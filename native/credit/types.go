package credit

import (
	"math/big"
	"time"
)

// CreditState tracks the lifecycle of a borrower's credit line.
type CreditState uint8

const (
	StateApproved CreditState = iota
	StateGoodStanding
	StateDelayed
	StateDefaulted
	StateClosed
)

func (s CreditState) String() string {
	switch s {
	case StateApproved:
		return "approved"
	case StateGoodStanding:
		return "good_standing"
	case StateDelayed:
		return "delayed"
	case StateDefaulted:
		return "defaulted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Kind selects the credit variant a manager administers.
type Kind uint8

const (
	KindCreditLine Kind = iota
	KindReceivableBacked
	KindReceivableFactoring
)

func (k Kind) String() string {
	switch k {
	case KindCreditLine:
		return "credit_line"
	case KindReceivableBacked:
		return "receivable_backed"
	case KindReceivableFactoring:
		return "receivable_factoring"
	default:
		return "unknown"
	}
}

// Config carries the per-borrower billing terms fixed at approval time.
type Config struct {
	CreditLimit *big.Int
	// CommittedAmount, when positive, guarantees the pool a minimum return:
	// yield accrues on max(borrowed, committed).
	CommittedAmount *big.Int
	YieldBps        uint64
	// Front-loading fees withheld from each drawdown.
	FrontFeeFlat *big.Int
	FrontFeeBps  uint64
	// LateFeeBps is charged on amounts rolled into past due at a missed
	// period boundary.
	LateFeeBps uint64
	PeriodDays int
	NumPeriods int
	// DelayGracePeriods missed periods move the record to Delayed;
	// DefaultGracePeriods make it eligible for default triggering.
	DelayGracePeriods   int
	DefaultGracePeriods int
	// AdvanceRateBps applies to the receivable-backed and factoring variants.
	AdvanceRateBps uint64
}

func (c *Config) ensureDefaults() {
	if c.CreditLimit == nil {
		c.CreditLimit = big.NewInt(0)
	}
	if c.CommittedAmount == nil {
		c.CommittedAmount = big.NewInt(0)
	}
	if c.FrontFeeFlat == nil {
		c.FrontFeeFlat = big.NewInt(0)
	}
	if c.PeriodDays <= 0 {
		c.PeriodDays = 30
	}
	if c.NumPeriods <= 0 {
		c.NumPeriods = 1
	}
}

// Record is the per-borrower billing ledger. NextDue carries the current
// period's bill (YieldDue is its profit component); PastDue carries everything
// overdue (PastDueYield its profit component). Principal is the total drawn
// and not yet repaid; UnbilledPrincipal the portion of it not represented in
// any due bucket.
type Record struct {
	Borrower string
	Kind     Kind
	Config   Config

	Principal         *big.Int
	UnbilledPrincipal *big.Int
	NextDue           *big.Int
	YieldDue          *big.Int
	PastDue           *big.Int
	PastDueYield      *big.Int
	AvailableCredit   *big.Int

	MissedPeriods    int
	RemainingPeriods int
	State            CreditState

	StartDate   time.Time
	NextDueDate time.Time
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Principal = cloneBigInt(r.Principal)
	clone.UnbilledPrincipal = cloneBigInt(r.UnbilledPrincipal)
	clone.NextDue = cloneBigInt(r.NextDue)
	clone.YieldDue = cloneBigInt(r.YieldDue)
	clone.PastDue = cloneBigInt(r.PastDue)
	clone.PastDueYield = cloneBigInt(r.PastDueYield)
	clone.AvailableCredit = cloneBigInt(r.AvailableCredit)
	clone.Config.CreditLimit = cloneBigInt(r.Config.CreditLimit)
	clone.Config.CommittedAmount = cloneBigInt(r.Config.CommittedAmount)
	clone.Config.FrontFeeFlat = cloneBigInt(r.Config.FrontFeeFlat)
	return &clone
}

func (r *Record) ensureDefaults() {
	r.Config.ensureDefaults()
	if r.Principal == nil {
		r.Principal = big.NewInt(0)
	}
	if r.UnbilledPrincipal == nil {
		r.UnbilledPrincipal = big.NewInt(0)
	}
	if r.NextDue == nil {
		r.NextDue = big.NewInt(0)
	}
	if r.YieldDue == nil {
		r.YieldDue = big.NewInt(0)
	}
	if r.PastDue == nil {
		r.PastDue = big.NewInt(0)
	}
	if r.PastDueYield == nil {
		r.PastDueYield = big.NewInt(0)
	}
	if r.AvailableCredit == nil {
		r.AvailableCredit = big.NewInt(0)
	}
}

// PayoffAmount is the total required to retire the credit in full.
func (r *Record) PayoffAmount() *big.Int {
	payoff := new(big.Int).Add(r.PastDue, r.NextDue)
	return payoff.Add(payoff, r.UnbilledPrincipal)
}

// ReceivableState tracks the lifecycle of a receivable referenced for credit.
type ReceivableState uint8

const (
	ReceivablePending ReceivableState = iota
	ReceivableApproved
	ReceivablePartiallyPaid
	ReceivablePaid
	ReceivableRejected
)

func (s ReceivableState) String() string {
	switch s {
	case ReceivablePending:
		return "pending"
	case ReceivableApproved:
		return "approved"
	case ReceivablePartiallyPaid:
		return "partially_paid"
	case ReceivablePaid:
		return "paid"
	case ReceivableRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Receivable is the approval-relevant slice of a receivable record. The full
// document lives with an external collaborator; the manager only needs face
// value, maturity and payment progress.
type Receivable struct {
	ID           string
	Borrower     string
	Amount       *big.Int
	Paid         *big.Int
	MaturityDate time.Time
	State        ReceivableState
}

// Clone returns a deep copy of the receivable.
func (r *Receivable) Clone() *Receivable {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = cloneBigInt(r.Amount)
	clone.Paid = cloneBigInt(r.Paid)
	return &clone
}

func (r *Receivable) ensureDefaults() {
	if r.Amount == nil {
		r.Amount = big.NewInt(0)
	}
	if r.Paid == nil {
		r.Paid = big.NewInt(0)
	}
}

// PaymentResult reports how a payment was applied across the buckets and how
// the proceeds were routed to the pool.
type PaymentResult struct {
	Applied        *big.Int
	PastDuePaid    *big.Int
	NextDuePaid    *big.Int
	PrincipalPaid  *big.Int
	ProfitRouted   *big.Int
	RecoveryRouted *big.Int
	Excess         *big.Int
	State          CreditState
}

// DrawdownResult reports the funds released and fees withheld by a drawdown.
type DrawdownResult struct {
	Amount        *big.Int
	Fees          *big.Int
	NetToBorrower *big.Int
	YieldDue      *big.Int
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
