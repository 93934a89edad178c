package credit

import (
	"math/big"
	"strconv"

	"tranchepool/events"
)

const (
	EventTypeBorrowerApproved   = "credit.borrower.approved"
	EventTypeDrawdown           = "credit.drawdown"
	EventTypePayment            = "credit.payment"
	EventTypeDelinquent         = "credit.delinquent"
	EventTypeDefaulted          = "credit.defaulted"
	EventTypeClosed             = "credit.closed"
	EventTypeReceivableApproved = "credit.receivable.approved"
	EventTypeReceivableRejected = "credit.receivable.rejected"
	EventTypeReceivablePaid     = "credit.receivable.paid"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newBorrowerApprovedEvent(r *Record) events.Event {
	return events.Event{
		Type: EventTypeBorrowerApproved,
		Attributes: map[string]string{
			"borrower": r.Borrower,
			"kind":     r.Kind.String(),
			"limit":    amountString(r.Config.CreditLimit),
		},
	}
}

func newDrawdownEvent(r *Record, result *DrawdownResult) events.Event {
	return events.Event{
		Type: EventTypeDrawdown,
		Attributes: map[string]string{
			"borrower": r.Borrower,
			"amount":   amountString(result.Amount),
			"fees":     amountString(result.Fees),
			"net":      amountString(result.NetToBorrower),
		},
	}
}

func newPaymentEvent(r *Record, result *PaymentResult) events.Event {
	return events.Event{
		Type: EventTypePayment,
		Attributes: map[string]string{
			"borrower": r.Borrower,
			"applied":  amountString(result.Applied),
			"profit":   amountString(result.ProfitRouted),
			"recovery": amountString(result.RecoveryRouted),
			"state":    result.State.String(),
		},
	}
}

func newDelinquentEvent(r *Record) events.Event {
	return events.Event{
		Type: EventTypeDelinquent,
		Attributes: map[string]string{
			"borrower": r.Borrower,
			"missed":   strconv.Itoa(r.MissedPeriods),
			"past_due": amountString(r.PastDue),
		},
	}
}

func newDefaultedEvent(r *Record, loss *big.Int) events.Event {
	return events.Event{
		Type: EventTypeDefaulted,
		Attributes: map[string]string{
			"borrower": r.Borrower,
			"loss":     amountString(loss),
		},
	}
}

func newClosedEvent(r *Record) events.Event {
	return events.Event{
		Type:       EventTypeClosed,
		Attributes: map[string]string{"borrower": r.Borrower},
	}
}

func newReceivableApprovedEvent(r *Receivable, advance *big.Int) events.Event {
	return events.Event{
		Type: EventTypeReceivableApproved,
		Attributes: map[string]string{
			"receivable": r.ID,
			"borrower":   r.Borrower,
			"advance":    amountString(advance),
		},
	}
}

func newReceivableRejectedEvent(r *Receivable) events.Event {
	return events.Event{
		Type:       EventTypeReceivableRejected,
		Attributes: map[string]string{"receivable": r.ID},
	}
}

func newReceivablePaidEvent(r *Receivable, amount *big.Int) events.Event {
	return events.Event{
		Type: EventTypeReceivablePaid,
		Attributes: map[string]string{
			"receivable": r.ID,
			"amount":     amountString(amount),
			"state":      r.State.String(),
		},
	}
}
