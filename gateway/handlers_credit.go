package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tranchepool/native/credit"
	"tranchepool/observability"
)

type creditRecordView struct {
	Borrower          string `json:"borrower"`
	Kind              string `json:"kind"`
	State             string `json:"state"`
	Principal         string `json:"principal"`
	UnbilledPrincipal string `json:"unbilled_principal"`
	NextDue           string `json:"next_due"`
	YieldDue          string `json:"yield_due"`
	PastDue           string `json:"past_due"`
	PastDueYield      string `json:"past_due_yield"`
	AvailableCredit   string `json:"available_credit"`
	Payoff            string `json:"payoff"`
	MissedPeriods     int    `json:"missed_periods"`
	RemainingPeriods  int    `json:"remaining_periods"`
	NextDueDate       string `json:"next_due_date,omitempty"`
}

func newCreditRecordView(record *credit.Record) creditRecordView {
	view := creditRecordView{
		Borrower:          record.Borrower,
		Kind:              record.Kind.String(),
		State:             record.State.String(),
		Principal:         amountString(record.Principal),
		UnbilledPrincipal: amountString(record.UnbilledPrincipal),
		NextDue:           amountString(record.NextDue),
		YieldDue:          amountString(record.YieldDue),
		PastDue:           amountString(record.PastDue),
		PastDueYield:      amountString(record.PastDueYield),
		AvailableCredit:   amountString(record.AvailableCredit),
		Payoff:            amountString(record.PayoffAmount()),
		MissedPeriods:     record.MissedPeriods,
		RemainingPeriods:  record.RemainingPeriods,
	}
	if !record.NextDueDate.IsZero() {
		view.NextDueDate = record.NextDueDate.Format(time.RFC3339)
	}
	return view
}

type receivableView struct {
	ID           string `json:"id"`
	Borrower     string `json:"borrower"`
	Amount       string `json:"amount"`
	Paid         string `json:"paid"`
	MaturityDate string `json:"maturity_date"`
	State        string `json:"state"`
}

func newReceivableView(receivable *credit.Receivable) receivableView {
	return receivableView{
		ID:           receivable.ID,
		Borrower:     receivable.Borrower,
		Amount:       amountString(receivable.Amount),
		Paid:         amountString(receivable.Paid),
		MaturityDate: receivable.MaturityDate.Format(time.RFC3339),
		State:        receivable.State.String(),
	}
}

type borrowerApprovalRequest struct {
	Borrower            string `json:"borrower"`
	CreditLimit         string `json:"credit_limit"`
	CommittedAmount     string `json:"committed_amount,omitempty"`
	YieldBps            uint64 `json:"yield_bps"`
	FrontFeeFlat        string `json:"front_fee_flat,omitempty"`
	FrontFeeBps         uint64 `json:"front_fee_bps,omitempty"`
	LateFeeBps          uint64 `json:"late_fee_bps,omitempty"`
	PeriodDays          int    `json:"period_days,omitempty"`
	NumPeriods          int    `json:"num_periods,omitempty"`
	DelayGracePeriods   int    `json:"delay_grace_periods,omitempty"`
	DefaultGracePeriods int    `json:"default_grace_periods,omitempty"`
	AdvanceRateBps      uint64 `json:"advance_rate_bps,omitempty"`
}

func (s *Server) handleBorrowerApproval(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	var req borrowerApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	limit, ok := parseAmount(req.CreditLimit)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid credit_limit")
		return
	}
	cfg := credit.Config{
		YieldBps:            req.YieldBps,
		FrontFeeBps:         req.FrontFeeBps,
		LateFeeBps:          req.LateFeeBps,
		PeriodDays:          req.PeriodDays,
		NumPeriods:          req.NumPeriods,
		DelayGracePeriods:   req.DelayGracePeriods,
		DefaultGracePeriods: req.DefaultGracePeriods,
		AdvanceRateBps:      req.AdvanceRateBps,
	}
	if req.CommittedAmount != "" {
		committed, ok := parseAmount(req.CommittedAmount)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid committed_amount")
			return
		}
		cfg.CommittedAmount = committed
	}
	if req.FrontFeeFlat != "" {
		flat, ok := parseAmount(req.FrontFeeFlat)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid front_fee_flat")
			return
		}
		cfg.FrontFeeFlat = flat
	}
	record, err := module.Manager.ApproveBorrower(req.Borrower, limit, cfg)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCreditRecordView(record))
}

func (s *Server) handleCreditRecord(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	record, err := module.Engine.Record(chi.URLParam(r, "borrower"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCreditRecordView(record))
}

type drawdownRequest struct {
	Amount       string `json:"amount"`
	ReceivableID string `json:"receivable_id,omitempty"`
}

type drawdownView struct {
	Amount        string `json:"amount"`
	Fees          string `json:"fees"`
	NetToBorrower string `json:"net_to_borrower"`
	YieldDue      string `json:"yield_due"`
}

func (s *Server) handleDrawdown(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	var req drawdownRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}
	borrower := chi.URLParam(r, "borrower")

	var result *credit.DrawdownResult
	var err error
	if req.ReceivableID != "" {
		result, err = module.Engine.DrawdownWithReceivable(borrower, req.ReceivableID, amount)
	} else {
		result, err = module.Engine.Drawdown(borrower, amount)
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	observability.Settlement().ObserveDrawdown(module.Engine.Kind().String(), result.Amount)
	writeJSON(w, http.StatusOK, drawdownView{
		Amount:        amountString(result.Amount),
		Fees:          amountString(result.Fees),
		NetToBorrower: amountString(result.NetToBorrower),
		YieldDue:      amountString(result.YieldDue),
	})
}

type paymentView struct {
	Applied        string `json:"applied"`
	PastDuePaid    string `json:"past_due_paid"`
	NextDuePaid    string `json:"next_due_paid"`
	PrincipalPaid  string `json:"principal_paid"`
	ProfitRouted   string `json:"profit_routed"`
	RecoveryRouted string `json:"recovery_routed"`
	Excess         string `json:"excess"`
	State          string `json:"state"`
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}
	result, err := module.Engine.MakePayment(chi.URLParam(r, "borrower"), amount)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	observability.Settlement().ObservePayment(module.Engine.Kind().String(), result.Applied)
	writeJSON(w, http.StatusOK, paymentView{
		Applied:        amountString(result.Applied),
		PastDuePaid:    amountString(result.PastDuePaid),
		NextDuePaid:    amountString(result.NextDuePaid),
		PrincipalPaid:  amountString(result.PrincipalPaid),
		ProfitRouted:   amountString(result.ProfitRouted),
		RecoveryRouted: amountString(result.RecoveryRouted),
		Excess:         amountString(result.Excess),
		State:          result.State.String(),
	})
}

func (s *Server) handleRefreshBill(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	record, err := module.Engine.RefreshBill(chi.URLParam(r, "borrower"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCreditRecordView(record))
}

type defaultRequest struct {
	Force bool `json:"force,omitempty"`
}

func (s *Server) handleTriggerDefault(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	req := defaultRequest{}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	loss, err := module.Manager.TriggerDefault(chi.URLParam(r, "borrower"), req.Force)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"loss": amountString(loss)})
}

func (s *Server) handleCloseDefaulted(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	if err := module.Manager.CloseDefaulted(chi.URLParam(r, "borrower")); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": credit.StateClosed.String()})
}

type receivableCreateRequest struct {
	Borrower     string `json:"borrower"`
	Amount       string `json:"amount"`
	MaturityDate string `json:"maturity_date"`
}

func (s *Server) handleReceivableCreate(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	var req receivableCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}
	maturity, err := time.Parse(time.RFC3339, req.MaturityDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid maturity_date")
		return
	}
	receivable, err := module.Manager.CreateReceivable(req.Borrower, amount, maturity)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReceivableView(receivable))
}

func (s *Server) handleReceivableGet(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	receivable, err := module.Manager.Receivable(chi.URLParam(r, "receivableID"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceivableView(receivable))
}

func (s *Server) handleReceivableApprove(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	advance, err := module.Manager.ApproveReceivable(chi.URLParam(r, "receivableID"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"advance": amountString(advance)})
}

func (s *Server) handleReceivableReject(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	if err := module.Manager.RejectReceivable(chi.URLParam(r, "receivableID")); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": credit.ReceivableRejected.String()})
}

func (s *Server) handleReceivablePayment(w http.ResponseWriter, r *http.Request) {
	module, ok := s.creditModule(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}
	receivable, err := module.Manager.MarkReceivablePayment(chi.URLParam(r, "receivableID"), amount)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceivableView(receivable))
}
