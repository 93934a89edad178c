package gateway

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tranchepool/native/epoch"
	"tranchepool/observability"
)

type vaultView struct {
	Tranche        string `json:"tranche"`
	TotalShares    string `json:"total_shares"`
	EscrowedShares string `json:"escrowed_shares"`
	CurrentEpoch   uint64 `json:"current_epoch"`
}

func (s *Server) handleVaultSnapshot(w http.ResponseWriter, r *http.Request) {
	vault, ok := s.vault(w, r)
	if !ok {
		return
	}
	state, err := vault.Snapshot()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vaultView{
		Tranche:        state.Tranche.String(),
		TotalShares:    amountString(state.TotalShares),
		EscrowedShares: amountString(state.EscrowedShares),
		CurrentEpoch:   state.CurrentEpoch,
	})
}

type lenderAmountRequest struct {
	Lender string `json:"lender"`
	Amount string `json:"amount"`
}

func (s *Server) handleTrancheDeposit(w http.ResponseWriter, r *http.Request) {
	vault, ok := s.vault(w, r)
	if !ok {
		return
	}
	var req lenderAmountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}
	minted, err := vault.Deposit(req.Lender, amount)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"lender": req.Lender,
		"shares": amountString(minted),
	})
}

type redemptionRequest struct {
	Lender string `json:"lender"`
	Shares string `json:"shares"`
}

func (s *Server) handleRedemptionRequest(w http.ResponseWriter, r *http.Request) {
	vault, ok := s.vault(w, r)
	if !ok {
		return
	}
	var req redemptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	shares, ok := parseAmount(req.Shares)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid shares")
		return
	}
	if err := vault.AddRedemptionRequest(req.Lender, shares); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"lender": req.Lender,
		"shares": amountString(shares),
	})
}

type lenderRequest struct {
	Lender string `json:"lender"`
}

func (s *Server) handleDisburse(w http.ResponseWriter, r *http.Request) {
	vault, ok := s.vault(w, r)
	if !ok {
		return
	}
	var req lenderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	paid, err := vault.Disburse(req.Lender)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"lender": req.Lender,
		"paid":   amountString(paid),
	})
}

type positionView struct {
	Lender             string `json:"lender"`
	Tranche            string `json:"tranche"`
	Shares             string `json:"shares"`
	SharesRequested    string `json:"shares_requested"`
	NextEpochToProcess uint64 `json:"next_epoch_to_process"`
	Withdrawable       string `json:"withdrawable"`
	Withdrawn          string `json:"withdrawn"`
}

func (s *Server) handleLenderPosition(w http.ResponseWriter, r *http.Request) {
	vault, ok := s.vault(w, r)
	if !ok {
		return
	}
	position, err := vault.Position(chi.URLParam(r, "lender"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positionView{
		Lender:             position.Lender,
		Tranche:            position.Tranche.String(),
		Shares:             amountString(position.Shares),
		SharesRequested:    amountString(position.SharesRequested),
		NextEpochToProcess: position.NextEpochToProcess,
		Withdrawable:       amountString(position.Withdrawable),
		Withdrawn:          amountString(position.Withdrawn),
	})
}

type summaryView struct {
	Tranche              string `json:"tranche"`
	EpochID              uint64 `json:"epoch_id"`
	TotalSharesRequested string `json:"total_shares_requested"`
	TotalSharesProcessed string `json:"total_shares_processed"`
	TotalAmountProcessed string `json:"total_amount_processed"`
	Sealed               bool   `json:"sealed"`
}

func newSummaryView(summary *epoch.RedemptionSummary) summaryView {
	return summaryView{
		Tranche:              summary.Tranche.String(),
		EpochID:              summary.EpochID,
		TotalSharesRequested: amountString(summary.TotalSharesRequested),
		TotalSharesProcessed: amountString(summary.TotalSharesProcessed),
		TotalAmountProcessed: amountString(summary.TotalAmountProcessed),
		Sealed:               summary.Sealed,
	}
}

func (s *Server) handleEpochSummary(w http.ResponseWriter, r *http.Request) {
	tranche, ok := parseTranche(chi.URLParam(r, "tranche"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown tranche")
		return
	}
	epochID, err := strconv.ParseUint(chi.URLParam(r, "epochID"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid epoch id")
		return
	}
	summary, err := s.deps.Epochs.Summary(tranche, epochID)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryView(summary))
}

type settlementView struct {
	Tranche         string `json:"tranche"`
	EpochID         uint64 `json:"epoch_id"`
	SharesRequested string `json:"shares_requested"`
	SharesProcessed string `json:"shares_processed"`
	AmountProcessed string `json:"amount_processed"`
}

type closeResultView struct {
	Settlements   []settlementView `json:"settlements"`
	LiquidityUsed string           `json:"liquidity_used"`
}

func (s *Server) handleEpochClose(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Epochs.CloseEpoch()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	view := closeResultView{
		Settlements:   make([]settlementView, 0, len(result.Settlements)),
		LiquidityUsed: amountString(result.LiquidityUsed),
	}
	for _, settlement := range result.Settlements {
		observability.Settlement().ObserveEpochClose(
			settlement.Tranche.String(), settlement.SharesProcessed, settlement.AmountProcessed)
		view.Settlements = append(view.Settlements, settlementView{
			Tranche:         settlement.Tranche.String(),
			EpochID:         settlement.EpochID,
			SharesRequested: amountString(settlement.SharesRequested),
			SharesProcessed: amountString(settlement.SharesProcessed),
			AmountProcessed: amountString(settlement.AmountProcessed),
		})
	}
	writeJSON(w, http.StatusOK, view)
}
