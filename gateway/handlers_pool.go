package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tranchepool/native/pool"
)

type coverView struct {
	ID           string `json:"id"`
	Rank         uint8  `json:"rank"`
	Assets       string `json:"assets"`
	MaxLiquidity string `json:"max_liquidity"`
	Loss         string `json:"loss"`
}

type poolView struct {
	SeniorAssets string      `json:"senior_assets"`
	JuniorAssets string      `json:"junior_assets"`
	SeniorLoss   string      `json:"senior_loss"`
	JuniorLoss   string      `json:"junior_loss"`
	AccruedFees  string      `json:"accrued_fees"`
	TotalValue   string      `json:"total_value"`
	Enabled      bool        `json:"enabled"`
	Covers       []coverView `json:"covers"`
}

func newPoolView(state *pool.PoolState, covers []*pool.Cover, totalValue string) poolView {
	view := poolView{
		SeniorAssets: amountString(state.SeniorAssets),
		JuniorAssets: amountString(state.JuniorAssets),
		SeniorLoss:   amountString(state.SeniorLoss),
		JuniorLoss:   amountString(state.JuniorLoss),
		AccruedFees:  amountString(state.AccruedFees),
		TotalValue:   totalValue,
		Enabled:      state.Enabled,
		Covers:       make([]coverView, 0, len(covers)),
	}
	for _, c := range covers {
		view.Covers = append(view.Covers, coverView{
			ID:           c.ID,
			Rank:         c.Rank,
			Assets:       amountString(c.Assets),
			MaxLiquidity: amountString(c.MaxLiquidity),
			Loss:         amountString(c.Loss),
		})
	}
	return view
}

func (s *Server) handlePoolSnapshot(w http.ResponseWriter, r *http.Request) {
	state, covers, err := s.deps.Pool.Snapshot()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	total, err := s.deps.Pool.TotalPoolValue()
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolView(state, covers, amountString(total)))
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleCoverDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}
	coverID := chi.URLParam(r, "coverID")
	if err := s.deps.Pool.AddCoverAssets(coverID, amount); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cover": coverID, "amount": amountString(amount)})
}

func (s *Server) handlePoolEnable(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Pool.Enable(); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

func (s *Server) handlePoolDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Pool.Disable(); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": false})
}

func (s *Server) handleFeeWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid amount")
		return
	}
	if err := s.deps.Pool.WithdrawProtocolFees(amount); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"withdrawn": amountString(amount)})
}
