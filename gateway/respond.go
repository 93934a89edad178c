package gateway

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tranchepool/native/common"
	"tranchepool/native/credit"
	"tranchepool/native/epoch"
	"tranchepool/native/pool"
	"tranchepool/observability"
	"tranchepool/registry"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	observability.Settlement().ObserveError(routePattern(r), strconv.Itoa(status))
	writeJSON(w, status, errorResponse{Error: message})
}

// writeEngineError maps the engines' error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, credit.ErrRecordNotFound),
		errors.Is(err, credit.ErrReceivableNotFound),
		errors.Is(err, pool.ErrCoverNotFound),
		errors.Is(err, epoch.ErrLenderNotFound),
		errors.Is(err, registry.ErrPoolNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, credit.ErrInvalidAmount),
		errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, epoch.ErrInvalidAmount),
		errors.Is(err, pool.ErrUnknownTranche),
		errors.Is(err, epoch.ErrUnknownTranche):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrModulePaused),
		errors.Is(err, pool.ErrPoolDisabled):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, credit.ErrRecordExists),
		errors.Is(err, credit.ErrInvalidState),
		errors.Is(err, credit.ErrInvalidReceivableState),
		errors.Is(err, credit.ErrMaturityExceeded),
		errors.Is(err, credit.ErrNotEligibleForDefault),
		errors.Is(err, credit.ErrReceivableRequired),
		errors.Is(err, credit.ErrInsufficientCredit),
		errors.Is(err, pool.ErrCoverCapExceeded),
		errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, pool.ErrInsufficientFees),
		errors.Is(err, epoch.ErrInsufficientShares),
		errors.Is(err, epoch.ErrEpochInProgress):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseAmount accepts decimal-string amounts so callers never lose precision
// to JSON number handling.
func parseAmount(raw string) (*big.Int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	out, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, false
	}
	return out, true
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseKind(raw string) (credit.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "credit-line":
		return credit.KindCreditLine, true
	case "receivable-backed":
		return credit.KindReceivableBacked, true
	case "receivable-factoring":
		return credit.KindReceivableFactoring, true
	}
	return 0, false
}

func parseTranche(raw string) (pool.Tranche, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "senior":
		return pool.Senior, true
	case "junior":
		return pool.Junior, true
	}
	return 0, false
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		outcome := "ok"
		if rec.status >= http.StatusBadRequest {
			outcome = "error"
		}
		observability.Settlement().ObserveRequest(routePattern(r), outcome, time.Since(start))
	})
}
