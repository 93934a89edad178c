package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tranchepool/native/credit"
	"tranchepool/native/epoch"
	"tranchepool/native/pool"
)

// CreditModule bundles the engine and manager for one credit variant.
type CreditModule struct {
	Engine  *credit.Engine
	Manager *credit.Manager
}

// Deps carries everything the gateway serves. All engines are already wired
// to their state and registries by the composing context.
type Deps struct {
	Logger  *slog.Logger
	Pool    *pool.Engine
	Credits map[credit.Kind]*CreditModule
	Vaults  map[pool.Tranche]*epoch.Vault
	Epochs  *epoch.Manager
	// AdminSecret signs administrator bearer tokens. Empty disables every
	// admin route.
	AdminSecret []byte
}

// Server is the HTTP surface over the settlement engines.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the gateway and mounts all routes.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps}
	s.router = s.buildRouter()
	return s
}

// Router returns the mounted HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	admin := adminOnly(s.deps.AdminSecret, s.deps.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/pool", func(r chi.Router) {
			r.Get("/", s.handlePoolSnapshot)
			r.Post("/covers/{coverID}/deposits", s.handleCoverDeposit)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/enable", s.handlePoolEnable)
				r.Post("/disable", s.handlePoolDisable)
				r.Post("/fees/withdrawals", s.handleFeeWithdrawal)
			})
		})

		r.Route("/credit/{kind}", func(r chi.Router) {
			r.With(admin).Post("/approvals", s.handleBorrowerApproval)
			r.Route("/receivables", func(r chi.Router) {
				r.Post("/", s.handleReceivableCreate)
				r.Get("/{receivableID}", s.handleReceivableGet)
				r.Post("/{receivableID}/payments", s.handleReceivablePayment)
				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Post("/{receivableID}/approve", s.handleReceivableApprove)
					r.Post("/{receivableID}/reject", s.handleReceivableReject)
				})
			})
			r.Route("/{borrower}", func(r chi.Router) {
				r.Get("/", s.handleCreditRecord)
				r.Post("/drawdowns", s.handleDrawdown)
				r.Post("/payments", s.handlePayment)
				r.Post("/refresh", s.handleRefreshBill)
				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Post("/default", s.handleTriggerDefault)
					r.Post("/close", s.handleCloseDefaulted)
				})
			})
		})

		r.Route("/tranches/{tranche}", func(r chi.Router) {
			r.Get("/", s.handleVaultSnapshot)
			r.Post("/deposits", s.handleTrancheDeposit)
			r.Post("/redemptions", s.handleRedemptionRequest)
			r.Post("/disbursements", s.handleDisburse)
			r.Get("/lenders/{lender}", s.handleLenderPosition)
			r.Get("/epochs/{epochID}", s.handleEpochSummary)
		})

		r.With(admin).Post("/epochs/close", s.handleEpochClose)
	})

	return r
}

func (s *Server) creditModule(w http.ResponseWriter, r *http.Request) (*CreditModule, bool) {
	kind, ok := parseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown credit kind")
		return nil, false
	}
	module, ok := s.deps.Credits[kind]
	if !ok || module == nil {
		writeError(w, r, http.StatusNotFound, "credit kind not served")
		return nil, false
	}
	return module, true
}

func (s *Server) vault(w http.ResponseWriter, r *http.Request) (*epoch.Vault, bool) {
	tranche, ok := parseTranche(chi.URLParam(r, "tranche"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown tranche")
		return nil, false
	}
	vault, ok := s.deps.Vaults[tranche]
	if !ok || vault == nil {
		writeError(w, r, http.StatusNotFound, "tranche not served")
		return nil, false
	}
	return vault, true
}
