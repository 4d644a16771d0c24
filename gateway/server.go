package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"hublend/audit"
	"hublend/core/state"
	"hublend/gateway/middleware"
	nativecommon "hublend/native/common"
	"hublend/native/lending"
	"hublend/native/lock"
	"hublend/native/risk"
	"hublend/native/settlement"
	"hublend/observability"
)

const requestLimit = 1 << 20 // 1 MiB

// Config wires the HTTP surface to the engines.
type Config struct {
	Ledger     *lending.Engine
	Risk       *risk.Engine
	Locks      *lock.Engine
	Settlement *settlement.Engine
	State      *state.Manager
	Audit      *audit.Store

	Auth      middleware.AuthConfig
	RateLimit *middleware.RateLimiter
	Metrics   *observability.EngineMetrics
	Logger    *slog.Logger
}

// Server exposes the engines over HTTP.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observability.EngineMetrics
}

// New builds the gateway handler: health and metrics unauthenticated, every
// engine surface behind its scope, the whole tree traced and rate limited.
func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger, metrics: cfg.Metrics}

	auth := middleware.NewAuthenticator(cfg.Auth, logger)
	obs := middleware.NewObservability(cfg.Metrics)

	r := chi.NewRouter()
	if cfg.RateLimit != nil {
		r.Use(cfg.RateLimit.Middleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			read.Use(obs.Middleware("read"))
			read.Get("/markets", s.listMarkets)
			read.Get("/markets/{asset}", s.getMarket)
			read.Get("/markets/{asset}/liquidity", s.getLiquidity)
			read.Post("/positions/get", s.getPosition)
			read.Post("/health/get", s.getHealth)
			read.Get("/locks/{id}", s.getLock)
		})

		v1.Group(func(ledger chi.Router) {
			ledger.Use(auth.Middleware(middleware.ScopeLedgerWrite))
			ledger.Use(obs.Middleware("ledger"))
			ledger.Post("/supply", s.supply)
			ledger.Post("/withdraw", s.withdraw)
			ledger.Post("/borrow", s.borrow)
			ledger.Post("/repay", s.repay)
			ledger.Post("/liquidate", s.liquidate)
		})

		v1.Group(func(relay chi.Router) {
			relay.Use(auth.Middleware(middleware.ScopeRelay))
			relay.Use(obs.Middleware("relay"))
			relay.Post("/locks", s.createLock)
			relay.Post("/locks/cancel", s.cancelLock)
			relay.Post("/relay/evidence", s.recordEvidence)
		})

		v1.Group(func(settle chi.Router) {
			settle.Use(auth.Middleware(middleware.ScopeSettlement))
			settle.Use(obs.Middleware("settlement"))
			settle.Post("/settlement/batches", s.settleBatch)
		})

		v1.Group(func(admin chi.Router) {
			admin.Use(auth.Middleware(middleware.ScopeAdmin))
			admin.Use(obs.Middleware("admin"))
			admin.Post("/admin/markets", s.adminCreateMarket)
			admin.Post("/admin/pause", s.adminPause)
			admin.Post("/admin/roles", s.adminRoles)
			admin.Post("/admin/prices", s.adminSetPrice)
			admin.Get("/admin/audit", s.auditEvents)
		})
	})

	return otelhttp.NewHandler(r, "hublend.gateway")
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("gateway: encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	s.writeError(w, engineStatus(err), err)
}

// engineStatus maps engine sentinels onto HTTP statuses: replay and lifecycle
// conflicts are 409, authorization 403, everything else a 400-class reject.
func engineStatus(err error) int {
	switch {
	case errors.Is(err, lending.ErrMarketNotFound),
		errors.Is(err, lock.ErrLockNotFound):
		return http.StatusNotFound
	case errors.Is(err, settlement.ErrBatchReplayed),
		errors.Is(err, settlement.ErrDepositReplayed),
		errors.Is(err, settlement.ErrIntentReplayed),
		errors.Is(err, settlement.ErrEvidenceConsumed),
		errors.Is(err, lending.ErrMarketExists),
		errors.Is(err, lock.ErrLockExists),
		errors.Is(err, lock.ErrLockNotActive),
		errors.Is(err, lock.ErrLockNotExpired),
		errors.Is(err, lock.ErrNonceReused):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrRelayRole):
		return http.StatusForbidden
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, nativecommon.ErrQuotaRequestsExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}
