package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"SynthVault/internal/engine"
	"SynthVault/internal/ledger"
	"SynthVault/internal/observability"
	"SynthVault/internal/oracle"
	"SynthVault/internal/params"
	"SynthVault/internal/query"
)

// Server is the HTTP/JSON API surface. Mutating routes submit operations
// through the dispatcher; read routes go to the engine's query views or the
// projection tables.
type Server struct {
	dispatcher *engine.Dispatcher
	engine     *engine.Engine
	queries    *query.Service
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	log        zerolog.Logger
}

func New(d *engine.Dispatcher, e *engine.Engine, q *query.Service, h *observability.HealthChecker, m *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		dispatcher: d,
		engine:     e,
		queries:    q,
		health:     h,
		metrics:    m,
		log:        log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Post("/deposit", s.handleDeposit)
			r.Post("/mint", s.handleMint)
			r.Post("/burn", s.handleBurn)
			r.Post("/redeem", s.handleRedeem)
			r.Post("/deposit-and-mint", s.handleDepositAndMint)
			r.Post("/burn-and-redeem", s.handleBurnAndRedeem)
			r.Post("/liquidate", s.handleLiquidate)
		})

		r.Post("/governance/params/{name}", s.handleParamUpdate)

		r.Get("/accounts/{account}", s.handleAccount)
		r.Get("/accounts/{account}/balance", s.handleAccountBalance)
		r.Get("/accounts/{account}/history", s.handleAccountHistory)

		r.Get("/params", s.handleParams)
		r.Get("/insurance-fund", s.handleInsuranceFund)
		r.Get("/price", s.handlePrice)
		r.Get("/status", s.handleStatus)
		r.Get("/integrity", s.handleIntegrity)
	})

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// instrument records per-route request counts and latency.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		s.metrics.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(started).Seconds())
	})
}

// receiptResponse is the JSON form of an engine receipt.
type receiptResponse struct {
	Sequence     int64  `json:"sequence"`
	StateHash    string `json:"state_hash"`
	Duplicate    bool   `json:"duplicate"`
	HealthFactor string `json:"health_factor,omitempty"`
	Payload      any    `json:"payload,omitempty"`
}

func (s *Server) writeReceipt(w http.ResponseWriter, receipt *engine.Receipt) {
	resp := receiptResponse{
		Sequence:  receipt.Sequence,
		StateHash: hex.EncodeToString(receipt.StateHash[:]),
		Duplicate: receipt.Duplicate,
		Payload:   receipt.Payload,
	}
	if receipt.HealthFactor != nil {
		resp.HealthFactor = receipt.HealthFactor.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

type errorResponse struct {
	Error        string `json:"error"`
	HealthFactor string `json:"health_factor,omitempty"`
}

// writeError maps engine and parameter errors onto HTTP statuses: caller
// mistakes are 400, state conflicts are 409, missing inputs are 503.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var hfErr *engine.BreaksHealthFactorError
	switch {
	case errors.Is(err, engine.ErrNeedsMoreThanZero),
		errors.Is(err, engine.ErrUnknownOperation),
		errors.Is(err, params.ErrInvalidParameter):
		status = http.StatusBadRequest

	case errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusForbidden

	case errors.As(err, &hfErr):
		status = http.StatusConflict
		resp.HealthFactor = hfErr.HealthFactor.String()

	case errors.Is(err, engine.ErrHealthFactorOk),
		errors.Is(err, engine.ErrHealthFactorStillBroken),
		errors.Is(err, engine.ErrPriceUpdateIgnored),
		errors.Is(err, ledger.ErrInsufficientCollateral),
		errors.Is(err, ledger.ErrInsufficientDebt),
		errors.Is(err, ledger.ErrInsufficientInsuranceFunds),
		errors.Is(err, params.ErrChangeExceedsMaximum),
		errors.Is(err, params.ErrCooldownNotElapsed):
		status = http.StatusConflict

	case errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrNoPrice),
		errors.Is(err, engine.ErrReentrancyDetected):
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, resp)
}
