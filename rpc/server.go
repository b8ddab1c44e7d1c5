package rpc

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendpool/crypto"
	"lendpool/native/auction"
	nativecommon "lendpool/native/common"
	"lendpool/native/lending"
	"lendpool/observability"
	"lendpool/storage"
)

// Server exposes the pool and auction engines over HTTP. Mutating requests are
// serialized behind a single mutex so that engine snapshots never interleave.
type Server struct {
	pool     *lending.Engine
	auctions *auction.Engine
	state    *storage.State
	admin    nativecommon.Authorizer
	log      *slog.Logger

	mu sync.Mutex
}

// NewServer wires the HTTP surface over the engines and their shared state.
// admin gates the administrative routes the engines do not gate themselves; a
// nil authorizer refuses them outright.
func NewServer(pool *lending.Engine, auctions *auction.Engine, state *storage.State, admin nativecommon.Authorizer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{pool: pool, auctions: auctions, state: state, admin: admin, log: log}
}

func (s *Server) requireAdmin(caller crypto.Address) error {
	if s.admin == nil {
		return nativecommon.ErrUnauthorized
	}
	return s.admin.Authorize(caller)
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/pool", func(r chi.Router) {
		r.Post("/deposit", s.instrument("lending", "deposit", s.handleDeposit))
		r.Post("/withdraw", s.instrument("lending", "withdraw", s.handleWithdraw))
		r.Post("/borrow", s.instrument("lending", "borrow", s.handleBorrow))
		r.Post("/repay", s.instrument("lending", "repay", s.handleRepay))
		r.Post("/liquidate", s.instrument("lending", "liquidate", s.handleLiquidate))
		r.Post("/rewards/distribute", s.instrument("lending", "distribute_rewards", s.handleDistributeRewards))
		r.Get("/position", s.instrument("lending", "position", s.handlePosition))
		r.Get("/rewards", s.instrument("lending", "rewards", s.handleRewards))
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Post("/whitelist", s.instrument("lending", "whitelist", s.handleWhitelist))
		r.Post("/price", s.instrument("lending", "price", s.handlePrice))
		r.Post("/mint", s.instrument("lending", "mint", s.handleMint))
	})

	r.Route("/v1/auctions", func(r chi.Router) {
		r.Post("/", s.instrument("auction", "create", s.handleCreateAuction))
		r.Post("/withdraw", s.instrument("auction", "withdraw_funds", s.handleWithdrawFunds))
		r.Get("/{id}", s.instrument("auction", "get", s.handleGetAuction))
		r.Post("/{id}/bids", s.instrument("auction", "bid", s.handlePlaceBid))
		r.Post("/{id}/end", s.instrument("auction", "end", s.handleEndAuction))
	})

	return r
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// instrument wraps a handler with request metrics and structured error logging.
func (s *Server) instrument(module, method string, fn handlerFunc) http.HandlerFunc {
	metrics := observability.PoolMetrics()
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		err := fn(w, r)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			status := statusForError(err)
			metrics.RecordError(module, method, http.StatusText(status))
			s.log.Error("request failed",
				"module", module,
				"method", method,
				"status", status,
				"error", err,
			)
			writeError(w, status, err)
		}
		metrics.RecordRequest(module, method, outcome, time.Since(start).Seconds())
	}
}
