package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"vstreet/native/lending"
	"vstreet/native/vault"
	"vstreet/observability"
	"vstreet/observability/metrics"
	"vstreet/storage/journal"
)

// EventLister reads persisted engine events.
type EventLister interface {
	List(after uint64, limit int, module string) ([]journal.Record, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Lending     *lending.Engine
	Vault       *vault.Engine
	Journal     EventLister
	Auth        *Authenticator
	RateLimiter *RateLimiter
	Logger      *slog.Logger
	// RequestTimeout bounds each engine call. Zero means 10 seconds.
	RequestTimeout time.Duration
}

// Server exposes the lending and vault engines over HTTP.
type Server struct {
	lending *lending.Engine
	vault   *vault.Engine
	journal EventLister
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
	timeout time.Duration
	router  http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) *Server {
	s := &Server{
		lending: cfg.Lending,
		vault:   cfg.Vault,
		journal: cfg.Journal,
		auth:    cfg.Auth,
		limiter: cfg.RateLimiter,
		logger:  cfg.Logger,
		timeout: cfg.RequestTimeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router wrapped in tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "lendingd")
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/lending", func(lr chi.Router) {
		s.guard(lr, lending.ModuleName)
		lr.Get("/pool", s.handlePool)
		lr.Get("/users", s.handleUsers)
		lr.Get("/users/{address}", s.handleUser)
		lr.Get("/users/{address}/balance", s.handleUserBalance)
		lr.Get("/users/{address}/rewards", s.handleUserRewards)
		lr.Group(func(p chi.Router) {
			s.protect(p)
			p.Post("/deposit", s.handleDeposit)
			p.Post("/withdraw", s.handleWithdraw)
			p.Post("/rewards/withdraw", s.handleWithdrawRewards)
			p.Post("/collateral/deposit", s.handleDepositCollateral)
			p.Post("/collateral/withdraw", s.handleWithdrawCollateral)
			p.Post("/loans/take", s.handleTakeLoan)
			p.Post("/loans/repay", s.handlePayLoan)
			p.Post("/loans/repay-all", s.handlePayAllLoan)
			p.Post("/sweep", s.handleSweep)
			p.Post("/admin/price", s.handleSetPrice)
			p.Post("/admin/ltv", s.handleSetLTV)
			p.Post("/admin/rewards-pool", s.handleRewardsPool)
			p.Post("/admin/token", s.handleSetTokenContract)
			p.Post("/admin/admins", s.handleAddLendingAdmin)
			p.Delete("/admin/admins/{address}", s.handleRemoveLendingAdmin)
			p.Post("/admin/pause", s.handleSetLendingPaused)
		})
	})

	r.Route("/v1/vault", func(vr chi.Router) {
		s.guard(vr, vault.ModuleName)
		vr.Get("/stats", s.handleVaultStats)
		vr.Get("/positions/{id}", s.handlePosition)
		vr.Get("/positions/{id}/unlock", s.handleTimeUntilUnlock)
		vr.Get("/users/{address}", s.handleUserVault)
		vr.Get("/users/{address}/positions", s.handleUserPositions)
		vr.Group(func(p chi.Router) {
			s.protect(p)
			p.Post("/stake", s.handleStake)
			p.Post("/positions/{id}/claim", s.handleClaim)
			p.Post("/claim", s.handleClaimMultiple)
			p.Post("/admin/admins", s.handleAddVaultAdmin)
			p.Post("/admin/token", s.handleSetVaultToken)
			p.Post("/admin/pause", s.handleSetVaultPaused)
		})
	})

	r.Get("/v1/events", s.handleEvents)
	return r
}

// guard installs the rate limiter and request metrics for a module.
func (s *Server) guard(r chi.Router, module string) {
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(module))
	}
	r.Use(observe(module))
}

func (s *Server) protect(r chi.Router) {
	if s.auth != nil {
		r.Use(s.auth.Middleware)
	}
}

func observe(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observability.HTTP().Observe(module, route, status, time.Since(start))
		})
	}
}

func (s *Server) engineContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// recordLending reports the outcome of a lending call and refreshes the
// pool gauges.
func (s *Server) recordLending(op string, err error) {
	m := metrics.Lending()
	m.ObserveOperation(lending.ModuleName, op, err)
	if err != nil {
		s.logger.Warn("lending operation failed", slog.String("op", op), slog.Any("error", err))
		return
	}
	info := s.lending.ContractInfo()
	m.ObservePool(metrics.PoolLevels{
		Supplied:     observability.BigToFloat(info.TotalSupplied.ToBig()),
		Borrowed:     observability.BigToFloat(info.TotalBorrowed.ToBig()),
		RewardsPool:  observability.BigToFloat(info.AvailableRewardsPool.ToBig()),
		Utilization:  info.Utilization,
		InterestRate: info.InterestRate,
		BorrowRate:   info.BorrowRate,
		Users:        info.Users,
	})
}

func (s *Server) recordVault(op string, err error) {
	m := metrics.Lending()
	m.ObserveOperation(vault.ModuleName, op, err)
	if err != nil {
		s.logger.Warn("vault operation failed", slog.String("op", op), slog.Any("error", err))
		return
	}
	stats := s.vault.GlobalStats()
	m.ObserveVault(metrics.VaultLevels{
		Locked: observability.BigToFloat(stats.TotalLocked.ToBig()),
		Power:  observability.BigToFloat(stats.TotalPower.ToBig()),
		Active: int(stats.ActivePositionsCount),
	})
}
