package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"contabilidad/internal/auth"
	"contabilidad/internal/cache"
	"contabilidad/internal/core"
	"contabilidad/internal/log"
	"contabilidad/internal/middleware/ratelimit"
	"contabilidad/internal/middleware/security"
	"contabilidad/internal/middleware/trace"
	"contabilidad/internal/services"
)

const (
	monthCacheSize = 500
	monthCacheTTL  = 5 * time.Minute
	readyTimeout   = 2 * time.Second
)

// Services groups the application services the handlers call.
type Services struct {
	Ledger    *services.LedgerService
	Tags      *services.TagService
	Users     *services.UserService
	Reminders *services.ReminderService
}

// Pinger reports database reachability for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server.
type Options struct {
	Addr               string
	CORSOrigins        []string
	RateLimitPerMinute int
	RecentLimitMax     int
	SearchLimitMax     int
}

type Server struct {
	http.Server
	svc    Services
	tokens *auth.TokenIssuer
	db     Pinger
	opts   Options
	logger *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	months       *cache.Loader[core.MonthSummary]
	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

func NewServer(opts Options, svc Services, tokens *auth.TokenIssuer, db Pinger, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.RecentLimitMax < 1 {
		opts.RecentLimitMax = 100
	}
	if opts.SearchLimitMax < 1 {
		opts.SearchLimitMax = 200
	}

	monthCache := cache.NewLRUCache[core.MonthSummary](monthCacheSize, monthCacheTTL)
	detector := security.NewDetector()
	s := &Server{
		svc:          svc,
		tokens:       tokens,
		db:           db,
		opts:         opts,
		logger:       logger,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:     detector,
		tracer:       trace.NewMiddleware(logger, detector.ExtractClientIP),
		months:       cache.NewLoader[core.MonthSummary](monthCache),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(monthCache)
	s.cacheManager.StartCleanup(log.NewContext(context.Background(), logger), 10*time.Minute)

	svc.Ledger.OnDayChanged(func(ctx context.Context, ev core.DayChanged) {
		s.invalidateMonth(ctx, ev.UserID, ev.Date.Year(), int(ev.Date.Month()))
	})

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr: opts.Addr,
		Handler: chain(mux,
			log.Middleware(logger),
			s.tracer.Middleware,
			detector.Middleware,
			security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
			cors(opts.CORSOrigins),
			s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
				log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
				ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
			}),
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/me", s.requireAuth(s.handleMe))
	mux.HandleFunc("PUT /auth/password", s.requireAuth(s.handleChangePassword))
	mux.HandleFunc("DELETE /auth/me", s.requireAuth(s.handleDeleteMe))

	mux.HandleFunc("GET /api/days", s.requireAuth(s.handleListDays))
	mux.HandleFunc("POST /api/days", s.requireAuth(s.handleUpsertDay))
	mux.HandleFunc("GET /api/days/{date}", s.requireAuth(s.handleGetDay))
	mux.HandleFunc("DELETE /api/days/{date}", s.requireAuth(s.handleDeleteDay))
	mux.HandleFunc("POST /api/days/{date}/entries", s.requireAuth(s.handleAddEntry))
	mux.HandleFunc("POST /api/days/{date}/recompute", s.requireAuth(s.handleRecomputeDay))
	mux.HandleFunc("DELETE /api/incomes/{id}", s.requireAuth(s.handleDeleteIncome))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/months/{year}/{month}", s.requireAuth(s.handleMonth))
	mux.HandleFunc("GET /api/months/{year}/{month}/export", s.requireAuth(s.handleMonthExport))
	mux.HandleFunc("GET /api/years/{year}", s.requireAuth(s.handleYear))
	mux.HandleFunc("GET /api/search/tags/{query}", s.requireAuth(s.handleSearchTags))
	mux.HandleFunc("GET /api/stats/tags/{year}/{month}", s.requireAuth(s.handleFrequentTags))

	mux.HandleFunc("GET /api/tags", s.requireAuth(s.handleListTags))
	mux.HandleFunc("POST /api/tags", s.requireAuth(s.handleCreateTag))
	mux.HandleFunc("POST /api/tags/defaults", s.requireAuth(s.handleSeedTags))
	mux.HandleFunc("PUT /api/tags/{id}", s.requireAuth(s.handleUpdateTag))
	mux.HandleFunc("DELETE /api/tags/{id}", s.requireAuth(s.handleDeleteTag))

	mux.HandleFunc("GET /api/reminders", s.requireAuth(s.handleListReminders))
	mux.HandleFunc("POST /api/reminders", s.requireAuth(s.handleCreateReminder))
	mux.HandleFunc("GET /api/reminders/pending", s.requireAuth(s.handlePendingReminders))
	mux.HandleFunc("GET /api/reminders/date/{date}", s.requireAuth(s.handleRemindersByDate))
	mux.HandleFunc("POST /api/reminders/refresh", s.requireAuth(s.handleRefreshReminders))
	mux.HandleFunc("PUT /api/reminders/{id}", s.requireAuth(s.handleUpdateReminder))
	mux.HandleFunc("DELETE /api/reminders/{id}", s.requireAuth(s.handleDeleteReminder))
	mux.HandleFunc("POST /api/reminders/{id}/cancel", s.requireAuth(s.handleCancelReminder))
	mux.HandleFunc("POST /api/reminders/{id}/convert", s.requireAuth(s.handleConvertReminder))
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func monthKey(userID int64, year, month int) string {
	return fmt.Sprintf("u:%d:%04d-%02d", userID, year, month)
}

func userKeyPrefix(userID int64) string {
	return fmt.Sprintf("u:%d:", userID)
}

// monthSummary serves MonthDays through the cache.
func (s *Server) monthSummary(ctx context.Context, userID int64, year, month int) (core.MonthSummary, error) {
	return s.months.Get(ctx, monthKey(userID, year, month), func(ctx context.Context) (core.MonthSummary, error) {
		return s.svc.Ledger.MonthDays(ctx, userID, year, month)
	})
}

func (s *Server) invalidateMonth(ctx context.Context, userID int64, year, month int) {
	if n := s.months.Invalidate(monthKey(userID, year, month)); n > 0 {
		log.FromContext(ctx).WithComponent(log.ComponentCache).DebugContext(ctx, "Month cache invalidated",
			log.FieldUserID, userID, log.FieldYear, year, log.FieldMonth, month)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentStorage).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
