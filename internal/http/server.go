// Package http serves the expense REST API, the dashboard summary and the
// single-page front end.
package http

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"expenses/internal/analytics"
	"expenses/internal/cache"
	"expenses/internal/core"
	applog "expenses/internal/log"

	"golang.org/x/sync/singleflight"
)

// ExpenseService is the store the handlers drive.
type ExpenseService interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	CreateExpense(ctx context.Context, p core.ExpensePayload) (core.Expense, error)
	UpdateExpense(ctx context.Context, id string, p core.ExpensePayload) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type Options struct {
	Addr               string
	AllowedOrigins     []string
	RateLimitPerMinute int // 0 disables limiting
	DashboardCacheTTL  time.Duration
	// Static holds the built front end; index.html is the SPA shell.
	Static fs.FS
	Logger *applog.Logger
}

type Server struct {
	http.Server
	expenses ExpenseService
	logger   *applog.Logger
	httpLog  *applog.HTTPLogger
	limiter  *rateLimiter
	static   fs.FS
	started  time.Time

	dashboard      *cache.LRUCache[analytics.Summary]
	dashboardTTL   time.Duration
	dashboardLoads singleflight.Group
	dashboardMu    sync.Mutex
	dashboardGen   uint64
	caches         *cache.Manager

	shutdownOnce sync.Once
}

const dashboardKey = "summary"

// NewServer wires routes and middleware and returns a server ready for
// ListenAndServe.
func NewServer(svc ExpenseService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		expenses:     svc,
		logger:       logger.WithComponent(applog.ComponentHTTP),
		httpLog:      applog.NewHTTPLogger(logger),
		static:       opts.Static,
		started:      time.Now(),
		dashboard:    cache.NewLRUCache[analytics.Summary](1, opts.DashboardCacheTTL),
		dashboardTTL: opts.DashboardCacheTTL,
		caches:       cache.NewManager(),
	}
	if opts.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(opts.RateLimitPerMinute, time.Minute)
	}
	s.caches.Register(s.dashboard)
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /", s.spaHandler())

	var handler http.Handler = mux
	handler = s.withRequestLogging(handler)
	handler = applog.Middleware(logger, requestIDFromHeader)(handler)
	handler = withRequestID(handler)
	handler = withCORS(opts.AllowedOrigins)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		if s.limiter != nil {
			s.limiter.stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withRequestLogging sets security headers, applies
// the mutation rate limit and logs each request.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)

		setSecurityHeaders(w)
		s.httpLog.Start(ctx, r, clientIP)

		if detectSuspiciousRequest(r) {
			s.logger.WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.UserAgent())
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if isMutation(r.Method) && s.limiter != nil {
			if ok, retryAfter := s.limiter.allow(clientIP); !ok {
				slog.WarnContext(ctx, "Rate limit exceeded",
					applog.FieldComponent, applog.ComponentRateLimit,
					applog.FieldClientIP, clientIP,
					applog.FieldMethod, r.Method,
					applog.FieldPath, r.URL.Path)
				rw.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
				writeError(rw, http.StatusTooManyRequests, "Rate limit exceeded")
				s.httpLog.End(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
				return
			}
		}

		next.ServeHTTP(rw, r)
		s.httpLog.End(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// responseWriter records the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
