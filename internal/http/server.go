package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/middleware/cors"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
)

// Ledger is the application surface the handlers call.
// *services.LedgerService implements it.
type Ledger interface {
	CreateEntry(ctx context.Context, accountID int64, e core.CashEntry) (core.CashEntry, error)
	UpdateEntry(ctx context.Context, accountID int64, e core.CashEntry) (core.CashEntry, error)
	GetEntry(ctx context.Context, accountID, id int64) (core.CashEntry, error)
	DeleteEntry(ctx context.Context, accountID, id int64) error
	ListEntriesByDate(ctx context.Context, accountID int64, date core.Date) ([]core.CashEntry, error)
	ListEntriesInRange(ctx context.Context, accountID int64, from, to core.Date) ([]core.CashEntry, error)
	Summary(ctx context.Context, accountID int64, from, to core.Date) (core.Summary, error)

	CreateLoanGiven(ctx context.Context, accountID int64, l core.LoanGiven) (core.LoanGiven, error)
	UpdateLoanGiven(ctx context.Context, accountID int64, l core.LoanGiven) (core.LoanGiven, error)
	GetLoanGiven(ctx context.Context, accountID, id int64) (core.LoanGivenBalance, error)
	ListLoansGiven(ctx context.Context, accountID int64) ([]core.LoanGivenBalance, error)
	RecordInstallment(ctx context.Context, accountID int64, p core.LoanGivenPayment) (core.LoanGivenPayment, error)
	ListInstallments(ctx context.Context, accountID, loanID int64) ([]core.LoanGivenPayment, error)

	CreateLoanToPay(ctx context.Context, accountID int64, l core.LoanToPay) (core.LoanToPay, error)
	GetLoanToPay(ctx context.Context, accountID, id int64) (core.LoanToPay, error)
	ListLoansToPay(ctx context.Context, accountID int64) ([]core.LoanToPay, error)
	RecordPaydown(ctx context.Context, accountID int64, p core.LoanToPayPayment) (core.LoanToPayPayment, error)
	ListPaydowns(ctx context.Context, accountID, loanID int64) ([]core.LoanToPayPayment, error)

	Ping(ctx context.Context) error
}

// Options configures the server beyond its routes.
type Options struct {
	DefaultAccountID   int64
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	Logger             *applog.Logger
}

// Server is the ledger REST API.
type Server struct {
	http.Server
	ledger           Ledger
	defaultAccountID int64
	logger           *applog.Logger

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	if opts.DefaultAccountID < 1 {
		opts.DefaultAccountID = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:           ledger,
		defaultAccountID: opts.DefaultAccountID,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:         security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	corsCfg := cors.DefaultConfig()
	if len(opts.CORSAllowedOrigins) > 0 {
		corsCfg.AllowOrigins = opts.CORSAllowedOrigins
	}

	s.Server = http.Server{
		Addr: addr,
		Handler: chain(mux,
			s.recoverer,
			s.tracer.Middleware,
			trace.LoggerMiddleware(logger),
			security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware,
			s.detector.Middleware,
			cors.Middleware(corsCfg),
			s.rateLimiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly, s.onRateLimit),
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /api/entries/export", s.handleExportEntries)
	mux.HandleFunc("GET /api/entries/{id}", s.handleGetEntry)
	mux.HandleFunc("PUT /api/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)

	mux.HandleFunc("GET /api/summary", s.handleSummary)

	mux.HandleFunc("GET /api/loans-given", s.handleListLoansGiven)
	mux.HandleFunc("POST /api/loans-given", s.handleCreateLoanGiven)
	mux.HandleFunc("GET /api/loans-given/export", s.handleExportLoansGiven)
	mux.HandleFunc("GET /api/loans-given/{id}", s.handleGetLoanGiven)
	mux.HandleFunc("PUT /api/loans-given/{id}", s.handleUpdateLoanGiven)
	mux.HandleFunc("GET /api/loans-given/{id}/payments", s.handleListInstallments)
	mux.HandleFunc("POST /api/loans-given/{id}/payments", s.handleRecordInstallment)

	mux.HandleFunc("GET /api/loans-to-pay", s.handleListLoansToPay)
	mux.HandleFunc("POST /api/loans-to-pay", s.handleCreateLoanToPay)
	mux.HandleFunc("GET /api/loans-to-pay/export", s.handleExportLoansToPay)
	mux.HandleFunc("GET /api/loans-to-pay/{id}", s.handleGetLoanToPay)
	mux.HandleFunc("GET /api/loans-to-pay/{id}/payments", s.handleListPaydowns)
	mux.HandleFunc("POST /api/loans-to-pay/{id}/payments", s.handleRecordPaydown)
}

// chain applies middleware so the first listed is the outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// recoverer turns a handler panic into a 500 and logs the stack.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.ErrorContext(r.Context(), "Handler panic",
				applog.FieldError, fmt.Sprint(rec),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				"stack", string(debug.Stack()))
			InternalServerError(msgInternal).Write(w)
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

// fail writes the response for err and logs anything that is not a client error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, notFound string, op string) {
	resp := ErrorFor(err, notFound)
	if resp.statusCode >= http.StatusInternalServerError {
		if errors.Is(err, context.Canceled) {
			applog.FromContext(r.Context()).InfoContext(r.Context(), "Request cancelled by client", applog.FieldOperation, op)
		} else {
			applog.NewStructuredLogger(applog.FromContext(r.Context())).
				LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
		}
	}
	resp.Write(w)
}

// Shutdown stops background goroutines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports ready only while the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ledger.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
		return
	}
	NewJSONResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}
