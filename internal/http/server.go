// Package http serves the dashboard, its HTMX partials and the JSON
// endpoints used by the chat widget and the category suggestion.
package http

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"bizbalance/internal/cache"
	"bizbalance/internal/core"
	"bizbalance/internal/csvio"
	applog "bizbalance/internal/log"
	"bizbalance/internal/middleware/ratelimit"
	"bizbalance/internal/middleware/security"
	"bizbalance/internal/middleware/trace"
	"bizbalance/internal/services"
	appweb "bizbalance/web"
)

// Ledger is the record service the handlers depend on.
type Ledger interface {
	Transactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
	Appointments(ctx context.Context, ownerID string) ([]core.Appointment, error)
	RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	RecordAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error)
	Categories(ctx context.Context, ownerID string) []string
	Import(ctx context.Context, ownerID string, r io.Reader) (services.ImportReport, error)
	Export(ctx context.Context, ownerID string, w io.Writer, loc csvio.Locale) error
	Ready(ctx context.Context) error
}

// Assistant answers chat turns and suggests categories. Both calls degrade
// to a fixed value instead of failing.
type Assistant interface {
	Suggest(ctx context.Context, description string, categories []string) string
	Converse(ctx context.Context, history []core.Message, prompt string, txs []core.Transaction) string
}

// Identity resolves the owner of a request from a header set by the
// authenticating proxy.
type Identity struct {
	Header         string
	DefaultOwnerID string
}

// Server wraps http.Server with the dashboard handlers and middleware.
type Server struct {
	http.Server
	templates *template.Template
	ledger    Ledger
	assistant Assistant
	identity  Identity
	logger    *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheStats       func() cache.Stats

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime              time.Time
	transactionsCreated atomic.Int64
	appointmentsCreated atomic.Int64
	rowsImported        atomic.Int64
	suggestions         atomic.Int64
	conversations       atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *applog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.WithComponent(applog.ComponentHTTP)
		}
	}
}

func WithIdentity(id Identity) Option {
	return func(s *Server) {
		if id.Header != "" {
			s.identity.Header = id.Header
		}
		s.identity.DefaultOwnerID = id.DefaultOwnerID
	}
}

func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		s.rateLimiter = ratelimit.NewLimiter(cfg)
	}
}

// WithTrustedProxies adds networks whose forwarding headers are honoured.
func WithTrustedProxies(cidrs ...string) Option {
	return func(s *Server) {
		for _, c := range cidrs {
			if err := s.securityDetector.AddTrustedProxy(c); err != nil {
				s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
			}
		}
	}
}

// WithCacheStats exposes the transaction list cache on /metrics.
func WithCacheStats(fn func() cache.Stats) Option {
	return func(s *Server) { s.cacheStats = fn }
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, ledger Ledger, assistant Assistant, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      90 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:           ledger,
		assistant:        assistant,
		identity:         Identity{Header: "X-User-Id"},
		logger:           applog.Discard().WithComponent(applog.ComponentHTTP),
		securityDetector: security.NewDetector(),
		appMetrics:       appMetrics{uptime: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rateLimiter == nil {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.traceMiddleware = trace.NewMiddleware(s.logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("/{$}", s.owned(s.handleIndex))
	mux.Handle("/summary", s.owned(s.handleSummary))
	mux.Handle("/transactions", s.owned(s.handleTransactions))
	mux.Handle("/transactions/export.csv", s.owned(s.handleExport))
	mux.Handle("/transactions/import", s.owned(s.handleImport))
	mux.Handle("/appointments", s.owned(s.handleAppointments))
	mux.Handle("/categories/suggest", s.owned(s.handleSuggestCategory))
	mux.Handle("/agent/converse", s.owned(s.handleConverse))

	s.Handler = s.chain(mux)
	return s
}

// chain wraps the mux in the middleware stack, outermost first: tracing,
// suspicious-request detection, security headers, then rate limiting.
func (s *Server) chain(h http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)
	return s.traceMiddleware.Middleware(
		s.securityDetector.Middleware(
			headers.Middleware(
				limited(h))))
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	if wantsJSON(r) {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	ErrorResponse(http.StatusTooManyRequests, "Muitas requisições. Tente novamente em instantes.").Write(w)
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
