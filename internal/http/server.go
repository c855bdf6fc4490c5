package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"whaling/internal/cache"
	"whaling/internal/core"
	"whaling/internal/events"
	applog "whaling/internal/log"
	"whaling/internal/metrics"
	"whaling/internal/view"
	appweb "whaling/web"
)

const (
	harborCacheSize = 128
	harborCacheTTL  = 30 * time.Minute
	cacheCleanup    = 10 * time.Minute
	sseHeartbeat    = 25 * time.Second
)

// Deps are the collaborators served over HTTP. Metrics and Ready may be nil.
type Deps struct {
	Sync    *view.Synchronizer
	Board   *view.Board
	Hub     *events.Hub
	Metrics *metrics.Metrics
	Logger  *applog.Logger
	Ready   func(ctx context.Context) error
}

type Server struct {
	http.Server
	templates   *template.Template
	sync        *view.Synchronizer
	board       *view.Board
	hub         *events.Hub
	metrics     *metrics.Metrics
	ready       func(ctx context.Context) error
	rateLimiter *rateLimiter

	// per-harbor popup series, expired so rarely opened harbors free memory
	harborCache *cache.LRU[string, []core.Record]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sync:             deps.Sync,
		board:            deps.Board,
		hub:              deps.Hub,
		metrics:          deps.Metrics,
		ready:            deps.Ready,
		rateLimiter:      newRateLimiter(60, time.Minute),
		harborCache:      cache.NewLRU[string, []core.Record](harborCacheSize, harborCacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", applog.FieldComponent, applog.ComponentHTTP, applog.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", applog.FieldComponent, applog.ComponentHTTP, applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /ui/year", s.withSecurityHeaders(s.handleYearPartial))
	mux.HandleFunc("/year", s.withSecurityHeaders(s.handleSelectYear))

	mux.HandleFunc("GET /api/state", s.withSecurityHeaders(s.handleState))
	mux.HandleFunc("GET /api/totals", s.withSecurityHeaders(s.handleTotals))
	mux.HandleFunc("GET /api/records", s.withSecurityHeaders(s.handleRecords))
	mux.HandleFunc("GET /api/harbors/{location}", s.withSecurityHeaders(s.handleHarbor))
	mux.HandleFunc("POST /api/popup", s.withSecurityHeaders(s.handlePopup))
	mux.HandleFunc("GET /export/totals.xlsx", s.withSecurityHeaders(s.handleExportTotals))

	mux.HandleFunc("GET /events", s.withSecurityHeaders(s.handleEvents))

	if deps.Logger != nil {
		s.Handler = applog.Middleware(deps.Logger.WithComponent(applog.ComponentHTTP))(mux)
	}

	return s
}

// startCacheCleanup drops expired harbor series until shutdown.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(cacheCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanHarborCache()
		case <-s.stopCacheCleanup:
			return
		}
	}
}

func (s *Server) cleanHarborCache() int {
	n := s.harborCache.CleanExpired()
	if n > 0 {
		slog.Debug("Cache cleanup completed",
			applog.FieldComponent, applog.ComponentCache,
			"entries_removed", n)
	}
	return n
}

// Shutdown closes event streams, stops background cleanup and drains the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()

		// open SSE streams would otherwise hold Shutdown until ctx expires
		if s.hub != nil {
			s.hub.Close()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := applog.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		applog.FromContext(ctx).DebugContext(ctx, "Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		if detectSuspiciousRequest(r) {
			s.metrics.ObserveHTTPRejected("suspicious")
			applog.FromContext(ctx).WarnContext(ctx, "Suspicious request rejected",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		// only state-changing requests count against the limit
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.metrics.ObserveHTTPRejected("rate_limit")
			applog.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
				applog.FieldComponent, applog.ComponentRateLimit,
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com https://cdn.jsdelivr.net; style-src 'self' 'unsafe-inline' https://unpkg.com https://cdn.jsdelivr.net; img-src 'self' data: https://*.tile.openstreetmap.org; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		applog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets event streams pass through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil || s.sync.Totals().Len() == 0 {
		http.Error(w, "no records loaded", http.StatusServiceUnavailable)
		return
	}
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed",
				applog.FieldComponent, applog.ComponentHTTP,
				applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
