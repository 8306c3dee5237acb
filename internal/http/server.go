package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/ledger"
	applog "budget/internal/log"
	appweb "budget/web"
)

// appMetrics tracks counters exposed on /metrics.
type appMetrics struct {
	startedAt         time.Time
	totalTransactions int64
	totalGoals        int64
	cacheHits         int64
	cacheMisses       int64
}

type Server struct {
	http.Server
	templates   *template.Template
	store       ledger.Store
	rateLimiter *rateLimiter

	// Derived views are cached with TTL eviction. Writes purge both
	// caches so partials never show stale totals.
	summaryCache   *cache.LRUCache[core.MonthSummary]
	aggregateCache *cache.LRUCache[[]core.GroupTotal]
	cacheManager   *cache.Manager

	metrics      appMetrics
	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes.
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

func (rl *rateLimiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, store ledger.Store) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:          store,
		rateLimiter:    newRateLimiter(),
		summaryCache:   cache.NewLRUCache[core.MonthSummary](100, 5*time.Minute),
		aggregateCache: cache.NewLRUCache[[]core.GroupTotal](200, 5*time.Minute),
		cacheManager:   cache.NewManager(),
		metrics:        appMetrics{startedAt: time.Now()},
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.aggregateCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/transactions", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("/transactions/delete", s.withSecurityHeaders(s.handleDeleteTransaction))
	mux.HandleFunc("/goals", s.withSecurityHeaders(s.handleCreateGoal))
	mux.HandleFunc("/goals/delete", s.withSecurityHeaders(s.handleDeleteGoal))
	mux.HandleFunc("/budgets", s.withSecurityHeaders(s.handleSetBudget))
	mux.HandleFunc("/export/csv", s.withSecurityHeaders(s.handleExportCSV))

	// UI partials
	mux.HandleFunc("/ui/history", s.withSecurityHeaders(s.handleHistory))
	mux.HandleFunc("/ui/month-summary", s.withSecurityHeaders(s.handleMonthSummary))
	mux.HandleFunc("/ui/aggregate", s.withSecurityHeaders(s.handleAggregate))
	mux.HandleFunc("/ui/goals", s.withSecurityHeaders(s.handleGoals))
	mux.HandleFunc("/ui/budgets", s.withSecurityHeaders(s.handleBudgets))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit mutating requests only.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		fields := applog.NewFields().
			WithRequestID(requestID).
			WithClientIP(clientIP).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
			WithHTTPResponse(rw.statusCode, duration.Milliseconds(), rw.statusCode < 400)
		slog.InfoContext(ctx, "Request completed", fields.ToSlice()...)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) summaryCacheKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// invalidateDerived drops every cached view. Called on any write, the
// caches are cheap to refill and correctness wins.
func (s *Server) invalidateDerived() {
	s.summaryCache.Purge()
	s.aggregateCache.Purge()
}

func (s *Server) getMonthSummary(ctx context.Context, year, month int) (core.MonthSummary, error) {
	key := s.summaryCacheKey(year, month)

	if data, found := s.summaryCache.Get(key); found {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		slog.DebugContext(ctx, "Summary cache hit", "year", year, "month", month)
		return data, nil
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	data, err := s.store.MonthSummary(cctx, year, month)
	if err != nil {
		return core.MonthSummary{}, err
	}

	s.summaryCache.Set(key, data)
	return data, nil
}

func (s *Server) getAggregate(ctx context.Context, f core.Filter, groupBy core.GroupBy) ([]core.GroupTotal, error) {
	key := string(groupBy) + "|" + filterCacheKey(f)

	if totals, found := s.aggregateCache.Get(key); found {
		atomic.AddInt64(&s.metrics.cacheHits, 1)
		result := make([]core.GroupTotal, len(totals))
		copy(result, totals)
		return result, nil
	}
	atomic.AddInt64(&s.metrics.cacheMisses, 1)

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	totals, err := s.store.Aggregate(cctx, f, groupBy)
	if err != nil {
		return nil, err
	}

	s.aggregateCache.Set(key, totals)
	return totals, nil
}
