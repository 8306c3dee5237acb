package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.startedAt).String(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.store != nil {
		// A lightweight read exercises the storage path end to end.
		if _, err := s.store.ListGoals(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	checks["cache"] = map[string]interface{}{
		"summary_entries":   s.summaryCache.Size(),
		"aggregate_entries": s.aggregateCache.Size(),
		"status":            "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	totalTransactions := atomic.LoadInt64(&s.metrics.totalTransactions)
	totalGoals := atomic.LoadInt64(&s.metrics.totalGoals)
	cacheHits := atomic.LoadInt64(&s.metrics.cacheHits)
	cacheMisses := atomic.LoadInt64(&s.metrics.cacheMisses)
	uptime := time.Since(s.metrics.startedAt)

	fmt.Fprintf(w, "# Application metrics\n")
	fmt.Fprintf(w, "app_uptime_seconds %d\n", int64(uptime.Seconds()))
	fmt.Fprintf(w, "app_transactions_created_total %d\n", totalTransactions)
	fmt.Fprintf(w, "app_goals_created_total %d\n", totalGoals)
	fmt.Fprintf(w, "\n# Cache metrics\n")
	fmt.Fprintf(w, "cache_hits_total %d\n", cacheHits)
	fmt.Fprintf(w, "cache_misses_total %d\n", cacheMisses)
	fmt.Fprintf(w, "cache_summary_entries %d\n", s.summaryCache.Size())
	fmt.Fprintf(w, "cache_aggregate_entries %d\n", s.aggregateCache.Size())
	fmt.Fprintf(w, "\n# Rate limiter metrics\n")
	fmt.Fprintf(w, "ratelimit_active_clients %d\n", s.rateLimiter.ActiveClients())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	data := struct {
		Today string
		Year  int
		Month int
	}{
		Today: now.Format("2006-01-02"),
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
