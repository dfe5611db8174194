package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Truncate(time.Second).String(),
	}).Write(w)
}

// handleReady reports 503 while the store cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if err := s.svc.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	if s.statsCache != nil {
		checks["stats_cache"] = map[string]any{"entries": s.statsCache.Size()}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.GetMetrics().ClientCount}

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.limiter.GetMetrics()

	metric := func(name, typ, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, typ, name, value)
	}
	metric("tempo_http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("tempo_http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("tempo_http_response_time_avg_ms", "gauge", "Average response time in milliseconds", float64(traceMetrics.AverageResponseTime.Microseconds())/1000)
	metric("tempo_rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", limitMetrics.Rejected)
	metric("tempo_rate_limit_clients", "gauge", "Clients tracked by the rate limiter", limitMetrics.ClientCount)
	metric("tempo_security_suspicious_requests_total", "counter", "Requests matching scan patterns", s.detector.SuspiciousCount())
	if s.statsCache != nil {
		hits, misses := s.statsCache.Counters()
		metric("tempo_stats_cache_hits_total", "counter", "Stats cache hits", hits)
		metric("tempo_stats_cache_misses_total", "counter", "Stats cache misses", misses)
		metric("tempo_stats_cache_entries", "gauge", "Stats cache entries", s.statsCache.Size())
	}
	metric("tempo_uptime_seconds", "gauge", "Seconds since the server started", int64(s.now().Sub(s.started).Seconds()))
}
