// Package metrics exposes the Prometheus metrics of a dictionary build.
// All metrics are defined in their respective packages (client, ratelimit,
// loader, store) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by all packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer returns an HTTP server exposing /metrics and /health on addr.
// The caller starts and shuts it down.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", healthHandler)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - wanikani_requests_total{endpoint, status} (Counter): Requests by resource and HTTP status
//   - wanikani_request_duration_seconds{endpoint} (Histogram): Request duration by resource
//   - wanikani_errors_total{kind} (Counter): Failures by kind (connection, http_status, malformed_response, api)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - wanikani_rate_limit_remaining (Gauge): Last RateLimit-Remaining value
//   - wanikani_rate_limit_limit (Gauge): Last RateLimit-Limit value
//   - wanikani_rate_limit_low_total (Counter): Responses with a low remaining budget
//
// Loader Metrics (pkg/loader):
//   - wanikani_loader_pages_total (Counter): Pages turned into archive entries
//   - wanikani_loader_rows_total{bank} (Counter): Rows written by bank
//   - wanikani_loader_runs_total{result} (Counter): Builds by result (success, failed)
//
// Store Metrics (pkg/store):
//   - wanikani_store_hits_total (Counter): Archives served from Redis
//   - wanikani_store_misses_total (Counter): Lookups without a stored archive
//   - wanikani_store_errors_total{operation} (Counter): Store operation errors
//
// Example Prometheus Queries:
//
//   # Request Error Rate by kind
//   sum by (kind) (rate(wanikani_errors_total[5m]))
//
//   # Rate Limit Status
//   wanikani_rate_limit_remaining < 10
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(wanikani_request_duration_seconds_bucket[5m]))
//
//   # Store Hit Rate
//   rate(wanikani_store_hits_total[1h]) /
//   (rate(wanikani_store_hits_total[1h]) + rate(wanikani_store_misses_total[1h]))
