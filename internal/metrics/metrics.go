// Package metrics exposes run counters over Prometheus.
package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CollectionRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xscraper_collection_runs_total",
		Help: "Total collection runs",
	})
	CollectionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xscraper_collection_errors_total",
		Help: "Total failed collection runs",
	})
	CollectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "xscraper_collection_duration_seconds",
		Help:    "Collection run duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	PostsCollected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xscraper_posts_collected_total",
		Help: "Unique posts collected per path",
	}, []string{"path"})
	RateLimitHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xscraper_rate_limit_hits_total",
		Help: "Throttle signals observed on the primary stream",
	})
	FallbackRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xscraper_fallback_runs_total",
		Help: "Runs that engaged the browser fallback",
	})
)

func init() {
	prometheus.MustRegister(CollectionRuns, CollectionErrors, CollectionDuration,
		PostsCollected, RateLimitHits, FallbackRuns)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9190").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("XSCRAPER_METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// ObserveRunDuration records a run duration from its start time.
func ObserveRunDuration(start time.Time) {
	CollectionDuration.Observe(time.Since(start).Seconds())
}

// AddPosts counts collected posts against a path ("primary" or "fallback").
func AddPosts(path string, n int) {
	if n > 0 {
		PostsCollected.WithLabelValues(path).Add(float64(n))
	}
}
