package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	CollectionRuns.Inc()
	RateLimitHits.Inc()
	FallbackRuns.Inc()
	AddPosts("primary", 7)
	AddPosts("fallback", 2)
	AddPosts("fallback", 0) // no-op
	ObserveRunDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"xscraper_collection_runs_total",
		"xscraper_collection_duration_seconds",
		"xscraper_posts_collected_total",
		"xscraper_rate_limit_hits_total",
		"xscraper_fallback_runs_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
