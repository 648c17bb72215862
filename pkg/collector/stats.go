package collector

import "time"

// Stats is the pipeline-scoped run accumulator. It is created at pipeline
// construction, updated throughout collection, and read-only once the run
// finishes via Snapshot.
type Stats struct {
	RunID           string
	Requests        int
	RateLimitHits   int
	Retries         int
	UniquePosts     int
	FallbackPosts   int
	OldestSeenMs    int64
	NewestSeenMs    int64
	FallbackEngaged bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

// NewStats creates a Stats accumulator for one run
func NewStats(runID string) *Stats {
	return &Stats{RunID: runID, StartedAt: time.Now()}
}

// RecordRequest counts one request against the source
func (s *Stats) RecordRequest() {
	s.Requests++
}

// RecordRateLimitHit counts one throttle signal
func (s *Stats) RecordRateLimitHit() {
	s.RateLimitHits++
}

// RecordRetry counts one retried operation
func (s *Stats) RecordRetry() {
	s.Retries++
}

// RecordPost counts one unique accepted post and tracks the timestamp range
func (s *Stats) RecordPost(timestampMs int64, fromFallback bool) {
	s.UniquePosts++
	if fromFallback {
		s.FallbackPosts++
	}
	if timestampMs > 0 {
		if s.OldestSeenMs == 0 || timestampMs < s.OldestSeenMs {
			s.OldestSeenMs = timestampMs
		}
		if timestampMs > s.NewestSeenMs {
			s.NewestSeenMs = timestampMs
		}
	}
}

// MarkFallbackEngaged records that the browser path ran this run
func (s *Stats) MarkFallbackEngaged() {
	s.FallbackEngaged = true
}

// Finish stamps the completion time
func (s *Stats) Finish() {
	s.FinishedAt = time.Now()
}

// Snapshot returns a copy safe to hand to reporters and error logs
func (s *Stats) Snapshot() Stats {
	return *s
}

// Fields renders the snapshot as structured log fields
func (s *Stats) Fields() map[string]interface{} {
	return map[string]interface{}{
		"run_id":           s.RunID,
		"requests":         s.Requests,
		"rate_limit_hits":  s.RateLimitHits,
		"retries":          s.Retries,
		"unique_posts":     s.UniquePosts,
		"fallback_posts":   s.FallbackPosts,
		"oldest_seen_ms":   s.OldestSeenMs,
		"newest_seen_ms":   s.NewestSeenMs,
		"fallback_engaged": s.FallbackEngaged,
	}
}
