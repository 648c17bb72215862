package collector

import (
	"context"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

// StopReason is the explicit terminal result of a collection pass. Reaching
// the time boundary, the limit, or a stagnation plateau are expected,
// frequent outcomes, so they are results rather than errors.
type StopReason string

const (
	StopExhausted    StopReason = "stream_exhausted"
	StopTimeBoundary StopReason = "time_boundary"
	StopLimit        StopReason = "limit_reached"
	StopStagnation   StopReason = "stagnation"
	StopRateLimited  StopReason = "rate_limited"
	StopCancelled    StopReason = "cancelled"
)

const (
	// DefaultMaxTraversal bounds the stream when no explicit cap is set
	DefaultMaxTraversal = 1000
	// stagnationInterval is how many scanned raw posts pass between
	// unique-count checkpoints
	stagnationInterval = 100
	// stagnantCheckpointsToStop ends the pass after this many consecutive
	// checkpoints without unique-count growth
	stagnantCheckpointsToStop = 2
)

// Primary consumes the lazy newest-first search stream for one account,
// applying window, limit and stagnation cutoffs. It never retries
// internally; throttle signals are counted and returned to the
// orchestrator, which owns the backoff-or-escalate decision.
type Primary struct {
	source Source
	window Window
	log    logger.Logger
}

// NewPrimary creates a primary collector over the given source
func NewPrimary(source Source, window Window, log logger.Logger) *Primary {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Primary{source: source, window: window, log: log}
}

// Collect drains the search stream for the handle into the accumulator.
// The accumulator and stats are exclusively owned by the caller for the
// duration of the call; no other writer may touch them.
func (p *Primary) Collect(ctx context.Context, handle string, acc *Accumulator, stats *Stats) (StopReason, error) {
	maxPosts := p.window.MaxTweets
	if maxPosts <= 0 {
		maxPosts = DefaultMaxTraversal
	}

	query := "from:" + handle
	p.log.DebugWithFields("starting primary collection", map[string]interface{}{
		"handle":    handle,
		"query":     query,
		"max_posts": maxPosts,
		"collected": acc.Len(),
	})

	stats.RecordRequest()
	stream := p.source.SearchPosts(ctx, query, maxPosts)

	scanned := 0
	lastCheckpoint := acc.Len()
	stagnant := 0

	for {
		if err := ctx.Err(); err != nil {
			return StopCancelled, err
		}
		select {
		case <-ctx.Done():
			return StopCancelled, ctx.Err()
		case res, ok := <-stream:
			if !ok {
				p.log.DebugWithFields("primary stream exhausted", map[string]interface{}{
					"handle":  handle,
					"scanned": scanned,
					"unique":  acc.Len(),
				})
				return StopExhausted, nil
			}

			if res.Err != nil {
				if errs.Is(res.Err, errs.ErrorTypeRateLimit) {
					stats.RecordRateLimitHit()
					logger.LogRateLimit("search_stream", stats.RateLimitHits)
					return StopRateLimited, nil
				}
				return StopExhausted, errs.Wrap(errs.ErrorTypeNetwork, "primary stream failed", res.Err)
			}

			scanned++
			if scanned%stagnationInterval == 0 {
				if acc.Len() == lastCheckpoint {
					stagnant++
					if stagnant >= stagnantCheckpointsToStop {
						p.log.InfoWithFields("primary stream stagnated", map[string]interface{}{
							"handle":  handle,
							"scanned": scanned,
							"unique":  acc.Len(),
						})
						return StopStagnation, nil
					}
				} else {
					stagnant = 0
					lastCheckpoint = acc.Len()
				}
			}

			ts, valid := NormalizeTimestamp(res.Raw.Timestamp)
			if !valid {
				p.log.WarnWithFields("dropping malformed raw post", map[string]interface{}{
					"id":     res.Raw.ID,
					"reason": "unusable timestamp",
				})
				continue
			}

			// The stream is newest-first but ordering is not fully
			// reliable: too-new posts are skipped while scanning
			// continues, and only a post older than the lower bound ends
			// the pass.
			if p.window.TooNew(ts) {
				continue
			}
			if p.window.TooOld(ts) {
				p.log.DebugWithFields("reached time boundary", map[string]interface{}{
					"handle":       handle,
					"timestamp_ms": ts,
					"since_ms":     p.window.SinceMs,
				})
				return StopTimeBoundary, nil
			}

			if acc.Has(res.Raw.ID) {
				continue
			}

			post, err := ConvertRaw(res.Raw)
			if err != nil {
				p.log.WithError(err).WithField("id", res.Raw.ID).Warn("dropping malformed raw post")
				continue
			}

			acc.Add(post)
			stats.RecordPost(post.TimestampMs, false)

			if p.window.LimitReached(acc.Len()) {
				p.log.InfoWithFields("post limit reached", map[string]interface{}{
					"handle": handle,
					"limit":  p.window.Limit,
				})
				return StopLimit, nil
			}
		}
	}
}
