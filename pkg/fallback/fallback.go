// Package fallback collects posts by scrolling a rendered search
// timeline in a scripted browser session. It is the slow path, engaged
// when the streaming source is rate limited, unavailable, or yields
// too little.
package fallback

import (
	"context"
	"time"

	"xscraper/pkg/auth"
	"xscraper/pkg/collector"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/retry"
)

// PageDriver is the slice of browser automation the collector needs.
// pkg/browser implements it; tests substitute a fake.
type PageDriver interface {
	Login(ctx context.Context, username, password, email string) error
	OpenSearch(ctx context.Context, query string) error
	Scroll(ctx context.Context) error
	ExtractVisiblePosts(ctx context.Context) ([]models.RawPost, error)
	Close()
}

const (
	defaultMaxSessionDuration = 30 * time.Minute
	defaultScrollDelayMin     = 1500 * time.Millisecond
	defaultScrollDelayMax     = 4 * time.Second

	// consecutive extract passes with no new accepted posts before the
	// scroll loop gives up
	maxStagnantScrolls = 3
)

// Options configures a fallback Collector.
type Options struct {
	// MaxSessionDuration bounds the whole scroll session. Zero means
	// 30 minutes.
	MaxSessionDuration time.Duration

	// ScrollDelayMin/Max bound the randomized pause between scroll
	// iterations. Zero values take the defaults.
	ScrollDelayMin time.Duration
	ScrollDelayMax time.Duration

	// Pacer, when set, additionally rate limits scroll iterations.
	Pacer ratelimit.Limiter

	// SkipLogin reuses the driver's existing authenticated state
	// instead of running the interactive login flow.
	SkipLogin bool
}

// Collector drives one single-worker browser session. Sequential on
// purpose: one authenticated browser identity, one scroll position.
type Collector struct {
	driver  PageDriver
	account *auth.Account
	window  collector.Window
	opts    Options
	log     logger.Logger

	// test seam for the session clock
	now func() time.Time
}

// NewCollector creates a fallback collector over driver, logging in as
// account unless Options.SkipLogin is set.
func NewCollector(driver PageDriver, account *auth.Account, window collector.Window, opts Options, log logger.Logger) *Collector {
	if opts.MaxSessionDuration <= 0 {
		opts.MaxSessionDuration = defaultMaxSessionDuration
	}
	if opts.ScrollDelayMin <= 0 {
		opts.ScrollDelayMin = defaultScrollDelayMin
	}
	if opts.ScrollDelayMax <= 0 {
		opts.ScrollDelayMax = defaultScrollDelayMax
	}
	if opts.ScrollDelayMax <= opts.ScrollDelayMin {
		opts.ScrollDelayMax = opts.ScrollDelayMin + time.Second
	}
	return &Collector{
		driver:  driver,
		account: account,
		window:  window,
		opts:    opts,
		log:     log.WithField("component", "fallback"),
		now:     time.Now,
	}
}

// Collect logs in through the browser, opens the live search for
// handle, and scrolls until stagnation, the session ceiling, or the
// window limit. Posts already in acc are never re-added, so a partial
// primary pass composes cleanly with this one. Errors leave acc
// intact; everything accepted so far stays collected.
func (c *Collector) Collect(ctx context.Context, handle string, acc *collector.Accumulator, stats *collector.Stats) error {
	stats.MarkFallbackEngaged()

	if !c.opts.SkipLogin {
		if c.account == nil || !c.account.Complete() {
			return errs.New(errs.ErrorTypeConfiguration,
				"fallback requires username, password, and email")
		}
		if err := c.driver.Login(ctx, c.account.Username, c.account.Password, c.account.Email); err != nil {
			return err
		}
	}

	query := "from:" + handle
	c.log.InfoWithFields("Starting browser collection", map[string]interface{}{
		"query": query,
	})
	if err := c.driver.OpenSearch(ctx, query); err != nil {
		return err
	}

	deadline := c.now().Add(c.opts.MaxSessionDuration)
	stagnant := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.now().After(deadline) {
			c.log.Warn("Session duration ceiling reached")
			return nil
		}

		raws, err := c.driver.ExtractVisiblePosts(ctx)
		if err != nil {
			return err
		}

		accepted := c.ingest(raws, acc, stats)
		if c.window.LimitReached(acc.Len()) {
			c.log.InfoWithFields("Limit reached", map[string]interface{}{
				"collected": acc.Len(),
			})
			return nil
		}

		if accepted == 0 {
			stagnant++
			if stagnant >= maxStagnantScrolls {
				c.log.InfoWithFields("No new posts after repeated scrolls", map[string]interface{}{
					"scrolls": stagnant,
				})
				return nil
			}
		} else {
			stagnant = 0
		}

		if err := c.pace(ctx); err != nil {
			return err
		}
		if err := c.driver.Scroll(ctx); err != nil {
			return err
		}
		stats.RecordRequest()
	}
}

// ingest filters one extract pass through the window and inserts
// unseen posts, returning how many were accepted.
func (c *Collector) ingest(raws []models.RawPost, acc *collector.Accumulator, stats *collector.Stats) int {
	accepted := 0
	for _, raw := range raws {
		ts, ok := collector.NormalizeTimestamp(raw.Timestamp)
		if !ok {
			c.log.WarnWithFields("Skipping post with invalid timestamp", map[string]interface{}{
				"id": raw.ID,
			})
			continue
		}
		// rendered timelines are not strictly ordered, so out-of-window
		// posts are skipped rather than treated as a boundary
		if !c.window.Contains(ts) {
			continue
		}
		if acc.Has(raw.ID) {
			continue
		}

		post, err := collector.ConvertRaw(raw)
		if err != nil {
			c.log.WithError(err).WarnWithFields("Skipping malformed post", map[string]interface{}{
				"id": raw.ID,
			})
			continue
		}
		if acc.Add(post) {
			stats.RecordPost(ts, true)
			accepted++
		}
		if c.window.LimitReached(acc.Len()) {
			break
		}
	}
	return accepted
}

func (c *Collector) pace(ctx context.Context) error {
	if c.opts.Pacer != nil {
		if err := c.opts.Pacer.Wait(ctx); err != nil {
			return err
		}
	}
	return retry.Wait(ctx, retry.HumanDelay(c.opts.ScrollDelayMin, c.opts.ScrollDelayMax))
}
