// Package pipeline sequences one collection run: authenticate, drain
// the primary stream, escalate to the browser fallback when the stream
// is throttled or thin, and export the merged result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"xscraper/pkg/collector"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
	"xscraper/pkg/retry"
)

// State is the orchestrator's current phase.
type State string

const (
	StateInit               State = "INIT"
	StateAuthenticating     State = "AUTHENTICATING"
	StateCollectingPrimary  State = "COLLECTING_PRIMARY"
	StateRateLimited        State = "RATE_LIMITED"
	StateCollectingFallback State = "COLLECTING_FALLBACK"
	StateMerging            State = "MERGING"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// Authenticator establishes a session for the account.
// session.Manager satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, username string) (restored bool, err error)
}

// FallbackRunner executes one browser collection pass into the shared
// accumulator. fallback.Collector satisfies it.
type FallbackRunner interface {
	Collect(ctx context.Context, handle string, acc *collector.Accumulator, stats *collector.Stats) error
}

// ErrorSink receives one structured record per failure event.
type ErrorSink interface {
	Record(event ErrorEvent) error
}

const (
	defaultRateLimitThreshold = 3
	defaultMaxNetworkRetries  = 5

	// supplementalFraction is the coverage below which a fallback pass
	// supplements a normally completed primary pass. The source's
	// reported total is unreliable for long histories, so this is a
	// heuristic, not a guarantee.
	supplementalFraction = 0.8
)

// Options configures an Orchestrator run.
type Options struct {
	// Handle is the account to collect, without the @ prefix.
	Handle string

	// Username selects the stored credential account. Empty picks the
	// default account.
	Username string

	// Window bounds the collection.
	Window collector.Window

	// RateLimitThreshold is how many throttle signals the primary pass
	// absorbs before escalating to the fallback. Zero means 3.
	RateLimitThreshold int

	// MaxNetworkRetries bounds primary-stream retry on transient
	// failures. Zero means 5.
	MaxNetworkRetries int

	// FallbackEnabled gates every fallback transition.
	FallbackEnabled bool

	// RateLimitBackoff overrides the throttle recovery policy.
	// Nil means retry.RateLimitBackoff.
	RateLimitBackoff retry.BackoffStrategy

	// NetworkBackoff overrides the transient-failure retry policy.
	// Nil means retry.LoginBackoff with its default delay.
	NetworkBackoff retry.BackoffStrategy
}

// Result is the finished run: the merged ordered posts and the final
// statistics snapshot.
type Result struct {
	Posts []models.Post
	Stats collector.Stats
}

// Orchestrator is the top-level state machine for one run.
type Orchestrator struct {
	authenticator Authenticator
	source        collector.Source
	fallback      FallbackRunner
	sink          ErrorSink
	opts          Options
	log           logger.Logger

	state State
	runID string

	// teardown hooks run once, on every exit path, LIFO
	teardowns []func()
}

// New creates an orchestrator. fallbackRunner may be nil when
// Options.FallbackEnabled is false; sink may be nil to discard failure
// events.
func New(authenticator Authenticator, source collector.Source, fallbackRunner FallbackRunner, sink ErrorSink, opts Options, log logger.Logger) (*Orchestrator, error) {
	if opts.Handle == "" {
		return nil, errs.New(errs.ErrorTypeConfiguration, "account handle is required")
	}
	if opts.FallbackEnabled && fallbackRunner == nil {
		return nil, errs.New(errs.ErrorTypeConfiguration, "fallback enabled but no fallback runner provided")
	}
	if opts.RateLimitThreshold <= 0 {
		opts.RateLimitThreshold = defaultRateLimitThreshold
	}
	if opts.MaxNetworkRetries <= 0 {
		opts.MaxNetworkRetries = defaultMaxNetworkRetries
	}
	if opts.RateLimitBackoff == nil {
		opts.RateLimitBackoff = retry.RateLimitBackoff()
	}
	if opts.NetworkBackoff == nil {
		opts.NetworkBackoff = retry.LoginBackoff(0)
	}

	runID := ulid.Make().String()
	return &Orchestrator{
		authenticator: authenticator,
		source:        source,
		fallback:      fallbackRunner,
		sink:          sink,
		opts:          opts,
		log: log.WithFields(map[string]interface{}{
			"component": "pipeline",
			"run_id":    runID,
			"handle":    opts.Handle,
		}),
		state: StateInit,
		runID: runID,
	}, nil
}

// RunID returns this run's identifier.
func (o *Orchestrator) RunID() string { return o.runID }

// State returns the current phase.
func (o *Orchestrator) State() State { return o.state }

// OnTeardown registers a hook that runs when Run exits, on every path.
func (o *Orchestrator) OnTeardown(fn func()) {
	o.teardowns = append(o.teardowns, fn)
}

// Run executes the full state machine and returns the merged result.
// The returned error, when non-nil, is always a typed pipeline error.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	defer o.runTeardowns()

	acc := collector.NewAccumulator()
	stats := collector.NewStats(o.runID)

	result, err := o.run(ctx, acc, stats)
	if err != nil {
		o.setState(StateFailed)
		o.reportFailure(err, stats)
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, acc *collector.Accumulator, stats *collector.Stats) (*Result, error) {
	o.setState(StateAuthenticating)

	skipPrimary := false
	restored, err := o.authenticator.Authenticate(ctx, o.opts.Username)
	switch {
	case err == nil:
		o.log.InfoWithFields("Session established", map[string]interface{}{
			"restored": restored,
		})
	case errs.Is(err, errs.ErrorTypeConfiguration):
		// missing credentials are fatal before any network attempt,
		// with or without a fallback path
		return nil, err
	case o.opts.FallbackEnabled:
		o.log.WithError(err).Warn("Session failed, continuing on fallback path only")
		o.reportFailure(err, stats)
		skipPrimary = true
	default:
		return nil, err
	}

	needFallback := skipPrimary
	boundarySatisfied := false

	if !skipPrimary {
		escalated, satisfied, err := o.collectPrimary(ctx, acc, stats)
		if err != nil {
			return nil, err
		}
		boundarySatisfied = satisfied
		if escalated {
			needFallback = true
		} else if !satisfied && o.opts.FallbackEnabled && o.belowReportedTotal(ctx, acc.Len()) {
			o.log.InfoWithFields("Primary coverage below reported total, running supplemental pass", map[string]interface{}{
				"unique": acc.Len(),
			})
			needFallback = true
		}
	}

	if needFallback && o.opts.FallbackEnabled && !boundarySatisfied {
		o.setState(StateCollectingFallback)
		if err := o.fallback.Collect(ctx, o.opts.Handle, acc, stats); err != nil {
			if ctx.Err() != nil {
				return nil, errs.Wrap(errs.ErrorTypePipeline, "run cancelled", ctx.Err())
			}
			// fallback failures never discard what was already collected
			o.log.WithError(err).Warn("Fallback pass failed")
			o.reportFailure(err, stats)
		}
	}

	o.setState(StateMerging)
	stats.Finish()
	posts := acc.Posts()

	o.setState(StateDone)
	snap := stats.Snapshot()
	o.log.InfoWithFields("Run complete", snap.Fields())
	return &Result{Posts: posts, Stats: snap}, nil
}

// collectPrimary drains the primary stream, absorbing rate-limit
// signals with backoff until the escalation threshold, and retrying
// transient stream failures up to the retry budget. It reports whether
// the run should escalate to the fallback and whether the limit or the
// time boundary already satisfied the window.
func (o *Orchestrator) collectPrimary(ctx context.Context, acc *collector.Accumulator, stats *collector.Stats) (escalate, boundarySatisfied bool, err error) {
	o.setState(StateCollectingPrimary)
	primary := collector.NewPrimary(o.source, o.opts.Window, o.log)

	rateLimitSignals := 0
	networkRetries := 0

	for {
		reason, err := primary.Collect(ctx, o.opts.Handle, acc, stats)
		if err != nil {
			if reason == collector.StopCancelled {
				return false, false, errs.Wrap(errs.ErrorTypePipeline, "run cancelled", err)
			}
			networkRetries++
			stats.RecordRetry()
			if networkRetries >= o.opts.MaxNetworkRetries {
				if o.opts.FallbackEnabled {
					o.log.WithError(err).Warn("Primary stream failed repeatedly, escalating to fallback")
					o.reportFailure(err, stats)
					return true, false, nil
				}
				return false, false, err
			}
			delay := o.opts.NetworkBackoff.NextDelay(networkRetries)
			o.log.WithError(err).WarnWithFields("Primary stream failed, retrying", map[string]interface{}{
				"attempt": networkRetries,
				"delay":   delay.String(),
			})
			if werr := retry.Wait(ctx, delay); werr != nil {
				return false, false, errs.Wrap(errs.ErrorTypePipeline, "run cancelled", werr)
			}
			continue
		}

		switch reason {
		case collector.StopRateLimited:
			rateLimitSignals++
			if o.opts.FallbackEnabled && rateLimitSignals >= o.opts.RateLimitThreshold {
				o.log.WarnWithFields("Rate limit threshold reached, escalating to fallback", map[string]interface{}{
					"signals": rateLimitSignals,
				})
				return true, false, nil
			}
			o.setState(StateRateLimited)
			delay := o.opts.RateLimitBackoff.NextDelay(rateLimitSignals)
			o.log.WarnWithFields("Rate limited, backing off", map[string]interface{}{
				"signal": rateLimitSignals,
				"delay":  delay.String(),
			})
			if werr := retry.Wait(ctx, delay); werr != nil {
				return false, false, errs.Wrap(errs.ErrorTypePipeline, "run cancelled", werr)
			}
			o.setState(StateCollectingPrimary)
			continue

		case collector.StopLimit, collector.StopTimeBoundary:
			return false, true, nil

		default:
			// exhausted or stagnated: a normal completion that may
			// still warrant a supplemental pass
			return false, false, nil
		}
	}
}

// belowReportedTotal checks the supplemental-pass heuristic against the
// source's claimed post count.
func (o *Orchestrator) belowReportedTotal(ctx context.Context, unique int) bool {
	total, err := o.source.ReportedTotal(ctx, o.opts.Handle)
	if err != nil || total <= 0 {
		return false
	}
	return float64(unique) < supplementalFraction*float64(total)
}

func (o *Orchestrator) setState(next State) {
	o.log.DebugWithFields("State transition", map[string]interface{}{
		"from": string(o.state),
		"to":   string(next),
	})
	o.state = next
}

func (o *Orchestrator) reportFailure(err error, stats *collector.Stats) {
	if o.sink == nil {
		return
	}
	event := ErrorEvent{
		Timestamp: time.Now().UTC(),
		RunID:     o.runID,
		Kind:      string(errs.TypeOf(err)),
		Context:   fmt.Sprintf("handle=%s state=%s: %v", o.opts.Handle, o.state, err),
		Stats:     stats.Snapshot(),
	}
	if serr := o.sink.Record(event); serr != nil {
		o.log.WithError(serr).Warn("Failed to record error event")
	}
}

func (o *Orchestrator) runTeardowns() {
	for i := len(o.teardowns) - 1; i >= 0; i-- {
		o.teardowns[i]()
	}
}
