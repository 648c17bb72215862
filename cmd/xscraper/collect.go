package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"xscraper/internal/metrics"
	"xscraper/internal/store"
	"xscraper/pkg/auth"
	"xscraper/pkg/browser"
	"xscraper/pkg/collector"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/export"
	"xscraper/pkg/fallback"
	"xscraper/pkg/logger"
	"xscraper/pkg/pipeline"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/session"
	"xscraper/pkg/twitter"
)

var (
	// Collect command flags
	sinceFlag    string
	untilFlag    string
	windowHours  int
	limitFlag    int
	maxTweets    int
	useFallback  bool
	headless     bool
	accountName  string
	outputPath   string
	metricsAddr  string
	errorLogPath string
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect <handle>",
	Short: "Collect posts from an X account within a time window",
	Long: `Collect posts authored by an X account over a bounded time window.

Collection runs against the GraphQL search API first. When the API
keeps throttling, or login fails outright, the run falls back to a
headless browser session that scrolls the live search timeline.

Valid login credentials must be configured either through:
  - Stored credentials (use 'xscraper auth login' to store)
  - Environment variables (XSCRAPER_USERNAME, XSCRAPER_PASSWORD, XSCRAPER_EMAIL)
  - Configuration file

The merged, deduplicated result is written as a JSON engagement report.`,
	Example: `  # Last 24 hours of posts
  xscraper collect nasa

  # Explicit window with a result cap
  xscraper collect nasa --since 2026-08-01 --until 2026-08-15 --limit 500

  # Use a specific stored login account
  xscraper collect nasa --account myaccount

  # API only, no browser fallback
  xscraper collect nasa --fallback=false

  # Expose Prometheus metrics while collecting
  xscraper collect nasa --metrics-addr :9190`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
	// runtime failures already carry context, dumping usage just buries them
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVar(&sinceFlag, "since", "", "window start (ISO-8601, date, or unix epoch)")
	collectCmd.Flags().StringVar(&untilFlag, "until", "", "window end (ISO-8601, date, or unix epoch)")
	collectCmd.Flags().IntVar(&windowHours, "window-hours", 24, "window size in hours when --since is not given")
	collectCmd.Flags().IntVarP(&limitFlag, "limit", "l", 0, "stop after this many unique posts (0 = unlimited)")
	collectCmd.Flags().IntVar(&maxTweets, "max-tweets", 0, "cap on raw posts scanned, duplicates included (0 = unlimited)")
	collectCmd.Flags().BoolVar(&useFallback, "fallback", true, "enable the browser fallback path")
	collectCmd.Flags().BoolVar(&headless, "headless", true, "run the fallback browser headless")
	collectCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored login account")
	collectCmd.Flags().StringVarP(&outputPath, "output", "o", "", "report output path (default: report.json)")
	collectCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address (empty = disabled)")
	collectCmd.Flags().StringVar(&errorLogPath, "error-log", "errors.jsonl", "append-only JSONL error log path")
}

func runCollect(cmd *cobra.Command, args []string) error {
	handle := strings.TrimSpace(args[0])

	// Build flags map from command line
	flags := make(map[string]interface{})
	flags["handle"] = handle
	if sinceFlag != "" {
		flags["since"] = sinceFlag
	}
	if untilFlag != "" {
		flags["until"] = untilFlag
	}
	if windowHours != 24 {
		flags["window-hours"] = windowHours
	}
	if limitFlag > 0 {
		flags["limit"] = limitFlag
	}
	if maxTweets > 0 {
		flags["max-tweets"] = maxTweets
	}
	if cmd.Flags().Changed("fallback") {
		flags["fallback"] = useFallback
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	if outputPath != "" {
		flags["output"] = outputPath
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeConfiguration, "failed to load configuration", err)
	}

	if err := logger.Initialize(&logger.Options{Level: cfg.Logging.Level, File: cfg.Logging.File}); err != nil {
		return errs.Wrap(errs.ErrorTypeConfiguration, "failed to initialize logger", err)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window, err := cfg.Window.BuildWindow(time.Now())
	if err != nil {
		return failRun(log, err)
	}

	result, err := collect(ctx, cfg, window, log)
	if err != nil {
		return failRun(log, err)
	}

	return writeOutputs(cfg, window, result, log)
}

// collect wires the run and executes the pipeline.
func collect(ctx context.Context, cfg *config.Config, window collector.Window, log logger.Logger) (*pipeline.Result, error) {
	creds, err := auth.NewManager()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfiguration, "failed to initialize credential manager", err)
	}

	client := twitter.NewClient(twitter.Options{
		RequestsPerSecond:  cfg.RateLimit.RequestsPerSecond,
		Burst:              cfg.RateLimit.BurstSize,
		StreamDelaySeconds: int64(cfg.RateLimit.StreamDelaySeconds),
	}, log)

	sessionStore, err := session.NewStore(cfg.Session.DataDir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfiguration, "failed to open session store", err)
	}
	sessions := session.NewManager(client, creds, sessionStore, session.Options{
		MaxLoginAttempts: cfg.Session.MaxLoginAttempts,
	}, log)

	sink, err := pipeline.NewErrorLog(errorLogPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfiguration, "failed to open error log", err)
	}

	var runner pipeline.FallbackRunner
	fallbackEnabled := cfg.Fallback.Enabled
	if fallbackEnabled {
		account, lookupErr := lookupLoginAccount(creds, cfg.Account.Username)
		if lookupErr != nil {
			log.WithError(lookupErr).Warn("no stored credentials for browser fallback, disabling it")
			fallbackEnabled = false
		} else {
			runner = newLazyFallback(ctx, cfg, account, window, log)
		}
	}

	orch, err := pipeline.New(sessions, client, runner, sink, pipeline.Options{
		Handle:             cfg.TargetHandle(),
		Username:           cfg.Account.Username,
		Window:             window,
		RateLimitThreshold: cfg.RateLimit.EscalateThreshold,
		MaxNetworkRetries:  cfg.RateLimit.MaxRetries,
		FallbackEnabled:    fallbackEnabled,
	}, log)
	if err != nil {
		return nil, err
	}
	if lazy, ok := runner.(*lazyFallback); ok {
		orch.OnTeardown(lazy.Close)
	}

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.ListenAddr)
	}

	start := time.Now()
	result, err := orch.Run(ctx)
	recordRunMetrics(start, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// writeOutputs builds the report and persists it, plus the optional archive.
func writeOutputs(cfg *config.Config, window collector.Window, result *pipeline.Result, log logger.Logger) error {
	handle := cfg.TargetHandle()

	account := export.BuildAccount(handle, result.Posts, cfg.Export.TopTweets)
	report := export.BuildReport(cfg.Window.WindowHours, result.Stats, account)
	if err := export.WriteJSON(cfg.Export.OutputPath, report); err != nil {
		return failRun(log, errs.Wrap(errs.ErrorTypeRecord, "failed to write report", err))
	}

	if cfg.Archive.Enabled {
		if err := archiveRun(cfg, handle, result, log); err != nil {
			// The report is already on disk, an archive failure is not fatal
			log.WithError(err).Warn("failed to archive run")
		}
	}

	stats := result.Stats
	fmt.Printf("Collected %d unique posts for @%s (%d via fallback, %d rate limit hits)\n",
		stats.UniquePosts, handle, stats.FallbackPosts, stats.RateLimitHits)
	fmt.Printf("Report written to %s\n", cfg.Export.OutputPath)
	return nil
}

func archiveRun(cfg *config.Config, handle string, result *pipeline.Result, log logger.Logger) error {
	archive, err := store.Open(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer archive.Close()

	// The run context may already be cancelled by the time we persist
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inserted, err := archive.SavePosts(ctx, result.Stats.RunID, result.Posts)
	if err != nil {
		return err
	}
	if err := archive.SaveRun(ctx, handle, result.Stats); err != nil {
		return err
	}
	log.InfoWithFields("run archived", map[string]interface{}{
		"path":     cfg.Archive.Path,
		"inserted": inserted,
	})
	return nil
}

func recordRunMetrics(start time.Time, result *pipeline.Result, err error) {
	metrics.CollectionRuns.Inc()
	metrics.ObserveRunDuration(start)
	if err != nil {
		metrics.CollectionErrors.Inc()
	}
	if result == nil {
		return
	}
	stats := result.Stats
	metrics.AddPosts("primary", stats.UniquePosts-stats.FallbackPosts)
	metrics.AddPosts("fallback", stats.FallbackPosts)
	metrics.RateLimitHits.Add(float64(stats.RateLimitHits))
	if stats.FallbackEngaged {
		metrics.FallbackRuns.Inc()
	}
}

func lookupLoginAccount(creds *auth.Manager, username string) (*auth.Account, error) {
	if username != "" {
		return creds.Retrieve(username)
	}
	return creds.RetrieveDefault()
}

// failRun logs the failure and hands the typed error back to Execute,
// which maps its type to the process exit code after all defers ran.
func failRun(log logger.Logger, err error) error {
	log.WithError(err).WithField("error_type", string(errs.TypeOf(err))).Error("run failed")
	return err
}

// lazyFallback defers browser startup until the pipeline actually
// escalates, so API-only runs never launch Chrome.
type lazyFallback struct {
	ctx     context.Context
	cfg     *config.Config
	account *auth.Account
	window  collector.Window
	log     logger.Logger

	once      sync.Once
	buildErr  error
	collector *fallback.Collector
	browser   *browser.Session
}

func newLazyFallback(ctx context.Context, cfg *config.Config, account *auth.Account, window collector.Window, log logger.Logger) *lazyFallback {
	return &lazyFallback{ctx: ctx, cfg: cfg, account: account, window: window, log: log}
}

func (l *lazyFallback) Collect(ctx context.Context, handle string, acc *collector.Accumulator, stats *collector.Stats) error {
	l.once.Do(func() {
		sess, err := browser.NewSession(l.ctx, browser.Options{
			Headless:  l.cfg.Fallback.Headless,
			UserAgent: l.cfg.Account.UserAgent,
		}, l.log)
		if err != nil {
			l.buildErr = err
			return
		}
		l.browser = sess
		l.collector = fallback.NewCollector(sess, l.account, l.window, fallback.Options{
			MaxSessionDuration: time.Duration(l.cfg.Fallback.MaxSessionMinutes) * time.Minute,
			ScrollDelayMin:     time.Duration(l.cfg.Fallback.ScrollDelayMinMs) * time.Millisecond,
			ScrollDelayMax:     time.Duration(l.cfg.Fallback.ScrollDelayMaxMs) * time.Millisecond,
			Pacer:              scrollPacer(l.cfg),
		}, l.log)
	})
	if l.buildErr != nil {
		return l.buildErr
	}
	return l.collector.Collect(ctx, handle, acc, stats)
}

// scrollPacer caps scroll cadence with the same rate the primary client
// uses for API calls, on top of the randomized per-scroll delay.
func scrollPacer(cfg *config.Config) ratelimit.Limiter {
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 3
	}
	return ratelimit.NewTokenBucket(burst, time.Duration(float64(time.Second)/rps))
}

func (l *lazyFallback) Close() {
	if l.browser != nil {
		l.browser.Close()
	}
}
