// Package browser drives a single headless Chrome session against the
// X web UI. It owns page structure knowledge (selectors, login flow,
// DOM extraction) so callers only deal in raw post records.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

const (
	loginURL   = "https://x.com/i/flow/login"
	searchBase = "https://x.com/search"

	defaultActionTimeout = 45 * time.Second
)

// Options configures the browser session.
type Options struct {
	// Headless runs Chrome without a visible window. Defaults to true
	// via DefaultOptions.
	Headless bool

	// UserAgent overrides the browser user agent when set.
	UserAgent string

	// ActionTimeout bounds each navigation or interaction step.
	ActionTimeout time.Duration
}

// DefaultOptions returns the standard headless configuration.
func DefaultOptions() Options {
	return Options{
		Headless:      true,
		ActionTimeout: defaultActionTimeout,
	}
}

// Session is one live browser automation context. Not safe for
// concurrent use; the fallback path runs a single worker.
type Session struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
	log         logger.Logger
}

// NewSession launches a browser and returns a ready session. The
// caller must Close it on every exit path.
func NewSession(parent context.Context, opts Options, log logger.Logger) (*Session, error) {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	// force the browser process up front so launch failures surface
	// here instead of inside the first page action
	if err := chromedp.Run(ctx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, errs.Wrap(errs.ErrorTypeFallback, "failed to launch browser", err)
	}

	return &Session{
		ctx:         ctx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		opts:        opts,
		log:         log.WithField("component", "browser"),
	}, nil
}

// Login walks the interactive login flow: username, password, and the
// verification challenge X sometimes inserts between them.
func (s *Session) Login(ctx context.Context, username, password, email string) error {
	s.log.Debug("Starting interactive login")

	err := s.run(ctx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`input[autocomplete="username"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[autocomplete="username"]`, username+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFallback, "login username step failed", err)
	}

	// X may challenge with an extra identity prompt before the
	// password field appears
	if visible := s.isVisible(ctx, `input[data-testid="ocfEnterTextTextInput"]`); visible {
		s.log.Debug("Answering identity challenge")
		if err := s.run(ctx,
			chromedp.SendKeys(`input[data-testid="ocfEnterTextTextInput"]`, email+kb.Enter, chromedp.ByQuery),
		); err != nil {
			return errs.Wrap(errs.ErrorTypeFallback, "login challenge step failed", err)
		}
	}

	err = s.run(ctx,
		chromedp.WaitVisible(`input[name="password"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, password+kb.Enter, chromedp.ByQuery),
		chromedp.WaitVisible(`a[data-testid="AppTabBar_Home_Link"]`, chromedp.ByQuery),
	)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFallback, "login password step failed", err)
	}

	s.log.Info("Browser login complete")
	return nil
}

// OpenSearch navigates to the live search results for query and waits
// for the first rendered post.
func (s *Session) OpenSearch(ctx context.Context, query string) error {
	params := url.Values{}
	params.Set("q", query)
	params.Set("src", "typed_query")
	params.Set("f", "live")

	err := s.run(ctx,
		chromedp.Navigate(searchBase+"?"+params.Encode()),
		chromedp.WaitVisible(`article[data-testid="tweet"]`, chromedp.ByQuery),
	)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFallback,
			fmt.Sprintf("failed to open search for %q", query), err)
	}
	return nil
}

// Scroll advances the viewport by most of one screen height.
func (s *Session) Scroll(ctx context.Context) error {
	err := s.run(ctx,
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight * 0.9)`, nil),
	)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeFallback, "scroll failed", err)
	}
	return nil
}

// ExtractVisiblePosts parses every post element currently rendered on
// the page into raw records.
func (s *Session) ExtractVisiblePosts(ctx context.Context) ([]models.RawPost, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFallback, "failed to read page", err)
	}
	return ParsePosts(html)
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() {
	if s.cancelCtx != nil {
		s.cancelCtx()
		s.cancelCtx = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.cancelAlloc = nil
	}
}

// run executes actions against the session's browser tab, bounded by
// the action timeout and the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.opts.ActionTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// isVisible reports whether selector matches a rendered element,
// polling briefly instead of waiting the full action timeout.
func (s *Session) isVisible(ctx context.Context, selector string) bool {
	probeCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(script, &count)); err != nil {
		return false
	}
	return count > 0
}
