package twitter

import (
	"context"
	"net/http"
	"strings"

	twitterscraper "github.com/imperatrona/twitter-scraper"
	"golang.org/x/time/rate"

	"xscraper/pkg/collector"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
)

// Client adapts the twitter-scraper library to the collector's Source
// interface and to the session manager's login surface. The wire protocol
// stays inside the library; everything leaving this package is a RawPost
// or a typed error.
type Client struct {
	scraper *twitterscraper.Scraper
	limiter *rate.Limiter
	log     logger.Logger
}

// Options tunes client pacing
type Options struct {
	// RequestsPerSecond paces outbound API calls; zero means the default
	RequestsPerSecond float64
	// Burst is the limiter burst size; zero means the default
	Burst int
	// StreamDelaySeconds spaces out the library's internal pagination
	StreamDelaySeconds int64
}

// NewClient creates a primary-source client with humanlike pacing
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 3
	}

	scraper := twitterscraper.New()
	scraper.SetSearchMode(twitterscraper.SearchLatest)
	if opts.StreamDelaySeconds > 0 {
		scraper.WithDelay(opts.StreamDelaySeconds)
	}

	return &Client{
		scraper: scraper,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

// Login performs a credential login against the source
func (c *Client) Login(ctx context.Context, username, password, email string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.scraper.Login(username, password, email); err != nil {
		return classifyError("login failed", err)
	}
	return nil
}

// IsLoggedIn probes whether the current session is usable
func (c *Client) IsLoggedIn() bool {
	return c.scraper.IsLoggedIn()
}

// Logout tears the session down
func (c *Client) Logout() error {
	if err := c.scraper.Logout(); err != nil {
		return classifyError("logout failed", err)
	}
	return nil
}

// Cookies exports the session cookie bundle for persistence
func (c *Client) Cookies() []*http.Cookie {
	return c.scraper.GetCookies()
}

// SetCookies restores a persisted session cookie bundle
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.scraper.SetCookies(cookies)
}

// SearchPosts streams raw posts for the query, newest first. Library
// errors surface in-band as typed StreamResult errors so the collector can
// distinguish throttling from transport failure.
func (c *Client) SearchPosts(ctx context.Context, query string, maxPosts int) <-chan collector.StreamResult {
	out := make(chan collector.StreamResult)

	go func() {
		defer close(out)

		if err := c.limiter.Wait(ctx); err != nil {
			return
		}

		for result := range c.scraper.SearchTweets(ctx, query, maxPosts) {
			var sr collector.StreamResult
			if result.Error != nil {
				sr = collector.StreamResult{Err: classifyError("search stream", result.Error)}
			} else {
				sr = collector.StreamResult{Raw: rawFromTweet(&result.Tweet)}
			}
			select {
			case out <- sr:
			case <-ctx.Done():
				return
			}
			if sr.Err != nil {
				return
			}
		}
	}()

	return out
}

// ReportedTotal returns the account's self-reported post count
func (c *Client) ReportedTotal(ctx context.Context, handle string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	profile, err := c.scraper.GetProfile(handle)
	if err != nil {
		return 0, classifyError("profile lookup", err)
	}
	return profile.TweetsCount, nil
}

// classifyError maps library failures onto the pipeline error taxonomy
func classifyError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return errs.Wrap(errs.ErrorTypeRateLimit, op, err)
	case strings.Contains(msg, "denied") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "password") || strings.Contains(msg, "login"):
		return errs.Wrap(errs.ErrorTypeAuth, op, err)
	default:
		return errs.Wrap(errs.ErrorTypeNetwork, op, err)
	}
}
