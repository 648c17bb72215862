// Package session manages authenticated X sessions: restoring saved
// cookie bundles, logging in with stored credentials when restore
// fails, and persisting the resulting session for the next run.
package session

import (
	"context"
	"net/http"
	"time"

	"xscraper/pkg/auth"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/retry"
)

// LoginClient is the slice of the API client the session manager needs.
type LoginClient interface {
	Login(ctx context.Context, username, password, email string) error
	IsLoggedIn() bool
	Logout() error
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
}

// Options configures a session Manager.
type Options struct {
	// MaxLoginAttempts bounds the login retry loop. Zero means 5,
	// the same budget the pipeline grants transient stream failures.
	MaxLoginAttempts int

	// Backoff paces retries between failed login attempts.
	// Nil means retry.LoginBackoff with its default delay.
	Backoff retry.BackoffStrategy

	// PreLoginDelayMin/Max bound the randomized pause before each
	// login attempt. Both zero disables the pause.
	PreLoginDelayMin time.Duration
	PreLoginDelayMax time.Duration
}

// Manager authenticates an account against X, preferring a restored
// session over a fresh login.
type Manager struct {
	client LoginClient
	creds  *auth.Manager
	store  *Store
	opts   Options
	log    logger.Logger
}

// NewManager creates a session manager.
func NewManager(client LoginClient, creds *auth.Manager, store *Store, opts Options, log logger.Logger) *Manager {
	if opts.MaxLoginAttempts <= 0 {
		opts.MaxLoginAttempts = 5
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.LoginBackoff(0)
	}
	return &Manager{
		client: client,
		creds:  creds,
		store:  store,
		opts:   opts,
		log:    log.WithField("component", "session"),
	}
}

// Authenticate establishes an authenticated session for username.
// It returns true when a saved session was restored without logging in.
// An empty username selects the default stored account.
func (m *Manager) Authenticate(ctx context.Context, username string) (bool, error) {
	account, err := m.lookupAccount(username)
	if err != nil {
		return false, err
	}

	log := m.log.WithField("username", account.Username)

	if cookies := m.store.Load(account.Username); cookies != nil {
		m.client.SetCookies(cookies)
		if m.client.IsLoggedIn() {
			log.Info("Restored saved session")
			return true, nil
		}
		log.Debug("Saved session is stale, logging in")
		if err := m.store.Clear(account.Username); err != nil {
			log.WithError(err).Warn("Failed to clear stale session")
		}
	}

	if !account.Complete() {
		return false, errs.New(errs.ErrorTypeConfiguration,
			"account is missing username, password, or email")
	}

	var lastErr error
	for attempt := 1; attempt <= m.opts.MaxLoginAttempts; attempt++ {
		if err := m.preLoginPause(ctx); err != nil {
			return false, err
		}

		err := m.client.Login(ctx, account.Username, account.Password, account.Email)
		if err == nil && !m.client.IsLoggedIn() {
			// login call returned clean but the session probe disagrees,
			// treat it like any other failed attempt
			err = errs.New(errs.ErrorTypeNetwork, "login returned no usable session")
		}
		if err == nil {
			log.InfoWithFields("Logged in", map[string]interface{}{
				"attempt": attempt,
			})
			if err := m.store.Save(account.Username, m.client.Cookies()); err != nil {
				log.WithError(err).Warn("Failed to persist session")
			}
			return false, nil
		}
		lastErr = err

		if errs.Is(err, errs.ErrorTypeAuth) {
			// bad credentials will not improve with retries
			return false, err
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if attempt < m.opts.MaxLoginAttempts {
			delay := m.opts.Backoff.NextDelay(attempt)
			log.WarnWithFields("Login failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
			})
			if err := retry.Wait(ctx, delay); err != nil {
				return false, err
			}
		}
	}

	return false, errs.Wrap(errs.ErrorTypeAuth, "login failed after retries", lastErr)
}

// Logout ends the live session and removes the saved cookie bundle.
func (m *Manager) Logout(username string) error {
	if err := m.store.Clear(username); err != nil {
		m.log.WithError(err).Warn("Failed to remove saved session")
	}
	if m.client.IsLoggedIn() {
		return m.client.Logout()
	}
	return nil
}

func (m *Manager) lookupAccount(username string) (*auth.Account, error) {
	var account *auth.Account
	var err error
	if username == "" {
		account, err = m.creds.RetrieveDefault()
	} else {
		account, err = m.creds.Retrieve(username)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfiguration, "no credentials available", err)
	}
	return account, nil
}

func (m *Manager) preLoginPause(ctx context.Context) error {
	if m.opts.PreLoginDelayMax <= 0 {
		return nil
	}
	return retry.Wait(ctx, retry.HumanDelay(m.opts.PreLoginDelayMin, m.opts.PreLoginDelayMax))
}
