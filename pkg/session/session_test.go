package session

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/auth"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/retry"
)

type fakeClient struct {
	loggedIn     bool
	cookies      []*http.Cookie
	loginErrs    []error
	loginCalls   int
	validCookies []*http.Cookie
	// probeDead keeps IsLoggedIn false even after a clean Login call
	probeDead bool
}

func (f *fakeClient) Login(ctx context.Context, username, password, email string) error {
	f.loginCalls++
	if len(f.loginErrs) > 0 {
		err := f.loginErrs[0]
		f.loginErrs = f.loginErrs[1:]
		if err != nil {
			return err
		}
	}
	if !f.probeDead {
		f.loggedIn = true
	}
	f.cookies = []*http.Cookie{{Name: "auth_token", Value: "fresh"}}
	return nil
}

func (f *fakeClient) IsLoggedIn() bool { return f.loggedIn }

func (f *fakeClient) Logout() error {
	f.loggedIn = false
	return nil
}

func (f *fakeClient) Cookies() []*http.Cookie { return f.cookies }

func (f *fakeClient) SetCookies(cookies []*http.Cookie) {
	f.cookies = cookies
	// only a bundle matching validCookies counts as a live session
	f.loggedIn = len(f.validCookies) > 0 &&
		len(cookies) == len(f.validCookies) &&
		cookies[0].Value == f.validCookies[0].Value
}

func newTestManager(t *testing.T, client *fakeClient, account *auth.Account) (*Manager, *Store) {
	t.Helper()

	mock := auth.NewMockStore()
	if account != nil {
		require.NoError(t, mock.Store(account))
	}
	creds := auth.NewManagerWithStores(mock)

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	opts := Options{
		MaxLoginAttempts: 3,
		Backoff:          &retry.ConstantBackoff{Delay: time.Millisecond},
	}
	return NewManager(client, creds, store, opts, logger.NewTestLogger()), store
}

func completeAccount() *auth.Account {
	return &auth.Account{
		Username: "alice",
		Password: "hunter2!",
		Email:    "alice@example.com",
	}
}

func TestNewManagerDefaultsMatchStreamRetryBudget(t *testing.T) {
	manager := NewManager(&fakeClient{}, auth.NewManagerWithStores(auth.NewMockStore()),
		nil, Options{}, logger.NewTestLogger())

	assert.Equal(t, 5, manager.opts.MaxLoginAttempts)
}

func TestAuthenticateProbeFailureCountsAsFailedAttempt(t *testing.T) {
	client := &fakeClient{probeDead: true}
	manager, store := newTestManager(t, client, completeAccount())

	restored, err := manager.Authenticate(context.Background(), "alice")
	require.Error(t, err)
	assert.False(t, restored)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Equal(t, 3, client.loginCalls, "each dead probe should burn one attempt")
	assert.Nil(t, store.Load("alice"), "a session that fails the probe must not be persisted")
}

func TestAuthenticateRestoresSavedSession(t *testing.T) {
	saved := []*http.Cookie{{Name: "auth_token", Value: "saved"}}
	client := &fakeClient{validCookies: saved}
	manager, store := newTestManager(t, client, completeAccount())
	require.NoError(t, store.Save("alice", saved))

	restored, err := manager.Authenticate(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Zero(t, client.loginCalls, "restore path must not log in")
}

func TestAuthenticateFreshLoginPersistsCookies(t *testing.T) {
	client := &fakeClient{}
	manager, store := newTestManager(t, client, completeAccount())

	restored, err := manager.Authenticate(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, 1, client.loginCalls)

	cookies := store.Load("alice")
	require.NotNil(t, cookies)
	assert.Equal(t, "fresh", cookies[0].Value)
}

func TestAuthenticateStaleSessionFallsThroughToLogin(t *testing.T) {
	client := &fakeClient{} // no validCookies, so any restore probe fails
	manager, store := newTestManager(t, client, completeAccount())
	require.NoError(t, store.Save("alice", []*http.Cookie{{Name: "auth_token", Value: "stale"}}))

	restored, err := manager.Authenticate(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, 1, client.loginCalls)
}

func TestAuthenticateRetriesTransientFailures(t *testing.T) {
	client := &fakeClient{
		loginErrs: []error{
			errs.New(errs.ErrorTypeNetwork, "connection reset"),
			errs.New(errs.ErrorTypeNetwork, "connection reset"),
		},
	}
	manager, _ := newTestManager(t, client, completeAccount())

	restored, err := manager.Authenticate(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, 3, client.loginCalls)
}

func TestAuthenticateStopsOnAuthError(t *testing.T) {
	client := &fakeClient{
		loginErrs: []error{
			errs.New(errs.ErrorTypeAuth, "wrong password"),
		},
	}
	manager, _ := newTestManager(t, client, completeAccount())

	_, err := manager.Authenticate(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Equal(t, 1, client.loginCalls, "credential errors must not retry")
}

func TestAuthenticateExhaustedAttempts(t *testing.T) {
	client := &fakeClient{
		loginErrs: []error{
			errs.New(errs.ErrorTypeNetwork, "timeout"),
			errs.New(errs.ErrorTypeNetwork, "timeout"),
			errs.New(errs.ErrorTypeNetwork, "timeout"),
		},
	}
	manager, _ := newTestManager(t, client, completeAccount())

	_, err := manager.Authenticate(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAuth))
	assert.Equal(t, 3, client.loginCalls)
}

func TestAuthenticateIncompleteCredentials(t *testing.T) {
	client := &fakeClient{}
	account := &auth.Account{Username: "alice", Password: "hunter2!"} // no email
	manager, _ := newTestManager(t, client, account)

	_, err := manager.Authenticate(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeConfiguration))
	assert.Zero(t, client.loginCalls)
}

func TestAuthenticateNoCredentials(t *testing.T) {
	client := &fakeClient{}
	manager, _ := newTestManager(t, client, nil)

	_, err := manager.Authenticate(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeConfiguration))
}

func TestLogoutClearsSavedSession(t *testing.T) {
	saved := []*http.Cookie{{Name: "auth_token", Value: "saved"}}
	client := &fakeClient{validCookies: saved, loggedIn: true}
	manager, store := newTestManager(t, client, completeAccount())
	require.NoError(t, store.Save("alice", saved))

	require.NoError(t, manager.Logout("alice"))
	assert.False(t, client.loggedIn)
	assert.Nil(t, store.Load("alice"))
}

func TestStoreLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("alice", []*http.Cookie{{Name: "a", Value: "b"}}))
	// overwrite with garbage
	path := store.path("alice")
	require.NoError(t, writeFile(path, "{not json"))

	assert.Nil(t, store.Load("alice"))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
