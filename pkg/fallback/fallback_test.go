package fallback

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/auth"
	"xscraper/pkg/collector"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

// fakeDriver replays one extract batch per scroll iteration and keeps
// returning the last batch once the script runs out, imitating a page
// that stops yielding new content.
type fakeDriver struct {
	batches    [][]models.RawPost
	cursor     int
	loginCalls int
	loginErr   error
	extractErr error
	scrollErr  error
	scrolls    int
	closed     bool
}

func (f *fakeDriver) Login(ctx context.Context, username, password, email string) error {
	f.loginCalls++
	return f.loginErr
}

func (f *fakeDriver) OpenSearch(ctx context.Context, query string) error { return nil }

func (f *fakeDriver) Scroll(ctx context.Context) error {
	f.scrolls++
	return f.scrollErr
}

func (f *fakeDriver) ExtractVisiblePosts(ctx context.Context) ([]models.RawPost, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[f.cursor]
	if f.cursor < len(f.batches)-1 {
		f.cursor++
	}
	return batch, nil
}

func (f *fakeDriver) Close() { f.closed = true }

func rawAt(id string, ts int64) models.RawPost {
	return models.RawPost{
		ID:        id,
		Text:      "post " + id,
		Username:  "finhub",
		Timestamp: ts,
	}
}

func fastOptions() Options {
	return Options{
		ScrollDelayMin: time.Microsecond,
		ScrollDelayMax: 2 * time.Microsecond,
	}
}

func testAccount() *auth.Account {
	return &auth.Account{Username: "alice", Password: "p", Email: "a@b.c"}
}

func newTestCollector(driver *fakeDriver, window collector.Window, opts Options) *Collector {
	return NewCollector(driver, testAccount(), window, opts, logger.NewTestLogger())
}

// countingPacer satisfies ratelimit.Limiter and records Wait calls.
type countingPacer struct {
	waits int
}

func (p *countingPacer) Allow() bool { return true }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

func (p *countingPacer) Reset() {}

func TestCollectWaitsOnPacerEveryScroll(t *testing.T) {
	base := int64(1_700_000_000_000)
	driver := &fakeDriver{
		batches: [][]models.RawPost{
			{rawAt("1", base)},
			{rawAt("2", base + 1000)},
			{rawAt("2", base + 1000)},
		},
	}
	pacer := &countingPacer{}
	opts := fastOptions()
	opts.Pacer = pacer
	c := newTestCollector(driver, collector.Window{}, opts)

	acc := collector.NewAccumulator()
	err := c.Collect(context.Background(), "finhub", acc, collector.NewStats("run-p"))

	require.NoError(t, err)
	assert.Equal(t, 2, acc.Len())
	assert.Equal(t, driver.scrolls, pacer.waits, "every scroll iteration should pass through the pacer")
	assert.Positive(t, pacer.waits)
}

func TestCollectStopsAfterStagnantScrolls(t *testing.T) {
	base := int64(1_700_000_000_000)
	driver := &fakeDriver{
		batches: [][]models.RawPost{
			{rawAt("1", base), rawAt("2", base+1000)},
			{rawAt("2", base+1000), rawAt("3", base+2000)},
			// page stops producing anything new
			{rawAt("1", base), rawAt("3", base+2000)},
		},
	}
	c := newTestCollector(driver, collector.Window{}, fastOptions())

	acc := collector.NewAccumulator()
	stats := collector.NewStats("run-1")
	err := c.Collect(context.Background(), "finhub", acc, stats)

	require.NoError(t, err)
	assert.Equal(t, 3, acc.Len())
	assert.Equal(t, 1, driver.loginCalls)
	snap := stats.Snapshot()
	assert.True(t, snap.FallbackEngaged)
	assert.Equal(t, 3, snap.FallbackPosts)
	// two productive iterations, then three stagnant ones
	assert.Equal(t, 4, driver.scrolls)
}

func TestCollectRespectsLimit(t *testing.T) {
	base := int64(1_700_000_000_000)
	batch := make([]models.RawPost, 10)
	for i := range batch {
		batch[i] = rawAt(fmt.Sprintf("id-%d", i), base+int64(i)*1000)
	}
	driver := &fakeDriver{batches: [][]models.RawPost{batch}}
	window := collector.NewWindow(0, 0, 4, 0)
	c := newTestCollector(driver, window, fastOptions())

	acc := collector.NewAccumulator()
	err := c.Collect(context.Background(), "finhub", acc, collector.NewStats("run-1"))

	require.NoError(t, err)
	assert.Equal(t, 4, acc.Len())
	assert.Zero(t, driver.scrolls, "limit hit on the first extract pass")
}

func TestCollectFiltersWindow(t *testing.T) {
	since := int64(1_700_000_000_000)
	until := since + 10_000
	driver := &fakeDriver{
		batches: [][]models.RawPost{{
			rawAt("old", since-1000),
			rawAt("in-1", since+1000),
			rawAt("new", until+1000),
			rawAt("in-2", since+2000),
		}},
	}
	c := newTestCollector(driver, collector.NewWindow(since, until, 0, 0), fastOptions())

	acc := collector.NewAccumulator()
	err := c.Collect(context.Background(), "finhub", acc, collector.NewStats("run-1"))

	require.NoError(t, err)
	require.Equal(t, 2, acc.Len())
	posts := acc.Posts()
	assert.Equal(t, "in-1", posts[0].ID)
	assert.Equal(t, "in-2", posts[1].ID)
}

func TestCollectSkipsIdsAlreadyCollected(t *testing.T) {
	base := int64(1_700_000_000_000)
	driver := &fakeDriver{
		batches: [][]models.RawPost{{rawAt("123", base), rawAt("456", base+1000)}},
	}
	c := newTestCollector(driver, collector.Window{}, fastOptions())

	// "123" came from the primary pass
	acc := collector.NewAccumulator()
	primary, err := collector.ConvertRaw(rawAt("123", base))
	require.NoError(t, err)
	require.True(t, acc.Add(primary))

	stats := collector.NewStats("run-1")
	require.NoError(t, c.Collect(context.Background(), "finhub", acc, stats))

	assert.Equal(t, 2, acc.Len())
	assert.Equal(t, 1, stats.Snapshot().FallbackPosts, "only the unseen id counts as a fallback post")
}

func TestCollectSessionDurationCeiling(t *testing.T) {
	base := int64(1_700_000_000_000)
	driver := &fakeDriver{
		batches: [][]models.RawPost{{rawAt("1", base)}},
	}
	c := newTestCollector(driver, collector.Window{}, fastOptions())

	start := time.Now()
	calls := 0
	c.now = func() time.Time {
		calls++
		if calls > 2 {
			return start.Add(time.Hour)
		}
		return start
	}

	acc := collector.NewAccumulator()
	err := c.Collect(context.Background(), "finhub", acc, collector.NewStats("run-1"))

	require.NoError(t, err)
	assert.Equal(t, 1, acc.Len(), "first pass completes before the clock runs out")
}

func TestCollectLoginFailurePropagates(t *testing.T) {
	driver := &fakeDriver{loginErr: errs.New(errs.ErrorTypeFallback, "login flow broke")}
	c := newTestCollector(driver, collector.Window{}, fastOptions())

	err := c.Collect(context.Background(), "finhub", collector.NewAccumulator(), collector.NewStats("run-1"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeFallback))
}

func TestCollectExtractErrorPreservesAccumulator(t *testing.T) {
	base := int64(1_700_000_000_000)
	driver := &fakeDriver{
		batches: [][]models.RawPost{{rawAt("1", base)}},
	}
	c := newTestCollector(driver, collector.Window{}, fastOptions())

	acc := collector.NewAccumulator()
	stats := collector.NewStats("run-1")

	driver.extractErr = errs.New(errs.ErrorTypeFallback, "page went away")
	err := c.Collect(context.Background(), "finhub", acc, stats)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeFallback))
	assert.Zero(t, acc.Len())
}

func TestCollectIncompleteCredentials(t *testing.T) {
	driver := &fakeDriver{}
	incomplete := &auth.Account{Username: "alice"}
	c := NewCollector(driver, incomplete, collector.Window{}, fastOptions(), logger.NewTestLogger())

	err := c.Collect(context.Background(), "finhub",
		collector.NewAccumulator(), collector.NewStats("run-1"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeConfiguration))
	assert.Zero(t, driver.loginCalls)
}

func TestCollectSkipLoginReusesSession(t *testing.T) {
	base := int64(1_700_000_000_000)
	driver := &fakeDriver{
		batches: [][]models.RawPost{{rawAt("1", base)}},
	}
	opts := fastOptions()
	opts.SkipLogin = true
	c := NewCollector(driver, nil, collector.Window{}, opts, logger.NewTestLogger())

	err := c.Collect(context.Background(), "finhub",
		collector.NewAccumulator(), collector.NewStats("run-1"))
	require.NoError(t, err)
	assert.Zero(t, driver.loginCalls)
}
