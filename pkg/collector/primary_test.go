package collector

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

// fakeSource replays a scripted sequence of stream results
type fakeSource struct {
	results []StreamResult
	// repeatFrom, when >= 0, loops the tail of results forever starting at
	// that index, imitating a source that keeps serving the same page
	repeatFrom int
	total      int
}

func newFakeSource(results []StreamResult) *fakeSource {
	return &fakeSource{results: results, repeatFrom: -1}
}

func (f *fakeSource) SearchPosts(ctx context.Context, query string, maxPosts int) <-chan StreamResult {
	ch := make(chan StreamResult)
	go func() {
		defer close(ch)
		sent := 0
		emit := func(r StreamResult) bool {
			select {
			case ch <- r:
				sent++
				return sent < maxPosts
			case <-ctx.Done():
				return false
			}
		}
		for _, r := range f.results {
			if !emit(r) {
				return
			}
		}
		for f.repeatFrom >= 0 {
			for _, r := range f.results[f.repeatFrom:] {
				if !emit(r) {
					return
				}
			}
		}
	}()
	return ch
}

func (f *fakeSource) ReportedTotal(ctx context.Context, handle string) (int, error) {
	return f.total, nil
}

func rawResult(id string, ts interface{}) StreamResult {
	return StreamResult{Raw: models.RawPost{
		ID:        id,
		Text:      "post " + id,
		Username:  "acct",
		Timestamp: ts,
	}}
}

func collect(t *testing.T, source Source, window Window) (*Accumulator, *Stats, StopReason) {
	t.Helper()
	acc := NewAccumulator()
	stats := NewStats("test")
	p := NewPrimary(source, window, logger.NewTestLogger())
	reason, err := p.Collect(context.Background(), "acct", acc, stats)
	require.NoError(t, err)
	return acc, stats, reason
}

func TestPrimaryWindowScenario(t *testing.T) {
	// window [T0, T0+1h]; posts at T0-10, T0+100, T0+4000000, T0+3500000
	const t0 = int64(1700000000000)
	window := NewWindow(t0, t0+3600000, 0, 0)

	source := newFakeSource([]StreamResult{
		rawResult("too-new-a", t0+4000000),
		rawResult("in-range-b", t0+3500000),
		rawResult("in-range-a", t0+100),
		rawResult("too-old", t0-10),
	})

	acc, _, reason := collect(t, source, window)

	assert.Equal(t, StopTimeBoundary, reason)
	require.Equal(t, 2, acc.Len())
	posts := acc.Posts()
	assert.Equal(t, "in-range-b", posts[0].ID)
	assert.Equal(t, "in-range-a", posts[1].ID)
	for _, p := range posts {
		assert.True(t, window.Contains(p.TimestampMs))
	}
}

func TestPrimaryLimitEnforcement(t *testing.T) {
	var results []StreamResult
	for i := 0; i < 10; i++ {
		results = append(results, rawResult(fmt.Sprintf("id-%d", i), 1700000000+int64(i)))
	}
	source := newFakeSource(results)

	acc, _, reason := collect(t, source, NewWindow(0, 0, 5, 0))

	assert.Equal(t, StopLimit, reason)
	require.Equal(t, 5, acc.Len())
	for i, p := range acc.Posts() {
		assert.Equal(t, fmt.Sprintf("id-%d", i), p.ID, "first five accepted posts preserved in order")
	}
}

func TestPrimaryStagnationTermination(t *testing.T) {
	// 250 distinct posts, then the same ids repeat forever
	var results []StreamResult
	for i := 0; i < 250; i++ {
		results = append(results, rawResult(fmt.Sprintf("id-%d", i), 1700000000+int64(i)))
	}
	source := newFakeSource(results)
	source.repeatFrom = 0

	acc, _, reason := collect(t, source, NewWindow(0, 0, 0, 100000))

	assert.Equal(t, StopStagnation, reason)
	assert.Equal(t, 250, acc.Len(), "every distinct id collected exactly once")
}

func TestPrimaryRateLimitSignal(t *testing.T) {
	source := newFakeSource([]StreamResult{
		rawResult("id-1", 1700000000),
		{Err: errs.New(errs.ErrorTypeRateLimit, "429 from source")},
	})

	acc, stats, reason := collect(t, source, NewWindow(0, 0, 0, 0))

	assert.Equal(t, StopRateLimited, reason)
	assert.Equal(t, 1, acc.Len(), "posts before the signal are preserved")
	assert.Equal(t, 1, stats.RateLimitHits)
}

func TestPrimaryMalformedRecordSkipped(t *testing.T) {
	source := newFakeSource([]StreamResult{
		rawResult("good-1", 1700000000),
		rawResult("bad-ts", "not a timestamp"),
		rawResult("", 1700000100),
		rawResult("good-2", 1700000200),
	})

	acc, _, reason := collect(t, source, NewWindow(0, 0, 0, 0))

	assert.Equal(t, StopExhausted, reason)
	assert.Equal(t, 2, acc.Len(), "malformed records dropped, run continues")
}

func TestPrimaryDedupAcrossResume(t *testing.T) {
	source := newFakeSource([]StreamResult{
		rawResult("id-1", 1700000000),
		rawResult("id-2", 1700000001),
	})

	acc := NewAccumulator()
	stats := NewStats("test")
	p := NewPrimary(source, NewWindow(0, 0, 0, 0), logger.NewTestLogger())

	_, err := p.Collect(context.Background(), "acct", acc, stats)
	require.NoError(t, err)
	// resume over the same stream; nothing is double-counted
	_, err = p.Collect(context.Background(), "acct", acc, stats)
	require.NoError(t, err)

	assert.Equal(t, 2, acc.Len())
	assert.Equal(t, 2, stats.UniquePosts)
}

func TestPrimaryTraversalCap(t *testing.T) {
	var results []StreamResult
	for i := 0; i < 50; i++ {
		results = append(results, rawResult(fmt.Sprintf("id-%d", i), 1700000000+int64(i)))
	}
	source := newFakeSource(results)

	acc, _, reason := collect(t, source, NewWindow(0, 0, 0, 10))

	// the stream itself is capped, so the pass ends by exhaustion
	assert.Equal(t, StopExhausted, reason)
	assert.Equal(t, 10, acc.Len())
}

func TestPrimaryCancellation(t *testing.T) {
	source := newFakeSource([]StreamResult{rawResult("id-1", 1700000000)})
	source.repeatFrom = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acc := NewAccumulator()
	p := NewPrimary(source, NewWindow(0, 0, 0, 0), logger.NewTestLogger())
	reason, err := p.Collect(ctx, "acct", acc, NewStats("test"))

	assert.Equal(t, StopCancelled, reason)
	assert.Error(t, err)
}
