package collector

import (
	"context"

	"xscraper/pkg/models"
)

// StreamResult is one element of the lazy primary-source sequence. Err is
// set instead of Raw when the source signals a condition mid-stream; a
// rate-limit signal arrives as a typed error.
type StreamResult struct {
	Raw models.RawPost
	Err error
}

// Source is the opaque primary-source dependency: a search-by-author
// interface yielding raw posts newest-first, plus the account's
// self-reported total post count.
type Source interface {
	// SearchPosts streams raw posts for the query, newest first, up to
	// maxPosts items. The channel closes when the stream is exhausted or
	// the context is cancelled.
	SearchPosts(ctx context.Context, query string, maxPosts int) <-chan StreamResult

	// ReportedTotal returns the source's claimed total post count for the
	// handle. Unreliable for long account histories; used only as a
	// supplemental-pass heuristic.
	ReportedTotal(ctx context.Context, handle string) (int, error)
}
