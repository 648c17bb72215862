package collector

// Window bounds which posts are retained and how far collection may run.
// Zero values mean unset.
type Window struct {
	// SinceMs is the inclusive lower bound, milliseconds epoch
	SinceMs int64
	// UntilMs is the inclusive upper bound, milliseconds epoch
	UntilMs int64
	// Limit caps the number of unique posts in the final result
	Limit int
	// MaxTweets is a hard cap on primary-source traversal, independent of
	// how many posts survive dedup and filtering
	MaxTweets int
}

// NewWindow builds a Window, swapping inverted bounds so since <= until
// always holds once constructed.
func NewWindow(sinceMs, untilMs int64, limit, maxTweets int) Window {
	if sinceMs > 0 && untilMs > 0 && sinceMs > untilMs {
		sinceMs, untilMs = untilMs, sinceMs
	}
	if limit < 0 {
		limit = 0
	}
	if maxTweets < 0 {
		maxTweets = 0
	}
	return Window{SinceMs: sinceMs, UntilMs: untilMs, Limit: limit, MaxTweets: maxTweets}
}

// Contains reports whether a normalized timestamp falls inside the window.
// Both collectors route retention decisions through here so window
// semantics never diverge between paths.
func (w Window) Contains(timestampMs int64) bool {
	if timestampMs <= 0 {
		return false
	}
	if w.UntilMs > 0 && timestampMs > w.UntilMs {
		return false
	}
	if w.SinceMs > 0 && timestampMs < w.SinceMs {
		return false
	}
	return true
}

// TooNew reports whether the timestamp lies after the upper bound
func (w Window) TooNew(timestampMs int64) bool {
	return w.UntilMs > 0 && timestampMs > w.UntilMs
}

// TooOld reports whether the timestamp lies before the lower bound
func (w Window) TooOld(timestampMs int64) bool {
	return w.SinceMs > 0 && timestampMs > 0 && timestampMs < w.SinceMs
}

// LimitReached reports whether count has hit the configured result cap
func (w Window) LimitReached(count int) bool {
	return w.Limit > 0 && count >= w.Limit
}
