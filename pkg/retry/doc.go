// Package retry provides the backoff policies used across the collection
// pipeline: exponential login-retry backoff bounded by an attempt budget,
// rate-limit recovery backoff capped at fifteen minutes, and a
// gaussian-smoothed pacing delay for humanlike request cadence. All waiting
// goes through Wait, which respects context cancellation.
package retry
