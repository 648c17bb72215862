// Package ratelimit paces outbound page fetches and scroll iterations with
// a token bucket so collection stays under the source's request budget.
package ratelimit
