package collector

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// secondsThreshold separates seconds-epoch from milliseconds-epoch values.
// Anything below 10^12 is a seconds timestamp for any plausible post date.
const secondsThreshold = int64(1_000_000_000_000)

// NormalizeTimestamp canonicalizes a raw timestamp of unknown shape into a
// millisecond-epoch integer. Numeric values below the threshold are treated
// as seconds and promoted. Non-positive or unparseable inputs report ok ==
// false. Normalization is idempotent: feeding back a normalized value
// returns it unchanged.
func NormalizeTimestamp(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case time.Time:
		if v.IsZero() {
			return 0, false
		}
		return clockMillis(v)
	case int64:
		return promote(v)
	case int:
		return promote(int64(v))
	case int32:
		return promote(int64(v))
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return promote(int64(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return promote(int64(v))
	case float32:
		return NormalizeTimestamp(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return promote(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NormalizeTimestamp(f)
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return clockMillis(t)
		}
		return 0, false
	default:
		return 0, false
	}
}

// clockMillis converts a wall-clock value that is already millisecond
// precision. Pre-epoch instants are invalid, same as promote, but the value
// is never re-promoted: a pre-2001 date sits below the seconds threshold
// while already being milliseconds.
func clockMillis(t time.Time) (int64, bool) {
	ms := t.UnixMilli()
	if ms <= 0 {
		return 0, false
	}
	return ms, true
}

func promote(n int64) (int64, bool) {
	if n <= 0 {
		return 0, false
	}
	if n < secondsThreshold {
		return n * 1000, true
	}
	return n, true
}
