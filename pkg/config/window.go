package config

import (
	"fmt"
	"strconv"
	"time"

	"xscraper/pkg/collector"
	errs "xscraper/pkg/errors"
)

// millisecond-epoch values start at 10^12; smaller epochs are seconds
const secondsThreshold = 1_000_000_000_000

// BuildWindow converts the textual window configuration into a
// collector.Window anchored at now. Since/Until accept RFC 3339, a
// plain date, or a unix epoch in seconds or milliseconds. WindowHours
// applies only when Since is empty.
func (w WindowConfig) BuildWindow(now time.Time) (collector.Window, error) {
	var sinceMs, untilMs int64

	if w.Since != "" {
		ms, err := parseTimeBound(w.Since)
		if err != nil {
			return collector.Window{}, errs.Wrap(errs.ErrorTypeConfiguration,
				fmt.Sprintf("invalid since bound %q", w.Since), err)
		}
		sinceMs = ms
	} else if w.WindowHours > 0 {
		sinceMs = now.Add(-time.Duration(w.WindowHours) * time.Hour).UnixMilli()
	}

	if w.Until != "" {
		ms, err := parseTimeBound(w.Until)
		if err != nil {
			return collector.Window{}, errs.Wrap(errs.ErrorTypeConfiguration,
				fmt.Sprintf("invalid until bound %q", w.Until), err)
		}
		untilMs = ms
	}

	return collector.NewWindow(sinceMs, untilMs, w.Limit, w.MaxTweets), nil
}

// parseTimeBound accepts RFC 3339, "2006-01-02", or a unix epoch
// (seconds or milliseconds) and returns a millisecond epoch.
func parseTimeBound(value string) (int64, error) {
	if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
		if epoch <= 0 {
			return 0, fmt.Errorf("epoch must be positive")
		}
		if epoch < secondsThreshold {
			epoch *= 1000
		}
		return epoch, nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UnixMilli(), nil
		}
	}

	return 0, fmt.Errorf("not an epoch or ISO-8601 timestamp")
}
