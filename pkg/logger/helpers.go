package logger

// LogRateLimit logs a rate limit event reported by the primary source
func LogRateLimit(source string, hits int) {
	GetLogger().WithFields(map[string]interface{}{
		"source": source,
		"hits":   hits,
		"action": "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogCollectProgress logs collection progress against the reported total
func LogCollectProgress(handle string, collected, total int) {
	fields := map[string]interface{}{
		"handle":    handle,
		"collected": collected,
	}
	if total > 0 {
		fields["total"] = total
		fields["percentage"] = float64(collected) / float64(total) * 100
	}
	GetLogger().InfoWithFields("Collection progress", fields)
}

// LogComponentStart logs when a pipeline component starts
func LogComponentStart(component string, fields map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(fields) > 0 {
		l = l.WithFields(fields)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a pipeline component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}
