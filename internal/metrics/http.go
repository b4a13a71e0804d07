package metrics

import (
	"strings"
	"time"
)

// RecordHTTPRequest records request count and latency per route pattern
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.safeExecute("RecordHTTPRequest", func() {
		m.HTTPRequestsTotal.WithLabelValues(method, endpoint, categorizeStatus(statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	})
}

// categorizeStatus buckets status codes by class. 409 gets its own bucket: stale
// versions, write conflicts and merge conflicts all surface there.
func categorizeStatus(code int) string {
	switch {
	case code == 409:
		return "409"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// ShouldSkipEndpoint reports whether path is a health, metrics or docs route excluded from metrics
func ShouldSkipEndpoint(path string) bool {
	switch strings.TrimSuffix(path, "/") {
	case "/metrics", "/health", "/api/ffe/metrics", "/api/ffe/health":
		return true
	}
	return strings.HasPrefix(path, "/swagger/")
}
