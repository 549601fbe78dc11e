package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// HTTPStatusError indicates a response outside the 2xx range.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsClientError reports whether err is a 4xx response, which is not worth retrying.
func IsClientError(err error) bool {
	var status *HTTPStatusError
	if !errors.As(err, &status) {
		return false
	}
	return status.StatusCode >= 400 && status.StatusCode < 500 && status.StatusCode != http.StatusTooManyRequests
}

// ErrorType classifies a fetch error into a short label for logs and metrics.
func ErrorType(err error) string {
	if err == nil {
		return "unknown"
	}
	var status *HTTPStatusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusForbidden:
			return "forbidden"
		case status.StatusCode == http.StatusNotFound:
			return "not_found"
		case status.StatusCode == http.StatusTooManyRequests:
			return "rate_limited"
		case status.StatusCode >= 500:
			return "server_error"
		default:
			return "http_status"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection"
	}
	return "other"
}
