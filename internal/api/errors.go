package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTransport marks transport-level failures (connection refused,
	// timeouts, malformed response bodies). These are retryable.
	ErrTransport = errors.New("transport failure")

	// ErrInvalidWindow marks a fetch window the client refuses to issue.
	// Never retried.
	ErrInvalidWindow = errors.New("invalid fetch window")
)

// HTTPStatusError is returned when the API answers with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Transient reports whether the status indicates a server-side condition
// worth retrying. Client errors other than 429 are permanent.
func (e *HTTPStatusError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsTransient classifies an error for the retry policy. Cancellation is
// never transient: retrying a canceled operation cannot succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}

	if errors.Is(err, ErrTransport) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
