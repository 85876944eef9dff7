package transfer

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnreachable wraps transport failures: DNS, refused connections,
	// resets and timeouts.
	ErrUnreachable = errors.New("transfer endpoint unreachable")

	// ErrMissingWriteURL is returned when a 2xx slot response has no
	// presigned_url.
	ErrMissingWriteURL = errors.New("slot response missing presigned_url")

	// ErrMalformedSlot is returned when a 2xx slot response is not valid JSON.
	ErrMalformedSlot = errors.New("malformed slot response")
)

// StatusError is a non-2xx answer from the coordinator or the store.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsUnavailable reports whether err means the live path is down rather than
// the request being wrong: a transport failure or a 5xx answer.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.IsRetryable()
}
