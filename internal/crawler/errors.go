package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// UnknownURL is recorded when a worker fails before it knows which URL it holds.
const UnknownURL = "unknown_url"

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s for url: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// FetchError is the permanent failure left after all attempts were used
type FetchError struct {
	URL      string
	Attempts int
	Err      error // Last attempt's error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the last failure might succeed on a later run:
// transport errors, 429 and 5xx statuses. Other 4xx statuses are permanent.
func (e *FetchError) Transient() bool {
	var se *StatusError
	if errors.As(e.Err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// unexpectedError formats a recovered panic for the error log
func unexpectedError(r any) string {
	return fmt.Sprintf("Unexpected error: %v", r)
}
