package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// TransientError covers failures worth retrying within the same attempt:
// transport-level errors and 5xx / 429 responses.
type TransientError struct {
	Status int // zero for transport failures
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend returned HTTP %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError covers failures retrying cannot fix: 4xx responses other
// than 429, and responses whose body does not match the expected shape.
type PermanentError struct {
	Status int
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend rejected request (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("malformed backend response: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// statusError classifies a non-2xx response by its status code.
func statusError(status int, body string) error {
	err := errors.New(body)
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return &TransientError{Status: status, Err: err}
	}
	return &PermanentError{Status: status, Err: err}
}
