package community

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork wraps transport failures: the service could not be reached.
	ErrNetwork = errors.New("network error")
	// ErrNotFound is returned when no ticket matches a lookup.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("community api %s %s failed: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsServerError reports whether err is an HTTP 500 answer.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusInternalServerError
}
