package errs

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound means upstream has no such account or match. Not retryable.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamUnavailable covers transport failures and 5xx/429 responses from upstream.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrStoreUnavailable means the record store could not be reached or rejected a write.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMalformedInput is returned for bad riot ids, regions and request bodies.
	ErrMalformedInput = errors.New("malformed input")
	// ErrDuplicateKey is returned when a record with the same key already exists.
	ErrDuplicateKey = errors.New("duplicate key")
)

// HTTPStatus maps an error onto the status code the API boundary responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
