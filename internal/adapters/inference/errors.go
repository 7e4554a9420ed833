package inference

import "errors"

var (
	// ErrUnavailable reports that no collaborator can serve the request.
	ErrUnavailable = errors.New("inference unavailable")
	// ErrBadStatus wraps a non-2xx response.
	ErrBadStatus = errors.New("inference bad status")
	// ErrEmptyResponse is returned when the provider answered with no text.
	ErrEmptyResponse = errors.New("inference empty response")
)
