package ws

import "errors"

var (
	// ErrClosed is returned when sending on a closed connection.
	ErrClosed = errors.New("connection closed")
	// ErrMalformedFrame reports a frame that is not a valid envelope.
	ErrMalformedFrame = errors.New("malformed frame")
)
