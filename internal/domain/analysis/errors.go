package analysis

import "errors"

var (
	// ErrMalformedExternalResult covers any inference output that cannot be
	// turned into a validated payload. It never leaves this package: the
	// analyzer substitutes the fallback assessment.
	ErrMalformedExternalResult = errors.New("malformed external result")
	// ErrNoJSONObject is returned when the text holds no balanced object.
	ErrNoJSONObject = errors.New("no JSON object found")
)
