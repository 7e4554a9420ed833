package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("snapshot not found")
	ErrEmptySubject = errors.New("empty subject")
	ErrNoCache      = errors.New("no snapshot cache configured")
)
