package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrDuplicateRequest reports an evaluation request id seen before.
	ErrDuplicateRequest = errors.New("duplicate evaluation request")
	// ErrQueueFull reports that the evaluation queue rejected a job.
	ErrQueueFull = errors.New("evaluation queue full")
	// ErrNotSubscribed is returned when releasing a subject nobody holds.
	ErrNotSubscribed = errors.New("subject not subscribed")
)
