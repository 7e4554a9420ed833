package session

import "errors"

var (
	// ErrTransport wraps channel-level failures. It is the only session
	// error surfaced to consumers as a failure of the channel itself.
	ErrTransport = errors.New("transport error")
	// ErrClosed is returned by operations on a session that has ended.
	ErrClosed = errors.New("session closed")
	// ErrNotConnected is returned when an operation needs a live channel.
	ErrNotConnected = errors.New("session not connected")
	// ErrRateLimited is returned when refreshes come too quickly.
	ErrRateLimited = errors.New("refresh rate limited")
	// ErrNoSnapshot is returned when an edit has nothing to apply to.
	ErrNoSnapshot = errors.New("no snapshot to edit")
	// ErrStaleEdit is returned when a newer snapshot already superseded the edit.
	ErrStaleEdit = errors.New("edit older than current snapshot")
	// ErrInvalidState is returned by Reconnect outside the error state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrNoSession is returned by the manager for subjects nobody holds.
	ErrNoSession = errors.New("no session for subject")
)
