package model

import "errors"

var (
	// ErrUnknownCategory is returned by ParseCategory.
	ErrUnknownCategory = errors.New("unknown factor category")
	// ErrInvalidProfile wraps validation failures of a Profile.
	ErrInvalidProfile = errors.New("invalid profile")
)
