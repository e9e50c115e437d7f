package domain

import "errors"

var (
	// ErrInvalidArgument rejects a request before the log is touched.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorageFailure wraps any failure of the underlying log medium.
	ErrStorageFailure = errors.New("storage failure")
)
