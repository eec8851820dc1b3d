package domain

import "errors"

var (
	// ErrValidation indicates a locally rejected input; no I/O was attempted.
	ErrValidation = errors.New("validation failed")
	// ErrNetwork wraps remote read/write and food query failures. The local
	// cache is left untouched and the operation is safe to retry.
	ErrNetwork = errors.New("network failure")
	// ErrMediaCapture indicates image capture failed; the attachment reverts
	// to its empty state.
	ErrMediaCapture = errors.New("media capture failed")
	// ErrMediaPersist indicates image persistence failed; the attachment
	// reverts to its empty state.
	ErrMediaPersist = errors.New("media persist failed")
	// ErrNotAuthenticated is returned before any I/O when no session is active.
	ErrNotAuthenticated = errors.New("not authenticated")
)
