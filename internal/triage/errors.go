package triage

import "errors"

var (
	// ErrValidation marks a rejected request: blank content, unknown status,
	// disallowed transition, bad setting. Nothing was written.
	ErrValidation = errors.New("validation failed")

	// ErrAuth marks a missing, unknown or inactive API key. Checked before
	// any other work.
	ErrAuth = errors.New("unauthorized")

	// ErrNotFound marks an unknown feedback id.
	ErrNotFound = errors.New("not found")
)
