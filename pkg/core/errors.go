package core

import "errors"

// Common errors.
var (
	ErrNotFound      = errors.New("document not found")
	ErrReadOnly      = errors.New("repository is in read-only mode")
	ErrUnknownAction = errors.New("unknown action")
)
