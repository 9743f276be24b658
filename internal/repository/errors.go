package repository

import "errors"

var (
	// ErrNotFound means the referenced bill or tenant does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a unique constraint fired, i.e. another request
	// created the same tenant first.
	ErrConflict = errors.New("already exists")
)
