package database

import "errors"

var (
	// ErrEmptyPath indicates Open was called without a database path.
	ErrEmptyPath = errors.New("database path cannot be empty")

	// ErrSchemaMissing indicates the credential table does not exist.
	ErrSchemaMissing = errors.New("credential table missing")
)
