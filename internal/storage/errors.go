package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to create a record
	// with a key that already exists. Snapshots are create-once.
	ErrDuplicateKey = errors.New("duplicate key: snapshot already exists")

	// ErrCorruptSnapshot is returned when a stored snapshot cannot be
	// decoded. Callers treat it as absent and recompute.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
