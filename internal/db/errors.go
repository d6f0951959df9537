package db

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the row changed between the snapshot read and the
	// write. The caller re-reads and retries if it still wants the change.
	ErrConflict = errors.New("concurrent modification")
)
