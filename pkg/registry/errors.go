package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Store that holds no registry yet.
var ErrNotFound = errors.New("registry not found")

// ErrSchemaVersion is returned when a stored registry was written by an
// incompatible format version.
var ErrSchemaVersion = errors.New("unsupported registry schema version")

// WriteError reports a failed persist together with the counts the
// mutation had reached. The in-memory registry is left unchanged.
type WriteError struct {
	Path    string
	Op      string
	Added   int
	Skipped int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("registry %s: write %s failed (added=%d skipped=%d): %v", e.Op, e.Path, e.Added, e.Skipped, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
