package domain

import (
	"errors"
	"fmt"
)

// ErrStaleSnapshot is reported when a snapshot's revision is not newer than the cached one
var ErrStaleSnapshot = errors.New("stale snapshot")

// SourceError marks a source as unavailable
type SourceError struct {
	Source SourceID
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
