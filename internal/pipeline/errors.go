package pipeline

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned by Run when a run is already in progress.
// The caller's request is rejected outright and no state is mutated.
var ErrSyncInProgress = errors.New("a sync run is already in progress")

// ErrUpstreamUnavailable is returned when the pre-flight health check fails.
// The run is marked Failed before any records are processed.
var ErrUpstreamUnavailable = errors.New("crm is unreachable")

// FatalError wraps an unexpected failure outside the per-record handling,
// such as the page traversal itself aborting. The run is marked Failed and
// the remaining phases are skipped.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("sync run failed: %v", e.Err)
}

// Unwrap exposes the underlying cause.
func (e *FatalError) Unwrap() error {
	return e.Err
}
