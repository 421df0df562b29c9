package crm

import "fmt"

// UpstreamError reports a failed request against the CRM API.
//
// A non-zero StatusCode means the CRM answered with a non-success status.
// A zero StatusCode with a non-nil Err means the request never completed
// (transport failure, timeout).
type UpstreamError struct {
	Kind       string // collection being fetched, e.g. "companies"
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("crm request for %s failed with status %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("crm request for %s failed: %v", e.Kind, e.Err)
}

// Unwrap exposes the underlying transport error, if any.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}
