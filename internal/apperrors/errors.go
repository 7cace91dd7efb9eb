// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoPendingChanges = errors.New("no pending changes")
)

// ConflictError reports a write attempted against a stale precondition: the
// listing's status changed underneath the caller. Callers must re-read and
// re-decide, never blindly retry.
type ConflictError struct {
	Resource string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("%s: state conflict (current: %s)", e.Resource, e.Actual)
	}
	return fmt.Sprintf("%s: expected status %s, found %s", e.Resource, e.Expected, e.Actual)
}

// TransientStoreError wraps a network or store failure. Nothing is assumed
// committed when one is returned.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// ValidationError reports malformed input rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// PartialCommitError is the one acknowledged non-atomic seam: the scalar
// publish commit succeeded but applying the image plan failed. The caller can
// retry only the image step instead of re-running the whole publish.
type PartialCommitError struct {
	ListingID string
	Err       error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("listing %s committed but image plan failed: %v", e.ListingID, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsTransient(err error) bool {
	var te *TransientStoreError
	return errors.As(err, &te)
}

func IsPartialCommit(err error) bool {
	var pe *PartialCommitError
	return errors.As(err, &pe)
}
