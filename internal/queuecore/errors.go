// Package queuecore implements the atomic state-transition procedures of a
// distributed job queue: finish-active-job and retry-failed-job, plus the
// leaf components they compose (lock manager, active-list manager,
// parent/child linker, finalizer, event emitter, metrics collector,
// scheduler). Every exported procedure takes an open *kv.Tx so that an
// orchestrator composing several of them commits them as one atomic unit.
package queuecore

import "fmt"

// QueueError is the typed form of this package's stable negative wire
// codes. Callers compare with errors.Is against the sentinel values below
// rather than switching on a raw integer, the same sentinel-error idiom as
// errors.Is checks against badgerhold.ErrNotFound.
type QueueError struct {
	Code    int
	Message string
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("queuecore: %s (code %d)", e.Message, e.Code)
}

// Is reports whether target is a *QueueError with the same Code, so
// errors.Is(err, ErrNotLockOwner) works without exposing Code comparisons
// at call sites.
func (e *QueueError) Is(target error) bool {
	t, ok := target.(*QueueError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel errors for the stable negative wire codes callers match on.
// Code -5 is deliberately absent; the protocol reserves -1..-4 and -6 but
// skips -5, and this preserves that gap rather than renumbering.
var (
	ErrMissingJob          = &QueueError{Code: -1, Message: "job hash not found"}
	ErrMissingLock         = &QueueError{Code: -2, Message: "lock not found"}
	ErrNotActive           = &QueueError{Code: -3, Message: "job not in active list"}
	ErrPendingDependencies = &QueueError{Code: -4, Message: "job has pending dependencies"}
	ErrNotLockOwner        = &QueueError{Code: -6, Message: "lock not owned by this client"}
)

// CodeOf extracts the stable wire code from err, for callers that still need
// to cross a non-Go boundary. Returns 0 for a nil error and for any error
// that isn't a *QueueError (the caller should treat that as an unexpected
// failure, not a protocol-level rejection).
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	if qe, ok := err.(*QueueError); ok {
		return qe.Code
	}
	return 0
}
