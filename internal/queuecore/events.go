package queuecore

import (
	"strconv"

	"github.com/ternarybob/queuecore/internal/kv"
)

// Event names emitted by this spec (spec.md §4.5). delayed/active are
// emitted by the scheduler's collaborators but flow through the same
// Emit/TrimEvents pair.
const (
	EventCompleted        = "completed"
	EventFailed           = "failed"
	EventRetriesExhausted = "retries-exhausted"
	EventWaiting          = "waiting"
	EventDrained          = "drained"
	EventDelayed          = "delayed"
	EventActive           = "active"
)

// TrimEvents trims the event stream to approximately maxLen entries. It
// must run once at procedure entry, before any Emit call in the same
// procedure (spec.md §4.5, invariant 6 of §3): trimming after emission
// would risk discarding the very events the procedure just appended.
// maxLen <= 0 disables trimming.
func TrimEvents(tx *kv.Tx, keys Keys, maxLen int64) error {
	if maxLen <= 0 {
		return nil
	}
	return tx.XTrim(keys.Events(), maxLen)
}

// Emit appends one structured event to the capped stream (spec.md §4.5).
// fields already carries "event" and "jobId"; extra per-event keys (prev,
// returnvalue, failedReason, attemptsMade) are merged in by the caller.
func Emit(tx *kv.Tx, keys Keys, event, jobID string, extra map[string]string) error {
	fields := map[string]string{
		"event": event,
		"jobId": jobID,
	}
	for k, v := range extra {
		fields[k] = v
	}
	_, err := tx.XAdd(keys.Events(), fields, 0)
	return err
}

// EmitAttemptsExhausted emits retries-exhausted with the attemptsMade field
// spec.md §6 specifies for this event.
func EmitAttemptsExhausted(tx *kv.Tx, keys Keys, jobID string, attemptsMade int64) error {
	return Emit(tx, keys, EventRetriesExhausted, jobID, map[string]string{
		"attemptsMade": strconv.FormatInt(attemptsMade, 10),
	})
}
