package queuecore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/kv"
)

// FinishActiveJob implements the finish-active-job orchestrator (spec.md
// §4.8): move jobID out of active into completed or failed, propagate to
// any parent, finalize/trim, emit the terminal event, bump atm, and
// optionally fetch the next job. It runs as exactly one badger.Update
// transaction (SPEC_FULL.md §1 Expansion) so the whole sequence commits or
// discards atomically.
//
// Protocol-level rejections (missing job/lock, wrong owner, not active) are
// reported through FinishResult.Err, matching spec.md §7's "all errors are
// surfaced to the caller; none retried inside the procedure" and "on any
// error return, no side effect has been committed" — returning the
// sentinel as the transaction's error aborts the commit entirely. The
// second return value is reserved for failures that are not part of the
// wire contract: a malformed Opts (a negative KeepJobs.Count), rejected
// before any store access, and infrastructure failures (a Badger I/O
// error, a cancelled context).
func FinishActiveJob(ctx context.Context, store *kv.Store, logger arbor.ILogger, args FinishArgs) (FinishResult, error) {
	var result FinishResult

	if c := args.Opts.KeepJobs.Count; c != nil && *c < 0 {
		return FinishResult{}, fmt.Errorf("queuecore: invalid opts: keepJobs.count %d is negative", *c)
	}

	err := store.Update(ctx, func(tx *kv.Tx) error {
		keys := NewKeys(args.Prefix)

		jobFields, err := tx.HGetAll(keys.JobHash(args.JobID))
		if err != nil {
			return err
		}
		if len(jobFields) == 0 {
			return ErrMissingJob
		}

		if err := TrimEvents(tx, keys, trimCapFromMeta(tx, keys)); err != nil {
			return err
		}

		if err := ReleaseLock(tx, logger, keys, args.JobID, args.Opts.Token); err != nil {
			return err
		}
		if err := RemoveFromActive(tx, logger, keys, args.JobID); err != nil {
			return err
		}

		childKey := keys.JobHash(args.JobID)
		parent := ParentLink{Prefix: jobFields["parentQueuePrefix"], ID: jobFields["parentId"]}

		switch args.Target {
		case "completed":
			if parent.valid() {
				if err := UpdateParentDepsIfNeeded(tx, logger, parent, childKey, args.ResultValue, args.Timestamp); err != nil {
					return err
				}
			}
		case "failed":
			if parent.valid() {
				parentKeys := NewKeys(parent.Prefix)
				parentFields, err := tx.HGetAll(parentKeys.JobHash(parent.ID))
				if err != nil {
					return err
				}
				if err := MoveParentIfNeeded(tx, logger, parent, parentFields, childKey, args.ResultValue, args.Timestamp); err != nil {
					return err
				}
			}
		}

		jobDeleted := args.Opts.KeepJobs.Count != nil && *args.Opts.KeepJobs.Count == 0
		if err := Finalize(tx, logger, keys, FinalizeArgs{
			JobID:        args.JobID,
			KeepJobs:     args.Opts.KeepJobs,
			Target:       args.Target,
			ResultField:  args.ResultField,
			ResultValue:  args.ResultValue,
			Timestamp:    args.Timestamp,
			ParentPrefix: parent.Prefix,
			ParentID:     parent.ID,
			ChildKey:     childKey,
		}); err != nil {
			return err
		}

		terminalEvent := EventCompleted
		extra := map[string]string{"prev": "active"}
		if args.Target == "failed" {
			terminalEvent = EventFailed
			extra["failedReason"] = args.ResultValue
		} else {
			extra["returnvalue"] = args.ResultValue
		}
		if err := Emit(tx, keys, terminalEvent, args.JobID, extra); err != nil {
			return err
		}

		// The job hash may have just been deleted outright (keepJobs.count
		// == 0). atm is still conceptually incremented exactly once for
		// this attempt (spec.md invariant 3), but a deleted job's hash is
		// not resurrected just to carry the counter.
		var newAtm int64
		if jobDeleted {
			newAtm = parseInt64(jobFields["atm"]) + 1
		} else {
			newAtm, err = tx.HIncrBy(keys.JobHash(args.JobID), "atm", 1)
			if err != nil {
				return err
			}
		}

		if args.Target == "failed" {
			attempts := args.Opts.Attempts
			if attempts > 0 && newAtm >= attempts {
				if err := EmitAttemptsExhausted(tx, keys, args.JobID, newAtm); err != nil {
					return err
				}
			}
		}

		if err := RecordMetric(tx, keys, args.Target, args.Timestamp, args.Opts.MaxMetricsSize); err != nil {
			return err
		}

		if args.FetchNext {
			sched, err := Schedule(tx, logger, keys, args.Timestamp, args.Opts.Limiter)
			if err != nil {
				return err
			}
			result.JobData = sched.JobData
			result.JobID = sched.JobID
			result.RateLimitTTL = sched.RateLimitTTL
			result.NextDelayedTS = sched.NextDelayedTS
			return nil
		}

		drained, err := queueFullyDrained(tx, keys)
		if err != nil {
			return err
		}
		if drained {
			return Emit(tx, keys, EventDrained, "", nil)
		}
		return nil
	})

	if err != nil {
		var qe *QueueError
		if errors.As(err, &qe) {
			return FinishResult{Err: qe}, nil
		}
		return FinishResult{}, err
	}
	return result, nil
}

// trimCapFromMeta reads the queue's configured event-stream cap
// (meta.opts.maxLenEvents) so TrimEvents can enforce spec.md's
// trim-before-emit discipline without the caller having to thread it
// through FinishArgs separately. A read failure here is treated as "no
// cap configured" rather than aborting the whole procedure over a
// best-effort read.
func trimCapFromMeta(tx *kv.Tx, keys Keys) int64 {
	fields, err := tx.HGetAll(keys.Meta())
	if err != nil {
		return 0
	}
	return parseInt64(fields["opts.maxLenEvents"])
}
