package queuecore

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/kv"
)

// RetryFailedJob implements the retry-failed-job orchestrator (spec.md
// §4.9): it always promotes due delayed jobs first (even if the job turns
// out not to exist), then releases the lock, removes the job from active,
// re-inserts it into the wait list or priority set, bumps atm, and emits a
// waiting event. Unlike FinishActiveJob it never fetches a next job; the
// worker polls again on its own.
//
// Promotion runs as its own committed transaction, separate from the rest
// of the procedure (spec.md §9 "retry promotes delayed eagerly... even if
// the job has since been removed"): if the promotion were folded into the
// same transaction as the existence check, a missing-job abort would roll
// the promotion back along with it, defeating the "opportunistic advance"
// this behavior exists for.
func RetryFailedJob(ctx context.Context, store *kv.Store, logger arbor.ILogger, args RetryArgs) error {
	keys := NewKeys(args.Prefix)

	if err := store.Update(ctx, func(tx *kv.Tx) error {
		_, err := PromoteDelayed(tx, logger, keys, args.Timestamp)
		return err
	}); err != nil {
		return err
	}

	err := store.Update(ctx, func(tx *kv.Tx) error {
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

		if err := ReleaseLock(tx, logger, keys, args.JobID, args.Token); err != nil {
			return err
		}
		if err := RemoveFromActive(tx, logger, keys, args.JobID); err != nil {
			return err
		}

		priority := parseInt64(jobFields["priority"])
		if err := EnqueueReady(tx, keys, args.JobID, priority, args.PushCmd); err != nil {
			return err
		}

		pausedOrMaxed, err := IsPausedOrMaxed(tx, keys)
		if err != nil {
			return err
		}
		if !pausedOrMaxed {
			if err := SetMarker(tx, keys); err != nil {
				return err
			}
		}

		if _, err := tx.HIncrBy(keys.JobHash(args.JobID), "atm", 1); err != nil {
			return err
		}

		return Emit(tx, keys, EventWaiting, args.JobID, map[string]string{"prev": "failed"})
	})

	if err != nil {
		var qe *QueueError
		if errors.As(err, &qe) {
			return qe
		}
		return err
	}
	return nil
}
