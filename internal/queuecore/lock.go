package queuecore

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/kv"
)

// ReleaseLock implements the lock manager: it validates that
// token still owns jobID's lock, then deletes the lock key and removes
// jobID from the stalled-watch set. Both finish and retry call this before
// touching anything else — the orchestrators return immediately on a
// non-nil error here because nothing has been written yet.
func ReleaseLock(tx *kv.Tx, logger arbor.ILogger, keys Keys, jobID, token string) error {
	lockKey := keys.JobLock(jobID)

	current, ok, err := tx.GetString(lockKey)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug().Str("job_id", jobID).Msg("release lock: missing lock")
		return ErrMissingLock
	}
	if current != token {
		logger.Debug().Str("job_id", jobID).Msg("release lock: token mismatch")
		return ErrNotLockOwner
	}

	if err := tx.Del(lockKey); err != nil {
		return err
	}
	if err := tx.SRem(keys.Stalled(), jobID); err != nil {
		return err
	}

	logger.Debug().Str("job_id", jobID).Msg("lock released")
	return nil
}
