package queuecore

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/kv"
)

// RemoveFromActive implements the active-list manager's removal half
// (spec.md §4.2): it pulls jobID out of the active list. A job finishing or
// retrying must currently be active, so a miss here is the caller's signal
// to abort the whole procedure with ErrNotActive (double-finish, or a
// finish/retry issued against the wrong queue).
func RemoveFromActive(tx *kv.Tx, logger arbor.ILogger, keys Keys, jobID string) error {
	removed, err := tx.LRem(keys.Active(), jobID)
	if err != nil {
		return err
	}
	if !removed {
		logger.Debug().Str("job_id", jobID).Msg("remove from active: not present")
		return ErrNotActive
	}
	logger.Debug().Str("job_id", jobID).Msg("removed from active list")
	return nil
}

// PushToActive moves jobID onto the active list, the other half of the
// active-list manager's contract (spec.md §4.2): "the active list contains
// exactly the jobs whose lock key is held by some worker". Used by the
// scheduler when popping a job for processing (spec.md §4.7 steps 6-7).
func PushToActive(tx *kv.Tx, keys Keys, jobID string) error {
	return tx.RPush(keys.Active(), jobID)
}
