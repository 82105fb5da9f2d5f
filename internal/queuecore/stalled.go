package queuecore

import (
	"context"
	"time"

	"github.com/ternarybob/queuecore/internal/kv"
)

// StalledCandidate is one job on the stalled-watch set, with whether its
// lock has lapsed; those with LockExpired set are candidates for
// reclamation by a separate stall detector. Computing this list is in
// scope; actually reclaiming the job
// (lock renewal loops, process supervision) is a separate watcher's job.
type StalledCandidate struct {
	JobID string
	// LockExpired is true when the job's lock key is already gone or its
	// remaining TTL would run out at or before horizon; a watcher should
	// treat this job as abandoned and drive it through retry-failed-job.
	LockExpired bool
}

// ListStalledCandidates reads the stalled set and each member's lock TTL,
// performing no state transition of its own: a read-only view a watcher
// polls, tracking lock-key TTL rather than a heartbeat timestamp. horizon
// is the point in time a lock's projected expiry is compared against
// (pass time.Now() for "already expired or expiring this instant", or a
// point slightly ahead to reclaim jobs whose lock is about to lapse).
func ListStalledCandidates(ctx context.Context, store *kv.Store, prefix string, horizon time.Time) ([]StalledCandidate, error) {
	keys := NewKeys(prefix)
	var out []StalledCandidate

	err := store.View(ctx, func(tx *kv.Tx) error {
		members, err := tx.SMembers(keys.Stalled())
		if err != nil {
			return err
		}
		for _, jobID := range members {
			ttl, ok, err := tx.TTL(keys.JobLock(jobID))
			if err != nil {
				return err
			}
			expired := !ok || ttl <= 0 || !time.Now().Add(ttl).After(horizon)
			out = append(out, StalledCandidate{JobID: jobID, LockExpired: expired})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
