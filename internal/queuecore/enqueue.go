package queuecore

import "github.com/ternarybob/queuecore/internal/kv"

// EnqueueReady places jobID into the ready-to-run set appropriate for its
// priority: the plain wait list when priority is the default (0), or the
// priority set otherwise (spec.md §4.7 step 7, §4.9 step 4). pushCmd
// selects which end of the wait list a zero-priority job lands on
// ("LPUSH"|"RPUSH"); Schedule always pops the wait list from the head
// (LPop), so "RPUSH" fills at the tail to preserve FIFO order, and callers
// that don't care (delayed promotion, parent reactivation) pass "RPUSH".
func EnqueueReady(tx *kv.Tx, keys Keys, jobID string, priority int64, pushCmd string) error {
	if priority == 0 {
		if pushCmd == "LPUSH" {
			return tx.LPush(keys.Wait(), jobID)
		}
		return tx.RPush(keys.Wait(), jobID)
	}
	counter, err := NextPriorityCounter(tx, keys)
	if err != nil {
		return err
	}
	return tx.ZAdd(keys.Prioritized(), jobID, PackPriorityScore(priority, counter))
}

// IsPausedOrMaxed implements the paused/concurrency check spec.md §4.7
// step 1 and §4.9 step 4 both rely on: the queue is not eligible to run
// more jobs when it's explicitly paused, or the active list is already at
// the configured concurrency cap.
func IsPausedOrMaxed(tx *kv.Tx, keys Keys) (bool, error) {
	fields, err := tx.HGetAll(keys.Meta())
	if err != nil {
		return false, err
	}
	if fields["paused"] == "true" || fields["paused"] == "1" {
		return true, nil
	}
	concurrency := parseInt64(fields["concurrency"])
	if concurrency <= 0 {
		return false, nil
	}
	activeLen, err := tx.LLen(keys.Active())
	if err != nil {
		return false, err
	}
	return int64(activeLen) >= concurrency, nil
}

// SetMarker writes the wake-signal key that tells waiting workers new work
// may be ready (spec.md §3 "Marker"). Called whenever a job becomes ready
// and the queue is not paused/maxed.
func SetMarker(tx *kv.Tx, keys Keys) error {
	return tx.SetWithTTL(keys.Marker(), "1", 0)
}
