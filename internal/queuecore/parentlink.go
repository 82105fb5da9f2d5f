package queuecore

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/kv"
)

// ParentLink identifies the parent of a job: which queue it lives in and
// its id. Cross-queue safe: every
// parent-side key is derived from Prefix, never from the child's own queue
// (spec.md §4.3 "Cross-queue safety").
type ParentLink struct {
	Prefix string
	ID     string
}

func (p ParentLink) valid() bool { return p.Prefix != "" && p.ID != "" }

// prevWaitingChildren is the prev marker on the waiting event emitted when
// a parent is re-activated out of its waiting-for-children state
// (spec.md §8 scenario S5: "waiting(p,prev=waiting-children)").
const prevWaitingChildren = "waiting-children"

// UpdateParentDepsIfNeeded implements spec.md §4.3's success entry point,
// called when a child completes. It pushes the child's result onto the head
// of the parent's retained results list, records it in the parent's processed
// map, and — if removing childKey emptied the parent's dependency set —
// re-activates the parent into its own queue's wait or priority list.
func UpdateParentDepsIfNeeded(tx *kv.Tx, logger arbor.ILogger, parent ParentLink, childKey, result string, timestamp int64) error {
	if !parent.valid() {
		return nil
	}
	parentKeys := NewKeys(parent.Prefix)

	if err := tx.LPush(parentKeys.Results(parent.ID), result); err != nil {
		return err
	}
	if err := tx.HSet(parentKeys.Processed(parent.ID), map[string]string{childKey: result}); err != nil {
		return err
	}

	return reactivateParentIfDepsEmpty(tx, logger, parentKeys, parent.ID, childKey, prevWaitingChildren)
}

// MoveParentIfNeeded implements spec.md §4.3's failure entry point, called
// when a child fails. parentFields is the parent's own job hash, already
// read by the caller (it carries failParentOnFailure/ignoreDependencyOnFailure).
func MoveParentIfNeeded(tx *kv.Tx, logger arbor.ILogger, parent ParentLink, parentFields map[string]string, childKey, failedReason string, timestamp int64) error {
	if !parent.valid() {
		return nil
	}
	parentKeys := NewKeys(parent.Prefix)

	if truthy(parentFields["failParentOnFailure"]) {
		return propagateParentFailure(tx, logger, parentKeys, parent.ID, failedReason, timestamp)
	}
	if truthy(parentFields["ignoreDependencyOnFailure"]) {
		return reactivateParentIfDepsEmpty(tx, logger, parentKeys, parent.ID, childKey, prevWaitingChildren)
	}
	// Neither flag set: the failed child blocks the parent indefinitely.
	logger.Debug().Str("parent_id", parent.ID).Str("child_key", childKey).
		Msg("parent left waiting on failed child dependency")
	return nil
}

// propagateParentFailure recursively fails the parent using the same
// finalize-and-emit path finish-active-job uses, since the parent is not
// held by any worker lock and so cannot go through the full orchestrator
// (spec.md §4.3: "propagate failure to parent recursively using the same
// finish-failure path").
func propagateParentFailure(tx *kv.Tx, logger arbor.ILogger, parentKeys Keys, parentID, failedReason string, timestamp int64) error {
	fields, err := tx.HGetAll(parentKeys.JobHash(parentID))
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	if err := Finalize(tx, logger, parentKeys, FinalizeArgs{
		JobID:       parentID,
		KeepJobs:    KeepJobs{}, // retain forever by default; grandparent propagation does not prune
		Target:      "failed",
		ResultField: "failedReason",
		ResultValue: failedReason,
		Timestamp:   timestamp,
	}); err != nil {
		return err
	}
	if err := Emit(tx, parentKeys, EventFailed, parentID, map[string]string{
		"failedReason": failedReason,
		"prev":         "active",
	}); err != nil {
		return err
	}

	grandparent := ParentLink{Prefix: fields["parentQueuePrefix"], ID: fields["parentId"]}
	if !grandparent.valid() {
		return nil
	}
	grandparentKeys := NewKeys(grandparent.Prefix)
	grandparentFields, err := tx.HGetAll(grandparentKeys.JobHash(grandparent.ID))
	if err != nil {
		return err
	}
	if len(grandparentFields) == 0 {
		return nil
	}
	return MoveParentIfNeeded(tx, logger, grandparent, grandparentFields, parentKeys.JobHash(parentID), failedReason, timestamp)
}

// reactivateParentIfDepsEmpty removes childKey from the parent's
// dependency set and, if that drains the set to empty and the parent still
// exists, moves the parent into its own queue's ready structures and emits
// a waiting event with the given prev marker.
func reactivateParentIfDepsEmpty(tx *kv.Tx, logger arbor.ILogger, parentKeys Keys, parentID, childKey, prev string) error {
	removed, err := depSetRemove(tx, parentKeys.Dependencies(parentID), childKey)
	if err != nil || !removed {
		return err
	}

	remaining, err := tx.SCard(parentKeys.Dependencies(parentID))
	if err != nil {
		return err
	}
	if remaining != 0 {
		return nil
	}

	parentFields, err := tx.HGetAll(parentKeys.JobHash(parentID))
	if err != nil {
		return err
	}
	if len(parentFields) == 0 {
		// Parent hash missing; nothing left to reactivate.
		return nil
	}

	pausedOrMaxed, err := IsPausedOrMaxed(tx, parentKeys)
	if err != nil {
		return err
	}
	priority := parseInt64(parentFields["priority"])
	if err := EnqueueReady(tx, parentKeys, parentID, priority, "RPUSH"); err != nil {
		return err
	}
	if !pausedOrMaxed {
		if err := SetMarker(tx, parentKeys); err != nil {
			return err
		}
	}

	logger.Debug().Str("parent_id", parentID).Msg("parent reactivated: dependency set drained")
	return Emit(tx, parentKeys, EventWaiting, parentID, map[string]string{"prev": prev})
}

func depSetRemove(tx *kv.Tx, setKey, member string) (bool, error) {
	isMember, err := tx.SIsMember(setKey, member)
	if err != nil || !isMember {
		return false, err
	}
	if err := tx.SRem(setKey, member); err != nil {
		return false, err
	}
	return true, nil
}

func truthy(s string) bool {
	return s == "true" || s == "1"
}
