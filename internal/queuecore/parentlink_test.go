package queuecore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/queuecore/internal/kv"
)

func TestUpdateParentDepsIfNeeded_ReactivatesParentWhenLastDependencyClears(t *testing.T) {
	store := newTestStore(t)
	parentKeys := NewKeys("q")
	childKeys := NewKeys("q")
	childKey := childKeys.JobHash("c1")

	seedJob(t, store, parentKeys, "p1", "tok", map[string]string{"priority": "0"})
	mustUpdate(t, store, func(tx *kv.Tx) error {
		_, err := tx.SAdd(parentKeys.Dependencies("p1"), childKey)
		return err
	})

	parent := ParentLink{Prefix: "q", ID: "p1"}
	mustUpdate(t, store, func(tx *kv.Tx) error {
		return UpdateParentDepsIfNeeded(tx, testLogger(), parent, childKey, "child-result", 5000)
	})

	mustUpdate(t, store, func(tx *kv.Tx) error {
		results, err := tx.LMembers(parentKeys.Results("p1"))
		require.NoError(t, err)
		require.Equal(t, []string{"child-result"}, results)

		processed, err := tx.HGetAll(parentKeys.Processed("p1"))
		require.NoError(t, err)
		require.Equal(t, "child-result", processed[childKey])

		card, err := tx.SCard(parentKeys.Dependencies("p1"))
		require.NoError(t, err)
		require.Equal(t, 0, card)

		waitMembers, err := tx.LMembers(parentKeys.Wait())
		require.NoError(t, err)
		require.Contains(t, waitMembers, "p1", "parent must be requeued once its last dependency clears")

		entries, err := tx.XRange(parentKeys.Events(), 0)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		last := entries[len(entries)-1]
		require.Equal(t, EventWaiting, last.Fields["event"])
		require.Equal(t, prevWaitingChildren, last.Fields["prev"])
		return nil
	})
}

func TestUpdateParentDepsIfNeeded_LeavesParentWaitingWithRemainingDeps(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")
	c1 := keys.JobHash("c1")
	c2 := keys.JobHash("c2")

	seedJob(t, store, keys, "p1", "tok", map[string]string{"priority": "0"})
	mustUpdate(t, store, func(tx *kv.Tx) error {
		_, err := tx.SAdd(keys.Dependencies("p1"), c1, c2)
		return err
	})

	parent := ParentLink{Prefix: "q", ID: "p1"}
	mustUpdate(t, store, func(tx *kv.Tx) error {
		return UpdateParentDepsIfNeeded(tx, testLogger(), parent, c1, "r1", 1000)
	})

	mustUpdate(t, store, func(tx *kv.Tx) error {
		card, err := tx.SCard(keys.Dependencies("p1"))
		require.NoError(t, err)
		require.Equal(t, 1, card, "one dependency (c2) must remain")

		waitMembers, err := tx.LMembers(keys.Wait())
		require.NoError(t, err)
		require.NotContains(t, waitMembers, "p1")
		return nil
	})
}

func TestMoveParentIfNeeded_PropagatesFailureAcrossQueues(t *testing.T) {
	store := newTestStore(t)
	childKeys := NewKeys("child-q")
	parentKeys := NewKeys("parent-q")
	childKey := childKeys.JobHash("c1")

	seedJob(t, store, parentKeys, "p1", "tok", map[string]string{
		"priority":            "0",
		"failParentOnFailure": "true",
	})

	parent := ParentLink{Prefix: "parent-q", ID: "p1"}
	mustUpdate(t, store, func(tx *kv.Tx) error {
		parentFields, err := tx.HGetAll(parentKeys.JobHash("p1"))
		require.NoError(t, err)
		return MoveParentIfNeeded(tx, testLogger(), parent, parentFields, childKey, "child blew up", 9000)
	})

	mustUpdate(t, store, func(tx *kv.Tx) error {
		_, present, err := tx.ZScore(parentKeys.Failed(), "p1")
		require.NoError(t, err)
		require.True(t, present, "parent must be finalized into its own queue's failed set")

		entries, err := tx.XRange(parentKeys.Events(), 0)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		require.Equal(t, EventFailed, entries[len(entries)-1].Fields["event"])
		return nil
	})
}

func TestMoveParentIfNeeded_GrandparentPropagationUsesGrandparentsOwnFlags(t *testing.T) {
	store := newTestStore(t)
	childKeys := NewKeys("child-q")
	parentKeys := NewKeys("parent-q")
	grandparentKeys := NewKeys("grandparent-q")
	childKey := childKeys.JobHash("c1")

	seedJob(t, store, parentKeys, "p1", "tok", map[string]string{
		"priority":            "0",
		"failParentOnFailure": "true",
		"parentQueuePrefix":   "grandparent-q",
		"parentId":            "g1",
	})
	seedJob(t, store, grandparentKeys, "g1", "tok", map[string]string{
		"priority": "0",
		// failParentOnFailure deliberately unset on the grandparent: it
		// must not be failed just because its child p1 had the flag set.
	})

	parent := ParentLink{Prefix: "parent-q", ID: "p1"}
	mustUpdate(t, store, func(tx *kv.Tx) error {
		parentFields, err := tx.HGetAll(parentKeys.JobHash("p1"))
		require.NoError(t, err)
		return MoveParentIfNeeded(tx, testLogger(), parent, parentFields, childKey, "child blew up", 9000)
	})

	mustUpdate(t, store, func(tx *kv.Tx) error {
		_, present, err := tx.ZScore(parentKeys.Failed(), "p1")
		require.NoError(t, err)
		require.True(t, present, "parent must be finalized into its own queue's failed set")

		_, present, err = tx.ZScore(grandparentKeys.Failed(), "g1")
		require.NoError(t, err)
		require.False(t, present, "grandparent must not be failed based on the parent's failParentOnFailure flag")
		return nil
	})
}

func TestMoveParentIfNeeded_IgnoreDependencyReactivatesParent(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")
	childKey := keys.JobHash("c1")

	seedJob(t, store, keys, "p1", "tok", map[string]string{
		"priority":                  "0",
		"ignoreDependencyOnFailure": "true",
	})
	mustUpdate(t, store, func(tx *kv.Tx) error {
		_, err := tx.SAdd(keys.Dependencies("p1"), childKey)
		return err
	})

	parent := ParentLink{Prefix: "q", ID: "p1"}
	mustUpdate(t, store, func(tx *kv.Tx) error {
		parentFields, err := tx.HGetAll(keys.JobHash("p1"))
		require.NoError(t, err)
		return MoveParentIfNeeded(tx, testLogger(), parent, parentFields, childKey, "child failed", 2000)
	})

	mustUpdate(t, store, func(tx *kv.Tx) error {
		waitMembers, err := tx.LMembers(keys.Wait())
		require.NoError(t, err)
		require.Contains(t, waitMembers, "p1")
		return nil
	})
}
