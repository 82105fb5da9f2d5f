package queuecore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/queuecore/internal/kv"
)

func TestRetryFailedJob_MovesJobBackToPriorityAndBumpsAtm(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")
	seedJob(t, store, keys, "j1", "tok-1", map[string]string{"priority": "5", "atm": "1"})

	err := RetryFailedJob(context.Background(), store, testLogger(), RetryArgs{
		Prefix:    "q",
		JobID:     "j1",
		Timestamp: 1000,
		PushCmd:   "RPUSH",
		Token:     "tok-1",
	})
	require.NoError(t, err)

	require.NoError(t, store.View(context.Background(), func(tx *kv.Tx) error {
		_, locked, err := tx.GetString(keys.JobLock("j1"))
		require.NoError(t, err)
		require.False(t, locked)

		activeMembers, err := tx.LMembers(keys.Active())
		require.NoError(t, err)
		require.NotContains(t, activeMembers, "j1")

		card, err := tx.ZCard(keys.Prioritized())
		require.NoError(t, err)
		require.Equal(t, 1, card, "priority 5 job must land in the priority set, not the plain wait list")

		_, onPrioritySet, err := tx.ZScore(keys.Prioritized(), "j1")
		require.NoError(t, err)
		require.True(t, onPrioritySet)

		fields, err := tx.HGetAll(keys.JobHash("j1"))
		require.NoError(t, err)
		require.Equal(t, "2", fields["atm"])

		entries, err := tx.XRange(keys.Events(), 0)
		require.NoError(t, err)
		last := entries[len(entries)-1]
		require.Equal(t, EventWaiting, last.Fields["event"])
		require.Equal(t, "failed", last.Fields["prev"])
		return nil
	}))
}

func TestRetryFailedJob_ZeroPriorityGoesToWaitList(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")
	seedJob(t, store, keys, "j1", "tok-1", map[string]string{"priority": "0", "atm": "0"})

	err := RetryFailedJob(context.Background(), store, testLogger(), RetryArgs{
		Prefix:    "q",
		JobID:     "j1",
		Timestamp: 1000,
		PushCmd:   "RPUSH",
		Token:     "tok-1",
	})
	require.NoError(t, err)

	require.NoError(t, store.View(context.Background(), func(tx *kv.Tx) error {
		waitMembers, err := tx.LMembers(keys.Wait())
		require.NoError(t, err)
		require.Contains(t, waitMembers, "j1")
		return nil
	}))
}

func TestRetryFailedJob_PromotesDueDelayedJobsEvenIfTargetJobIsMissing(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")

	mustUpdate(t, store, func(tx *kv.Tx) error {
		if err := tx.HSet(keys.JobHash("delayed-job"), map[string]string{"priority": "0"}); err != nil {
			return err
		}
		return tx.ZAdd(keys.Delayed(), "delayed-job", 500)
	})

	err := RetryFailedJob(context.Background(), store, testLogger(), RetryArgs{
		Prefix:    "q",
		JobID:     "ghost",
		Timestamp: 1000,
		PushCmd:   "RPUSH",
		Token:     "tok",
	})
	require.ErrorIs(t, err, ErrMissingJob)

	require.NoError(t, store.View(context.Background(), func(tx *kv.Tx) error {
		waitMembers, err := tx.LMembers(keys.Wait())
		require.NoError(t, err)
		require.Contains(t, waitMembers, "delayed-job", "delayed promotion must happen even when the retry target is missing")
		return nil
	}))
}

func TestRetryFailedJob_WrongTokenIsRejectedWithNoSideEffects(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")
	seedJob(t, store, keys, "j1", "tok-1", map[string]string{"priority": "0", "atm": "0"})

	err := RetryFailedJob(context.Background(), store, testLogger(), RetryArgs{
		Prefix:    "q",
		JobID:     "j1",
		Timestamp: 1000,
		PushCmd:   "RPUSH",
		Token:     "wrong-token",
	})
	require.ErrorIs(t, err, ErrNotLockOwner)

	require.NoError(t, store.View(context.Background(), func(tx *kv.Tx) error {
		_, locked, err := tx.GetString(keys.JobLock("j1"))
		require.NoError(t, err)
		require.True(t, locked, "a rejected retry must leave the lock untouched")

		activeMembers, err := tx.LMembers(keys.Active())
		require.NoError(t, err)
		require.Contains(t, activeMembers, "j1")
		return nil
	}))
}
