package queuecore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/queuecore/internal/kv"
)

func TestFinishActiveJob_CompleteAndFetchNext(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")

	seedJob(t, store, keys, "j1", "tok-1", map[string]string{"priority": "0", "atm": "0"})

	mustUpdate(t, store, func(tx *kv.Tx) error {
		if err := tx.HSet(keys.JobHash("j2"), map[string]string{"priority": "0"}); err != nil {
			return err
		}
		return tx.RPush(keys.Wait(), "j2")
	})

	result, err := FinishActiveJob(context.Background(), store, testLogger(), FinishArgs{
		Prefix:      "q",
		JobID:       "j1",
		Timestamp:   1000,
		ResultField: "returnvalue",
		ResultValue: "42",
		Target:      "completed",
		FetchNext:   true,
		Opts: Opts{
			Token:          "tok-1",
			MaxMetricsSize: 10,
		},
	})
	require.NoError(t, err)
	require.Nil(t, result.Err)
	require.Equal(t, "j2", result.JobID)
	require.NotNil(t, result.JobData)

	require.NoError(t, store.View(context.Background(), func(tx *kv.Tx) error {
		_, locked, err := tx.GetString(keys.JobLock("j1"))
		require.NoError(t, err)
		require.False(t, locked)

		activeMembers, err := tx.LMembers(keys.Active())
		require.NoError(t, err)
		require.NotContains(t, activeMembers, "j1")
		require.Contains(t, activeMembers, "j2", "fetched next job must be pushed onto active")

		_, onCompleted, err := tx.ZScore(keys.Completed(), "j1")
		require.NoError(t, err)
		require.True(t, onCompleted)

		fields, err := tx.HGetAll(keys.JobHash("j1"))
		require.NoError(t, err)
		require.Equal(t, "42", fields["returnvalue"])
		require.Equal(t, "1", fields["atm"])
		return nil
	}))
}

func TestFinishActiveJob_FailWithRetriesExhausted(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")
	seedJob(t, store, keys, "j1", "tok-1", map[string]string{"priority": "0", "atm": "2"})

	result, err := FinishActiveJob(context.Background(), store, testLogger(), FinishArgs{
		Prefix:      "q",
		JobID:       "j1",
		Timestamp:   1000,
		ResultField: "failedReason",
		ResultValue: "boom",
		Target:      "failed",
		Opts: Opts{
			Token:    "tok-1",
			Attempts: 3,
		},
	})
	require.NoError(t, err)
	require.Nil(t, result.Err)

	require.NoError(t, store.View(context.Background(), func(tx *kv.Tx) error {
		entries, err := tx.XRange(keys.Events(), 0)
		require.NoError(t, err)
		var sawExhausted bool
		for _, e := range entries {
			if e.Fields["event"] == EventRetriesExhausted {
				sawExhausted = true
				require.Equal(t, "3", e.Fields["attemptsMade"])
			}
		}
		require.True(t, sawExhausted, "atm reaching attempts must emit retries-exhausted")
		return nil
	}))
}

func TestFinishActiveJob_RateLimitedReportsTTLWithoutFetchingAJob(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")
	seedJob(t, store, keys, "j1", "tok-1", map[string]string{"priority": "0", "atm": "0"})

	mustUpdate(t, store, func(tx *kv.Tx) error {
		if err := tx.HSet(keys.JobHash("j2"), map[string]string{"priority": "0"}); err != nil {
			return err
		}
		if err := tx.RPush(keys.Wait(), "j2"); err != nil {
			return err
		}
		_, err := tx.IncrBy(keys.Limiter(), 5, 60*time.Second)
		return err
	})

	result, err := FinishActiveJob(context.Background(), store, testLogger(), FinishArgs{
		Prefix:      "q",
		JobID:       "j1",
		Timestamp:   1000,
		ResultField: "returnvalue",
		ResultValue: "ok",
		Target:      "completed",
		FetchNext:   true,
		Opts: Opts{
			Token:   "tok-1",
			Limiter: &Limiter{Max: 5, Duration: 60_000},
		},
	})
	require.NoError(t, err)
	require.Nil(t, result.Err)
	require.Empty(t, result.JobID)
	require.Greater(t, result.RateLimitTTL, int64(0))
}

func TestFinishActiveJob_MissingLockIsRejected(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeys("q")
	mustUpdate(t, store, func(tx *kv.Tx) error {
		return tx.HSet(keys.JobHash("j1"), map[string]string{"priority": "0"})
	})

	result, err := FinishActiveJob(context.Background(), store, testLogger(), FinishArgs{
		Prefix:      "q",
		JobID:       "j1",
		Timestamp:   1000,
		ResultField: "returnvalue",
		ResultValue: "ok",
		Target:      "completed",
		Opts:        Opts{Token: "tok-1"},
	})
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, ErrMissingLock)
}

func TestFinishActiveJob_MissingJobLeavesNoSideEffects(t *testing.T) {
	store := newTestStore(t)

	result, err := FinishActiveJob(context.Background(), store, testLogger(), FinishArgs{
		Prefix:      "q",
		JobID:       "ghost",
		Timestamp:   1000,
		ResultField: "returnvalue",
		ResultValue: "ok",
		Target:      "completed",
		Opts:        Opts{Token: "tok-1"},
	})
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, ErrMissingJob)

	keys := NewKeys("q")
	require.NoError(t, store.View(context.Background(), func(tx *kv.Tx) error {
		card, err := tx.ZCard(keys.Completed())
		require.NoError(t, err)
		require.Equal(t, 0, card, "a rejected finish must not have written anything")
		return nil
	}))
}
