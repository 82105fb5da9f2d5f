package queuecore

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/kv"
)

// newTestStore opens a throwaway BadgerDB under t.TempDir(), the same
// temp-directory-per-test pattern the teacher's
// storage/badger/job_storage_test.go uses (modernized from
// ioutil.TempDir to t.TempDir(), per SPEC_FULL.md §8's expansion).
func newTestStore(t *testing.T) *kv.Store {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return kv.NewStore(db, testLogger())
}

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func mustUpdate(t *testing.T, store *kv.Store, fn func(tx *kv.Tx) error) {
	t.Helper()
	require.NoError(t, store.Update(context.Background(), fn))
}

// seedJob writes a minimal job hash plus an active-list membership and
// lock, the fixture every finish/retry test starts from.
func seedJob(t *testing.T, store *kv.Store, keys Keys, jobID, token string, fields map[string]string) {
	t.Helper()
	mustUpdate(t, store, func(tx *kv.Tx) error {
		if err := tx.HSet(keys.JobHash(jobID), fields); err != nil {
			return err
		}
		if err := tx.RPush(keys.Active(), jobID); err != nil {
			return err
		}
		return tx.SetWithTTL(keys.JobLock(jobID), token, 0)
	})
}
