package queuecore

import (
	"math"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/kv"
)

// FinalizeArgs carries everything the finalizer (spec.md §4.4) needs beyond
// the queue's own Keys: the job being finalized, its retention policy, and
// enough parent linkage to clean up a back-reference on outright deletion.
type FinalizeArgs struct {
	JobID       string
	KeepJobs    KeepJobs
	Target      string // "completed" | "failed"
	ResultField string // "returnvalue" | "failedReason"
	ResultValue string
	Timestamp   int64

	// ParentPrefix/ParentID/ChildKey are only needed for the keepJobs.count
	// == 0 deletion path, to remove this job's entry from its parent's
	// processed map (spec.md §4.4: "if the job has a parent, decrement
	// /remove the corresponding back-reference in the parent").
	ParentPrefix string
	ParentID     string
	ChildKey     string
}

// Finalize implements spec.md §4.4. When KeepJobs.Count is the pointer to
// zero, the job is deleted outright along with every sub-key; otherwise it
// is written into the target (completed/failed) sorted set and then
// trimmed by age and/or count, in that order, so the job just finalized is
// never pruned by its own trim pass when count is large but age is small
// (spec.md's ordering requirement).
func Finalize(tx *kv.Tx, logger arbor.ILogger, keys Keys, args FinalizeArgs) error {
	if args.KeepJobs.Count != nil && *args.KeepJobs.Count == 0 {
		return deleteJobKeysFull(tx, keys, args.JobID, args.ParentPrefix, args.ParentID, args.ChildKey)
	}

	targetSet := keys.TargetSet(args.Target)
	if err := tx.ZAdd(targetSet, args.JobID, args.Timestamp); err != nil {
		return err
	}
	if err := tx.HSet(keys.JobHash(args.JobID), map[string]string{
		args.ResultField: args.ResultValue,
		"finishedOn":     formatInt64(args.Timestamp),
	}); err != nil {
		return err
	}

	if args.KeepJobs.Age != nil {
		if err := trimByAge(tx, keys, targetSet, args.Timestamp, *args.KeepJobs.Age); err != nil {
			return err
		}
	}
	if args.KeepJobs.Count != nil && *args.KeepJobs.Count > 0 {
		if err := trimByCount(tx, keys, targetSet, *args.KeepJobs.Count); err != nil {
			return err
		}
	}

	logger.Debug().Str("job_id", args.JobID).Str("target", args.Target).Msg("job finalized")
	return nil
}

func trimByAge(tx *kv.Tx, keys Keys, targetSet string, timestamp, ageSeconds int64) error {
	cutoff := timestamp - ageSeconds*1000
	stale, err := tx.ZRangeByScore(targetSet, math.MinInt64, cutoff-1, 0)
	if err != nil {
		return err
	}
	for _, m := range stale {
		if err := removeJobKeysOnly(tx, keys, m.Member); err != nil {
			return err
		}
		if err := tx.ZRem(targetSet, m.Member); err != nil {
			return err
		}
	}
	return nil
}

func trimByCount(tx *kv.Tx, keys Keys, targetSet string, maxCount int64) error {
	all, err := tx.ZRange(targetSet)
	if err != nil {
		return err
	}
	excess := int64(len(all)) - maxCount
	for i := int64(0); i < excess; i++ {
		m := all[i]
		if err := removeJobKeysOnly(tx, keys, m.Member); err != nil {
			return err
		}
		if err := tx.ZRem(targetSet, m.Member); err != nil {
			return err
		}
	}
	return nil
}

// removeJobKeysOnly deletes a finalized job's hash and sub-keys during
// age/count trimming. Trim victims aren't assumed to carry live parent
// linkage worth cleaning up here; spec.md's parent back-reference cleanup
// is specific to the keepJobs.count==0 immediate-deletion path.
func removeJobKeysOnly(tx *kv.Tx, keys Keys, jobID string) error {
	deid, _, err := tx.HGet(keys.JobHash(jobID), "deid")
	if err != nil {
		return err
	}
	if err := tx.Del(
		keys.JobHash(jobID),
		keys.JobLogs(jobID),
		keys.Processed(jobID),
		keys.Dependencies(jobID),
		keys.Results(jobID),
	); err != nil {
		return err
	}
	if deid != "" {
		if err := tx.Del(keys.Debounce(deid)); err != nil {
			return err
		}
	}
	return nil
}

func deleteJobKeysFull(tx *kv.Tx, keys Keys, jobID, parentPrefix, parentID, childKey string) error {
	if err := removeJobKeysOnly(tx, keys, jobID); err != nil {
		return err
	}
	if parentPrefix != "" && parentID != "" {
		parentKeys := NewKeys(parentPrefix)
		// Only the processed-map back-reference is removed; the parent's
		// retained results list is owned by the parent's own lifecycle and
		// is left untouched (spec.md §4.4).
		if err := tx.HDel(parentKeys.Processed(parentID), childKey); err != nil {
			return err
		}
	}
	return nil
}
