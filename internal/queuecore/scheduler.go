package queuecore

import (
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/kv"
)

// maxPromotePerSweep bounds how many due delayed jobs one scheduler
// invocation promotes (spec.md §4.7 step 2: "ZRANGEBYSCORE delayed -inf
// (timestamp) LIMIT 0 K"). A single finish/retry call should not be made
// to do unbounded work just because a large batch of delays matured at
// once; the rest are picked up on the next invocation.
const maxPromotePerSweep = 1000

// PromoteDelayed implements spec.md §4.7 step 2: up to maxPromotePerSweep
// delayed jobs whose target timestamp is at or before timestamp, lowest
// score first, are moved into the wait list or priority set,
// the marker is set if the queue can accept more work, and a waiting event
// with prev=delayed is emitted for each. Returns the number promoted.
func PromoteDelayed(tx *kv.Tx, logger arbor.ILogger, keys Keys, timestamp int64) (int, error) {
	due, err := tx.ZRangeByScore(keys.Delayed(), math.MinInt64, timestamp, maxPromotePerSweep)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	pausedOrMaxed, err := IsPausedOrMaxed(tx, keys)
	if err != nil {
		return 0, err
	}

	for _, m := range due {
		if err := tx.ZRem(keys.Delayed(), m.Member); err != nil {
			return 0, err
		}
		fields, err := tx.HGetAll(keys.JobHash(m.Member))
		if err != nil {
			return 0, err
		}
		priority := parseInt64(fields["priority"])
		if err := EnqueueReady(tx, keys, m.Member, priority, "RPUSH"); err != nil {
			return 0, err
		}
		if !pausedOrMaxed {
			if err := SetMarker(tx, keys); err != nil {
				return 0, err
			}
		}
		if err := Emit(tx, keys, EventWaiting, m.Member, map[string]string{"prev": "delayed"}); err != nil {
			return 0, err
		}
	}

	logger.Debug().Int("count", len(due)).Msg("promoted delayed jobs")
	return len(due), nil
}

// RateLimitTTL implements spec.md §4.7 step 3: when a limiter is
// configured and its window counter has reached the max, returns the
// remaining window in milliseconds; otherwise 0. A limiter with Max <= 0,
// or an absent counter, disables the check (spec.md §8 boundary behavior:
// "limiter absent skips rate-limit checks").
func RateLimitTTL(tx *kv.Tx, keys Keys, limiter *Limiter) (int64, error) {
	if limiter == nil || limiter.Max <= 0 {
		return 0, nil
	}
	value, ok, err := tx.GetString(keys.Limiter())
	if err != nil || !ok {
		return 0, err
	}
	if parseInt64(value) < limiter.Max {
		return 0, nil
	}
	remaining, ok, err := tx.TTL(keys.Limiter())
	if err != nil || !ok {
		return 0, err
	}
	return remaining.Milliseconds(), nil
}

// incrLimiter increments the rate-limit counter, applying PEXPIRE only on
// the window's first increment (spec.md §4.7 prepareJobForProcessing);
// later increments within the same window reapply the already-remaining
// TTL rather than resetting the expiry forward.
func incrLimiter(tx *kv.Tx, keys Keys, limiter *Limiter) error {
	if limiter == nil || limiter.Max <= 0 {
		return nil
	}
	_, existed, err := tx.GetString(keys.Limiter())
	if err != nil {
		return err
	}
	ttl := time.Duration(limiter.Duration) * time.Millisecond
	if existed {
		if remaining, ok, err := tx.TTL(keys.Limiter()); err == nil && ok {
			ttl = remaining
		} else if err != nil {
			return err
		}
	}
	_, err = tx.IncrBy(keys.Limiter(), 1, ttl)
	return err
}

// PrepareJobForProcessing implements spec.md §4.7's prepareJobForProcessing:
// bumps the rate limiter, stamps processedOn on the job hash, and emits the
// active event. Returns the job's full hash so the caller can hand it back
// to the worker without a second round trip.
func PrepareJobForProcessing(tx *kv.Tx, keys Keys, jobID string, timestamp int64, limiter *Limiter) (map[string]string, error) {
	if err := incrLimiter(tx, keys, limiter); err != nil {
		return nil, err
	}
	if err := tx.HSet(keys.JobHash(jobID), map[string]string{"processedOn": formatInt64(timestamp)}); err != nil {
		return nil, err
	}
	if err := Emit(tx, keys, EventActive, jobID, map[string]string{"prev": "waiting"}); err != nil {
		return nil, err
	}
	return tx.HGetAll(keys.JobHash(jobID))
}

// ScheduleResult is the scheduler's next-job selection outcome (spec.md
// §4.7, §6's finish-active-job return tuple).
type ScheduleResult struct {
	JobData       map[string]string
	JobID         string
	RateLimitTTL  int64
	NextDelayedTS int64
}

// Schedule implements the full next-job selection of spec.md §4.7, steps
// 1-9: promote due delayed jobs, check the rate limiter, check
// paused/maxed, then pop wait before priority, falling back to reporting
// the next delayed timestamp or emitting drained when nothing is ready.
func Schedule(tx *kv.Tx, logger arbor.ILogger, keys Keys, timestamp int64, limiter *Limiter) (ScheduleResult, error) {
	pausedOrMaxed, err := IsPausedOrMaxed(tx, keys)
	if err != nil {
		return ScheduleResult{}, err
	}

	if _, err := PromoteDelayed(tx, logger, keys, timestamp); err != nil {
		return ScheduleResult{}, err
	}

	ttl, err := RateLimitTTL(tx, keys, limiter)
	if err != nil {
		return ScheduleResult{}, err
	}
	if ttl > 0 {
		return ScheduleResult{RateLimitTTL: ttl}, nil
	}

	if pausedOrMaxed {
		return ScheduleResult{}, nil
	}

	if jobID, ok, err := tx.LPop(keys.Wait()); err != nil {
		return ScheduleResult{}, err
	} else if ok {
		return prepareAndActivate(tx, keys, jobID, timestamp, limiter)
	}

	if m, ok, err := tx.ZPopMin(keys.Prioritized()); err != nil {
		return ScheduleResult{}, err
	} else if ok {
		return prepareAndActivate(tx, keys, m.Member, timestamp, limiter)
	}

	delayed, err := tx.ZRange(keys.Delayed())
	if err != nil {
		return ScheduleResult{}, err
	}
	if len(delayed) > 0 {
		return ScheduleResult{NextDelayedTS: delayed[0].Score}, nil
	}

	empty, err := queueFullyDrained(tx, keys)
	if err != nil {
		return ScheduleResult{}, err
	}
	if empty {
		if err := Emit(tx, keys, EventDrained, "", nil); err != nil {
			return ScheduleResult{}, err
		}
	}
	return ScheduleResult{}, nil
}

func prepareAndActivate(tx *kv.Tx, keys Keys, jobID string, timestamp int64, limiter *Limiter) (ScheduleResult, error) {
	if err := PushToActive(tx, keys, jobID); err != nil {
		return ScheduleResult{}, err
	}
	jobData, err := PrepareJobForProcessing(tx, keys, jobID, timestamp, limiter)
	if err != nil {
		return ScheduleResult{}, err
	}
	return ScheduleResult{JobData: jobData, JobID: jobID}, nil
}

func queueFullyDrained(tx *kv.Tx, keys Keys) (bool, error) {
	waitLen, err := tx.LLen(keys.Wait())
	if err != nil {
		return false, err
	}
	activeLen, err := tx.LLen(keys.Active())
	if err != nil {
		return false, err
	}
	prioritizedLen, err := tx.ZCard(keys.Prioritized())
	if err != nil {
		return false, err
	}
	return waitLen == 0 && activeLen == 0 && prioritizedLen == 0, nil
}
