package queuecore

import "github.com/ternarybob/queuecore/internal/kv"

// counterBits is the width of the monotonic-counter tiebreaker packed into
// the low bits of a priority-set score (spec.md §3: "score = (priority<<N)
// | counter"). 40 bits gives over a trillion counter values before
// rollover, comfortably more than any single queue's lifetime job count,
// while leaving the high 24 bits for priority (spec.md allows priorities
// 1-20 in practice; 24 bits is generous headroom).
const counterBits = 40

const counterMask = (int64(1) << counterBits) - 1

// PackPriorityScore computes a priority set member's score: the priority in
// the high bits, the tiebreaker counter in the low counterBits bits, so
// that ZPopMin (lowest score first) yields the highest-priority job first,
// ties broken by insertion order (spec.md §3, §4.7 step 7).
func PackPriorityScore(priority, counter int64) int64 {
	return (priority << counterBits) | (counter & counterMask)
}

// NextPriorityCounter atomically increments and returns the queue's
// monotonic priority tiebreaker (the "P:pc" integer of spec.md §3).
func NextPriorityCounter(tx *kv.Tx, keys Keys) (int64, error) {
	return tx.IncrBy(keys.PriorityCounter(), 1, 0)
}
