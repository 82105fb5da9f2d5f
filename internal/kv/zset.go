package kv

import "sort"

// ZMember is one member/score pair in a sorted set (the prioritized,
// delayed, completed, and failed sets).
type ZMember struct {
	Member string `json:"member"`
	Score  int64  `json:"score"`
}

// zsetRecord is the on-disk shape of a sorted set: an unordered map keyed
// by member, so member lookups and re-scoring don't require a full rewrite
// of an ordered slice. Ordering is computed on read, the same in-memory
// sort-on-read approach this store uses for other listings given the
// store's lack of native range queries.
type zsetRecord struct {
	Members map[string]int64 `json:"members"`
}

func (t *Tx) loadZSet(key string) (zsetRecord, bool, error) {
	var rec zsetRecord
	ok, err := t.getJSON(key, &rec)
	if err != nil {
		return zsetRecord{}, false, err
	}
	if rec.Members == nil {
		rec.Members = map[string]int64{}
	}
	return rec, ok, nil
}

// ZAdd sets member's score in the sorted set at key, inserting it if new.
func (t *Tx) ZAdd(key, member string, score int64) error {
	rec, _, err := t.loadZSet(key)
	if err != nil {
		return err
	}
	rec.Members[member] = score
	return t.putJSON(key, rec)
}

// ZRem removes members from the sorted set at key.
func (t *Tx) ZRem(key string, members ...string) error {
	rec, ok, err := t.loadZSet(key)
	if err != nil || !ok {
		return err
	}
	for _, m := range members {
		delete(rec.Members, m)
	}
	return t.putJSON(key, rec)
}

// ZScore returns member's score. ok is false if the member is absent.
func (t *Tx) ZScore(key, member string) (int64, bool, error) {
	rec, ok, err := t.loadZSet(key)
	if err != nil || !ok {
		return 0, false, err
	}
	score, present := rec.Members[member]
	return score, present, nil
}

// ZCard returns the number of members in the sorted set at key.
func (t *Tx) ZCard(key string) (int, error) {
	rec, _, err := t.loadZSet(key)
	if err != nil {
		return 0, err
	}
	return len(rec.Members), nil
}

// ZRange returns every member of the sorted set at key, ascending by score.
// Ties are broken by member name for deterministic ordering.
func (t *Tx) ZRange(key string) ([]ZMember, error) {
	rec, ok, err := t.loadZSet(key)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]ZMember, 0, len(rec.Members))
	for m, s := range rec.Members {
		out = append(out, ZMember{Member: m, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out, nil
}

// ZRangeByScore returns members scored within [min, max], ascending, capped
// at limit entries (0 means unlimited). Used for the delayed set's
// promote-due-jobs scan (spec.md §4.7) and age-based trimming.
func (t *Tx) ZRangeByScore(key string, min, max int64, limit int) ([]ZMember, error) {
	all, err := t.ZRange(key)
	if err != nil {
		return nil, err
	}
	out := make([]ZMember, 0, len(all))
	for _, zm := range all {
		if zm.Score >= min && zm.Score <= max {
			out = append(out, zm)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ZPopMin removes and returns the lowest-scored member, the priority set's
// next-to-run job (spec.md §4.7 step 4: lower packed score runs first).
func (t *Tx) ZPopMin(key string) (ZMember, bool, error) {
	all, err := t.ZRange(key)
	if err != nil || len(all) == 0 {
		return ZMember{}, false, err
	}
	min := all[0]
	if err := t.ZRem(key, min.Member); err != nil {
		return ZMember{}, false, err
	}
	return min, true, nil
}
