package kv

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StreamEntry is one published event (spec.md §4.5 event emitter: job
// lifecycle events recorded to a capped stream).
type StreamEntry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// streamRecord is the on-disk shape of a capped append log. entries are
// kept sorted by sequence; seq is the last assigned sequence number so IDs
// stay monotonic across XAdd calls within the same millisecond.
type streamRecord struct {
	Entries []StreamEntry `json:"entries"`
	Seq     int64         `json:"seq"`
}

func (t *Tx) loadStream(key string) (streamRecord, error) {
	var rec streamRecord
	_, err := t.getJSON(key, &rec)
	return rec, err
}

// XAdd trims the stream at key down to maxLen-1 entries (dropping the
// oldest) before appending the new entry, then appends it — the
// "trim-before-emit" discipline of spec.md §4.5, so the stream never
// transiently exceeds maxLen even under composition with other writes in
// the same transaction. maxLen <= 0 disables trimming.
func (t *Tx) XAdd(key string, fields map[string]string, maxLen int64) (string, error) {
	rec, err := t.loadStream(key)
	if err != nil {
		return "", err
	}

	if maxLen > 0 && int64(len(rec.Entries)) >= maxLen {
		drop := int64(len(rec.Entries)) - maxLen + 1
		rec.Entries = rec.Entries[drop:]
	}

	rec.Seq++
	id := fmt.Sprintf("%d-%d", Now().UnixMilli(), rec.Seq)
	rec.Entries = append(rec.Entries, StreamEntry{ID: id, Fields: fields})

	if err := t.putJSON(key, rec); err != nil {
		return "", err
	}
	return id, nil
}

// XTrim drops the oldest entries from the stream at key until at most
// maxLen remain, independent of any append. Used at procedure entry for
// the "trim-before-emit" discipline of spec.md §4.5. maxLen <= 0 is a
// no-op.
func (t *Tx) XTrim(key string, maxLen int64) error {
	if maxLen <= 0 {
		return nil
	}
	rec, err := t.loadStream(key)
	if err != nil {
		return err
	}
	if int64(len(rec.Entries)) <= maxLen {
		return nil
	}
	drop := int64(len(rec.Entries)) - maxLen
	rec.Entries = rec.Entries[drop:]
	return t.putJSON(key, rec)
}

// XRange returns up to count entries from the stream at key, oldest first.
// count <= 0 returns every entry.
func (t *Tx) XRange(key string, count int) ([]StreamEntry, error) {
	rec, err := t.loadStream(key)
	if err != nil {
		return nil, err
	}
	entries := rec.Entries
	sort.Slice(entries, func(i, j int) bool { return streamIDLess(entries[i].ID, entries[j].ID) })
	if count > 0 && len(entries) > count {
		entries = entries[:count]
	}
	return entries, nil
}

// XLen returns the number of entries currently retained in the stream.
func (t *Tx) XLen(key string) (int, error) {
	rec, err := t.loadStream(key)
	if err != nil {
		return 0, err
	}
	return len(rec.Entries), nil
}

func streamIDLess(a, b string) bool {
	am, as := splitStreamID(a)
	bm, bs := splitStreamID(b)
	if am != bm {
		return am < bm
	}
	return as < bs
}

func splitStreamID(id string) (int64, int64) {
	parts := strings.SplitN(id, "-", 2)
	ms, _ := strconv.ParseInt(parts[0], 10, 64)
	var seq int64
	if len(parts) > 1 {
		seq, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	return ms, seq
}
