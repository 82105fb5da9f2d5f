package kv

import "strconv"

// hashRecord is the on-disk shape of a hash primitive (the job hash, meta
// hash, and similar field/value maps): one JSON blob per logical object,
// read back and rewritten in full on every mutation.
type hashRecord struct {
	Fields map[string]string `json:"fields"`
}

// HGetAll returns every field of the hash stored at key. A missing hash
// returns an empty, non-nil map.
func (t *Tx) HGetAll(key string) (map[string]string, error) {
	var rec hashRecord
	ok, err := t.getJSON(key, &rec)
	if err != nil {
		return nil, err
	}
	if !ok || rec.Fields == nil {
		return map[string]string{}, nil
	}
	return rec.Fields, nil
}

// HGet returns the value of a single field. ok is false if the hash or the
// field does not exist.
func (t *Tx) HGet(key, field string) (string, bool, error) {
	fields, err := t.HGetAll(key)
	if err != nil {
		return "", false, err
	}
	v, ok := fields[field]
	return v, ok, nil
}

// HSet merges the given fields into the hash at key, creating it if absent.
func (t *Tx) HSet(key string, fields map[string]string) error {
	current, err := t.HGetAll(key)
	if err != nil {
		return err
	}
	for k, v := range fields {
		current[k] = v
	}
	return t.putJSON(key, hashRecord{Fields: current})
}

// HDel removes the given fields from the hash at key. Removing the last
// field does not delete the hash record itself; callers that need that
// (e.g. the job hash on deletion) call Del explicitly.
func (t *Tx) HDel(key string, fields ...string) error {
	current, err := t.HGetAll(key)
	if err != nil {
		return err
	}
	for _, f := range fields {
		delete(current, f)
	}
	return t.putJSON(key, hashRecord{Fields: current})
}

// HIncrBy atomically increments an integer-valued field and returns the new
// value. A missing field starts from 0.
func (t *Tx) HIncrBy(key, field string, delta int64) (int64, error) {
	current, err := t.HGetAll(key)
	if err != nil {
		return 0, err
	}
	var n int64
	if v, ok := current[field]; ok && v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n += delta
	current[field] = strconv.FormatInt(n, 10)
	if err := t.putJSON(key, hashRecord{Fields: current}); err != nil {
		return 0, err
	}
	return n, nil
}
