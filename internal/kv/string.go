package kv

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// SetWithTTL stores value at key with an expiration, used for the marker
// key and the rate-limit counter. A ttl <= 0 stores without expiration.
func (t *Tx) SetWithTTL(key, value string, ttl time.Duration) error {
	entry := badger.NewEntry([]byte(key), []byte(value))
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	if err := t.txn.SetEntry(entry); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

// GetString returns the raw string stored at key. ok is false if the key is
// absent or has expired.
func (t *Tx) GetString(key string) (string, bool, error) {
	item, err := t.txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	var out string
	err = item.Value(func(val []byte) error {
		out = string(val)
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("kv: read %q: %w", key, err)
	}
	return out, true, nil
}

// TTL returns the remaining time-to-live for key. ok is false if the key is
// absent; remaining is 0 if the key has no expiration set.
func (t *Tx) TTL(key string) (time.Duration, bool, error) {
	item, err := t.txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("kv: ttl %q: %w", key, err)
	}
	expiresAt := item.ExpiresAt()
	if expiresAt == 0 {
		return 0, true, nil
	}
	remaining := time.Until(time.Unix(int64(expiresAt), 0))
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true, nil
}

// IncrBy atomically increments the integer stored at key by delta and
// (re)applies ttl on every call, the same semantics Redis's INCRBY+EXPIRE
// pair gives a rate-limit counter. A missing or expired key starts from 0.
func (t *Tx) IncrBy(key string, delta int64, ttl time.Duration) (int64, error) {
	current, ok, err := t.GetString(key)
	if err != nil {
		return 0, err
	}
	var n int64
	if ok && current != "" {
		n, err = strconv.ParseInt(current, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("kv: incr %q: %w", key, err)
		}
	}
	n += delta
	if err := t.SetWithTTL(key, strconv.FormatInt(n, 10), ttl); err != nil {
		return 0, err
	}
	return n, nil
}
