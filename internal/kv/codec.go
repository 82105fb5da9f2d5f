package kv

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// getJSON reads key and decodes it into out. It returns ok=false without
// error when the key does not exist.
func (t *Tx) getJSON(key string, out interface{}) (bool, error) {
	item, err := t.txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	err = item.Value(func(val []byte) error {
		if len(val) == 0 {
			return nil
		}
		return json.Unmarshal(val, out)
	})
	if err != nil {
		return false, fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return true, nil
}

// putJSON encodes value and writes it to key within the current transaction.
func (t *Tx) putJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv: encode %q: %w", key, err)
	}
	if err := t.txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("kv: put %q: %w", key, err)
	}
	return nil
}
