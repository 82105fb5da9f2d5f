// Package kv implements the hash, set, sorted-set, list, stream, and
// string+TTL primitives the queuecore procedures compose, on top of a single
// BadgerDB transaction. Every primitive is a thin JSON codec over one Badger
// key, the same pattern internal/storage/badger uses for its job records,
// so that several primitive calls inside one procedure commit atomically as
// part of the same *badger.Txn.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
)

// Store wraps a raw Badger handle and exposes transaction-scoped primitive
// operations through Tx. It deliberately does not go through badgerhold:
// badgerhold is a document store keyed by Go struct type, while the
// procedures here need byte-key control and multi-key atomicity.
type Store struct {
	db     *badger.DB
	logger arbor.ILogger
}

// NewStore wraps an already-open Badger handle, such as the one returned by
// (*badger.BadgerDB).DB() in internal/storage/badger.
func NewStore(db *badger.DB, logger arbor.ILogger) *Store {
	return &Store{db: db, logger: logger}
}

// Update runs fn inside a read-write Badger transaction and commits it when
// fn returns nil. A transaction conflict (badger.ErrConflict) is retried
// with backoff, the same write-contention treatment retryOnBusy gives
// SQLite busy errors elsewhere in this codebase's lineage.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	return retryOnConflict(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return fn(&Tx{txn: txn})
		})
	})
}

// View runs fn inside a read-only Badger transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn, readOnly: true})
	})
}

// Tx is a single Badger transaction scoped to one procedure call. All
// primitive operations below take a Tx, never a Store, so that an
// orchestrator composing several of them (FinishActiveJob, RetryFailedJob)
// gets all-or-nothing commit semantics for free.
type Tx struct {
	txn      *badger.Txn
	readOnly bool
}

// Now is the clock XAdd stamps stream entry IDs with. It is a package
// variable so it can be replaced; key TTLs are tracked by Badger itself and
// do not read it.
var Now = time.Now

// Exists reports whether key has any value, regardless of primitive type.
func (t *Tx) Exists(key string) (bool, error) {
	_, err := t.txn.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv: exists %q: %w", key, err)
	}
	return true, nil
}

// Del deletes one or more keys outright, ignoring missing ones.
func (t *Tx) Del(keys ...string) error {
	for _, key := range keys {
		if err := t.txn.Delete([]byte(key)); err != nil && err != badger.ErrKeyNotFound {
			return fmt.Errorf("kv: del %q: %w", key, err)
		}
	}
	return nil
}
