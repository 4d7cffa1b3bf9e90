package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/interfaces"
)

// KVStorage implements interfaces.KeyValueStorage on the raw badger store.
// Used for small process-wide values, most notably the worker heartbeat.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

const kvPrefix = "kv:"

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) *KVStorage {
	return &KVStorage{db: db, logger: logger}
}

// Set writes a value. Writes are last-write-wins; the heartbeat relies on
// this being an idempotent overwrite.
func (s *KVStorage) Set(ctx context.Context, key, value string) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(kvPrefix+key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Get reads a value, returning ErrNotFound for missing keys
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(kvPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err == badgerdb.ErrKeyNotFound {
		return "", fmt.Errorf("key %s: %w", key, interfaces.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}
