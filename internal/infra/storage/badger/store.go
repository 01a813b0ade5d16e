// Package badger implements the storage interfaces of the module on an
// embedded Badger database, for single node deployments without Redis.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/walletstream/internal/txmanager"

	"github.com/dgraph-io/badger/v4"
)

type store struct {
	db *badger.DB
}

// Close flushes and closes the database.
func (s *store) Close() error {
	return s.db.Close()
}

// config holds the optional settings of a store.
type config struct {
	inMemory bool
}

// Option configures a store.
type Option func(*config)

// WithInMemory keeps the data in memory only. The path is ignored.
func WithInMemory() Option {
	return func(c *config) {
		c.inMemory = true
	}
}

// Open opens, or creates, the database stored under path.
func Open(path string, opts ...Option) (*store, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	dbOpts := badger.DefaultOptions(path).WithLogger(nil)
	if cfg.inMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger database: %w", err)
	}

	return &store{db: db}, nil
}

// SaveLastProcessed replaces the persisted checkpoint.
func (s *store) SaveLastProcessed(_ context.Context, lastProcessed map[string]int64) error {
	data, err := json.Marshal(lastProcessed)
	if err != nil {
		return fmt.Errorf("error encoding last processed checkpoint: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(txmanager.CheckpointKey), data)
	})
}

// LoadLastProcessed returns txmanager.ErrNoCheckpointFound when nothing was
// saved yet.
func (s *store) LoadLastProcessed(_ context.Context) (map[string]int64, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(txmanager.CheckpointKey))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			err = txmanager.ErrNoCheckpointFound
		}

		return nil, err
	}

	var lastProcessed map[string]int64
	if err := json.Unmarshal(data, &lastProcessed); err != nil {
		return nil, fmt.Errorf("error decoding last processed checkpoint: %w", err)
	}

	return lastProcessed, nil
}

var _ txmanager.CheckpointStorage = new(store)
