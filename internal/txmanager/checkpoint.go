package txmanager

import (
	"context"
	"errors"
)

// CheckpointKey is the fixed storage key under which the last processed
// timestamps are persisted as a single JSON object.
const CheckpointKey = "txmanager:last-processed"

// ErrNoCheckpointFound is returned by LoadLastProcessed when nothing has been
// persisted yet.
var ErrNoCheckpointFound = errors.New("no last processed checkpoint found")

// CheckpointStorage persists the wallet address → last processed transaction
// timestamp map so deduplication survives restarts.
type CheckpointStorage interface {
	// LoadLastProcessed returns the whole persisted map, or
	// ErrNoCheckpointFound when none exists.
	LoadLastProcessed(ctx context.Context) (map[string]int64, error)

	// SaveLastProcessed replaces the persisted map with lastProcessed.
	SaveLastProcessed(ctx context.Context, lastProcessed map[string]int64) error
}

// nopCheckpoint keeps nothing; deduplication then only lasts for the
// lifetime of the process.
type nopCheckpoint struct{}

var _ CheckpointStorage = nopCheckpoint{}

func (nopCheckpoint) LoadLastProcessed(context.Context) (map[string]int64, error) {
	return nil, ErrNoCheckpointFound
}

func (nopCheckpoint) SaveLastProcessed(context.Context, map[string]int64) error {
	return nil
}
