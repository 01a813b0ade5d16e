package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/walletstream/internal/txmanager"

	"github.com/redis/go-redis/v9"
)

// SaveLastProcessed stores the whole map as one JSON value with no
// expiration.
func (c *client) SaveLastProcessed(ctx context.Context, lastProcessed map[string]int64) error {
	data, err := json.Marshal(lastProcessed)
	if err != nil {
		return fmt.Errorf("error encoding last processed checkpoint: %w", err)
	}

	return c.conn.Set(ctx, txmanager.CheckpointKey, data, 0).Err()
}

// LoadLastProcessed returns txmanager.ErrNoCheckpointFound when the key has
// never been written.
func (c *client) LoadLastProcessed(ctx context.Context) (map[string]int64, error) {
	data, err := c.conn.Get(ctx, txmanager.CheckpointKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
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

var _ txmanager.CheckpointStorage = new(client)
