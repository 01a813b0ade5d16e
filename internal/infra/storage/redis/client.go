// Package redis implements the storage interfaces of the module on top of
// go-redis.
package redis

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

type client struct {
	conn *redis.Client
}

// Close releases the connection pool.
func (c *client) Close() error {
	return c.conn.Close()
}

// NewClient connects to Redis and checks the connection with a PING.
func NewClient(ctx context.Context, addr, username, password string, db int) (*client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error connecting to redis at %s: %w", addr, err)
	}

	return &client{
		conn: conn,
	}, nil
}
