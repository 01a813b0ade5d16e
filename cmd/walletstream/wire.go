package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabapcia/walletstream/internal/config"
	"github.com/gabapcia/walletstream/internal/handlers/cli"
	"github.com/gabapcia/walletstream/internal/infra/broker/nats"
	"github.com/gabapcia/walletstream/internal/infra/storage/badger"
	"github.com/gabapcia/walletstream/internal/infra/storage/redis"
	"github.com/gabapcia/walletstream/internal/pkg/logger"
	"github.com/gabapcia/walletstream/internal/pkg/telemetry"
	"github.com/gabapcia/walletstream/internal/session"
	"github.com/gabapcia/walletstream/internal/txmanager"
	"github.com/gabapcia/walletstream/internal/txstream"
)

// storageCloser is a checkpoint storage backed by a connection.
type storageCloser interface {
	txmanager.CheckpointStorage
	io.Closer
}

// openStorage returns nil for the memory kind.
func openStorage(ctx context.Context, cfg config.Storage) (storageCloser, error) {
	switch cfg.Kind {
	case config.StorageBadger:
		var opts []badger.Option
		if cfg.Badger.InMemory {
			opts = append(opts, badger.WithInMemory())
		}
		return badger.Open(cfg.Badger.Dir, opts...)
	case config.StorageRedis:
		return redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
	case config.StorageMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

// build loads the configuration and wires every service the commands use.
func build(ctx context.Context, configPath string) (*cli.Dependencies, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.WithLevel(cfg.Log.Level)); err != nil {
		return nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			Endpoint:       cfg.Telemetry.Endpoint,
			Insecure:       cfg.Telemetry.Insecure,
			MetricInterval: cfg.Telemetry.MetricInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("error initializing telemetry: %w", err)
		}
		closers = append(closers, func() error { return shutdown(context.Background()) })
	}

	sess := session.New()

	var managerOpts []txmanager.Option
	storage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.Join(err, closeAll())
	}
	if storage != nil {
		closers = append(closers, storage.Close)
		managerOpts = append(managerOpts, txmanager.WithCheckpointStorage(storage))
	}

	deps := &cli.Dependencies{
		Session: sess,
		Manager: txmanager.New(sess, managerOpts...),
		NewStream: func(address string) (txstream.Stream, error) {
			return txstream.New(cfg.Stream.BaseURL, address,
				txstream.WithReconnect(cfg.Stream.ReconnectBaseDelay, cfg.Stream.MaxReconnectAttempts),
				txstream.WithIdleTimeout(cfg.Stream.IdleTimeout),
			)
		},
	}

	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, errors.Join(err, closeAll())
		}
		closers = append(closers, func() error { conn.Close(); return nil })

		publisher := nats.NewPublisher(conn, nats.WithSubjectPrefix(cfg.NATS.SubjectPrefix))
		deps.Publisher = publisher.Publish
	}

	deps.Close = closeAll
	return deps, nil
}
