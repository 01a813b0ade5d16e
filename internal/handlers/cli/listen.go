package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gabapcia/walletstream/internal/consumer"
	"github.com/gabapcia/walletstream/internal/pkg/logger"
	"github.com/gabapcia/walletstream/internal/pkg/x/chflow"
	"github.com/gabapcia/walletstream/internal/txevent"
	"github.com/gabapcia/walletstream/internal/txmanager"

	"github.com/urfave/cli/v3"
)

// publishBuffer is how many accepted events may wait for the publisher
// before the broadcast blocks.
const publishBuffer = 64

// listenCommand streams the transactions of a wallet until interrupted.
//
//	walletstream listen --address 0xABC123...
func listenCommand(app *application) *cli.Command {
	return &cli.Command{
		Name:        "listen",
		Description: "Open a session for a wallet and notify its new transactions as they arrive.",
		Usage:       "Streams wallet transactions. Terminates gracefully on Ctrl+C or termination signals.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Wallet address to listen to",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.listen(ctx, c.String("address"))
		},
	}
}

// listen runs until ctx ends or the stream gives up reconnecting.
func (a *application) listen(ctx context.Context, address string) error {
	d := a.deps

	if err := d.Session.Open(ctx, address); err != nil {
		return err
	}
	defer d.Session.Close(ctx)

	address = txevent.NormalizeAddress(address)
	ctx = logger.With(ctx, "wallet.address", address)

	counter := consumer.NewUnreadCounter()
	for _, cb := range []txmanager.Callback{consumer.NewLogNotifier().Notify, counter.Notify} {
		bridge, err := consumer.Attach(ctx, d.Manager, address, cb)
		if err != nil {
			return err
		}
		defer bridge.Stop(ctx)
	}

	if d.Publisher != nil {
		stopPublishing, err := a.publish(ctx, address)
		if err != nil {
			return err
		}
		defer stopPublishing()
	}

	stream, err := d.NewStream(address)
	if err != nil {
		return err
	}

	terminal := make(chan error, 1)
	onMessage := func(ctx context.Context, event txevent.Event) {
		accepted, err := d.Manager.ProcessTransaction(ctx, event, address)
		if err != nil {
			logger.Error(ctx, "error processing transaction", "error", err)
			return
		}

		if !accepted {
			logger.Debug(ctx, "duplicate transaction ignored", "tx.timestamp", event.Transaction.Timestamp)
			return
		}

		logger.Debug(ctx, "transaction accepted",
			"tx.timestamp", event.Transaction.Timestamp,
			"wallet.unread", counter.Count(address),
		)
	}
	onError := func(_ context.Context, err error) {
		select {
		case terminal <- err:
		default:
		}
	}

	if err := stream.Connect(ctx, onMessage, onError); err != nil {
		return err
	}
	defer stream.Disconnect(true)

	logger.Info(ctx, "listening for wallet transactions")

	if err, ok := chflow.Receive(ctx, terminal); ok {
		return fmt.Errorf("transaction stream stopped: %w", err)
	}

	logger.Info(ctx, "stopped listening", "wallet.unread", counter.MarkRead(address))
	return nil
}

// publish forwards the accepted events of address to the publisher from its
// own goroutine. The returned function stops the subscription and waits
// until the buffered events are published.
func (a *application) publish(ctx context.Context, address string) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	events, err := a.deps.Manager.Events(subCtx, address, publishBuffer)
	if err != nil {
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		for event := range events {
			if err := a.deps.Publisher(ctx, event); err != nil {
				logger.Error(ctx, "error publishing transaction",
					"tx.timestamp", event.Transaction.Timestamp,
					"error", err,
				)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
