package cli

import (
	"context"
	"errors"
	"os"

	"github.com/gabapcia/walletstream/internal/session"
	"github.com/gabapcia/walletstream/internal/txmanager"
	"github.com/gabapcia/walletstream/internal/txstream"

	"github.com/urfave/cli/v3"
)

// Dependencies are the services the commands run against.
type Dependencies struct {
	Session session.Service
	Manager txmanager.Manager

	// NewStream opens the transaction stream of a wallet.
	NewStream func(address string) (txstream.Stream, error)

	// Publisher, when set, receives every accepted event in addition to the
	// built-in consumers.
	Publisher txmanager.Callback

	// Close releases storage and broker connections.
	Close func() error
}

// BuildFunc wires Dependencies from the config file at configPath, which
// may be empty.
type BuildFunc func(ctx context.Context, configPath string) (*Dependencies, error)

// application holds the dependencies shared by the commands once the root
// command has built them.
type application struct {
	build BuildFunc
	deps  *Dependencies
}

func (a *application) before(ctx context.Context, c *cli.Command) (context.Context, error) {
	deps, err := a.build(ctx, c.String("config"))
	if err != nil {
		return ctx, err
	}

	a.deps = deps
	return ctx, nil
}

func (a *application) after(context.Context, *cli.Command) error {
	if a.deps == nil || a.deps.Close == nil {
		return nil
	}

	return a.deps.Close()
}

// newCommand builds the root command.
func newCommand(build BuildFunc) *cli.Command {
	app := &application{build: build}

	return &cli.Command{
		EnableShellCompletion: true,
		Name:                  "walletstream",
		Description:           "Streams live wallet transactions, drops the ones already seen and notifies the configured consumers.",
		Usage:                 "walletstream [command] [flags]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML config file",
				Sources: cli.EnvVars("WALLETSTREAM_CONFIG"),
			},
		},
		Before: app.before,
		After:  app.after,
		Commands: []*cli.Command{
			listenCommand(app),
			checkpointCommand(app),
		},
	}
}

// Run executes the walletstream CLI with os.Args.
func Run(ctx context.Context, build BuildFunc) error {
	if build == nil {
		return errors.New("cli: nil BuildFunc")
	}

	return newCommand(build).Run(ctx, os.Args)
}
